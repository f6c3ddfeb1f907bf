package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
)

var errInjected = errors.New("injected failure")

// fakeStore はコミット時のみ変更を反映するインメモリのLedgerStore。
type fakeStore struct {
	products      map[string]model.Product
	users         map[string]*model.User
	transactions  []*model.Transaction
	notifications []*model.Notification

	// failInsertAt が正の場合、そのn回目のInsertTransactionでエラーを返す。
	failInsertAt int
	failEnqueue  bool
	locked       []string

	// onCommit はコミット直後に呼ばれる。
	onCommit func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]model.Product{},
		users: map[string]*model.User{
			"user-1": {ID: "user-1", Name: "Owner", ContactNumber: "+911111111111"},
			"user-2": {ID: "user-2", Name: "Other", ContactNumber: "+912222222222"},
		},
	}
}

func (s *fakeStore) addProduct(p model.Product) {
	s.products[p.ID] = p
}

func (s *fakeStore) product(id string) model.Product {
	return s.products[id]
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx := &fakeTx{store: s, products: map[string]model.Product{}}
	for id, p := range s.products {
		tx.products[id] = p
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.products = tx.products
	s.transactions = append(s.transactions, tx.transactions...)
	s.notifications = append(s.notifications, tx.notifications...)
	if s.onCommit != nil {
		s.onCommit()
	}
	return nil
}

type fakeTx struct {
	store         *fakeStore
	products      map[string]model.Product
	transactions  []*model.Transaction
	notifications []*model.Notification
	inserts       int
}

func (t *fakeTx) LockProduct(ctx context.Context, id string) (*model.Product, error) {
	t.store.locked = append(t.store.locked, id)
	p, ok := t.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *fakeTx) FindUser(ctx context.Context, id string) (*model.User, error) {
	return t.store.users[id], nil
}

func (t *fakeTx) UpdateProductBalances(ctx context.Context, p *model.Product) error {
	t.products[p.ID] = *p
	return nil
}

func (t *fakeTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	t.inserts++
	if t.store.failInsertAt > 0 && t.inserts == t.store.failInsertAt {
		return errInjected
	}
	t.transactions = append(t.transactions, txn)
	return nil
}

func (t *fakeTx) EnqueueNotification(ctx context.Context, n *model.Notification) error {
	if t.store.failEnqueue {
		return errInjected
	}
	t.notifications = append(t.notifications, n)
	return nil
}

// fakeNotifier は送信要求された通知IDを記録する。
type fakeNotifier struct {
	err        error
	dispatched []string
}

func (n *fakeNotifier) Dispatch(ctx context.Context, id string) error {
	n.dispatched = append(n.dispatched, id)
	return n.err
}

// fakeMetrics は記録された値を保持するMetricsCollector。
type fakeMetrics struct {
	posted   []string
	rejected []string
}

func (m *fakeMetrics) RecordTransactionPosted(productType, direction string) {
	m.posted = append(m.posted, productType+":"+direction)
}
func (m *fakeMetrics) RecordTransactionRejected(reason string) {
	m.rejected = append(m.rejected, reason)
}
func (m *fakeMetrics) RecordNotification(result string)              {}
func (m *fakeMetrics) RecordStatement(stage string)                  {}
func (m *fakeMetrics) RecordHTTPStatus(statusCode int)               {}
func (m *fakeMetrics) RecordStatementLatency(duration time.Duration) {}
