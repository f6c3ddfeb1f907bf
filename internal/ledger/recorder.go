package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/metrics"
	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
)

// 通知送信失敗時にレスポンスへ含める警告文
const notificationWarning = "取引は記録されましたが、SMS通知を送信できませんでした。"

// 記帳後の通知送信に許容する時間
const defaultNotifyTimeout = 10 * time.Second

// Notifier はコミット済みの通知を送信するインターフェース。
type Notifier interface {
	// Dispatch は指定IDの通知を確保して1回だけ送信する。
	Dispatch(ctx context.Context, notificationID string) error
}

// Posting は1件の記帳リクエストを表す。
type Posting struct {
	// OwnerID が空でない場合、商品の所有者と一致しなければ商品不明として扱う。
	OwnerID   string
	ProductID string
	Credit    decimal.Decimal
	Debit     decimal.Decimal
}

// Receipt は記帳結果を表す。
type Receipt struct {
	Product          *model.Product
	Transaction      *model.Transaction
	NotificationSent bool
	Warning          string

	notificationID string
}

// NewBalance は記帳後の正となる残高値を返す。
func (r *Receipt) NewBalance() decimal.Decimal {
	return r.Product.Authoritative()
}

// Recorder は取引の検証、残高更新、永続化、通知送信を統括する。
type Recorder struct {
	store         repository.LedgerStore
	notifier      Notifier
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

// NewRecorder はRecorderの新しいインスタンスを生成する。
// notifierがnilの場合、通知はpendingのまま残りワーカーが送信する。
func NewRecorder(
	store repository.LedgerStore,
	notifier Notifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:         store,
		notifier:      notifier,
		metrics:       collector,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Record は1件の取引を記帳する。
//
// 商品の存在、金額の組み合わせを順に検証し、残高更新・取引追記・通知登録を
// 単一のDBトランザクションで行う。コミット後に通知をベストエフォートで送信し、
// 送信に失敗しても記帳結果は取り消さない。
func (r *Recorder) Record(ctx context.Context, in Posting) (*Receipt, error) {
	var receipt *Receipt

	err := r.store.RunInTx(ctx, func(tx repository.LedgerTx) error {
		p, err := r.lockOwned(ctx, tx, in.OwnerID, in.ProductID)
		if err != nil {
			return err
		}
		if apiErr := ValidateAmounts(in.Credit, in.Debit); apiErr != nil {
			return apiErr
		}

		receipt, err = r.post(ctx, tx, p, in.Credit, in.Debit)
		return err
	})
	if err != nil {
		return nil, r.classify(err, in.ProductID)
	}

	r.recordPosted(receipt)
	r.dispatch(ctx, receipt)
	return receipt, nil
}

// lockOwned は商品行をロックし、所有者を確認する。
func (r *Recorder) lockOwned(ctx context.Context, tx repository.LedgerTx, ownerID, productID string) (*model.Product, error) {
	p, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || (ownerID != "" && p.UserID != ownerID) {
		return nil, model.NewProductNotFoundError(productID)
	}
	return p, nil
}

// post はロック済みの商品に取引を適用し、商品更新・取引追記・通知登録を行う。
// 呼び出し側のトランザクション内で実行される。
func (r *Recorder) post(ctx context.Context, tx repository.LedgerTx, p *model.Product, credit, debit decimal.Decimal) (*Receipt, error) {
	if err := Apply(p, credit, debit); err != nil {
		return nil, model.NewInvalidProductTypeError(string(p.Type))
	}
	if !WithinLimit(p.Authoritative()) {
		return nil, model.NewInvalidAmountsError("取引後の残高が上限を超えます")
	}

	now := r.now()
	p.UpdatedAt = now
	if err := tx.UpdateProductBalances(ctx, p); err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		ID:              r.newID(),
		ProductID:       p.ID,
		AmountCredit:    credit.Round(amountScale),
		AmountDebit:     debit.Round(amountScale),
		TransactionDate: now,
		Balance:         p.Balance,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	owner, err := tx.FindUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("商品の所有者が見つかりません: product_id=%s user_id=%s", p.ID, p.UserID)
	}

	n := &model.Notification{
		ID:            r.newID(),
		UserID:        owner.ID,
		TransactionID: txn.ID,
		Destination:   owner.ContactNumber,
		Message:       TransactionMessage(p, txn),
		Status:        model.NotificationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.EnqueueNotification(ctx, n); err != nil {
		return nil, err
	}

	return &Receipt{Product: p, Transaction: txn, notificationID: n.ID}, nil
}

// classify はトランザクション内のエラーを呼び出し側向けのエラーに変換する。
// APIErrorはそのまま返し、それ以外は永続化エラーとして扱う。
func (r *Recorder) classify(err error, productID string) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		r.recordRejected(rejectReason(apiErr.Code))
		return apiErr
	}

	r.logger.Error("取引の永続化に失敗しました",
		slog.String("product_id", productID),
		slog.String("error", err.Error()),
	)
	r.recordRejected("persistence")
	return model.NewPersistenceError()
}

// dispatch はコミット済みの通知を送信し、結果をreceiptに反映する。
// リクエストのキャンセルに影響されないよう、独立したタイムアウト付きコンテキストで送信する。
func (r *Recorder) dispatch(ctx context.Context, receipt *Receipt) {
	if r.notifier == nil {
		return
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.notifyTimeout)
	defer cancel()

	if err := r.notifier.Dispatch(dctx, receipt.notificationID); err != nil {
		r.logger.Warn("取引通知の送信に失敗しました",
			slog.String("product_id", receipt.Product.ID),
			slog.String("transaction_id", receipt.Transaction.ID),
			slog.String("notification_id", receipt.notificationID),
			slog.String("error", err.Error()),
		)
		receipt.Warning = notificationWarning
		return
	}
	receipt.NotificationSent = true
}

func (r *Recorder) recordPosted(receipt *Receipt) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordTransactionPosted(string(receipt.Product.Type), receipt.Transaction.Direction())
}

func (r *Recorder) recordRejected(reason string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordTransactionRejected(reason)
}

// rejectReason はエラーコードをメトリクスのラベル値に変換する。
func rejectReason(code string) string {
	switch code {
	case model.ErrCodeProductNotFound:
		return "not_found"
	case model.ErrCodeInvalidAmounts:
		return "invalid_amounts"
	case model.ErrCodeInvalidProductType:
		return "invalid_product_type"
	case model.ErrCodeInsufficientFunds:
		return "insufficient_funds"
	default:
		return "invalid_request"
	}
}
