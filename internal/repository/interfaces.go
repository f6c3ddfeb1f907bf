// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/passbook/internal/model"
)

// ErrDuplicateEmail はメールアドレスのユニーク制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}

// ProductRepository は金融商品データの参照・作成インターフェース。
// 残高の更新はLedgerStore経由でのみ行う。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// ListByUserID はユーザーが保有する商品を開設日順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Product, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error
}

// TransactionRepository は取引記録の参照インターフェース。
// 取引は追記専用のため、更新・削除の操作は持たない。
type TransactionRepository interface {
	// ListByProduct は商品の取引を新しい順に返す。
	// limitが0以下の場合は全件を返す。
	ListByProduct(ctx context.Context, productID string, limit int) ([]*model.Transaction, error)
}

// NotificationRepository は通知アウトボックスの永続化インターフェース。
type NotificationRepository interface {
	// Claim はpending状態の通知をsendingに遷移させて返す。
	// 既に他の処理が確保済み、または存在しない場合はnilを返す。
	Claim(ctx context.Context, id string) (*model.Notification, error)

	// ClaimStale はolderThanより前に作成され、まだpendingのままの通知を
	// 最大limit件sendingに遷移させて返す。FOR UPDATE SKIP LOCKEDで排他的に確保する。
	ClaimStale(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Notification, error)

	// MarkSent は通知を送信済みにする。
	MarkSent(ctx context.Context, id string) error

	// MarkFailed は通知を送信失敗にする。失敗した通知は再送しない。
	MarkFailed(ctx context.Context, id string, reason string) error

	// FailAbandoned はolderThanより長くsendingのまま残った通知をfailedにし、件数を返す。
	// 送信中にプロセスが停止した通知が該当する。
	FailAbandoned(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LedgerStore は残高更新・取引記録・通知登録を単一のDBトランザクションで実行する。
// fnがエラーを返した場合、またはコミットに失敗した場合はすべてロールバックされる。
type LedgerStore interface {
	RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx はLedgerStoreのトランザクション内で利用できる操作。
type LedgerTx interface {
	// LockProduct は商品行をSELECT ... FOR UPDATEで取得する。見つからない場合はnilを返す。
	LockProduct(ctx context.Context, id string) (*model.Product, error)

	// FindUser は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindUser(ctx context.Context, id string) (*model.User, error)

	// UpdateProductBalances は商品のcurrent_balance、current_due、balanceを更新する。
	UpdateProductBalances(ctx context.Context, product *model.Product) error

	// InsertTransaction は取引を追記する。
	InsertTransaction(ctx context.Context, txn *model.Transaction) error

	// EnqueueNotification は通知をpending状態で登録する。
	EnqueueNotification(ctx context.Context, n *model.Notification) error
}
