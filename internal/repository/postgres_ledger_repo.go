package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/passbook/internal/model"
)

// PostgresLedgerRepo はPostgreSQLのトランザクションを使ったLedgerStore実装。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// RunInTx はfnを単一のDBトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、そのエラーをそのまま返す。
func (r *PostgresLedgerRepo) RunInTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// postgresLedgerTx は*sql.Txに束縛されたLedgerTx実装。
type postgresLedgerTx struct {
	tx *sql.Tx
}

// LockProduct は商品行をSELECT ... FOR UPDATEで取得する。
func (t *postgresLedgerTx) LockProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(t.tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品のロック取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindUser は指定IDのユーザーを取得する。
func (t *postgresLedgerTx) FindUser(ctx context.Context, id string) (*model.User, error) {
	return findUser(ctx, t.tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// UpdateProductBalances は商品の残高列を更新する。
func (t *postgresLedgerTx) UpdateProductBalances(ctx context.Context, p *model.Product) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE products
		 SET current_balance = $2, current_due = $3, balance = $4, updated_at = $5
		 WHERE id = $1`,
		p.ID, p.CurrentBalance, p.CurrentDue, p.Balance, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品残高の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("商品残高の更新対象が不正です: product_id=%s rows=%d", p.ID, rowsAffected)
	}
	return nil
}

// InsertTransaction は取引を追記する。
func (t *postgresLedgerTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (id, product_id, amount_credit, amount_debit, transaction_date, balance)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.ProductID, txn.AmountCredit, txn.AmountDebit, txn.TransactionDate, txn.Balance,
	)
	if err != nil {
		return fmt.Errorf("取引の登録に失敗しました: %w", err)
	}
	return nil
}

// EnqueueNotification は通知をpending状態で登録する。
func (t *postgresLedgerTx) EnqueueNotification(ctx context.Context, n *model.Notification) error {
	var transactionID sql.NullString
	if n.TransactionID != "" {
		transactionID = sql.NullString{String: n.TransactionID, Valid: true}
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, transaction_id, destination, message, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)`,
		n.ID, n.UserID, transactionID, n.Destination, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の登録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface checks
var (
	_ LedgerStore = (*PostgresLedgerRepo)(nil)
	_ LedgerTx    = (*postgresLedgerTx)(nil)
)
