package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/passbook/internal/model"
)

// PostgresTransactionRepo はPostgreSQLを使用した取引記録リポジトリ。
type PostgresTransactionRepo struct {
	db *sql.DB
}

// NewPostgresTransactionRepo はPostgresTransactionRepoを生成する。
func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

// ListByProduct は商品の取引をtransaction_date降順で返す。
// limitが0以下の場合は全件を返す。
func (r *PostgresTransactionRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]*model.Transaction, error) {
	query := `SELECT id, product_id, amount_credit, amount_debit, transaction_date, balance
		 FROM transactions
		 WHERE product_id = $1
		 ORDER BY transaction_date DESC, id DESC`
	args := []any{productID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("取引一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	txns := []*model.Transaction{}
	for rows.Next() {
		t := &model.Transaction{}
		if err := rows.Scan(
			&t.ID, &t.ProductID, &t.AmountCredit, &t.AmountDebit, &t.TransactionDate, &t.Balance,
		); err != nil {
			return nil, fmt.Errorf("取引の読み取りに失敗しました: %w", err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("取引一覧の走査に失敗しました: %w", err)
	}

	return txns, nil
}

// compile-time interface check
var _ TransactionRepository = (*PostgresTransactionRepo)(nil)
