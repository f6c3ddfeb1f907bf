package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/passbook/internal/model"
)

const productColumns = `id, user_id, product_type, date_of_opening, current_balance, current_due,
		        payment_due_date, balance, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresProductRepo はPostgreSQLを使用した金融商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return p, nil
}

// ListByUserID はユーザーが保有する商品を開設日順で返す。
func (r *PostgresProductRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE user_id = $1
		 ORDER BY date_of_opening ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	products := []*model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("商品の読み取りに失敗しました: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}

	return products, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	var paymentDue sql.NullTime
	if p.PaymentDueDate != nil {
		paymentDue = sql.NullTime{Time: *p.PaymentDueDate, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, user_id, product_type, date_of_opening, current_balance,
		                       current_due, payment_due_date, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, string(p.Type), p.DateOfOpening, p.CurrentBalance,
		p.CurrentDue, paymentDue, p.Balance, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// scanProduct は1行分の商品を読み取る。
func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var productType string
	var paymentDue sql.NullTime

	if err := row.Scan(
		&p.ID, &p.UserID, &productType, &p.DateOfOpening, &p.CurrentBalance, &p.CurrentDue,
		&paymentDue, &p.Balance, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Type = model.ProductType(productType)
	if paymentDue.Valid {
		p.PaymentDueDate = &paymentDue.Time
	}
	return p, nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
