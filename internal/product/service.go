// Package product は金融商品の作成と参照のドメインロジックを提供する。
package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/ledger"
	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
)

// AddInput は商品作成の入力を表す。日付はDD/MM/YYYY形式。
type AddInput struct {
	UserID         string
	Type           string
	DateOfOpening  string
	CurrentBalance decimal.Decimal
	CurrentDue     decimal.Decimal
	PaymentDueDate string // 省略可
}

// Service は商品管理のサービス層。
type Service struct {
	products repository.ProductRepository
	txns     repository.TransactionRepository
	now      func() time.Time
	newID    func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(products repository.ProductRepository, txns repository.TransactionRepository) *Service {
	return &Service{
		products: products,
		txns:     txns,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// AddProduct は商品を作成する。
// 未定義の商品種別はここで拒否し、残高規則の対象外となる商品を作らない。
func (s *Service) AddProduct(ctx context.Context, in AddInput) (*model.Product, error) {
	productType := model.ProductType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if !productType.Valid() {
		return nil, model.NewInvalidProductTypeError(in.Type)
	}

	opened, err := parseInputDate(in.DateOfOpening)
	if err != nil {
		return nil, model.NewInvalidRequestError("date_of_opening はDD/MM/YYYY形式で指定してください")
	}

	var paymentDue *time.Time
	if strings.TrimSpace(in.PaymentDueDate) != "" {
		due, err := parseInputDate(in.PaymentDueDate)
		if err != nil {
			return nil, model.NewInvalidRequestError("payment_due_date はDD/MM/YYYY形式で指定してください")
		}
		paymentDue = &due
	}

	for _, amount := range []decimal.Decimal{in.CurrentBalance, in.CurrentDue} {
		if amount.IsNegative() || !ledger.WithinLimit(amount) || !ledger.HasValidScale(amount) {
			return nil, model.NewInvalidRequestError("開設時の残高は0以上1兆未満の小数第2位までの金額で指定してください")
		}
	}

	now := s.now()
	p := &model.Product{
		ID:             s.newID(),
		UserID:         in.UserID,
		Type:           productType,
		DateOfOpening:  opened,
		CurrentBalance: in.CurrentBalance,
		CurrentDue:     in.CurrentDue,
		PaymentDueDate: paymentDue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.Balance = p.Authoritative()

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return p, nil
}

// ListProducts はユーザーの商品一覧を返す。
func (s *Service) ListProducts(ctx context.Context, userID string) ([]*model.Product, error) {
	products, err := s.products.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// ListTransactions は商品の取引を新しい順に返す。
// limitが0の場合は全件を返す。他ユーザーの商品は存在しないものとして扱う。
func (s *Service) ListTransactions(ctx context.Context, userID, productID string, limit int) ([]*model.Transaction, error) {
	if limit < 0 {
		return nil, model.NewInvalidRequestError("limit は0以上で指定してください")
	}

	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if p == nil || p.UserID != userID {
		return nil, model.NewProductNotFoundError(productID)
	}

	txns, err := s.txns.ListByProduct(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("取引一覧の取得に失敗しました: %w", err)
	}
	return txns, nil
}

func parseInputDate(s string) (time.Time, error) {
	return time.Parse(model.DateLayoutInput, strings.TrimSpace(s))
}
