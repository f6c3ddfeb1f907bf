package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/product"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	AddProduct(ctx context.Context, in product.AddInput) (*model.Product, error)
	ListProducts(ctx context.Context, userID string) ([]*model.Product, error)
	ListTransactions(ctx context.Context, userID, productID string, limit int) ([]*model.Transaction, error)
}

// ProductHandler は商品と取引履歴のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

// addProductRequest は商品作成リクエストのボディ。日付はDD/MM/YYYY形式。
type addProductRequest struct {
	ProductType    string           `json:"product_type"`
	DateOfOpening  string           `json:"date_of_opening"`
	CurrentBalance *decimal.Decimal `json:"current_balance"`
	CurrentDue     *decimal.Decimal `json:"current_due"`
	PaymentDueDate string           `json:"payment_due_date"`
}

// productResponse は商品一覧の1件を表す。
type productResponse struct {
	ProductID      string  `json:"product_id"`
	ProductType    string  `json:"product_type"`
	DateOfOpening  string  `json:"date_of_opening"`
	CurrentBalance string  `json:"current_balance"`
	CurrentDue     string  `json:"current_due"`
	PaymentDueDate *string `json:"payment_due_date"`
}

// transactionResponse は取引履歴の1件を表す。
type transactionResponse struct {
	TransactionID   string `json:"transaction_id"`
	AmountCredit    string `json:"amount_credit"`
	AmountDebit     string `json:"amount_debit"`
	TransactionDate string `json:"transaction_date"`
	Balance         string `json:"balance"`
}

func toProductResponse(p *model.Product) productResponse {
	resp := productResponse{
		ProductID:      p.ID,
		ProductType:    string(p.Type),
		DateOfOpening:  p.DateOfOpening.Format(model.DateLayoutISO),
		CurrentBalance: formatAmount(p.CurrentBalance),
		CurrentDue:     formatAmount(p.CurrentDue),
	}
	if p.PaymentDueDate != nil {
		due := p.PaymentDueDate.Format(model.DateLayoutISO)
		resp.PaymentDueDate = &due
	}
	return resp
}

func toTransactionResponse(t *model.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID:   t.ID,
		AmountCredit:    formatAmount(t.AmountCredit),
		AmountDebit:     formatAmount(t.AmountDebit),
		TransactionDate: t.TransactionDate.UTC().Format(model.DateTimeLayout),
		Balance:         formatAmount(t.Balance),
	}
}

// formatAmount は金額を小数第2位までの文字列にする。
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// AddProduct は商品を作成する。
// POST /api/products
func (h *ProductHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addProductRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if req.ProductType == "" || req.DateOfOpening == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("product_type と date_of_opening は必須です"))
		return
	}

	p, err := h.service.AddProduct(r.Context(), product.AddInput{
		UserID:         userID,
		Type:           req.ProductType,
		DateOfOpening:  req.DateOfOpening,
		CurrentBalance: valueOrZero(req.CurrentBalance),
		CurrentDue:     valueOrZero(req.CurrentDue),
		PaymentDueDate: req.PaymentDueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// ListProducts はログインユーザーの商品一覧を返す。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	products, err := h.service.ListProducts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTransactions は商品の取引履歴を新しい順に返す。
// GET /api/products/{id}/transactions?limit=N
//
// limitを省略した場合は全件を返す。
func (h *ProductHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limit は整数で指定してください"))
			return
		}
		limit = n
	}

	txns, err := h.service.ListTransactions(r.Context(), userID, chi.URLParam(r, "id"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]transactionResponse, len(txns))
	for i, t := range txns {
		resp[i] = toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}
