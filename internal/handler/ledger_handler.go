package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/ledger"
	"github.com/hitoshi/passbook/internal/model"
)

// LedgerServiceInterface は記帳ハンドラーが必要とするサービスインターフェース。
type LedgerServiceInterface interface {
	Record(ctx context.Context, in ledger.Posting) (*ledger.Receipt, error)
	PayCreditCard(ctx context.Context, in ledger.CardPayment) (*ledger.PaymentReceipt, error)
}

// LedgerHandler は取引記帳とクレジットカード支払いのHTTPハンドラー。
type LedgerHandler struct {
	service LedgerServiceInterface
}

// NewLedgerHandler はLedgerHandlerを生成する。
func NewLedgerHandler(service LedgerServiceInterface) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// addTransactionRequest は取引記帳リクエストのボディ。
// 金額は省略時0として扱い、組み合わせの検証は記帳処理が行う。
type addTransactionRequest struct {
	ProductID    string           `json:"product_id"`
	AmountCredit *decimal.Decimal `json:"amount_credit"`
	AmountDebit  *decimal.Decimal `json:"amount_debit"`
}

type addTransactionResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
	NewBalance    string `json:"new_balance"`
	Warning       string `json:"warning,omitempty"`
}

type payCreditCardRequest struct {
	SourceProductID string           `json:"source_product_id"`
	TargetProductID string           `json:"target_product_id"`
	Amount          *decimal.Decimal `json:"amount"`
}

type payCreditCardResponse struct {
	Message           string `json:"message"`
	SourceBalance     string `json:"source_balance"`
	TargetOutstanding string `json:"target_outstanding"`
	Warning           string `json:"warning,omitempty"`
}

// AddTransaction は取引を1件記帳する。
// POST /api/transactions
func (h *LedgerHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addTransactionRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if req.ProductID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("product_id は必須です"))
		return
	}

	receipt, err := h.service.Record(r.Context(), ledger.Posting{
		OwnerID:   userID,
		ProductID: req.ProductID,
		Credit:    valueOrZero(req.AmountCredit),
		Debit:     valueOrZero(req.AmountDebit),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addTransactionResponse{
		Message:       "Transaction added successfully",
		TransactionID: receipt.Transaction.ID,
		NewBalance:    formatAmount(receipt.NewBalance()),
		Warning:       receipt.Warning,
	})
}

// PayCreditCard は普通預金口座からクレジットカードへ支払う。
// POST /api/payments/credit-card
func (h *LedgerHandler) PayCreditCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req payCreditCardRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if req.SourceProductID == "" || req.TargetProductID == "" || req.Amount == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("source_product_id、target_product_id、amount は必須です"))
		return
	}

	receipt, err := h.service.PayCreditCard(r.Context(), ledger.CardPayment{
		OwnerID:  userID,
		SourceID: req.SourceProductID,
		TargetID: req.TargetProductID,
		Amount:   *req.Amount,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payCreditCardResponse{
		Message:           "Payment successful",
		SourceBalance:     formatAmount(receipt.Debit.NewBalance()),
		TargetOutstanding: formatAmount(receipt.Credit.NewBalance()),
		Warning:           receipt.Warning,
	})
}
