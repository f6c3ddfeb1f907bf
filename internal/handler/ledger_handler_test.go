package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/ledger"
	"github.com/hitoshi/passbook/internal/model"
)

type mockLedgerService struct {
	recordFn        func(ctx context.Context, in ledger.Posting) (*ledger.Receipt, error)
	payCreditCardFn func(ctx context.Context, in ledger.CardPayment) (*ledger.PaymentReceipt, error)
}

func (m *mockLedgerService) Record(ctx context.Context, in ledger.Posting) (*ledger.Receipt, error) {
	return m.recordFn(ctx, in)
}

func (m *mockLedgerService) PayCreditCard(ctx context.Context, in ledger.CardPayment) (*ledger.PaymentReceipt, error) {
	return m.payCreditCardFn(ctx, in)
}

func savingsReceipt(balance string) *ledger.Receipt {
	return &ledger.Receipt{
		Product:     &model.Product{ID: "sb-1", Type: model.ProductTypeSavings, CurrentBalance: decimal.RequireFromString(balance)},
		Transaction: &model.Transaction{ID: "t-1"},
	}
}

func TestLedgerHandler_AddTransaction(t *testing.T) {
	var got ledger.Posting
	svc := &mockLedgerService{
		recordFn: func(ctx context.Context, in ledger.Posting) (*ledger.Receipt, error) {
			got = in
			r := savingsReceipt("1500")
			r.Warning = "SMS通知の送信に失敗しました"
			return r, nil
		},
	}
	h := NewLedgerHandler(svc)

	w := httptest.NewRecorder()
	h.AddTransaction(w, authedRequest(http.MethodPost, "/api/transactions", `{"product_id":"sb-1","amount_credit":500}`))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.OwnerID != "user-1" || got.ProductID != "sb-1" {
		t.Errorf("posting = %+v", got)
	}
	if !got.Credit.Equal(decimal.NewFromInt(500)) || !got.Debit.IsZero() {
		t.Errorf("amounts = %s/%s", got.Credit, got.Debit)
	}

	var resp addTransactionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NewBalance != "1500.00" || resp.TransactionID != "t-1" || resp.Warning == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestLedgerHandler_AddTransaction_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"missing product id", `{"amount_credit":1}`, nil, http.StatusBadRequest},
		{"malformed amount", `{"product_id":"p","amount_credit":"abc"}`, nil, http.StatusBadRequest},
		{"invalid amounts", `{"product_id":"p","amount_credit":1,"amount_debit":1}`, model.NewInvalidAmountsError("both"), http.StatusBadRequest},
		{"product not found", `{"product_id":"p","amount_credit":1}`, model.NewProductNotFoundError("p"), http.StatusNotFound},
		{"persistence failure", `{"product_id":"p","amount_credit":1}`, fmt.Errorf("tx: %w", model.NewPersistenceError()), http.StatusInternalServerError},
		{"unclassified error", `{"product_id":"p","amount_credit":1}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLedgerService{
				recordFn: func(ctx context.Context, in ledger.Posting) (*ledger.Receipt, error) {
					if tt.err == nil {
						t.Fatal("recorder should not be called")
					}
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			NewLedgerHandler(svc).AddTransaction(w, authedRequest(http.MethodPost, "/api/transactions", tt.body))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestLedgerHandler_PayCreditCard(t *testing.T) {
	var got ledger.CardPayment
	svc := &mockLedgerService{
		payCreditCardFn: func(ctx context.Context, in ledger.CardPayment) (*ledger.PaymentReceipt, error) {
			got = in
			return &ledger.PaymentReceipt{
				Debit: savingsReceipt("700"),
				Credit: &ledger.Receipt{
					Product:     &model.Product{ID: "cc-1", Type: model.ProductTypeCreditCard, CurrentDue: decimal.RequireFromString("200")},
					Transaction: &model.Transaction{ID: "t-2"},
				},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	NewLedgerHandler(svc).PayCreditCard(w, authedRequest(http.MethodPost, "/api/payments/credit-card",
		`{"source_product_id":"sb-1","target_product_id":"cc-1","amount":"300.00"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.OwnerID != "user-1" || got.SourceID != "sb-1" || got.TargetID != "cc-1" || !got.Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("payment = %+v", got)
	}

	var resp payCreditCardResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.SourceBalance != "700.00" || resp.TargetOutstanding != "200.00" {
		t.Errorf("response = %+v", resp)
	}
}

func TestLedgerHandler_PayCreditCard_InsufficientFunds(t *testing.T) {
	svc := &mockLedgerService{
		payCreditCardFn: func(ctx context.Context, in ledger.CardPayment) (*ledger.PaymentReceipt, error) {
			return nil, model.NewInsufficientFundsError()
		},
	}

	w := httptest.NewRecorder()
	NewLedgerHandler(svc).PayCreditCard(w, authedRequest(http.MethodPost, "/api/payments/credit-card",
		`{"source_product_id":"sb-1","target_product_id":"cc-1","amount":5000}`))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeInsufficientFunds {
		t.Errorf("code = %s", code)
	}
}

func TestLedgerHandler_PayCreditCard_MissingAmount(t *testing.T) {
	w := httptest.NewRecorder()
	NewLedgerHandler(&mockLedgerService{}).PayCreditCard(w, authedRequest(http.MethodPost, "/api/payments/credit-card",
		`{"source_product_id":"sb-1","target_product_id":"cc-1"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
