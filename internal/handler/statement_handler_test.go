package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/statement"
)

type mockStatementService struct {
	generateFn func(ctx context.Context, req statement.Request) (*statement.Result, error)
}

func (m *mockStatementService) Generate(ctx context.Context, req statement.Request) (*statement.Result, error) {
	return m.generateFn(ctx, req)
}

func TestStatementHandler_CountDefaults(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
	}{
		{"count omitted", `{"product_id":"p-1"}`, statement.DefaultCount},
		{"explicit count", `{"product_id":"p-1","count":25}`, 25},
		{"explicit zero is passed through", `{"product_id":"p-1","count":0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got statement.Request
			svc := &mockStatementService{
				generateFn: func(ctx context.Context, req statement.Request) (*statement.Result, error) {
					got = req
					if req.Count < 1 {
						return nil, model.NewInvalidTransactionCountError(req.Count)
					}
					return &statement.Result{Key: "k.pdf", URL: "https://example.com/k.pdf", TransactionCount: 3}, nil
				},
			}

			w := httptest.NewRecorder()
			NewStatementHandler(svc).GenerateStatement(w, authedRequest(http.MethodPost, "/api/statements", tt.body))

			if got.Count != tt.wantCount || got.OwnerID != "user-1" || got.ProductID != "p-1" {
				t.Errorf("request = %+v", got)
			}
			wantStatus := http.StatusOK
			if tt.wantCount < 1 {
				wantStatus = http.StatusBadRequest
			}
			if w.Code != wantStatus {
				t.Errorf("status = %d, want %d", w.Code, wantStatus)
			}
		})
	}
}

func TestStatementHandler_StageErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *model.APIError
		wantStatus int
	}{
		{"creation", model.NewStatementCreationError(), http.StatusInternalServerError},
		{"upload", model.NewStatementUploadError(), http.StatusInternalServerError},
		{"notification", model.NewStatementNotificationError(), http.StatusBadGateway},
		{"not owner", model.NewProductNotFoundError("p-1"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockStatementService{
				generateFn: func(ctx context.Context, req statement.Request) (*statement.Result, error) {
					return nil, tt.err
				},
			}

			w := httptest.NewRecorder()
			NewStatementHandler(svc).GenerateStatement(w, authedRequest(http.MethodPost, "/api/statements", `{"product_id":"p-1"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeErrorCode(t, w); code != tt.err.Code {
				t.Errorf("code = %s, want %s", code, tt.err.Code)
			}
		})
	}
}
