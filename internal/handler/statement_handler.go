package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/statement"
)

// StatementServiceInterface は明細書ハンドラーが必要とするサービスインターフェース。
type StatementServiceInterface interface {
	Generate(ctx context.Context, req statement.Request) (*statement.Result, error)
}

// StatementHandler は明細書生成のHTTPハンドラー。
type StatementHandler struct {
	service StatementServiceInterface
}

// NewStatementHandler はStatementHandlerを生成する。
func NewStatementHandler(service StatementServiceInterface) *StatementHandler {
	return &StatementHandler{service: service}
}

// generateStatementRequest は明細書生成リクエストのボディ。
// countを省略した場合はstatement.DefaultCountを使う。
type generateStatementRequest struct {
	ProductID string `json:"product_id"`
	Count     *int   `json:"count"`
}

type generateStatementResponse struct {
	Message          string `json:"message"`
	TransactionCount int    `json:"transaction_count"`
}

// GenerateStatement は明細書PDFを作成し、リンクをSMSで送る。
// POST /api/statements
func (h *StatementHandler) GenerateStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req generateStatementRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if req.ProductID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("product_id は必須です"))
		return
	}

	count := statement.DefaultCount
	if req.Count != nil {
		count = *req.Count
	}

	result, err := h.service.Generate(r.Context(), statement.Request{
		OwnerID:   userID,
		ProductID: req.ProductID,
		Count:     count,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateStatementResponse{
		Message:          "Statement sent to the registered contact number",
		TransactionCount: result.TransactionCount,
	})
}
