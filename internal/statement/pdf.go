// Package statement は取引明細書PDFの作成と配信を提供する。
package statement

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/hitoshi/passbook/internal/model"
)

// Document は明細書PDFの内容を表す。
type Document struct {
	Heading      string
	Transactions []*model.Transaction
	// UserPassword はPDFを開くためのパスワード（口座名義人の生年月日）。
	UserPassword  string
	OwnerPassword string
}

var (
	tableColumns = []string{"Transaction ID", "Amount Credit", "Amount Debit", "Transaction Date", "Balance"}
	columnWidths = []float64{95, 40, 40, 57, 45}
)

// RenderPDF はA3縦の表形式の明細書PDFを生成し、パスワード保護して返す。
func RenderPDF(doc Document) ([]byte, error) {
	if doc.UserPassword == "" {
		return nil, fmt.Errorf("明細書のパスワードが空です")
	}

	pdf := fpdf.New("P", "mm", "A3", "")
	pdf.SetProtection(fpdf.CnProtectPrint, doc.UserPassword, doc.OwnerPassword)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(doc.Heading, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, tr(doc.Heading), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, col := range tableColumns {
		pdf.CellFormat(columnWidths[i], 8, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(doc.Transactions) == 0 {
		pdf.CellFormat(sumWidths(), 8, "No transactions", "1", 1, "C", false, 0, "")
	}
	for _, txn := range doc.Transactions {
		cells := []string{
			txn.ID,
			txn.AmountCredit.StringFixed(2),
			txn.AmountDebit.StringFixed(2),
			txn.TransactionDate.Format(model.DateTimeLayout),
			txn.Balance.StringFixed(2),
		}
		for i, cell := range cells {
			align := "R"
			if i == 0 || i == 3 {
				align = "L"
			}
			pdf.CellFormat(columnWidths[i], 7, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDFの出力に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func sumWidths() float64 {
	var total float64
	for _, w := range columnWidths {
		total += w
	}
	return total
}
