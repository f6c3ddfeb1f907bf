package ledger

import (
	"fmt"

	"github.com/hitoshi/passbook/internal/model"
)

// TransactionMessage は取引通知のSMS本文を組み立てる。
func TransactionMessage(p *model.Product, txn *model.Transaction) string {
	return fmt.Sprintf(
		"Dear customer, your %s %s has been %s by %s and your current %s is %s",
		p.Type, p.ID, txn.Direction(), txn.Amount().StringFixed(amountScale),
		p.Type.BalanceLabel(), p.Balance.StringFixed(amountScale),
	)
}
