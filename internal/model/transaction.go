// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction は商品に対する1件の入出金記録を表す。
// 追記専用であり、作成後に更新・削除されることはない。
type Transaction struct {
	ID              string
	ProductID       string
	AmountCredit    decimal.Decimal
	AmountDebit     decimal.Decimal
	TransactionDate time.Time
	Balance         decimal.Decimal // 取引後の残高スナップショット
}

// IsDebit は出金（debit）取引かどうかを返す。
func (t *Transaction) IsDebit() bool {
	return t.AmountDebit.IsPositive()
}

// Direction は通知文面用の方向ラベルを返す。
func (t *Transaction) Direction() string {
	if t.IsDebit() {
		return "debited"
	}
	return "credited"
}

// Amount は取引金額（credit/debitのうち正の方）を返す。
func (t *Transaction) Amount() decimal.Decimal {
	if t.IsDebit() {
		return t.AmountDebit
	}
	return t.AmountCredit
}
