// Package ledger は商品残高の更新規則と取引の記帳処理を提供する。
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/model"
)

// ErrUnknownProductType は残高規則が定義されていない商品種別を表す。
var ErrUnknownProductType = errors.New("unknown product type")

const (
	// 金額の小数桁数
	amountScale = 2
	// 金額の整数部の最大桁数。残高列のNUMERIC(14,2)に合わせる。
	maxIntegerDigits = 12
)

// Apply は取引を商品に適用し、正となる残高値とBalanceスナップショットを更新する。
//
//   - SB: creditでcurrent_balanceが増え、debitで減る
//   - CC: creditでcurrent_dueが減り、debitで増える
//
// 結果は小数第2位に丸める。未定義の商品種別の場合は商品を変更せずに
// ErrUnknownProductTypeを返す。
func Apply(p *model.Product, credit, debit decimal.Decimal) error {
	switch p.Type {
	case model.ProductTypeSavings:
		p.CurrentBalance = p.CurrentBalance.Add(credit).Sub(debit).Round(amountScale)
	case model.ProductTypeCreditCard:
		p.CurrentDue = p.CurrentDue.Sub(credit).Add(debit).Round(amountScale)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProductType, p.Type)
	}

	p.Balance = p.Authoritative()
	return nil
}

// ValidateAmounts はcredit/debitの組み合わせを検証する。
// 両方正、両方0、いずれかが負、上限以上、小数第2位を超える精度の順に判定する。
func ValidateAmounts(credit, debit decimal.Decimal) *model.APIError {
	switch {
	case credit.IsPositive() && debit.IsPositive():
		return model.NewInvalidAmountsError("入金額と出金額の両方が指定されています")
	case credit.IsZero() && debit.IsZero():
		return model.NewInvalidAmountsError("入金額と出金額がどちらも0です")
	case credit.IsNegative() || debit.IsNegative():
		return model.NewInvalidAmountsError("金額に負の値は指定できません")
	case !WithinLimit(credit) || !WithinLimit(debit):
		return model.NewInvalidAmountsError("金額は1兆未満で指定してください")
	case !HasValidScale(credit) || !HasValidScale(debit):
		return model.NewInvalidAmountsError("金額は小数第2位までで指定してください")
	}
	return nil
}

// WithinLimit は金額の絶対値が1e12未満かを返す。
// 係数の桁数と指数だけで判定し、巨大な指数の値を展開しない。
func WithinLimit(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	return d.NumDigits()+int(d.Exponent()) <= maxIntegerDigits
}

// HasValidScale は金額が小数第2位までに収まっているかを返す。
func HasValidScale(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp >= -amountScale || d.IsZero() {
		return true
	}
	// 係数の桁数が切り捨てるべき桁数より少なければ端数が残る
	if d.NumDigits() < -exp-amountScale {
		return false
	}
	return d.Equal(d.Round(amountScale))
}
