// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType は金融商品の種別を表す。
type ProductType string

const (
	// ProductTypeCreditCard はクレジットカード。current_dueが正となる。
	ProductTypeCreditCard ProductType = "CC"
	// ProductTypeSavings は普通預金口座。current_balanceが正となる。
	ProductTypeSavings ProductType = "SB"
)

// Valid は定義済みの商品種別かどうかを返す。
func (t ProductType) Valid() bool {
	return t == ProductTypeCreditCard || t == ProductTypeSavings
}

// BalanceLabel は通知文面で使う残高の呼称を返す。
func (t ProductType) BalanceLabel() string {
	if t == ProductTypeCreditCard {
		return "outstanding"
	}
	return "balance"
}

// Product はユーザーが保有する金融商品を表す。
// 商品種別によってCurrentBalanceとCurrentDueのどちらが正となるかが決まる。
type Product struct {
	ID             string
	UserID         string
	Type           ProductType
	DateOfOpening  time.Time
	CurrentBalance decimal.Decimal
	CurrentDue     decimal.Decimal
	PaymentDueDate *time.Time
	Balance        decimal.Decimal // 正となる値の非正規化スナップショット
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Authoritative は商品種別に応じた正の残高値を返す。
func (p *Product) Authoritative() decimal.Decimal {
	if p.Type == ProductTypeCreditCard {
		return p.CurrentDue
	}
	return p.CurrentBalance
}
