package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
)

// CardPayment は普通預金口座からクレジットカードへの支払いリクエストを表す。
type CardPayment struct {
	OwnerID  string
	SourceID string // 支払元の普通預金口座（SB）
	TargetID string // 支払先のクレジットカード（CC）
	Amount   decimal.Decimal
}

// PaymentReceipt は支払い結果を表す。
type PaymentReceipt struct {
	Debit   *Receipt // 普通預金口座側の出金
	Credit  *Receipt // クレジットカード側の入金
	Warning string
}

// PayCreditCard はクレジットカードの支払いを行う。
//
// 支払元の残高が支払額に満たない場合は副作用なしにINSUFFICIENT_FUNDSを返す。
// 支払元への出金と支払先への入金は単一のDBトランザクションで記帳し、
// 一方だけが反映された状態は発生しない。両商品の行ロックはID順に取得する。
func (r *Recorder) PayCreditCard(ctx context.Context, in CardPayment) (*PaymentReceipt, error) {
	if !in.Amount.IsPositive() || !WithinLimit(in.Amount) || !HasValidScale(in.Amount) {
		r.recordRejected("invalid_amounts")
		return nil, model.NewInvalidAmountsError("支払額は0より大きく1兆未満の小数第2位までの金額で指定してください")
	}
	if in.SourceID == in.TargetID {
		r.recordRejected("invalid_request")
		return nil, model.NewInvalidRequestError("支払元と支払先に同じ商品は指定できません")
	}

	var out PaymentReceipt

	err := r.store.RunInTx(ctx, func(tx repository.LedgerTx) error {
		locked := make(map[string]*model.Product, 2)
		ids := []string{in.SourceID, in.TargetID}
		sort.Strings(ids)
		for _, id := range ids {
			p, err := r.lockOwned(ctx, tx, in.OwnerID, id)
			if err != nil {
				return err
			}
			locked[id] = p
		}

		source, target := locked[in.SourceID], locked[in.TargetID]
		if source.Type != model.ProductTypeSavings {
			return model.NewInvalidRequestError("支払元には普通預金口座（SB）を指定してください")
		}
		if target.Type != model.ProductTypeCreditCard {
			return model.NewInvalidRequestError("支払先にはクレジットカード（CC）を指定してください")
		}
		if source.CurrentBalance.LessThan(in.Amount) {
			return model.NewInsufficientFundsError()
		}

		var err error
		if out.Debit, err = r.post(ctx, tx, source, decimal.Zero, in.Amount); err != nil {
			return err
		}
		if out.Credit, err = r.post(ctx, tx, target, in.Amount, decimal.Zero); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, r.classify(err, in.SourceID)
	}

	for _, receipt := range []*Receipt{out.Debit, out.Credit} {
		r.recordPosted(receipt)
		r.dispatch(ctx, receipt)
		if receipt.Warning != "" {
			out.Warning = receipt.Warning
		}
	}

	return &out, nil
}
