package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/passbook/internal/ledger"
)

// seedの金額範囲
const (
	seedCreditMin = 100
	seedCreditMax = 100000
	seedDebitMin  = 1000
	seedDebitMax  = 1000000
)

// Poster は1件の取引を記帳するインターフェース。ledger.Recorderが満たす。
type Poster interface {
	Record(ctx context.Context, in ledger.Posting) (*ledger.Receipt, error)
}

// Seeder は開発用に商品へランダムな取引を記帳する。
// 取引は通常の記帳処理を通るため、残高規則と通知も本番と同じく動く。
type Seeder struct {
	poster Poster
	logger *slog.Logger
	rng    *rand.Rand
}

// NewSeeder はSeederを生成する。
func NewSeeder(poster Poster, logger *slog.Logger, rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Seeder{poster: poster, logger: logger, rng: rng}
}

// Seed はproductIDの商品にcount件の取引を記帳する。
// 入金か出金かは等確率で選び、1件でも失敗したら中断する。
func (s *Seeder) Seed(ctx context.Context, productID string, count int) error {
	for i := 0; i < count; i++ {
		posting := s.randomPosting(productID)

		receipt, err := s.poster.Record(ctx, posting)
		if err != nil {
			return fmt.Errorf("seed transaction %d/%d failed: %w", i+1, count, err)
		}

		s.logger.Info("seed transaction posted",
			slog.String("product_id", productID),
			slog.String("transaction_id", receipt.Transaction.ID),
			slog.String("credit", posting.Credit.StringFixed(2)),
			slog.String("debit", posting.Debit.StringFixed(2)),
			slog.String("new_balance", receipt.NewBalance().StringFixed(2)),
		)
	}
	return nil
}

func (s *Seeder) randomPosting(productID string) ledger.Posting {
	p := ledger.Posting{ProductID: productID, Credit: decimal.Zero, Debit: decimal.Zero}
	if s.rng.IntN(2) == 1 {
		p.Debit = s.randomAmount(seedDebitMin, seedDebitMax)
	} else {
		p.Credit = s.randomAmount(seedCreditMin, seedCreditMax)
	}
	return p
}

// randomAmount は[lo, hi)の範囲の金額を小数第2位に丸めて返す。
func (s *Seeder) randomAmount(lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(lo + s.rng.Float64()*(hi-lo)).Round(2)
}
