package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
)

// 1サイクルで確保する通知の上限
const defaultBatchSize = 100

// NotificationSender は確保済み通知の送信インターフェース。
type NotificationSender interface {
	Send(ctx context.Context, n *model.Notification) error
}

// Scheduler はコミット後に送信されなかった通知を定期的に拾って送信する。
// staleAfterより古いpending通知をFOR UPDATE SKIP LOCKEDで確保し、
// semaphoreパターンで最大並列数を制御しながら送信する。
type Scheduler struct {
	repo           repository.NotificationRepository
	sender         NotificationSender
	logger         *slog.Logger
	staleAfter     time.Duration
	maxConcurrency int
	batchSize      int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	repo repository.NotificationRepository,
	sender NotificationSender,
	logger *slog.Logger,
	staleAfter time.Duration,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		repo:           repo,
		sender:         sender,
		logger:         logger,
		staleAfter:     staleAfter,
		maxConcurrency: maxConcurrency,
		batchSize:      defaultBatchSize,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("通知スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", s.staleAfter),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("通知サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("通知スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("通知サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は未送信のまま残った通知を1回確保し、並列で送信する。
// 個別の送信失敗はfailedとして記録され、RunOnceのエラーにはならない。
// 確保前に、送信中のまま停止した通知をfailedに落とす。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	abandoned, err := s.repo.FailAbandoned(ctx, s.staleAfter)
	if err != nil {
		return err
	}
	if abandoned > 0 {
		s.logger.Warn("送信中のまま残った通知を失敗にしました",
			slog.Int64("notification_count", abandoned),
		)
	}

	notifications, err := s.repo.ClaimStale(ctx, s.staleAfter, s.batchSize)
	if err != nil {
		return err
	}

	if len(notifications) == 0 {
		s.logger.Debug("送信対象の通知はありません")
		return nil
	}

	s.logger.Info("通知サイクルを開始します",
		slog.Int("notification_count", len(notifications)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, n := range notifications {
		wg.Add(1)
		sem <- struct{}{}

		go func(n *model.Notification) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.sender.Send(ctx, n); err != nil {
				s.logger.Error("通知の送信に失敗しました",
					slog.String("notification_id", n.ID),
					slog.String("user_id", n.UserID),
					slog.String("error", err.Error()),
				)
			}
		}(n)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("通知サイクルが完了しました",
		slog.Int("notification_count", len(notifications)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
