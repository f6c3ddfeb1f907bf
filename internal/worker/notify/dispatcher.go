// Package notify は通知アウトボックスのSMS送信処理を提供する。
// 記帳直後の即時送信と、送信されずに残った通知を拾うスケジューラを含む。
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/passbook/internal/metrics"
	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
	"github.com/hitoshi/passbook/internal/sms"
)

// Dispatcher は通知を確保してSMSで1回だけ送信する。
// 送信に失敗した通知はfailedとして記録し、再送しない。
type Dispatcher struct {
	repo    repository.NotificationRepository
	sender  sms.Sender
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(
	repo repository.NotificationRepository,
	sender sms.Sender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		sender:  sender,
		metrics: collector,
		logger:  logger,
	}
}

// Dispatch は指定IDの通知をpendingからsendingへ確保して送信する。
// 他の処理が確保済みの場合は何もせずnilを返す。
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID string) error {
	n, err := d.repo.Claim(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("通知の確保に失敗しました: %w", err)
	}
	if n == nil {
		return nil
	}
	return d.Send(ctx, n)
}

// Send は確保済みの通知を送信し、結果をsent/failedとして記録する。
func (d *Dispatcher) Send(ctx context.Context, n *model.Notification) error {
	// 送信結果の記録はctxの終了後も行う
	recordCtx := context.WithoutCancel(ctx)

	if err := d.sender.Send(ctx, n.Destination, n.Message); err != nil {
		d.record(metrics.NotificationFailed)
		if markErr := d.repo.MarkFailed(recordCtx, n.ID, err.Error()); markErr != nil {
			d.logger.Error("通知の失敗記録に失敗しました",
				slog.String("notification_id", n.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return err
	}

	d.record(metrics.NotificationSent)
	if err := d.repo.MarkSent(recordCtx, n.ID); err != nil {
		d.logger.Error("通知の送信済み記録に失敗しました",
			slog.String("notification_id", n.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (d *Dispatcher) record(result string) {
	if d.metrics != nil {
		d.metrics.RecordNotification(result)
	}
}
