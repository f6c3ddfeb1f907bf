// Package cleanup は不要になったデータの定期削除ジョブを提供する。
// 有効期限切れのセッションと、保持期間（デフォルト30日）を超えた
// 送信済み・送信失敗の通知を日次バッチで削除する。
// 取引記録は追記専用のため削除対象に含めない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの一括削除を抽象化するインターフェース。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// NotificationPurger は処理済み通知の一括削除を抽象化するインターフェース。
type NotificationPurger interface {
	DeleteFinishedBefore(ctx context.Context, retentionDays int) (int64, error)
}

// CleanupJob はセッションと通知の自動削除ジョブ。
// 削除対象がなくてもエラーにならない。
type CleanupJob struct {
	sessions      SessionPurger
	notifications NotificationPurger
	logger        *slog.Logger
	RetentionDays int // 処理済み通知の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, notifications NotificationPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		notifications: notifications,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は期限切れセッションと保持期間を超えた通知を削除する。
// セッション削除に失敗しても通知の削除は試み、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, sessErr := j.sessions.DeleteExpired(ctx)
	if sessErr != nil {
		j.logger.Error("セッションのクリーンアップに失敗しました",
			slog.String("error", sessErr.Error()),
		)
		sessErr = fmt.Errorf("セッションクリーンアップの実行に失敗: %w", sessErr)
	}

	notifications, notifErr := j.notifications.DeleteFinishedBefore(ctx, j.RetentionDays)
	if notifErr != nil {
		j.logger.Error("通知のクリーンアップに失敗しました",
			slog.String("error", notifErr.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		notifErr = fmt.Errorf("通知クリーンアップの実行に失敗: %w", notifErr)
	}

	if sessErr != nil {
		return sessErr
	}
	if notifErr != nil {
		return notifErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_notifications", notifications),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
