package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/passbook/internal/model"
)

const notificationColumns = `id, user_id, transaction_id, destination, message, status,
		           error_message, created_at, updated_at`

// PostgresNotificationRepo はPostgreSQLを使用した通知アウトボックスリポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Claim はpending状態の通知をsendingに遷移させて返す。
// 既に他の処理が確保済み、または存在しない場合はnilを返す。
func (r *PostgresNotificationRepo) Claim(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`UPDATE notifications
		 SET status = 'sending', updated_at = now()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+notificationColumns,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知の確保に失敗しました: %w", err)
	}
	return n, nil
}

// ClaimStale はolderThanより前に作成されpendingのまま残っている通知を確保する。
// コミット後、即時送信の前にプロセスが停止した通知を拾うために使用する。
func (r *PostgresNotificationRepo) ClaimStale(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Notification, error) {
	interval := fmt.Sprintf("%d seconds", int64(olderThan.Seconds()))

	rows, err := r.db.QueryContext(ctx,
		`UPDATE notifications
		 SET status = 'sending', updated_at = now()
		 WHERE id IN (
		     SELECT id FROM notifications
		     WHERE status = 'pending' AND created_at < now() - $1::interval
		     ORDER BY created_at ASC
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+notificationColumns,
		interval, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("未送信通知の確保に失敗しました: %w", err)
	}
	defer rows.Close()

	var claimed []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("通知の読み取りに失敗しました: %w", err)
		}
		claimed = append(claimed, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未送信通知の走査に失敗しました: %w", err)
	}

	return claimed, nil
}

// MarkSent は通知を送信済みにする。
func (r *PostgresNotificationRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'sent', error_message = NULL, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("通知の送信済み更新に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed は通知を送信失敗にする。
func (r *PostgresNotificationRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'failed', error_message = $2, updated_at = now() WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("通知の失敗更新に失敗しました: %w", err)
	}
	return nil
}

// AbandonedReason はsendingのまま放置された通知に記録する失敗理由。
const AbandonedReason = "abandoned while sending"

// FailAbandoned はolderThanより前からsendingのままの通知をfailedにする。
func (r *PostgresNotificationRepo) FailAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications
		 SET status = 'failed', error_message = $2, updated_at = now()
		 WHERE status = 'sending' AND updated_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(olderThan.Seconds())), AbandonedReason,
	)
	if err != nil {
		return 0, fmt.Errorf("放置された通知の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// DeleteFinishedBefore は送信済み・送信失敗のうちretentionDays日より古い通知を削除する。
func (r *PostgresNotificationRepo) DeleteFinishedBefore(ctx context.Context, retentionDays int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE status IN ('sent', 'failed') AND updated_at < now() - $1::interval`,
		fmt.Sprintf("%d days", retentionDays),
	)
	if err != nil {
		return 0, fmt.Errorf("通知の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// scanNotification は1行分の通知を読み取る。
func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	var status string
	var transactionID, errorMessage sql.NullString

	if err := row.Scan(
		&n.ID, &n.UserID, &transactionID, &n.Destination, &n.Message, &status,
		&errorMessage, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}

	n.Status = model.NotificationStatus(status)
	n.TransactionID = nullStringValue(transactionID)
	n.ErrorMessage = nullStringValue(errorMessage)
	return n, nil
}

// nullStringValue はsql.NullStringから文字列値を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
