// Package model はドメインモデルを定義する。
package model

import "time"

// NotificationStatus は通知アウトボックスの状態を表す。
type NotificationStatus string

const (
	// NotificationStatusPending はコミット済みで未送信の状態。
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusSending は送信処理が確保した状態。
	NotificationStatusSending NotificationStatus = "sending"
	// NotificationStatusSent は送信済みの状態。
	NotificationStatusSent NotificationStatus = "sent"
	// NotificationStatusFailed は送信に失敗した状態。再送はしない。
	NotificationStatusFailed NotificationStatus = "failed"
)

// Notification は取引コミット後に送信するSMS通知を表す。
// 取引と同一トランザクションでpendingとして登録される。
type Notification struct {
	ID            string
	UserID        string
	TransactionID string
	Destination   string
	Message       string
	Status        NotificationStatus
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
