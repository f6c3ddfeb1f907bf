// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（口座名義人）を表す。
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	ContactNumber string
	DOB           time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DOBString は生年月日をYYYY-MM-DD形式で返す。
// 明細書PDFのパスワードにも使用する。
func (u *User) DOBString() string {
	return u.DOB.Format(DateLayoutISO)
}

// Session はユーザーのログインセッションを表す。
// Rememberがfalseのセッションはブラウザ終了で消えるCookieに対応し、サーバー側でも短く失効させる。
type Session struct {
	ID        string
	UserID    string
	Remember  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

const (
	// DateLayoutISO はAPIレスポンスおよび生年月日で使用する日付フォーマット。
	DateLayoutISO = "2006-01-02"
	// DateLayoutInput は商品作成リクエストで受け付ける日付フォーマット（DD/MM/YYYY）。
	DateLayoutInput = "02/01/2006"
	// DateTimeLayout は取引日時の表示フォーマット。
	DateTimeLayout = "2006-01-02 15:04:05"
)
