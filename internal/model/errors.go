// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, ledger, statement, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeEmailAlreadyExists      = "EMAIL_ALREADY_EXISTS"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeProductNotFound         = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidProductType      = "INVALID_PRODUCT_TYPE"
	ErrCodeInvalidAmounts          = "INVALID_AMOUNTS"
	ErrCodeInsufficientFunds       = "INSUFFICIENT_FUNDS"
	ErrCodePersistence             = "PERSISTENCE_ERROR"
	ErrCodeStatementCreation       = "STATEMENT_CREATION_FAILED"
	ErrCodeStatementUpload         = "STATEMENT_UPLOAD_FAILED"
	ErrCodeStatementNotification   = "STATEMENT_NOTIFICATION_FAILED"
	ErrCodeInvalidTransactionCount = "INVALID_TRANSACTION_COUNT"
)

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認し、正しいJSON形式でリクエストしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "ログイン情報を確認して再度お試しください。",
	}
}

// NewEmailAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewProductNotFoundError は商品が見つからない場合のエラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "ledger",
		Action:   "商品IDを確認してください。",
	}
}

// NewInvalidProductTypeError は未定義の商品種別エラーを生成する。
func NewInvalidProductTypeError(productType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProductType,
		Message:  fmt.Sprintf("無効な商品種別です: %s", productType),
		Category: "validation",
		Action:   "商品種別には CC または SB を指定してください。",
	}
}

// NewInvalidAmountsError は取引金額の組み合わせが不正な場合のエラーを生成する。
func NewInvalidAmountsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmounts,
		Message:  fmt.Sprintf("無効な取引です: %s", reason),
		Category: "validation",
		Action:   "入金額と出金額のどちらか一方のみに0より大きい金額を指定してください。",
	}
}

// NewInsufficientFundsError は残高不足エラーを生成する。
func NewInsufficientFundsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientFunds,
		Message:  "残高が不足しているため支払いを処理できません。",
		Category: "ledger",
		Action:   "支払額を見直すか、口座に入金してから再度お試しください。",
	}
}

// NewPersistenceError は永続化失敗エラーを生成する。
// 入力不正ではなくストレージ側の問題であることを示す。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "データベースへの保存に失敗しました。取引は記録されていません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidTransactionCountError は明細件数が範囲外の場合のエラーを生成する。
func NewInvalidTransactionCountError(count int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransactionCount,
		Message:  fmt.Sprintf("無効な取引件数です: %d", count),
		Category: "validation",
		Action:   "取引件数は1から500の範囲で指定してください。",
	}
}

// NewStatementCreationError は明細書PDF作成失敗エラーを生成する。
func NewStatementCreationError() *APIError {
	return &APIError{
		Code:     ErrCodeStatementCreation,
		Message:  "明細書PDFの作成に失敗しました。",
		Category: "statement",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStatementUploadError は明細書PDFアップロード失敗エラーを生成する。
func NewStatementUploadError() *APIError {
	return &APIError{
		Code:     ErrCodeStatementUpload,
		Message:  "明細書PDFのアップロードに失敗しました。",
		Category: "statement",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStatementNotificationError は明細書リンクのSMS送信失敗エラーを生成する。
func NewStatementNotificationError() *APIError {
	return &APIError{
		Code:     ErrCodeStatementNotification,
		Message:  "明細書リンクのSMS送信に失敗しました。",
		Category: "statement",
		Action:   "登録済みの電話番号を確認し、再度お試しください。",
	}
}
