package sms

import (
	"net/http"

	"github.com/plivo/plivo-go/v7"
)

// Plivoが受信Webhookに付与する署名ヘッダー
const (
	SignatureHeader = "X-Plivo-Signature-V3"
	NonceHeader     = "X-Plivo-Signature-V3-Nonce"
)

type signatureValidator func(uri, nonce, method, signature, authToken string, params map[string]string) bool

// WebhookVerifier はPlivoからの受信Webhookの署名(V3)を検証する。
type WebhookVerifier struct {
	authToken   string
	callbackURL string
	validate    signatureValidator
}

// NewWebhookVerifier はWebhookVerifierを生成する。
// callbackURLはPlivoのアプリケーションに登録したURLと一致させる。
func NewWebhookVerifier(authToken, callbackURL string) *WebhookVerifier {
	return &WebhookVerifier{
		authToken:   authToken,
		callbackURL: callbackURL,
		validate: func(uri, nonce, method, signature, authToken string, params map[string]string) bool {
			return plivo.ValidateSignatureV3(uri, nonce, method, signature, authToken, params)
		},
	}
}

// Verify はリクエストの署名が正しいかを返す。
// フォームは呼び出し側でParseForm済みであること。
func (v *WebhookVerifier) Verify(r *http.Request) bool {
	signature := r.Header.Get(SignatureHeader)
	nonce := r.Header.Get(NonceHeader)
	if signature == "" || nonce == "" {
		return false
	}

	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}

	uri := v.callbackURL
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return v.validate(uri, nonce, r.Method, signature, v.authToken, params)
}
