package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

const healthCheckTimeout = 3 * time.Second

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// WebhookVerifier は受信Webhookの送信元を検証するインターフェース。
// ParseForm済みのリクエストを受け取る。
type WebhookVerifier interface {
	Verify(r *http.Request) bool
}

// NewInboundSMSHandler はPlivoの受信SMS Webhookを受け取り、ログに記録して応答する。
// 署名が検証できないリクエストは403で拒否する。
// POST /sms/inbound (form: From, To, Text)
func NewInboundSMSHandler(logger *slog.Logger, verifier WebhookVerifier) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		if !verifier.Verify(r) {
			logger.Warn("inbound sms rejected: invalid signature",
				slog.String("remote_addr", r.RemoteAddr),
			)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		logger.Info("inbound sms received",
			slog.String("from", maskNumber(r.PostForm.Get("From"))),
			slog.Int("text_length", len(r.PostForm.Get("Text"))),
		)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Message received"))
	}
}

// maskNumber は電話番号の末尾4桁以外を伏せる。
func maskNumber(n string) string {
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
