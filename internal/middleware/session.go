// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/passbook/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userIDContextKey = contextKey("user_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はログインセッションを検証し、口座データを扱うルートを保護するミドルウェアを返す。
//
// CookieのセッションIDでセッションを引き、有効であれば所有者のユーザーIDをコンテキストに注入する。
// 応答はユーザーごとに異なるため、Vary: Cookieを付与する。
// セッションが無効な場合は統一エラーフォーマットで401を返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return newSessionMiddleware(sessionFinder, time.Now)
}

func newSessionMiddleware(sessionFinder SessionFinder, now func() time.Time) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, reason := lookupSession(r, sessionFinder, now())
			if session == nil {
				slog.Debug("session rejected",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
				)
				writeUnauthorized(w)
				return
			}

			w.Header().Add("Vary", "Cookie")
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), session.UserID)))
		})
	}
}

// lookupSession は有効なセッションを返す。無効な場合はnilと拒否理由を返す。
// リポジトリのエラーも未認証として扱う。
func lookupSession(r *http.Request, finder SessionFinder, now time.Time) (*model.Session, string) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, "missing_cookie"
	}

	session, err := finder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session", slog.String("error", err.Error()))
		return nil, "lookup_failed"
	}
	switch {
	case session == nil:
		return nil, "not_found"
	case !session.ExpiresAt.After(now):
		return nil, "expired"
	case session.UserID == "":
		return nil, "no_owner"
	}
	return session, ""
}

// UserIDFromContext はセッションミドルウェアが注入したユーザーIDを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
