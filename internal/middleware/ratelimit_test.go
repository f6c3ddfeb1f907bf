package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		StatementRate:   rate.Limit(1.0 / 60.0),
		StatementBurst:  1,
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func userRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/statements", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func serveStatus(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGeneralMiddleware_AllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		if w := serveStatus(handler, userRequest("user-1")); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := serveStatus(handler, userRequest("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode 429 body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
}

func TestGeneralMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		serveStatus(handler, userRequest("user-a"))
	}

	if w := serveStatus(handler, userRequest("user-b")); w.Code != http.StatusOK {
		t.Errorf("other user status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", got)
	}
}

func TestGeneralMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	w := serveStatus(rl.GeneralMiddleware()(okHandler()), httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestStatementMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	statement := rl.StatementMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	if w := serveStatus(statement, userRequest("user-1")); w.Code != http.StatusOK {
		t.Fatalf("first statement status = %d, want %d", w.Code, http.StatusOK)
	}
	w := serveStatus(statement, userRequest("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second statement status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	// 1/60 req/sec のため1トークンの補充は60秒
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}

	if w := serveStatus(general, userRequest("user-1")); w.Code != http.StatusOK {
		t.Errorf("general status after statement limit = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.StatementLimiterCount(); got != 1 {
		t.Errorf("StatementLimiterCount() = %d, want 1", got)
	}
}

func TestAuthMiddleware_LimitsByRemoteIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.AuthMiddleware()(okHandler())

	req := func(remote string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = remote
		return r
	}

	if w := serveStatus(handler, req("192.0.2.1:1234")); w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want %d", w.Code, http.StatusOK)
	}
	// 同一IPの別ポートも同じ制限を共有する
	if w := serveStatus(handler, req("192.0.2.1:5678")); w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w := serveStatus(handler, req("192.0.2.2:1234")); w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.CleanupInterval = 50 * time.Millisecond // テスト用に短く

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	serveStatus(rl.GeneralMiddleware()(okHandler()), userRequest("user-cleanup"))
	if rl.GeneralLimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍（100ms）
	time.Sleep(250 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestRateLimiterConfigFromPerMinute(t *testing.T) {
	cfg := RateLimiterConfigFromPerMinute(60, 3)
	if cfg.GeneralRate != rate.Limit(1) || cfg.GeneralBurst != 60 {
		t.Errorf("general = %v/%d, want 1/60", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.StatementRate != rate.Limit(3.0/60.0) || cfg.StatementBurst != 3 {
		t.Errorf("statement = %v/%d, want 0.05/3", cfg.StatementRate, cfg.StatementBurst)
	}

	def := RateLimiterConfigFromPerMinute(0, -1)
	if def != DefaultRateLimiterConfig() {
		t.Errorf("non-positive values should keep defaults, got %+v", def)
	}
}
