package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/passbook/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusMetrics     middleware.StatusMetrics
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	HSTS              bool

	// システム
	HealthChecker  HealthChecker
	MetricsHandler http.Handler    // nilの場合 /metrics を公開しない
	SMSVerifier    WebhookVerifier // nilの場合 /sms/inbound を公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 商品・取引
	ProductService ProductServiceInterface
	LedgerService  LedgerServiceInterface

	// 明細書
	StatementService StatementServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS
//	/api/*: Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）とシステムルートはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusMetrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	productHandler := NewProductHandler(deps.ProductService)
	ledgerHandler := NewLedgerHandler(deps.LedgerService)
	statementHandler := NewStatementHandler(deps.StatementService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.SMSVerifier != nil {
		r.Post("/sms/inbound", NewInboundSMSHandler(deps.Logger, deps.SMSVerifier))
	}

	r.Route("/auth", func(r chi.Router) {
		// 登録・ログインはIP単位でレート制限する
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.Signup)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)

		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Post("/", productHandler.AddProduct)
			r.Get("/{id}/transactions", productHandler.ListTransactions)
		})

		r.Post("/api/transactions", ledgerHandler.AddTransaction)
		r.Post("/api/payments/credit-card", ledgerHandler.PayCreditCard)

		// POST /api/statements - PDF生成・アップロード・SMS送信を伴うため専用のレート制限を追加
		r.With(deps.RateLimiter.StatementMiddleware()).Post("/api/statements", statementHandler.GenerateStatement)
	})

	return r
}
