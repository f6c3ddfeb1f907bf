package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/passbook/internal/auth"
	"github.com/hitoshi/passbook/internal/config"
	"github.com/hitoshi/passbook/internal/database"
	"github.com/hitoshi/passbook/internal/handler"
	"github.com/hitoshi/passbook/internal/ledger"
	"github.com/hitoshi/passbook/internal/logger"
	"github.com/hitoshi/passbook/internal/metrics"
	"github.com/hitoshi/passbook/internal/middleware"
	"github.com/hitoshi/passbook/internal/product"
	"github.com/hitoshi/passbook/internal/repository"
	"github.com/hitoshi/passbook/internal/security"
	"github.com/hitoshi/passbook/internal/sms"
	"github.com/hitoshi/passbook/internal/statement"
	"github.com/hitoshi/passbook/internal/storage"
	"github.com/hitoshi/passbook/internal/worker/cleanup"
	"github.com/hitoshi/passbook/internal/worker/notify"
)

const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .envで指定されたログレベルを反映する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	var seedArgs SeedArgs
	if cmd == CommandSeed {
		var err error
		if seedArgs, err = ParseSeedArgs(args[1:]); err != nil {
			return err
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg, seedArgs)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := database.Ping(db, dbPingTimeout); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database connection established")
	return db, nil
}

// newSMSSender はPlivoの設定が揃っていればPlivoSenderを、なければDisabledSenderを返す。
func newSMSSender(cfg *config.Config) (sms.Sender, error) {
	if !cfg.SMSConfigured() {
		slog.Warn("SMS is not configured; notifications will be marked as failed")
		return sms.DisabledSender{}, nil
	}
	sender, err := sms.NewPlivoSender(cfg.PlivoAuthID, cfg.PlivoAuthToken, cfg.PlivoNumber, cfg.SMSTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMS sender: %w", err)
	}
	return sender, nil
}

// newBlobStore はS3バケットが設定されていればS3Storeを、なければDisabledStoreを返す。
func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.S3Bucket == "" {
		slog.Warn("S3 bucket is not configured; statements cannot be delivered")
		return storage.DisabledStore{}, nil
	}
	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Bucket:          cfg.S3Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}
	return store, nil
}

// newSMSVerifier は受信SMS Webhookの署名検証器を返す。
// Plivoが未設定の場合はnilを返し、Webhookを公開しない。
func newSMSVerifier(cfg *config.Config) handler.WebhookVerifier {
	if !cfg.SMSConfigured() {
		return nil
	}
	return sms.NewWebhookVerifier(cfg.PlivoAuthToken, strings.TrimRight(cfg.BaseURL, "/")+"/sms/inbound")
}

// newRecorder は記帳処理をワイヤリングする。
// 通知はコミット後にDispatcher経由で即時送信する。
func newRecorder(db *sql.DB, sender sms.Sender, collector metrics.MetricsCollector) *ledger.Recorder {
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	dispatcher := notify.NewDispatcher(notificationRepo, sender, collector, slog.Default())
	return ledger.NewRecorder(repository.NewPostgresLedgerRepo(db), dispatcher, collector, slog.Default())
}

// newMetricsRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, metrics.NewCollector(registry)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	txnRepo := repository.NewPostgresTransactionRepo(db)

	// 3. 外部サービスとメトリクスの初期化
	registry, collector := newMetricsRegistry()

	sender, err := newSMSSender(cfg)
	if err != nil {
		return err
	}
	blobs, err := newBlobStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	// 4. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	authService := auth.NewService(userRepo, sessionRepo, sanitizer,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	productService := product.NewService(productRepo, txnRepo)
	recorder := newRecorder(db, sender, collector)
	generator := statement.NewGenerator(
		productRepo, userRepo, txnRepo, blobs, sender, sanitizer, collector, slog.Default(),
		statement.Options{LinkTTL: cfg.StatementLinkTTL, Timeout: cfg.StatementTimeout},
	)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromPerMinute(cfg.RateLimitGeneral, cfg.RateLimitStatement),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		StatusMetrics:     collector,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS: cfg.CookieSecure,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
		SMSVerifier:    newSMSVerifier(cfg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProductService:   productService,
		LedgerService:    recorder,
		StatementService: generator,
	}

	// 6. HTTPサーバーの起動
	// 明細書生成はSTATEMENT_TIMEOUTまでかかりうるため、書き込みタイムアウトはそれより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.StatementTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はserverを起動し、SIGINTまたはSIGTERMでグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// コミット後に送信されなかった通知の再送スケジューラと、
// セッション・通知のクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリとメトリクスの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	registry, collector := newMetricsRegistry()

	// 3. 通知送信の初期化
	sender, err := newSMSSender(cfg)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(notificationRepo, sender, collector, slog.Default())
	scheduler := notify.NewScheduler(
		notificationRepo, dispatcher, slog.Default(), cfg.NotifyStaleAfter, cfg.NotifyMaxConcurrent,
	)

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, notificationRepo, slog.Default())
	if cfg.NotificationRetentionDays > 0 {
		cleanupJob.RetentionDays = cfg.NotificationRetentionDays
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// ワーカーのメトリクスを公開する
	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker starting",
		slog.Duration("notify_interval", cfg.NotifyInterval),
		slog.Duration("notify_stale_after", cfg.NotifyStaleAfter),
		slog.Int("max_concurrent", cfg.NotifyMaxConcurrent),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// クリーンアップジョブをバックグラウンドで定期実行
	go runPeriodically(ctx, cfg.CleanupInterval, func(ctx context.Context) {
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
	})

	// 通知スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.NotifyInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runPeriodically は起動直後に1回fnを実行し、以降interval毎に実行する。
func runPeriodically(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は指定商品にランダムな取引を記帳する。
// 所有者の確認は行わず、通常の記帳処理と同じ規則と通知を適用する。
func runSeed(cfg *config.Config, args SeedArgs) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sender, err := newSMSSender(cfg)
	if err != nil {
		return err
	}
	_, collector := newMetricsRegistry()

	seeder := NewSeeder(newRecorder(db, sender, collector), slog.Default(), nil)
	if err := seeder.Seed(context.Background(), args.ProductID, args.Count); err != nil {
		return err
	}

	slog.Info("seed completed",
		slog.String("product_id", args.ProductID),
		slog.Int("count", args.Count),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "***"
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		return scheme + "://***@" + rest[i+1:]
	}
	return scheme + "://" + rest
}
