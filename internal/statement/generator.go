package statement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/passbook/internal/metrics"
	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
	"github.com/hitoshi/passbook/internal/security"
	"github.com/hitoshi/passbook/internal/sms"
	"github.com/hitoshi/passbook/internal/storage"
)

const (
	// DefaultCount は件数指定がない場合に明細書へ載せる取引数。
	DefaultCount = 10
	// MaxCount は明細書へ載せる取引数の上限。
	MaxCount = 500

	pdfContentType = "application/pdf"
)

// Request は明細書生成リクエストを表す。
type Request struct {
	OwnerID   string
	ProductID string
	Count     int
}

// Result は配信済みの明細書を表す。
type Result struct {
	Key              string
	URL              string
	TransactionCount int
}

// Options はGeneratorの動作設定。
type Options struct {
	LinkTTL time.Duration // 署名付きURLの有効期間
	Timeout time.Duration // 明細書生成全体のタイムアウト
}

// Generator は取引履歴を読み出し、パスワード付きPDFとしてストレージへ保存し、
// 期限付きリンクをSMSで送る。口座データは変更しない。
type Generator struct {
	products  repository.ProductRepository
	users     repository.UserRepository
	txns      repository.TransactionRepository
	blobs     storage.BlobStore
	sender    sms.Sender
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	opts      Options
	render    func(Document) ([]byte, error)
	newKey    func() string
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
func NewGenerator(
	products repository.ProductRepository,
	users repository.UserRepository,
	txns repository.TransactionRepository,
	blobs storage.BlobStore,
	sender sms.Sender,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Generator {
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		products:  products,
		users:     users,
		txns:      txns,
		blobs:     blobs,
		sender:    sender,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		opts:      opts,
		render:    RenderPDF,
		newKey:    func() string { return uuid.NewString() + ".pdf" },
	}
}

// Generate は明細書を作成して配信する。
// 作成・アップロード・通知の各段階の失敗はそれぞれ異なるエラーとして返す。
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Count < 1 || req.Count > MaxCount {
		return nil, model.NewInvalidTransactionCountError(req.Count)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.RecordStatementLatency(time.Since(start))
		}
	}()

	product, err := g.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil || product.UserID != req.OwnerID {
		return nil, model.NewProductNotFoundError(req.ProductID)
	}

	owner, err := g.users.FindByID(ctx, product.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if owner == nil {
		return nil, model.NewUserNotFoundError()
	}

	txns, err := g.txns.ListByProduct(ctx, product.ID, req.Count)
	if err != nil {
		return nil, fmt.Errorf("取引履歴の取得に失敗しました: %w", err)
	}

	pdf, err := g.render(Document{
		Heading:       g.heading(owner, product),
		Transactions:  txns,
		UserPassword:  owner.DOBString(),
		OwnerPassword: uuid.NewString(),
	})
	if err != nil {
		return nil, g.fail(metrics.StatementCreationFailed, product.ID, err, model.NewStatementCreationError())
	}

	key := g.newKey()
	url, err := g.upload(ctx, key, pdf)
	if err != nil {
		return nil, g.fail(metrics.StatementUploadFailed, product.ID, err, model.NewStatementUploadError())
	}

	message := fmt.Sprintf("Dear Customer, please find your statement for %s %s: %s", product.Type, product.ID, url)
	if err := g.sender.Send(ctx, owner.ContactNumber, message); err != nil {
		return nil, g.fail(metrics.StatementNotificationFailed, product.ID, err, model.NewStatementNotificationError())
	}

	g.record(metrics.StatementDelivered)
	g.logger.Info("明細書を配信しました",
		slog.String("product_id", product.ID),
		slog.String("key", key),
		slog.Int("transaction_count", len(txns)),
	)

	return &Result{Key: key, URL: url, TransactionCount: len(txns)}, nil
}

// upload はPDFを保存し、存在を確認した上で署名付きURLを発行する。
func (g *Generator) upload(ctx context.Context, key string, pdf []byte) (string, error) {
	if err := g.blobs.Put(ctx, key, pdf, pdfContentType); err != nil {
		return "", err
	}

	exists, err := g.blobs.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("アップロードしたオブジェクトが見つかりません: key=%s", key)
	}

	return g.blobs.PresignGet(ctx, key, g.opts.LinkTTL)
}

func (g *Generator) heading(owner *model.User, product *model.Product) string {
	name := owner.Name
	if g.sanitizer != nil {
		name = g.sanitizer.Sanitize(name)
	}
	return fmt.Sprintf("Statement for: %s for the %s %s", name, product.Type, product.ID)
}

func (g *Generator) fail(stage, productID string, cause error, apiErr *model.APIError) error {
	g.record(stage)
	g.logger.Error("明細書の生成に失敗しました",
		slog.String("stage", stage),
		slog.String("product_id", productID),
		slog.String("error", cause.Error()),
	)
	return apiErr
}

func (g *Generator) record(stage string) {
	if g.metrics != nil {
		g.metrics.RecordStatement(stage)
	}
}
