// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 通知送信結果のラベル値
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// 明細書生成ステージのラベル値
const (
	StatementDelivered          = "delivered"
	StatementCreationFailed     = "creation_failed"
	StatementUploadFailed       = "upload_failed"
	StatementNotificationFailed = "notification_failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 台帳、明細書、通知ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordTransactionPosted(productType, direction string)
	RecordTransactionRejected(reason string)
	RecordNotification(result string)
	RecordStatement(stage string)
	RecordHTTPStatus(statusCode int)
	RecordStatementLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	txnPosted        *prometheus.CounterVec
	txnRejected      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	statements       *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	statementLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		txnPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passbook_transactions_posted_total",
			Help: "記帳された取引の合計数",
		}, []string{"product_type", "direction"}),
		txnRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passbook_transactions_rejected_total",
			Help: "拒否された取引の合計数",
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passbook_notifications_total",
			Help: "SMS通知の送信結果別の合計数",
		}, []string{"result"}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passbook_statements_total",
			Help: "明細書生成のステージ別の合計数",
		}, []string{"stage"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		statementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "passbook_statement_latency_seconds",
			Help:    "明細書生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.txnPosted,
		c.txnRejected,
		c.notifications,
		c.statements,
		c.httpStatus,
		c.statementLatency,
	)

	return c
}

// RecordTransactionPosted は記帳された取引を記録する。
func (c *Collector) RecordTransactionPosted(productType, direction string) {
	c.txnPosted.WithLabelValues(productType, direction).Inc()
}

// RecordTransactionRejected は拒否された取引を理由別に記録する。
func (c *Collector) RecordTransactionRejected(reason string) {
	c.txnRejected.WithLabelValues(reason).Inc()
}

// RecordNotification はSMS通知の送信結果を記録する。
func (c *Collector) RecordNotification(result string) {
	c.notifications.WithLabelValues(result).Inc()
}

// RecordStatement は明細書生成の到達ステージを記録する。
func (c *Collector) RecordStatement(stage string) {
	c.statements.WithLabelValues(stage).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordStatementLatency は明細書生成のレイテンシを記録する。
func (c *Collector) RecordStatementLatency(duration time.Duration) {
	c.statementLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
