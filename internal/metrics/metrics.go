// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// provision.MetricsRecorderとpayment.MetricsRecorderを満たす。
type Collector struct {
	ordersCreated         prometheus.Counter
	paymentsSucceeded     prometheus.Counter
	paymentsFailed        prometheus.Counter
	webhookEvents         *prometheus.CounterVec
	provisionSuccess      prometheus.Counter
	provisionFail         prometheus.Counter
	provisionPendingSetup prometheus.Counter
	provisionLatency      prometheus.Histogram
	httpStatus            *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbehosting_orders_created_total",
			Help: "作成された注文の合計数",
		}),
		paymentsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbehosting_payments_succeeded_total",
			Help: "成功した決済の合計数",
		}),
		paymentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbehosting_payments_failed_total",
			Help: "失敗した決済の合計数",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbehosting_webhook_events_total",
			Help: "種別・結果別のWebhookイベント数",
		}, []string{"type", "outcome"}),
		provisionSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbehosting_provision_success_total",
			Help: "プロビジョニング成功の合計数",
		}),
		provisionFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbehosting_provision_fail_total",
			Help: "プロビジョニング失敗の合計数",
		}),
		provisionPendingSetup: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbehosting_provision_pending_setup_total",
			Help: "パネル未設定でpending_setupになった合計数",
		}),
		provisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbehosting_provision_latency_seconds",
			Help:    "プロビジョニングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbehosting_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.ordersCreated,
		c.paymentsSucceeded,
		c.paymentsFailed,
		c.webhookEvents,
		c.provisionSuccess,
		c.provisionFail,
		c.provisionPendingSetup,
		c.provisionLatency,
		c.httpStatus,
	)

	return c
}

// OrderCreated は注文作成を記録する。
func (c *Collector) OrderCreated() {
	c.ordersCreated.Inc()
}

// PaymentSucceeded は決済成功を記録する。
func (c *Collector) PaymentSucceeded() {
	c.paymentsSucceeded.Inc()
}

// PaymentFailed は決済失敗を記録する。
func (c *Collector) PaymentFailed() {
	c.paymentsFailed.Inc()
}

// WebhookEvent はWebhookイベントの受信を記録する。
func (c *Collector) WebhookEvent(eventType, outcome string) {
	c.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ProvisionSucceeded はプロビジョニング成功とレイテンシを記録する。
func (c *Collector) ProvisionSucceeded(duration time.Duration) {
	c.provisionSuccess.Inc()
	c.provisionLatency.Observe(duration.Seconds())
}

// ProvisionFailed はプロビジョニング失敗を記録する。
func (c *Collector) ProvisionFailed() {
	c.provisionFail.Inc()
}

// ProvisionPendingSetup は縮退モードでのpending_setupを記録する。
func (c *Collector) ProvisionPendingSetup() {
	c.provisionPendingSetup.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
