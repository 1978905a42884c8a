// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層およびゲートウェイのデコレーターから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure(errorCode string)
	RecordSessionExpired()
	RecordHTTPStatus(statusCode int)
	RecordGatewayCall(operation string, err error, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess   prometheus.Counter
	loginFail      *prometheus.CounterVec
	sessionExpired prometheus.Counter
	httpStatus     *prometheus.CounterVec
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "noteman_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_login_fail_total",
			Help: "エラーコード別のログイン失敗数",
		}, []string{"error_code"}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "noteman_session_expired_total",
			Help: "無操作タイムアウトによるセッション失効の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteman_gateway_calls_total",
			Help: "操作・結果別のバックエンド呼び出し数",
		}, []string{"operation", "result"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "noteman_gateway_latency_seconds",
			Help:    "バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.sessionExpired,
		c.httpStatus,
		c.gatewayCalls,
		c.gatewayLatency,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗をエラーコード別に記録する。
func (c *Collector) RecordLoginFailure(errorCode string) {
	if errorCode == "" {
		errorCode = "unknown"
	}
	c.loginFail.WithLabelValues(errorCode).Inc()
}

// RecordSessionExpired はセッション失効の検出を記録する。
func (c *Collector) RecordSessionExpired() {
	c.sessionExpired.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGatewayCall はバックエンド呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordGatewayCall(operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.gatewayCalls.WithLabelValues(operation, result).Inc()
	c.gatewayLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
