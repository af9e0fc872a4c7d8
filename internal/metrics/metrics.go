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
// 認証フロー、記録サービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthTransition(event, phase string)
	ObserveTokenExchange(duration time.Duration, success bool)
	RecordShootCreated(shotCount int)
	RecordShootDeleted()
	RecordHTTPStatus(statusCode int)
	RecordSessionsSwept(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authTransitions *prometheus.CounterVec
	tokenExchange   *prometheus.HistogramVec
	shootsCreated   *prometheus.CounterVec
	shootsDeleted   prometheus.Counter
	httpStatus      *prometheus.CounterVec
	sessionsSwept   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riflelog_auth_transitions_total",
			Help: "認証フローの遷移数（イベント・遷移先フェーズ別）",
		}, []string{"event", "phase"}),
		tokenExchange: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riflelog_token_exchange_seconds",
			Help:    "認可コードとトークンの交換にかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		shootsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riflelog_shoots_created_total",
			Help: "作成された射撃記録の合計数（発数別）",
		}, []string{"shot_count"}),
		shootsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riflelog_shoots_deleted_total",
			Help: "削除された射撃記録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riflelog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riflelog_sessions_swept_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authTransitions,
		c.tokenExchange,
		c.shootsCreated,
		c.shootsDeleted,
		c.httpStatus,
		c.sessionsSwept,
	)

	return c
}

// RecordAuthTransition は認証フローの遷移を記録する。
func (c *Collector) RecordAuthTransition(event, phase string) {
	c.authTransitions.WithLabelValues(event, phase).Inc()
}

// ObserveTokenExchange はトークン交換のレイテンシを結果別に記録する。
func (c *Collector) ObserveTokenExchange(duration time.Duration, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.tokenExchange.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordShootCreated は記録の作成を記録する。
func (c *Collector) RecordShootCreated(shotCount int) {
	c.shootsCreated.WithLabelValues(strconv.Itoa(shotCount)).Inc()
}

// RecordShootDeleted は記録の削除を記録する。
func (c *Collector) RecordShootDeleted() {
	c.shootsDeleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsSwept は掃除で削除されたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
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
