// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はスクレイピング系メトリクス収集のインターフェース。
// スクレイパーやアーカイブジョブから利用する。
type MetricsCollector interface {
	RecordScrapeSuccess(city string)
	RecordScrapeFailure(city string, reason string)
	RecordParseFailure(city string)
	RecordHTTPStatus(statusCode int)
	RecordScrapeLatency(duration time.Duration)
	RecordArticlesDiscovered(city string, count int)
	RecordCommentsUpserted(count int)
	RecordCommentsDeleted(count int)
	RecordArticlesArchived(count int)
}

// RequestRecorder はAPIリクエストのメトリクス記録のインターフェース。
type RequestRecorder interface {
	RecordAPIRequest(method, route string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scrapeSuccess      *prometheus.CounterVec
	scrapeFail         *prometheus.CounterVec
	parseFail          *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	scrapeLatency      prometheus.Histogram
	articlesDiscovered *prometheus.CounterVec
	commentsUpserted   prometheus.Counter
	commentsDeleted    prometheus.Counter
	articlesArchived   prometheus.Counter
	apiRequests        *prometheus.CounterVec
	apiLatency         *prometheus.HistogramVec
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ RequestRecorder  = (*Collector)(nil)
)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scrapeSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentman_scrape_success_total",
			Help: "記事コメントスクレイピング成功の合計数",
		}, []string{"city"}),
		scrapeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentman_scrape_fail_total",
			Help: "記事コメントスクレイピング失敗の合計数",
		}, []string{"city", "reason"}),
		parseFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentman_parse_fail_total",
			Help: "HTMLパース失敗の合計数",
		}, []string{"city"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentman_http_status_total",
			Help: "取得先サイトのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		scrapeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "commentman_scrape_latency_seconds",
			Help:    "1記事分のコメントスクレイピングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articlesDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentman_articles_discovered_total",
			Help: "新規に発見された記事の合計数",
		}, []string{"city"}),
		commentsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commentman_comments_upserted_total",
			Help: "アップサートされたコメントの合計数",
		}),
		commentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commentman_comments_deleted_total",
			Help: "削除を検知したコメントの合計数",
		}),
		articlesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commentman_articles_archived_total",
			Help: "アーカイブされた記事の合計数",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentman_api_requests_total",
			Help: "APIリクエスト数",
		}, []string{"method", "route", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commentman_api_request_duration_seconds",
			Help:    "APIリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.scrapeSuccess,
		c.scrapeFail,
		c.parseFail,
		c.httpStatus,
		c.scrapeLatency,
		c.articlesDiscovered,
		c.commentsUpserted,
		c.commentsDeleted,
		c.articlesArchived,
		c.apiRequests,
		c.apiLatency,
	)

	return c
}

// RecordScrapeSuccess はスクレイピング成功を記録する。
func (c *Collector) RecordScrapeSuccess(city string) {
	c.scrapeSuccess.WithLabelValues(city).Inc()
}

// RecordScrapeFailure はスクレイピング失敗を理由別に記録する。
func (c *Collector) RecordScrapeFailure(city string, reason string) {
	c.scrapeFail.WithLabelValues(city, reason).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(city string) {
	c.parseFail.WithLabelValues(city).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordScrapeLatency はスクレイピングのレイテンシを記録する。
func (c *Collector) RecordScrapeLatency(duration time.Duration) {
	c.scrapeLatency.Observe(duration.Seconds())
}

// RecordArticlesDiscovered は新規発見記事数を記録する。
func (c *Collector) RecordArticlesDiscovered(city string, count int) {
	c.articlesDiscovered.WithLabelValues(city).Add(float64(count))
}

// RecordCommentsUpserted はアップサートされたコメント数を記録する。
func (c *Collector) RecordCommentsUpserted(count int) {
	c.commentsUpserted.Add(float64(count))
}

// RecordCommentsDeleted は削除を検知したコメント数を記録する。
func (c *Collector) RecordCommentsDeleted(count int) {
	c.commentsDeleted.Add(float64(count))
}

// RecordArticlesArchived はアーカイブした記事数を記録する。
func (c *Collector) RecordArticlesArchived(count int) {
	c.articlesArchived.Add(float64(count))
}

// RecordAPIRequest はAPIリクエスト1件分のステータスと処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルのカーディナリティを抑える。
func (c *Collector) RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.WithLabelValues(method, route).Observe(duration.Seconds())
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
