package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findFamily は指定名のメトリクスファミリーを取得する。見つからなければテストを失敗させる。
func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を取り出す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordScrapeSuccess_IncrementsCounterPerCity は都市ラベルごとに成功カウンタが増加することを検証する。
func TestRecordScrapeSuccess_IncrementsCounterPerCity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScrapeSuccess("ssm")
	c.RecordScrapeSuccess("ssm")
	c.RecordScrapeSuccess("tbay")

	mf := findFamily(t, reg, "commentman_scrape_success_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		val := m.GetCounter().GetValue()
		switch labelValue(m, "city") {
		case "ssm":
			if val != 2 {
				t.Errorf("scrape_success_total{city=ssm} = %v, want 2", val)
			}
		case "tbay":
			if val != 1 {
				t.Errorf("scrape_success_total{city=tbay} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected city label: %s", labelValue(m, "city"))
		}
	}
}

// TestRecordScrapeFailure_LabelsReason は失敗理由がラベルとして記録されることを検証する。
func TestRecordScrapeFailure_LabelsReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScrapeFailure("ssm", "http_status")

	mf := findFamily(t, reg, "commentman_scrape_fail_total")
	m := mf.GetMetric()[0]
	if got := labelValue(m, "reason"); got != "http_status" {
		t.Errorf("reason label = %q, want %q", got, "http_status")
	}
	if val := m.GetCounter().GetValue(); val != 1 {
		t.Errorf("scrape_fail_total = %v, want 1", val)
	}
}

// TestRecordParseFailure_IncrementsCounter はパース失敗カウンタが増加することを検証する。
func TestRecordParseFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordParseFailure("tbay")
	c.RecordParseFailure("tbay")
	c.RecordParseFailure("tbay")

	mf := findFamily(t, reg, "commentman_parse_fail_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 3 {
		t.Errorf("parse_fail_total = %v, want 3", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(429)

	mf := findFamily(t, reg, "commentman_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		val := m.GetCounter().GetValue()
		switch labelValue(m, "status_code") {
		case "200":
			if val != 2 {
				t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
			}
		case "429":
			if val != 1 {
				t.Errorf("http_status_total{status_code=429} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", labelValue(m, "status_code"))
		}
	}
}

// TestRecordScrapeLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordScrapeLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScrapeLatency(100 * time.Millisecond)
	c.RecordScrapeLatency(2 * time.Second)

	h := findFamily(t, reg, "commentman_scrape_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordCommentCounters はコメント件数系カウンタの加算を検証する。
func TestRecordCommentCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommentsUpserted(10)
	c.RecordCommentsUpserted(5)
	c.RecordCommentsDeleted(2)
	c.RecordArticlesArchived(4)
	c.RecordArticlesDiscovered("ssm", 3)

	tests := []struct {
		name string
		want float64
	}{
		{"commentman_comments_upserted_total", 15},
		{"commentman_comments_deleted_total", 2},
		{"commentman_articles_archived_total", 4},
		{"commentman_articles_discovered_total", 3},
	}
	for _, tt := range tests {
		mf := findFamily(t, reg, tt.name)
		if val := mf.GetMetric()[0].GetCounter().GetValue(); val != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, val, tt.want)
		}
	}
}

// TestRecordAPIRequest_RecordsCountAndLatency はAPIリクエストの件数と処理時間が記録されることを検証する。
func TestRecordAPIRequest_RecordsCountAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAPIRequest(http.MethodGet, "/comments", 200, 30*time.Millisecond)
	c.RecordAPIRequest(http.MethodGet, "/comments", 400, 5*time.Millisecond)

	mf := findFamily(t, reg, "commentman_api_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		if got := labelValue(m, "route"); got != "/comments" {
			t.Errorf("route label = %q, want %q", got, "/comments")
		}
	}

	h := findFamily(t, reg, "commentman_api_request_duration_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScrapeSuccess("ssm")
	c.RecordScrapeFailure("ssm", "network")
	c.RecordHTTPStatus(200)
	c.RecordScrapeLatency(500 * time.Millisecond)
	c.RecordCommentsUpserted(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"commentman_scrape_success_total",
		"commentman_scrape_fail_total",
		"commentman_http_status_total",
		"commentman_scrape_latency_seconds",
		"commentman_comments_upserted_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordCommentsUpserted(1)
	c2.RecordCommentsUpserted(2)

	val1 := findFamily(t, reg1, "commentman_comments_upserted_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findFamily(t, reg2, "commentman_comments_upserted_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 comments_upserted = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 comments_upserted = %v, want 2", val2)
	}
}
