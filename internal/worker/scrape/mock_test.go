package scrape

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/commentman/internal/comment"
	"github.com/hitoshi/commentman/internal/metrics"
	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/repository"
)

var (
	_ repository.ArticleRepository = (*mockArticleRepo)(nil)
	_ SSRFValidator                = (*mockSSRFGuard)(nil)
	_ CommentSource                = (*mockCommentSource)(nil)
	_ CommentUpserter              = (*mockUpsertService)(nil)
	_ metrics.MetricsCollector     = (*fakeMetrics)(nil)
)

// --- モック定義 ---

// mockArticleRepo はArticleRepositoryのテスト用モック。
type mockArticleRepo struct {
	mu                       sync.Mutex
	findByIDFunc             func(ctx context.Context, id int64) (*model.Article, error)
	upsertFunc               func(ctx context.Context, article *model.Article) (bool, error)
	listScrapeCandidatesFunc func(ctx context.Context, discoveredAfter time.Time) ([]*model.Article, error)
	updateScrapeStateFunc    func(ctx context.Context, article *model.Article) error
	updated                  []model.Article
}

func (m *mockArticleRepo) FindByID(ctx context.Context, id int64) (*model.Article, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockArticleRepo) Upsert(ctx context.Context, article *model.Article) (bool, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, article)
	}
	return true, nil
}

func (m *mockArticleRepo) ListScrapeCandidates(ctx context.Context, discoveredAfter time.Time) ([]*model.Article, error) {
	if m.listScrapeCandidatesFunc != nil {
		return m.listScrapeCandidatesFunc(ctx, discoveredAfter)
	}
	return nil, nil
}

func (m *mockArticleRepo) UpdateScrapeState(ctx context.Context, article *model.Article) error {
	m.mu.Lock()
	m.updated = append(m.updated, *article)
	m.mu.Unlock()
	if m.updateScrapeStateFunc != nil {
		return m.updateScrapeStateFunc(ctx, article)
	}
	return nil
}

func (m *mockArticleRepo) lastUpdated() (model.Article, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updated) == 0 {
		return model.Article{}, false
	}
	return m.updated[len(m.updated)-1], true
}

// mockSSRFGuard はSSRFGuardServiceのテスト用モック。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

// mockCommentSource はCommentSourceのテスト用モック。
type mockCommentSource struct {
	comments   []model.ParsedComment
	incomplete bool
	err        error
}

func (m *mockCommentSource) Scrape(_ context.Context, _ *model.Article) (model.ScrapedComments, error) {
	if m.err != nil {
		return model.ScrapedComments{}, m.err
	}
	return model.ScrapedComments{Comments: m.comments, Complete: !m.incomplete}, nil
}

// mockUpsertService はCommentUpsertServiceのテスト用モック。
type mockUpsertService struct {
	result     comment.UpsertResult
	err        error
	calledWith model.ScrapedComments
	calls      int
}

func (m *mockUpsertService) UpsertArticleComments(_ context.Context, _ int64, scraped model.ScrapedComments) (comment.UpsertResult, error) {
	m.calls++
	m.calledWith = scraped
	return m.result, m.err
}

// fakeMetrics はMetricsCollectorのテスト用実装。呼び出し内容を記録する。
type fakeMetrics struct {
	mu         sync.Mutex
	success    map[string]int
	failures   map[string]int
	parseFail  map[string]int
	statuses   map[int]int
	discovered map[string]int
	upserted   int
	deleted    int
	archived   int
	latencies  int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		success:    map[string]int{},
		failures:   map[string]int{},
		parseFail:  map[string]int{},
		statuses:   map[int]int{},
		discovered: map[string]int{},
	}
}

func (f *fakeMetrics) RecordScrapeSuccess(city string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success[city]++
}

func (f *fakeMetrics) RecordScrapeFailure(city string, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[city+"/"+reason]++
}

func (f *fakeMetrics) RecordParseFailure(city string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parseFail[city]++
}

func (f *fakeMetrics) RecordHTTPStatus(statusCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[statusCode]++
}

func (f *fakeMetrics) RecordScrapeLatency(_ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latencies++
}

func (f *fakeMetrics) RecordArticlesDiscovered(city string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovered[city] += count
}

func (f *fakeMetrics) RecordCommentsUpserted(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted += count
}

func (f *fakeMetrics) RecordCommentsDeleted(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted += count
}

func (f *fakeMetrics) RecordArticlesArchived(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
