package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/commentman/internal/comment"
	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/security"
)

// memoryArticleRepo はArticleRepositoryのインメモリ実装。
type memoryArticleRepo struct {
	mu       sync.Mutex
	articles map[int64]*model.Article
}

func (m *memoryArticleRepo) FindByID(_ context.Context, id int64) (*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memoryArticleRepo) Upsert(_ context.Context, article *model.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.articles[article.ID]; ok {
		if article.Title != "" {
			existing.Title = article.Title
		}
		existing.URL = article.URL
		return false, nil
	}
	cp := *article
	cp.ScrapeStatus = model.ScrapeStatusActive
	cp.NextScrapeAt = article.DiscoveredAt
	m.articles[article.ID] = &cp
	return true, nil
}

func (m *memoryArticleRepo) ListScrapeCandidates(_ context.Context, discoveredAfter time.Time) ([]*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Article
	for _, a := range m.articles {
		if a.ScrapeStatus == model.ScrapeStatusActive && !a.DiscoveredAt.Before(discoveredAfter) {
			cp := *a
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memoryArticleRepo) UpdateScrapeState(_ context.Context, article *model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *article
	m.articles[article.ID] = &cp
	return nil
}

// memoryCommentStore はCommentRepositoryとUserRepositoryのインメモリ実装。
type memoryCommentStore struct {
	mu       sync.Mutex
	comments map[int64]*model.Comment
	users    map[int64]string
}

func (m *memoryCommentStore) FindByID(_ context.Context, id int64) (*model.CommentWithArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	return &model.CommentWithArticle{Comment: *c}, nil
}

func (m *memoryCommentStore) List(_ context.Context, _ model.CommentQuery) ([]model.CommentWithArticle, error) {
	return nil, nil
}

func (m *memoryCommentStore) ListStatesByArticle(_ context.Context, articleID int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make(map[int64]bool)
	for id, c := range m.comments {
		if c.ArticleID == articleID {
			states[id] = c.Deleted
		}
	}
	return states, nil
}

func (m *memoryCommentStore) Upsert(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Deleted = false
	m.comments[c.ID] = &cp
	return nil
}

func (m *memoryCommentStore) SetDeleted(_ context.Context, ids []int64, deleted bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := m.comments[id]; ok && c.Deleted != deleted {
			c.Deleted = deleted
			n++
		}
	}
	return n, nil
}

type memoryUserRepo struct{ store *memoryCommentStore }

func (u memoryUserRepo) Upsert(_ context.Context, user *model.User) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.users[user.ID] = user.Name
	return nil
}

func (m *memoryCommentStore) get(id int64) (model.Comment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return model.Comment{}, false
	}
	return *c, true
}

// TestIntegration_ScrapeFlow はスクレイピングフロー全体を検証する。
// 記事検出 → 記事保存 → 取得対象判定 → コメント取得 → サニタイズ/UPSERT → 削除検出
func TestIntegration_ScrapeFlow(t *testing.T) {
	var mu sync.Mutex
	withDeleted := true

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head></head><body>
<a class="section-item" href="/local-news/bridge-reopens-1001"><div class="section-title">Bridge reopens</div></a>
</body></html>`)
		case "/comments/get":
			mu.Lock()
			includeSecond := withDeleted
			mu.Unlock()
			body := `<div id="comments" data-count="2">` +
				commentHTML(11, 501, "alice", "Finally &lt;b&gt;open&lt;/b&gt;", 5, 0, 0, "")
			if includeSecond {
				body += commentHTML(12, 502, "bob", "Too slow", 1, 3, 0, "")
			}
			fmt.Fprint(w, body+`</div>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	var logs bytes.Buffer
	logger := newTestLogger(&logs)
	guard := &mockSSRFGuard{}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	articles := &memoryArticleRepo{articles: map[int64]*model.Article{}}
	store := &memoryCommentStore{comments: map[int64]*model.Comment{}, users: map[int64]string{}}
	upsertSvc := comment.NewCommentUpsertService(store, memoryUserRepo{store}, security.NewTextSanitizer(), logger)
	m := newFakeMetrics()

	discoverer := NewArticleDiscoverer(guard, logger, 5*time.Second, 1<<20)
	discoverer.now = clock
	scraper := NewCommentScraper(guard, logger, 5*time.Second, 1<<20, 5)
	scraper.now = clock
	fetcher := NewFetcher(articles, scraper, upsertSvc, guard, m, logger)
	fetcher.now = clock
	scheduler := NewScheduler([]model.Site{{City: "ssm", URL: server.URL}}, discoverer, articles, fetcher, m, logger, 2, 7)
	scheduler.now = clock

	// 1回目: 記事を検出し2件のコメントを保存する
	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce #1 error: %v", err)
	}

	a, _ := articles.FindByID(context.Background(), 1001)
	if a == nil || a.Title != "Bridge reopens" || a.City != "ssm" {
		t.Fatalf("記事が保存されていない: %+v", a)
	}
	if a.LastScrapedAt == nil || !a.NextScrapeAt.Equal(now.Add(15*time.Minute)) {
		t.Errorf("取得状態が更新されていない: %+v", a)
	}

	first, ok := store.get(11)
	if !ok {
		t.Fatal("コメント11が保存されていない")
	}
	if first.Text != "Finally open" {
		t.Errorf("本文はサニタイズされるべき: %q", first.Text)
	}
	if first.ArticleID != 1001 || first.Likes != 5 {
		t.Errorf("first = %+v", first)
	}
	if store.users[502] != "bob" {
		t.Errorf("投稿者が保存されていない: %v", store.users)
	}

	// 5分後: まだ取得時期ではない
	mu.Lock()
	now = now.Add(5 * time.Minute)
	withDeleted = false
	mu.Unlock()

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce #2 error: %v", err)
	}
	if second, _ := store.get(12); second.Deleted {
		t.Fatal("取得時期前にスクレイピングしてはならない")
	}

	// さらに15分後: 再取得し、消えたコメントを削除済みにする
	mu.Lock()
	now = now.Add(15 * time.Minute)
	mu.Unlock()

	if err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce #3 error: %v", err)
	}
	second, _ := store.get(12)
	if !second.Deleted {
		t.Error("スクレイピング結果から消えたコメントは削除済みにすべき")
	}
	if c, _ := store.get(11); c.Deleted {
		t.Error("残っているコメントを削除済みにしてはならない")
	}

	if m.discovered["ssm"] != 1 {
		t.Errorf("新規記事数 = %d, want 1", m.discovered["ssm"])
	}
	if m.success["ssm"] != 2 {
		t.Errorf("成功回数 = %d, want 2", m.success["ssm"])
	}
	if m.deleted != 1 {
		t.Errorf("削除件数 = %d, want 1", m.deleted)
	}
}

// TestIntegration_MaxPagesKeepsUnfetchedComments はページ上限で打ち切った取得結果を
// UPSERTしても、上限より後ろのページにある保存済みコメントを削除済みにしないことを検証する。
func TestIntegration_MaxPagesKeepsUnfetchedComments(t *testing.T) {
	more := `<button class="comments-more">Load more</button>`
	srv := &commentServer{pages: map[string]string{
		"":   commentHTML(31, 501, "alice", "one", 0, 0, 0, "") + more,
		"31": commentHTML(32, 502, "bob", "two", 0, 0, 0, "") + more,
		"32": commentHTML(33, 503, "carol", "three", 0, 0, 0, "") + more,
	}}
	server := httptest.NewServer(srv)
	defer server.Close()

	var logs bytes.Buffer
	logger := newTestLogger(&logs)
	store := &memoryCommentStore{
		comments: map[int64]*model.Comment{
			33: {ID: 33, ArticleID: 1001, UserID: 503, Text: "three"},
		},
		users: map[int64]string{},
	}
	upsertSvc := comment.NewCommentUpsertService(store, memoryUserRepo{store}, security.NewTextSanitizer(), logger)
	scraper := newTestCommentScraper(&logs, 2)

	article := testArticle(server.URL)
	scraped, err := scraper.Scrape(context.Background(), article)
	if err != nil {
		t.Fatalf("Scrape error: %v", err)
	}
	result, err := upsertSvc.UpsertArticleComments(context.Background(), article.ID, scraped)
	if err != nil {
		t.Fatalf("UpsertArticleComments error: %v", err)
	}

	if result.Upserted != 2 || result.Deleted != 0 {
		t.Errorf("result = %+v, want 2 upserted and 0 deleted", result)
	}
	c, ok := store.get(33)
	if !ok || c.Deleted {
		t.Errorf("上限より後ろのページのコメントを削除済みにしてはならない: %+v", c)
	}
	for _, id := range []int64{31, 32} {
		if _, ok := store.get(id); !ok {
			t.Errorf("コメント%dが保存されていない", id)
		}
	}
}
