// Package scrape はニュースサイトのコメントのバックグラウンドスクレイピングを提供する。
// 記事検出、コメント取得、スケジューラ、リトライ/バックオフ戦略を含む。
package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/commentman/internal/metrics"
	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/repository"
)

// ArticleFetcherService は記事コメント取得の実行インターフェース。
type ArticleFetcherService interface {
	// Fetch は記事のコメントを取得し、結果に応じて記事状態を更新する。
	Fetch(ctx context.Context, article *model.Article) error
}

// ArticleDiscoveryService はサイトの記事検出のインターフェース。
type ArticleDiscoveryService interface {
	Discover(ctx context.Context, site model.Site) ([]*model.Article, error)
}

// Scheduler は記事検出とコメント取得のスケジューリングと並列制御を行う。
// ティッカーごとに各サイトの記事を検出し、取得時期に達した記事を
// semaphoreパターンで最大並列数を制御しながらスクレイピングする。
type Scheduler struct {
	sites          []model.Site
	discoverer     ArticleDiscoveryService
	articleRepo    repository.ArticleRepository
	fetcher        ArticleFetcherService
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	window         time.Duration
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合は5、windowDaysが0以下の場合は7日を使用する。
func NewScheduler(
	sites []model.Site,
	discoverer ArticleDiscoveryService,
	articleRepo repository.ArticleRepository,
	fetcher ArticleFetcherService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
	windowDays int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Scheduler{
		sites:          sites,
		discoverer:     discoverer,
		articleRepo:    articleRepo,
		fetcher:        fetcher,
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		window:         time.Duration(windowDays) * 24 * time.Hour,
		now:            time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スクレイピングスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Int("site_count", len(s.sites)),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スクレイピングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スクレイピングスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スクレイピングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は記事検出とコメント取得を1サイクル実行する。
// サイト単位の検出失敗はログに記録して続行し、候補記事の取得失敗のみエラーを返す。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now()
	logger := s.logger.With(slog.String("run_id", uuid.NewString()))

	for _, site := range s.sites {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.discoverSite(ctx, logger, site)
	}

	candidates, err := s.articleRepo.ListScrapeCandidates(ctx, start.Add(-s.window))
	if err != nil {
		return err
	}

	due := make([]*model.Article, 0, len(candidates))
	for _, a := range candidates {
		if IsDue(a, start) {
			due = append(due, a)
		}
	}

	if len(due) == 0 {
		logger.Info("スクレイピング対象の記事はありません")
		return nil
	}

	logger.Info("スクレイピングサイクルを開始します",
		slog.Int("article_count", len(due)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, article := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(a *model.Article) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.fetcher.Fetch(ctx, a); err != nil {
				logger.Error("記事のスクレイピングに失敗しました",
					slog.Int64("article_id", a.ID),
					slog.String("article_url", a.URL),
					slog.String("error", err.Error()),
				)
			}
		}(article)
	}

	wg.Wait()

	logger.Info("スクレイピングサイクルが完了しました",
		slog.Int("article_count", len(due)),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)

	return nil
}

// discoverSite はサイトの記事を検出して保存し、新規記事数を記録する。
func (s *Scheduler) discoverSite(ctx context.Context, logger *slog.Logger, site model.Site) {
	articles, err := s.discoverer.Discover(ctx, site)
	if err != nil {
		logger.Error("記事の検出に失敗しました",
			slog.String("city", site.City),
			slog.String("site_url", site.URL),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordScrapeFailure(site.City, "discover")
		return
	}

	created := 0
	for _, a := range articles {
		inserted, err := s.articleRepo.Upsert(ctx, a)
		if err != nil {
			logger.Error("記事の保存に失敗しました",
				slog.String("city", site.City),
				slog.Int64("article_id", a.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if inserted {
			created++
		}
	}
	s.metrics.RecordArticlesDiscovered(site.City, created)

	logger.Info("記事の検出が完了しました",
		slog.String("city", site.City),
		slog.Int("article_count", len(articles)),
		slog.Int("new_article_count", created),
	)
}
