package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/commentman/internal/comment"
	"github.com/hitoshi/commentman/internal/metrics"
	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/repository"
)

// CommentSource は記事のコメントを取得するインターフェース。
type CommentSource interface {
	Scrape(ctx context.Context, article *model.Article) (model.ScrapedComments, error)
}

// CommentUpserter はコメントのUPSERT処理のインターフェース。
type CommentUpserter interface {
	UpsertArticleComments(ctx context.Context, articleID int64, scraped model.ScrapedComments) (comment.UpsertResult, error)
}

// Fetcher は個別記事のコメントを取得して保存し、記事のスクレイピング状態を更新する。
type Fetcher struct {
	articleRepo repository.ArticleRepository
	source      CommentSource
	upsertSvc   CommentUpserter
	ssrfGuard   SSRFValidator
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	articleRepo repository.ArticleRepository,
	source CommentSource,
	upsertSvc CommentUpserter,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Fetcher {
	return &Fetcher{
		articleRepo: articleRepo,
		source:      source,
		upsertSvc:   upsertSvc,
		ssrfGuard:   ssrfGuard,
		metrics:     collector,
		logger:      logger,
		now:         time.Now,
	}
}

// Fetch は記事のコメントを取得し、結果に応じて記事の状態を更新する。
// ArticleFetcherServiceインターフェースを実装する。
//
// HTTPステータスやパース失敗による状態遷移はエラーとして返さない。
// SSRF検証失敗と通信エラーのみエラーを返す。
func (f *Fetcher) Fetch(ctx context.Context, article *model.Article) error {
	start := f.now()

	if err := f.ssrfGuard.ValidateURL(article.URL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.Int64("article_id", article.ID),
			slog.String("article_url", article.URL),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordScrapeFailure(article.City, "ssrf")
		ApplyStop(article, fmt.Sprintf("SSRF検証失敗: %s", err.Error()), f.now())
		f.updateState(ctx, article)
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	scraped, err := f.source.Scrape(ctx, article)
	f.metrics.RecordScrapeLatency(f.now().Sub(start))
	if err != nil {
		return f.handleScrapeError(ctx, article, err)
	}
	f.metrics.RecordHTTPStatus(http.StatusOK)

	result, err := f.upsertSvc.UpsertArticleComments(ctx, article.ID, scraped)
	if err != nil {
		f.logger.Error("コメントのUPSERTに失敗しました",
			slog.Int64("article_id", article.ID),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordScrapeFailure(article.City, "upsert")
		ApplyParseFailure(article, fmt.Sprintf("コメントUPSERT失敗: %s", err.Error()), f.now())
		f.updateState(ctx, article)
		return nil
	}

	ApplySuccess(article, f.now())
	if err := f.articleRepo.UpdateScrapeState(ctx, article); err != nil {
		f.logger.Error("記事状態の更新に失敗しました",
			slog.Int64("article_id", article.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	f.metrics.RecordScrapeSuccess(article.City)
	f.metrics.RecordCommentsUpserted(result.Upserted)
	f.metrics.RecordCommentsDeleted(result.Deleted)

	f.logger.Info("コメントのスクレイピングが完了しました",
		slog.Int64("article_id", article.ID),
		slog.String("city", article.City),
		slog.Int("comments_total", len(scraped.Comments)),
		slog.Bool("complete", scraped.Complete),
		slog.Int("comments_upserted", result.Upserted),
		slog.Int("comments_deleted", result.Deleted),
		slog.Int("comments_restored", result.Restored),
		slog.Time("next_scrape_at", article.NextScrapeAt),
		slog.Float64("duration_ms", float64(f.now().Sub(start).Milliseconds())),
	)

	return nil
}

// handleScrapeError は取得エラーを分類し、停止・バックオフ・パース失敗のいずれかを適用する。
func (f *Fetcher) handleScrapeError(ctx context.Context, article *model.Article, err error) error {
	now := f.now()

	var statusErr *StatusError
	var parseErr *ParseError
	switch {
	case errors.As(err, &statusErr):
		f.metrics.RecordHTTPStatus(statusErr.StatusCode)
		switch ClassifyHTTPStatus(statusErr.StatusCode) {
		case ScrapeResultStop:
			reason := fmt.Sprintf("HTTPステータス %d によりスクレイピングを停止しました", statusErr.StatusCode)
			f.logger.Warn("記事のスクレイピングを停止します",
				slog.Int64("article_id", article.ID),
				slog.String("article_url", article.URL),
				slog.Int("http_status", statusErr.StatusCode),
			)
			f.metrics.RecordScrapeFailure(article.City, "stopped")
			ApplyStop(article, reason, now)
		case ScrapeResultBackoff:
			f.logger.Warn("記事のスクレイピングにバックオフを適用します",
				slog.Int64("article_id", article.ID),
				slog.String("article_url", article.URL),
				slog.Int("http_status", statusErr.StatusCode),
				slog.Int("consecutive_errors", article.ConsecutiveErrors+1),
			)
			f.metrics.RecordScrapeFailure(article.City, "backoff")
			ApplyBackoff(article, fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", statusErr.StatusCode), now)
		default:
			f.logger.Warn("予期しないHTTPステータスコード",
				slog.Int64("article_id", article.ID),
				slog.Int("http_status", statusErr.StatusCode),
			)
			f.metrics.RecordScrapeFailure(article.City, "unexpected_status")
			ApplyBackoff(article, fmt.Sprintf("予期しないHTTPステータス: %d", statusErr.StatusCode), now)
		}
		f.updateState(ctx, article)
		return nil

	case errors.As(err, &parseErr):
		f.logger.Error("コメントのパースに失敗しました",
			slog.Int64("article_id", article.ID),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordParseFailure(article.City)
		ApplyParseFailure(article, err.Error(), now)
		f.updateState(ctx, article)
		return nil

	default:
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.Int64("article_id", article.ID),
			slog.String("article_url", article.URL),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordScrapeFailure(article.City, "network")
		ApplyBackoff(article, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), now)
		f.updateState(ctx, article)
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
}

func (f *Fetcher) updateState(ctx context.Context, article *model.Article) {
	if err := f.articleRepo.UpdateScrapeState(ctx, article); err != nil {
		f.logger.Error("記事状態の更新に失敗しました",
			slog.Int64("article_id", article.ID),
			slog.String("error", err.Error()),
		)
	}
}
