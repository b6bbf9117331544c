package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/commentman/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

const articleColumns = `
		SELECT id, city, title, url, discovered_at, last_scraped_at, scrape_status,
		       consecutive_errors, error_message, next_scrape_at, created_at, updated_at
		FROM articles`

func scanArticle(s rowScanner) (*model.Article, error) {
	a := &model.Article{}
	var title, errorMessage sql.NullString
	var lastScrapedAt sql.NullTime
	if err := s.Scan(
		&a.ID, &a.City, &title, &a.URL, &a.DiscoveredAt, &lastScrapedAt, &a.ScrapeStatus,
		&a.ConsecutiveErrors, &errorMessage, &a.NextScrapeAt, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Title = nullStringValue(title)
	a.ErrorMessage = nullStringValue(errorMessage)
	if lastScrapedAt.Valid {
		a.LastScrapedAt = &lastScrapedAt.Time
	}
	return a, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id int64) (*model.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx, articleColumns+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return a, nil
}

// Upsert は記事を作成する。既存の場合はタイトルとURLのみ更新する。
// 新規作成された場合にtrueを返す。
func (r *PostgresArticleRepo) Upsert(ctx context.Context, article *model.Article) (bool, error) {
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO articles (id, city, title, url, discovered_at, scrape_status, next_scrape_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 'active', $5, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
		    title = COALESCE(EXCLUDED.title, articles.title),
		    url = EXCLUDED.url,
		    updated_at = now()
		 RETURNING (xmax = 0)`,
		article.ID, article.City, nullString(article.Title), article.URL, article.DiscoveredAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("記事の保存に失敗しました: %w", err)
	}
	return inserted, nil
}

// ListScrapeCandidates はスクレイピング候補の記事を発見日時の降順で取得する。
func (r *PostgresArticleRepo) ListScrapeCandidates(ctx context.Context, discoveredAfter time.Time) ([]*model.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		articleColumns+`
		 WHERE scrape_status = 'active'
		   AND discovered_at >= $1
		   AND next_scrape_at <= now()
		 ORDER BY discovered_at DESC`,
		discoveredAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("スクレイピング候補記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("スクレイピング候補記事の読み取りに失敗しました: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スクレイピング候補記事の走査に失敗しました: %w", err)
	}
	return articles, nil
}

// UpdateScrapeState は記事のスクレイピング状態を更新する。
func (r *PostgresArticleRepo) UpdateScrapeState(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET
		    scrape_status = $2,
		    consecutive_errors = $3,
		    error_message = $4,
		    next_scrape_at = $5,
		    last_scraped_at = $6,
		    updated_at = now()
		 WHERE id = $1`,
		article.ID,
		article.ScrapeStatus,
		article.ConsecutiveErrors,
		nullString(article.ErrorMessage),
		article.NextScrapeAt,
		article.LastScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("スクレイピング状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
