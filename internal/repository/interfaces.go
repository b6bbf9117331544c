// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/commentman/internal/model"
)

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを記事情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.CommentWithArticle, error)

	// List は検索条件に一致するコメントを記事情報付きで取得する。
	// 並び順はq.Order、同点の場合は投稿日時の降順。
	List(ctx context.Context, q model.CommentQuery) ([]model.CommentWithArticle, error)

	// ListStatesByArticle は記事に紐づく保存済みコメントのIDと削除状態を返す。
	ListStatesByArticle(ctx context.Context, articleID int64) (map[int64]bool, error)

	// Upsert はコメントを作成または更新する。更新時はdeletedをfalseに戻す。
	Upsert(ctx context.Context, comment *model.Comment) error

	// SetDeleted は指定IDのコメントの削除状態を一括で更新し、更新件数を返す。
	SetDeleted(ctx context.Context, ids []int64, deleted bool) (int64, error)
}

// UserRepository はコメント投稿者データの永続化インターフェース。
type UserRepository interface {
	// Upsert は投稿者を作成または表示名を更新する。
	Upsert(ctx context.Context, user *model.User) error
}

// StatsRepository はコメント評価の集計を行う読み取り専用インターフェース。
type StatsRepository interface {
	// ListUserStats は投稿者ごとの集計値をq.Orderの降順で取得する。
	// 同点の場合はユーザーIDの昇順。コメントの無い投稿者は含まない。
	ListUserStats(ctx context.Context, q model.UserQuery) ([]model.UserStats, error)

	// FindUserStats は指定した投稿者の集計値を取得する。見つからない場合はnilを返す。
	FindUserStats(ctx context.Context, id int64) (*model.UserStats, error)

	// ListSiteStats は都市ごとの集計値を取得する。URLは設定値のため空のまま返す。
	ListSiteStats(ctx context.Context) ([]model.SiteStats, error)
}

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Article, error)

	// Upsert は記事を作成する。既存の場合はタイトルとURLのみ更新し、
	// 新規作成された場合にtrueを返す。
	Upsert(ctx context.Context, article *model.Article) (bool, error)

	// ListScrapeCandidates はdiscoveredAfter以降に発見されたアクティブな記事のうち、
	// next_scrape_at <= now() のものを発見日時の降順で取得する。
	ListScrapeCandidates(ctx context.Context, discoveredAfter time.Time) ([]*model.Article, error)

	// UpdateScrapeState は記事のスクレイピング状態を更新する。
	// scrape_status、consecutive_errors、error_message、next_scrape_at、last_scraped_atを更新する。
	UpdateScrapeState(ctx context.Context, article *model.Article) error
}
