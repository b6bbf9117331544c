package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/commentman/internal/model"
)

// PostgresStatsRepo はPostgreSQLを使用したコメント評価の集計リポジトリ。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

const userStatsColumns = `
		SELECT u.id, u.name, COUNT(c.id),
		       COALESCE(SUM(c.likes), 0), COALESCE(SUM(c.dislikes), 0)
		FROM users u`

// ListUserStats は投稿者ごとの集計値をq.Orderの降順で取得する。
func (r *PostgresStatsRepo) ListUserStats(ctx context.Context, q model.UserQuery) ([]model.UserStats, error) {
	query, args := buildUserStatsQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿者ランキングの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []model.UserStats
	for rows.Next() {
		var u model.UserStats
		if err := rows.Scan(&u.ID, &u.Name, &u.CommentCount, &u.TotalLikes, &u.TotalDislikes); err != nil {
			return nil, fmt.Errorf("投稿者集計行の読み取りに失敗しました: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿者ランキングの走査に失敗しました: %w", err)
	}
	return users, nil
}

// buildUserStatsQuery はUserQueryからSQLと引数を組み立てる。
func buildUserStatsQuery(q model.UserQuery) (string, []interface{}) {
	var args []interface{}
	argIndex := 1

	query := userStatsColumns + `
		INNER JOIN comments c ON c.user_id = u.id`
	if q.City != "" {
		query += fmt.Sprintf(`
		INNER JOIN articles a ON c.article_id = a.id
		WHERE a.city = $%d`, argIndex)
		args = append(args, q.City)
		argIndex++
	}
	query += `
		GROUP BY u.id, u.name`

	switch q.Order {
	case model.OrderByLikes:
		query += " ORDER BY SUM(c.likes) DESC, u.id ASC"
	case model.OrderByDislikes:
		query += " ORDER BY SUM(c.dislikes) DESC, u.id ASC"
	default:
		query += " ORDER BY SUM(c.likes + c.dislikes) DESC, u.id ASC"
	}

	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, q.Limit, q.Offset)

	return query, args
}

// FindUserStats は指定した投稿者の集計値を取得する。
// コメントが全て削除済みでも投稿者が保存されていれば返す。
func (r *PostgresStatsRepo) FindUserStats(ctx context.Context, id int64) (*model.UserStats, error) {
	row := r.db.QueryRowContext(ctx, userStatsColumns+`
		LEFT JOIN comments c ON c.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id, u.name`,
		id,
	)

	var u model.UserStats
	err := row.Scan(&u.ID, &u.Name, &u.CommentCount, &u.TotalLikes, &u.TotalDislikes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿者集計の取得に失敗しました: %w", err)
	}
	return &u, nil
}

// ListSiteStats は都市ごとの集計値を取得する。
func (r *PostgresStatsRepo) ListSiteStats(ctx context.Context) ([]model.SiteStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.city, COUNT(c.id), COALESCE(SUM(c.likes), 0), COALESCE(SUM(c.dislikes), 0)
		 FROM comments c
		 INNER JOIN articles a ON c.article_id = a.id
		 GROUP BY a.city
		 ORDER BY a.city`,
	)
	if err != nil {
		return nil, fmt.Errorf("サイト集計の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sites []model.SiteStats
	for rows.Next() {
		var s model.SiteStats
		if err := rows.Scan(&s.City, &s.CommentCount, &s.TotalLikes, &s.TotalDislikes); err != nil {
			return nil, fmt.Errorf("サイト集計行の読み取りに失敗しました: %w", err)
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サイト集計の走査に失敗しました: %w", err)
	}
	return sites, nil
}

// compile-time interface check
var _ StatsRepository = (*PostgresStatsRepo)(nil)
