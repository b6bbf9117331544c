package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/commentman/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

const commentWithArticleColumns = `
		SELECT c.id, c.article_id, c.user_id, u.name, c.posted_at, c.text,
		       c.likes, c.dislikes, c.deleted, c.created_at, c.updated_at,
		       a.title, a.url, a.city
		FROM comments c
		INNER JOIN users u ON c.user_id = u.id
		INNER JOIN articles a ON c.article_id = a.id`

// FindByID は指定IDのコメントを記事情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id int64) (*model.CommentWithArticle, error) {
	row := r.db.QueryRowContext(ctx, commentWithArticleColumns+` WHERE c.id = $1`, id)

	c, err := scanCommentWithArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	return c, nil
}

// List は検索条件に一致するコメントを記事情報付きで取得する。
func (r *PostgresCommentRepo) List(ctx context.Context, q model.CommentQuery) ([]model.CommentWithArticle, error) {
	query, args := buildCommentListQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []model.CommentWithArticle
	for rows.Next() {
		c, err := scanCommentWithArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}

	return comments, nil
}

// controversyExpr はmodel.Controversyと同じ式で評価の割れ具合を計算する。
const controversyExpr = `(CASE WHEN c.likes = 0 OR c.dislikes = 0 THEN 0
		ELSE -((c.likes::float8 / (c.likes + c.dislikes)) * ln(c.likes::float8 / (c.likes + c.dislikes))
		     + (c.dislikes::float8 / (c.likes + c.dislikes)) * ln(c.dislikes::float8 / (c.likes + c.dislikes)))
		     / ln(2) * (c.likes + c.dislikes)
		END)`

// buildCommentListQuery はCommentQueryからSQLと引数を組み立てる。
func buildCommentListQuery(q model.CommentQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}
	argIndex := 1

	if q.SinceDays > 0 {
		conds = append(conds, fmt.Sprintf("c.posted_at >= now() - make_interval(days => $%d)", argIndex))
		args = append(args, q.SinceDays)
		argIndex++
	}
	if len(q.AuthorIDs) > 0 {
		conds = append(conds, fmt.Sprintf("c.user_id = ANY($%d)", argIndex))
		args = append(args, pq.Array(q.AuthorIDs))
		argIndex++
	}
	if q.City != "" {
		conds = append(conds, fmt.Sprintf("a.city = $%d", argIndex))
		args = append(args, q.City)
		argIndex++
	}
	if q.Liked {
		conds = append(conds, "c.likes > 0")
	}
	if q.Disliked {
		conds = append(conds, "c.dislikes > 0")
	}
	if q.OnlyDeleted {
		conds = append(conds, "c.deleted = true")
	}

	query := commentWithArticleColumns
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}

	switch q.Order {
	case model.OrderByLikes:
		query += " ORDER BY c.likes DESC, c.posted_at DESC"
	case model.OrderByDislikes:
		query += " ORDER BY c.dislikes DESC, c.posted_at DESC"
	case model.OrderByControversial:
		query += " ORDER BY " + controversyExpr + " DESC, c.posted_at DESC"
	default:
		query += " ORDER BY (c.likes + c.dislikes) DESC, c.posted_at DESC"
	}

	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, q.Limit, q.Offset)

	return query, args
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommentWithArticle(s rowScanner) (*model.CommentWithArticle, error) {
	c := &model.CommentWithArticle{}
	var text, title sql.NullString
	if err := s.Scan(
		&c.ID, &c.ArticleID, &c.UserID, &c.UserName, &c.Time, &text,
		&c.Likes, &c.Dislikes, &c.Deleted, &c.CreatedAt, &c.UpdatedAt,
		&title, &c.ArticleURL, &c.City,
	); err != nil {
		return nil, err
	}
	c.Text = nullStringValue(text)
	c.ArticleTitle = nullStringValue(title)
	return c, nil
}

// ListStatesByArticle は記事に紐づく保存済みコメントのIDと削除状態を返す。
func (r *PostgresCommentRepo) ListStatesByArticle(ctx context.Context, articleID int64) (map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, deleted FROM comments WHERE article_id = $1`,
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("記事のコメント状態の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]bool)
	for rows.Next() {
		var id int64
		var deleted bool
		if err := rows.Scan(&id, &deleted); err != nil {
			return nil, fmt.Errorf("コメント状態の読み取りに失敗しました: %w", err)
		}
		states[id] = deleted
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント状態の走査に失敗しました: %w", err)
	}
	return states, nil
}

// Upsert はコメントを作成または更新する。更新時はdeletedをfalseに戻す。
func (r *PostgresCommentRepo) Upsert(ctx context.Context, comment *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, article_id, user_id, posted_at, text, likes, dislikes, deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $8)
		 ON CONFLICT (id) DO UPDATE SET
		    text = EXCLUDED.text,
		    likes = EXCLUDED.likes,
		    dislikes = EXCLUDED.dislikes,
		    deleted = false,
		    updated_at = EXCLUDED.updated_at`,
		comment.ID, comment.ArticleID, comment.UserID, comment.Time,
		nullString(comment.Text), comment.Likes, comment.Dislikes, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コメントの保存に失敗しました: %w", err)
	}
	return nil
}

// SetDeleted は指定IDのコメントの削除状態を一括で更新し、更新件数を返す。
func (r *PostgresCommentRepo) SetDeleted(ctx context.Context, ids []int64, deleted bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET deleted = $2, updated_at = now()
		 WHERE id = ANY($1) AND deleted <> $2`,
		pq.Array(ids), deleted,
	)
	if err != nil {
		return 0, fmt.Errorf("コメントの削除状態の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
