package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/commentman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したコメント投稿者リポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Upsert は投稿者を作成または表示名を更新する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		 WHERE users.name <> EXCLUDED.name`,
		user.ID, user.Name, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿者の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
