// Package archive は古い記事をスクレイピング対象から外すアーカイブジョブを提供する。
// 発見から一定日数が経過した記事のscrape_statusをarchivedに更新する。
// コメントは削除せず、APIから引き続き参照できる。
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/commentman/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Job は発見から一定日数が経過した記事をアーカイブするジョブ。
// 何度実行しても結果が変わらない。
type Job struct {
	db        Executor
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	AfterDays int // アーカイブまでの日数（デフォルト: 30）
}

// NewJob は新しいJobを生成する。afterDaysが0以下の場合は30日を使用する。
func NewJob(db Executor, collector metrics.MetricsCollector, logger *slog.Logger, afterDays int) *Job {
	if afterDays <= 0 {
		afterDays = 30
	}
	return &Job{
		db:        db,
		metrics:   collector,
		logger:    logger,
		AfterDays: afterDays,
	}
}

// Run はdiscovered_atがAfterDays日前より古い記事をアーカイブする。
// 既にアーカイブ済みの記事は更新しない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.AfterDays)

	query := `UPDATE articles SET scrape_status = 'archived', updated_at = now()
	          WHERE scrape_status <> 'archived' AND discovered_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("記事アーカイブジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("after_days", j.AfterDays),
		)
		return fmt.Errorf("記事アーカイブの実行に失敗: %w", err)
	}

	archivedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("アーカイブ件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("アーカイブ件数の取得に失敗: %w", err)
	}

	j.metrics.RecordArticlesArchived(int(archivedCount))

	j.logger.Info("記事アーカイブジョブが完了しました",
		slog.Int64("archived_count", archivedCount),
		slog.Int("after_days", j.AfterDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後と以降interval毎にRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("アーカイブジョブが失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("アーカイブジョブが失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
