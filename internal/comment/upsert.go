package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/repository"
	"github.com/hitoshi/commentman/internal/security"
)

// UpsertResult はUpsertArticleCommentsの処理件数。
type UpsertResult struct {
	Upserted int // 保存したコメント数
	Deleted  int // 今回のスクレイピングで削除済みと判定したコメント数
	Restored int // 削除済みから復活したコメント数
}

// CommentUpsertService はスクレイピング結果のコメントを保存し、削除を検出する。
type CommentUpsertService struct {
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	sanitizer   security.TextSanitizerService
	logger      *slog.Logger
}

// NewCommentUpsertService はCommentUpsertServiceの新しいインスタンスを生成する。
func NewCommentUpsertService(
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	sanitizer security.TextSanitizerService,
	logger *slog.Logger,
) *CommentUpsertService {
	return &CommentUpsertService{
		commentRepo: commentRepo,
		userRepo:    userRepo,
		sanitizer:   sanitizer,
		logger:      logger,
	}
}

// UpsertArticleComments は記事の全コメントを保存する。
//
// 保存済みで今回のスクレイピング結果に含まれないコメントは削除済みとしてマークし、
// 削除済みのコメントが再度現れた場合は削除フラグを戻す。
// 結果が空の場合やページ上限で打ち切られた場合は削除判定を行わない。
func (s *CommentUpsertService) UpsertArticleComments(
	ctx context.Context,
	articleID int64,
	scraped model.ScrapedComments,
) (UpsertResult, error) {
	var result UpsertResult
	parsed := scraped.Comments
	if len(parsed) == 0 {
		return result, nil
	}

	states, err := s.commentRepo.ListStatesByArticle(ctx, articleID)
	if err != nil {
		return result, fmt.Errorf("保存済みコメントの取得に失敗: %w", err)
	}

	now := time.Now()
	seen := make(map[int64]bool, len(parsed))
	users := make(map[int64]bool)

	for _, p := range parsed {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if !users[p.UserID] {
			if err := s.userRepo.Upsert(ctx, &model.User{ID: p.UserID, Name: p.UserName, UpdatedAt: now}); err != nil {
				return result, fmt.Errorf("投稿者の保存に失敗 (user_id=%d): %w", p.UserID, err)
			}
			users[p.UserID] = true
		}

		c := &model.Comment{
			ID:        p.ID,
			ArticleID: articleID,
			UserID:    p.UserID,
			UserName:  p.UserName,
			Time:      p.Time,
			Text:      s.sanitizer.Sanitize(p.Text),
			Likes:     p.Likes,
			Dislikes:  p.Dislikes,
			UpdatedAt: now,
		}
		if err := s.commentRepo.Upsert(ctx, c); err != nil {
			return result, fmt.Errorf("コメントの保存に失敗 (comment_id=%d): %w", p.ID, err)
		}
		result.Upserted++

		if deleted, ok := states[p.ID]; ok && deleted {
			result.Restored++
		}
	}

	var missing []int64
	if scraped.Complete {
		for id, deleted := range states {
			if !deleted && !seen[id] {
				missing = append(missing, id)
			}
		}
	} else {
		s.logger.Debug("取得が不完全なため削除判定をスキップします",
			slog.Int64("article_id", articleID),
			slog.Int("fetched", len(parsed)),
		)
	}
	if len(missing) > 0 {
		n, err := s.commentRepo.SetDeleted(ctx, missing, true)
		if err != nil {
			return result, fmt.Errorf("削除済みコメントのマークに失敗: %w", err)
		}
		result.Deleted = int(n)
	}

	s.logger.Info("コメントUPSERT完了",
		slog.Int64("article_id", articleID),
		slog.Int("upserted", result.Upserted),
		slog.Int("deleted", result.Deleted),
		slog.Int("restored", result.Restored),
		slog.Bool("complete", scraped.Complete),
	)

	return result, nil
}
