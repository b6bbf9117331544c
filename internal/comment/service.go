// Package comment はコメントの検索と保存の機能を提供する。
package comment

import (
	"context"
	"strings"

	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/repository"
)

// CommentService はコメント一覧の取得・フィルタリングのサービス。
type CommentService struct {
	commentRepo repository.CommentRepository
	cities      map[string]bool
	maxPerPage  int
}

// NewCommentService はCommentServiceの新しいインスタンスを生成する。
// citiesはcityフィルタに指定できる都市コード、maxPerPageはitemsPerPageの上限。
func NewCommentService(
	commentRepo repository.CommentRepository,
	sites []model.Site,
	maxPerPage int,
) *CommentService {
	cities := make(map[string]bool, len(sites))
	for _, s := range sites {
		cities[s.City] = true
	}
	return &CommentService{
		commentRepo: commentRepo,
		cities:      cities,
		maxPerPage:  maxPerPage,
	}
}

// ListResult はListCommentsの戻り値。
type ListResult struct {
	Comments   []model.CommentWithArticle
	Pagination model.Pagination
	HasMore    bool
	// Next は次ページを取得するためのクエリ文字列。HasMoreがfalseの場合は空。
	Next string
}

// ListComments はフィルタとページ指定に一致するコメント一覧を返す。
// limit+1件を取得してHasMoreを判定する。
func (s *CommentService) ListComments(ctx context.Context, p model.Pagination, f model.Filters) (*ListResult, error) {
	if err := p.Validate(s.maxPerPage); err != nil {
		return nil, err
	}
	q, err := s.toQuery(f)
	if err != nil {
		return nil, err
	}
	q.Limit = p.ItemsPerPage + 1
	q.Offset = p.Offset()

	comments, err := s.commentRepo.List(ctx, q)
	if err != nil {
		return nil, err
	}

	hasMore := len(comments) > p.ItemsPerPage
	if hasMore {
		comments = comments[:p.ItemsPerPage]
	}

	result := &ListResult{
		Comments:   comments,
		Pagination: p,
		HasMore:    hasMore,
	}
	if hasMore {
		next := model.Pagination{Page: p.Page + 1, ItemsPerPage: p.ItemsPerPage}
		result.Next = model.NewCommentsQuery(next, f).Encode()
	}
	return result, nil
}

// toQuery はFiltersを検証し、リポジトリ用の検索条件に変換する。
func (s *CommentService) toQuery(f model.Filters) (model.CommentQuery, error) {
	if err := f.Validate(); err != nil {
		return model.CommentQuery{}, err
	}

	var q model.CommentQuery
	if f.Since != nil {
		q.SinceDays = *f.Since
	}
	if f.Author != nil {
		// Validate済みのためエラーにはならない
		q.AuthorIDs, _ = model.ParseAuthorIDs(*f.Author)
	}
	if f.Liked != nil {
		q.Liked = *f.Liked
	}
	if f.Disliked != nil {
		q.Disliked = *f.Disliked
	}
	if f.OnlyDeleted != nil {
		q.OnlyDeleted = *f.OnlyDeleted
	}
	if f.City != nil && *f.City != "" {
		city := strings.ToLower(*f.City)
		if !s.cities[city] {
			return model.CommentQuery{}, model.NewUnknownCityError(*f.City)
		}
		q.City = city
	}
	if f.Order != nil {
		q.Order = *f.Order
	} else {
		q.Order = model.OrderFor(q.Liked, q.Disliked)
	}
	return q, nil
}

// GetComment はIDを指定してコメントを1件返す。
func (s *CommentService) GetComment(ctx context.Context, id int64) (*model.CommentWithArticle, error) {
	c, err := s.commentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError(id)
	}
	return c, nil
}
