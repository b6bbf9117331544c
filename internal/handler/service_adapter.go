package handler

import (
	"context"

	"github.com/hitoshi/commentman/internal/comment"
	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/stats"
)

// CommentServiceAdapter は comment.CommentService を CommentServiceInterface に適合させるアダプタ。
type CommentServiceAdapter struct {
	svc *comment.CommentService
}

// NewCommentServiceAdapter はCommentServiceAdapterを生成する。
func NewCommentServiceAdapter(svc *comment.CommentService) *CommentServiceAdapter {
	return &CommentServiceAdapter{svc: svc}
}

// ListComments はコメント一覧をhandlerレスポンス型で返す。
func (a *CommentServiceAdapter) ListComments(ctx context.Context, p model.Pagination, f model.Filters) (*commentListResponse, error) {
	result, err := a.svc.ListComments(ctx, p, f)
	if err != nil {
		return nil, err
	}

	comments := make([]commentResponse, len(result.Comments))
	for i, c := range result.Comments {
		comments[i] = toCommentResponse(c)
	}

	return &commentListResponse{
		Comments:     comments,
		Page:         result.Pagination.Page,
		ItemsPerPage: result.Pagination.ItemsPerPage,
		HasMore:      result.HasMore,
		Next:         result.Next,
	}, nil
}

// GetComment はコメント1件をhandlerレスポンス型で返す。
func (a *CommentServiceAdapter) GetComment(ctx context.Context, id int64) (*commentResponse, error) {
	c, err := a.svc.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toCommentResponse(*c)
	return &resp, nil
}

// toCommentResponse はドメインのCommentWithArticleをhandlerのレスポンス型に変換する。
func toCommentResponse(c model.CommentWithArticle) commentResponse {
	return commentResponse{
		ID:           c.ID,
		ArticleID:    c.ArticleID,
		UserID:       c.UserID,
		UserName:     c.UserName,
		Time:         c.Time,
		Text:         c.Text,
		Likes:        c.Likes,
		Dislikes:     c.Dislikes,
		Deleted:      c.Deleted,
		ArticleTitle: c.ArticleTitle,
		ArticleURL:   c.ArticleURL,
		City:         c.City,
	}
}

// StatsServiceAdapter は stats.StatsService を UserServiceInterface と SiteStatsProvider に適合させるアダプタ。
type StatsServiceAdapter struct {
	svc *stats.StatsService
}

// NewStatsServiceAdapter はStatsServiceAdapterを生成する。
func NewStatsServiceAdapter(svc *stats.StatsService) *StatsServiceAdapter {
	return &StatsServiceAdapter{svc: svc}
}

// ListUsers は投稿者ランキングをhandlerレスポンス型で返す。
func (a *StatsServiceAdapter) ListUsers(ctx context.Context, p model.Pagination, f model.UserFilters) (*userListResponse, error) {
	result, err := a.svc.ListUsers(ctx, p, f)
	if err != nil {
		return nil, err
	}

	users := make([]userResponse, len(result.Users))
	for i, u := range result.Users {
		users[i] = toUserResponse(u)
	}

	return &userListResponse{
		Users:        users,
		Page:         result.Pagination.Page,
		ItemsPerPage: result.Pagination.ItemsPerPage,
		HasMore:      result.HasMore,
		Next:         result.Next,
	}, nil
}

// GetUser は投稿者1人の集計値をhandlerレスポンス型で返す。
func (a *StatsServiceAdapter) GetUser(ctx context.Context, id int64) (*userResponse, error) {
	u, err := a.svc.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(*u)
	return &resp, nil
}

// ListSites はサイト別集計をhandlerレスポンス型で返す。
func (a *StatsServiceAdapter) ListSites(ctx context.Context, order *model.CommentOrder) ([]siteResponse, error) {
	sites, err := a.svc.ListSites(ctx, order)
	if err != nil {
		return nil, err
	}
	resp := make([]siteResponse, len(sites))
	for i, s := range sites {
		resp[i] = toSiteResponse(s)
	}
	return resp, nil
}

func toUserResponse(u model.UserStats) userResponse {
	return userResponse{
		ID:            u.ID,
		Name:          u.Name,
		CommentCount:  u.CommentCount,
		TotalLikes:    u.TotalLikes,
		TotalDislikes: u.TotalDislikes,
		TotalScore:    u.TotalScore(),
	}
}

func toSiteResponse(s model.SiteStats) siteResponse {
	count, likes, dislikes, score := s.CommentCount, s.TotalLikes, s.TotalDislikes, s.TotalScore()
	return siteResponse{
		City:          s.City,
		URL:           s.URL,
		CommentCount:  &count,
		TotalLikes:    &likes,
		TotalDislikes: &dislikes,
		TotalScore:    &score,
	}
}

// --- compile-time interface checks ---

var (
	_ CommentServiceInterface = (*CommentServiceAdapter)(nil)
	_ UserServiceInterface    = (*StatsServiceAdapter)(nil)
	_ SiteStatsProvider       = (*StatsServiceAdapter)(nil)
)
