package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/commentman/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	// ListComments はページ指定とフィルタに一致するコメント一覧を返す。
	ListComments(ctx context.Context, p model.Pagination, f model.Filters) (*commentListResponse, error)
	// GetComment はコメントを1件返す。存在しない場合はCOMMENT_NOT_FOUNDを返す。
	GetComment(ctx context.Context, id int64) (*commentResponse, error)
}

// CommentHandler はコメント参照のHTTPハンドラー。
type CommentHandler struct {
	service             CommentServiceInterface
	defaultItemsPerPage int
}

// NewCommentHandler はCommentHandlerを生成する。
// defaultItemsPerPageはitemsPerPage未指定時の件数。
func NewCommentHandler(service CommentServiceInterface, defaultItemsPerPage int) *CommentHandler {
	if defaultItemsPerPage <= 0 {
		defaultItemsPerPage = 20
	}
	return &CommentHandler{
		service:             service,
		defaultItemsPerPage: defaultItemsPerPage,
	}
}

// --- レスポンス型 ---

// commentResponse はコメント1件のレスポンス。
type commentResponse struct {
	ID           int64     `json:"id"`
	ArticleID    int64     `json:"article_id"`
	UserID       int64     `json:"user_id"`
	UserName     string    `json:"user_name"`
	Time         time.Time `json:"time"`
	Text         string    `json:"text"`
	Likes        int32     `json:"likes"`
	Dislikes     int32     `json:"dislikes"`
	Deleted      bool      `json:"deleted"`
	ArticleTitle string    `json:"article_title"`
	ArticleURL   string    `json:"article_url"`
	City         string    `json:"city"`
}

// commentListResponse はコメント一覧のレスポンス。
type commentListResponse struct {
	Comments     []commentResponse `json:"comments"`
	Page         int               `json:"page"`
	ItemsPerPage int               `json:"items_per_page"`
	HasMore      bool              `json:"has_more"`
	Next         string            `json:"next,omitempty"`
}

// ListComments はコメント一覧を取得する。
// GET /comments?page=1&itemsPerPage=20&since=7&author=1,2&liked=true&disliked=true&onlyDeleted=true&city=ssm&order=likes
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	p, f, apiErr := parseListParams(r.URL.Query(), h.defaultItemsPerPage)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.ListComments(r.Context(), p, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, result)
}

// GetComment はコメント1件を取得する。
// GET /comments/{id}
func (h *CommentHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewCommentNotFoundError(id))
		return
	}

	c, err := h.service.GetComment(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, c)
}

// parseListParams はクエリパラメータからページ指定とフィルタを読み取る。
// 値が空のパラメータは未指定として扱う。空セグメント（a=1&&b=2）はurl.ParseQueryが読み飛ばす。
// 値の範囲チェック（since の許可値、itemsPerPage の上限など）はサービス層で行う。
func parseListParams(q url.Values, defaultItemsPerPage int) (model.Pagination, model.Filters, *model.APIError) {
	var f model.Filters
	p, apiErr := parsePagination(q, defaultItemsPerPage)
	if apiErr != nil {
		return p, f, apiErr
	}

	if v := q.Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, f, model.NewInvalidFilterError(fmt.Sprintf("since=%s", v))
		}
		f.Since = &n
	}
	if v := q.Get("author"); v != "" {
		f.Author = &v
	}

	if f.Liked, apiErr = parseBoolParam(q, "liked"); apiErr != nil {
		return p, f, apiErr
	}
	if f.Disliked, apiErr = parseBoolParam(q, "disliked"); apiErr != nil {
		return p, f, apiErr
	}
	if f.OnlyDeleted, apiErr = parseBoolParam(q, "onlyDeleted"); apiErr != nil {
		return p, f, apiErr
	}

	if v := q.Get("city"); v != "" {
		f.City = &v
	}
	f.Order = parseOrderParam(q)

	return p, f, nil
}

// parseOrderParam はorderパラメータを読み取る。許可値の検証はサービス層で行う。
func parseOrderParam(q url.Values) *model.CommentOrder {
	v := q.Get("order")
	if v == "" {
		return nil
	}
	o := model.CommentOrder(v)
	return &o
}

// parseBoolParam は真偽値パラメータを読み取る。未指定の場合はnilを返す。
func parseBoolParam(q url.Values, key string) (*bool, *model.APIError) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, model.NewInvalidFilterError(fmt.Sprintf("%s=%s", key, v))
	}
	return &b, nil
}
