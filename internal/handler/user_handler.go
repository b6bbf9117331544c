package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/commentman/internal/model"
)

// UserServiceInterface は投稿者ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// ListUsers は投稿者ごとの集計値をランキング形式で返す。
	ListUsers(ctx context.Context, p model.Pagination, f model.UserFilters) (*userListResponse, error)
	// GetUser は投稿者1人の集計値を返す。存在しない場合はUSER_NOT_FOUNDを返す。
	GetUser(ctx context.Context, id int64) (*userResponse, error)
}

// UserHandler は投稿者ランキングと投稿者別コメントのHTTPハンドラー。
type UserHandler struct {
	service             UserServiceInterface
	comments            CommentServiceInterface
	defaultItemsPerPage int
}

// NewUserHandler はUserHandlerを生成する。
// commentsは/users/{id}/commentsの取得に使う。
func NewUserHandler(service UserServiceInterface, comments CommentServiceInterface, defaultItemsPerPage int) *UserHandler {
	if defaultItemsPerPage <= 0 {
		defaultItemsPerPage = 20
	}
	return &UserHandler{
		service:             service,
		comments:            comments,
		defaultItemsPerPage: defaultItemsPerPage,
	}
}

// userResponse は投稿者1人の集計レスポンス。
type userResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CommentCount  int64  `json:"comment_count"`
	TotalLikes    int64  `json:"total_likes"`
	TotalDislikes int64  `json:"total_dislikes"`
	TotalScore    int64  `json:"total_score"`
}

// userListResponse は投稿者ランキングのレスポンス。
type userListResponse struct {
	Users        []userResponse `json:"users"`
	Page         int            `json:"page"`
	ItemsPerPage int            `json:"items_per_page"`
	HasMore      bool           `json:"has_more"`
	Next         string         `json:"next,omitempty"`
}

// ListUsers は投稿者ランキングを取得する。
// GET /users?page=1&itemsPerPage=20&city=ssm&order=likes
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, apiErr := parsePagination(q, h.defaultItemsPerPage)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var f model.UserFilters
	if v := q.Get("city"); v != "" {
		f.City = &v
	}
	f.Order = parseOrderParam(q)

	result, err := h.service.ListUsers(r.Context(), p, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, result)
}

// GetUser は投稿者1人の集計値を取得する。
// GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, u)
}

// ListUserComments は投稿者1人のコメント一覧を取得する。
// /commentsと同じパラメータを受け付けるが、authorはパスのIDで置き換える。
// GET /users/{id}/comments
func (h *UserHandler) ListUserComments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}

	p, f, apiErr := parseListParams(r.URL.Query(), h.defaultItemsPerPage)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	author := strconv.FormatInt(id, 10)
	f.Author = &author

	if _, err := h.service.GetUser(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.comments.ListComments(r.Context(), p, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, result)
}

func parseUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return id, false
	}
	return id, true
}

// parsePagination はpageとitemsPerPageを読み取る。
func parsePagination(q url.Values, defaultItemsPerPage int) (model.Pagination, *model.APIError) {
	p := model.Pagination{Page: 1, ItemsPerPage: defaultItemsPerPage}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, model.NewInvalidPaginationError(fmt.Sprintf("page=%s", v))
		}
		p.Page = n
	}
	if v := q.Get("itemsPerPage"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, model.NewInvalidPaginationError(fmt.Sprintf("itemsPerPage=%s", v))
		}
		p.ItemsPerPage = n
	}
	return p, nil
}
