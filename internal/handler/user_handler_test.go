package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/commentman/internal/model"
)

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	listUsersFn func(ctx context.Context, p model.Pagination, f model.UserFilters) (*userListResponse, error)
	getUserFn   func(ctx context.Context, id int64) (*userResponse, error)
}

func (m *mockUserService) ListUsers(ctx context.Context, p model.Pagination, f model.UserFilters) (*userListResponse, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, p, f)
	}
	return &userListResponse{Users: []userResponse{}, Page: p.Page, ItemsPerPage: p.ItemsPerPage}, nil
}

func (m *mockUserService) GetUser(ctx context.Context, id int64) (*userResponse, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError(id)
}

var _ UserServiceInterface = (*mockUserService)(nil)

// serveUsers はchiルーター経由でUserHandlerを呼ぶ。
func serveUsers(users UserServiceInterface, comments CommentServiceInterface, path string) *http.Response {
	h := NewUserHandler(users, comments, 20)
	r := chi.NewRouter()
	r.Get("/users", h.ListUsers)
	r.Get("/users/{id}", h.GetUser)
	r.Get("/users/{id}/comments", h.ListUserComments)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Result()
}

func TestUserHandler_ListUsers_ParsesParams(t *testing.T) {
	var gotP model.Pagination
	var gotF model.UserFilters
	svc := &mockUserService{
		listUsersFn: func(_ context.Context, p model.Pagination, f model.UserFilters) (*userListResponse, error) {
			gotP, gotF = p, f
			return &userListResponse{
				Users:   []userResponse{toUserResponse(model.UserStats{ID: 42, Name: "Gord", CommentCount: 3, TotalLikes: 7, TotalDislikes: 1})},
				Page:    p.Page,
				HasMore: true,
				Next:    "page=3&itemsPerPage=5&city=ssm&order=likes",
			}, nil
		},
	}

	resp := serveUsers(svc, &mockCommentService{}, "/users?page=2&itemsPerPage=5&city=ssm&order=likes")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotP.Page != 2 || gotP.ItemsPerPage != 5 {
		t.Errorf("pagination = %+v", gotP)
	}
	if gotF.City == nil || *gotF.City != "ssm" || gotF.Order == nil || *gotF.Order != model.OrderByLikes {
		t.Errorf("filters = %+v", gotF)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	first := raw["users"].([]interface{})[0].(map[string]interface{})
	if first["name"] != "Gord" || first["total_score"] != float64(8) {
		t.Errorf("users[0] = %v", first)
	}
	if raw["next"] != "page=3&itemsPerPage=5&city=ssm&order=likes" {
		t.Errorf("next = %v", raw["next"])
	}
}

func TestUserHandler_ListUsers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"page not a number", "/users?page=x", nil, http.StatusBadRequest, model.ErrCodeInvalidPagination},
		{"order rejected by service", "/users?order=controversial", model.NewInvalidFilterError("order=controversial"), http.StatusBadRequest, model.ErrCodeInvalidFilter},
		{"unknown city", "/users?city=toronto", model.NewUnknownCityError("toronto"), http.StatusBadRequest, model.ErrCodeUnknownCity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				listUsersFn: func(context.Context, model.Pagination, model.UserFilters) (*userListResponse, error) {
					if tt.svcErr == nil {
						t.Fatal("service should not be called for invalid params")
					}
					return nil, tt.svcErr
				},
			}
			resp := serveUsers(svc, &mockCommentService{}, tt.path)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body := decodeError(t, resp); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestUserHandler_GetUser(t *testing.T) {
	svc := &mockUserService{
		getUserFn: func(_ context.Context, id int64) (*userResponse, error) {
			if id != 42 {
				return nil, model.NewUserNotFoundError(id)
			}
			resp := toUserResponse(model.UserStats{ID: 42, Name: "Gord", TotalLikes: 7})
			return &resp, nil
		},
	}

	resp := serveUsers(svc, &mockCommentService{}, "/users/42")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got.ID != 42 || got.TotalScore != 7 {
		t.Errorf("user = %+v", got)
	}

	for _, path := range []string{"/users/43", "/users/abc", "/users/0"} {
		resp := serveUsers(svc, &mockCommentService{}, path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, http.StatusNotFound)
			continue
		}
		if body := decodeError(t, resp); body.Code != model.ErrCodeUserNotFound {
			t.Errorf("%s: code = %q, want %q", path, body.Code, model.ErrCodeUserNotFound)
		}
	}
}

// 投稿者別コメント一覧ではauthorがパスのIDで置き換わり、他のフィルタは引き継がれること
func TestUserHandler_ListUserComments_OverridesAuthor(t *testing.T) {
	users := &mockUserService{
		getUserFn: func(_ context.Context, id int64) (*userResponse, error) {
			return &userResponse{ID: id}, nil
		},
	}
	var gotF model.Filters
	comments := &mockCommentService{
		listCommentsFn: func(_ context.Context, p model.Pagination, f model.Filters) (*commentListResponse, error) {
			gotF = f
			return &commentListResponse{Comments: []commentResponse{{ID: 1, UserID: 42}}, Page: p.Page}, nil
		},
	}

	resp := serveUsers(users, comments, "/users/42/comments?author=1,2&liked=true&order=likes")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotF.Author == nil || *gotF.Author != "42" {
		t.Errorf("author = %v, want 42", gotF.Author)
	}
	if gotF.Liked == nil || !*gotF.Liked || gotF.Order == nil || *gotF.Order != model.OrderByLikes {
		t.Errorf("filters = %+v", gotF)
	}
}

func TestUserHandler_ListUserComments_UnknownUser(t *testing.T) {
	comments := &mockCommentService{
		listCommentsFn: func(context.Context, model.Pagination, model.Filters) (*commentListResponse, error) {
			t.Fatal("comments should not be listed for an unknown user")
			return nil, nil
		},
	}

	resp := serveUsers(&mockUserService{}, comments, "/users/99/comments")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if body := decodeError(t, resp); body.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUserNotFound)
	}
}
