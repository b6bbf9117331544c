// Package client はコメントAPIのHTTPクライアントを提供する。
// コメント一覧の取得条件をクエリ文字列に変換してAPIを呼び出す。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/commentman/internal/model"
)

// maxResponseSize はレスポンスボディの最大読み取りサイズ（4MB）。
const maxResponseSize = 4 << 20

// Comment はAPIが返すコメントを表す。
type Comment struct {
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

// CommentPage はコメント一覧APIの1ページ分のレスポンスを表す。
type CommentPage struct {
	Comments     []Comment `json:"comments"`
	Page         int       `json:"page"`
	ItemsPerPage int       `json:"items_per_page"`
	HasMore      bool      `json:"has_more"`
	Next         string    `json:"next,omitempty"` // 次ページのクエリ文字列
}

// Site はAPIが返すスクレイピング対象サイトを表す。
// 集計値はサーバーが集計を有効にしている場合のみ設定される。
type Site struct {
	City          string `json:"city"`
	URL           string `json:"url"`
	CommentCount  *int64 `json:"comment_count,omitempty"`
	TotalLikes    *int64 `json:"total_likes,omitempty"`
	TotalDislikes *int64 `json:"total_dislikes,omitempty"`
	TotalScore    *int64 `json:"total_score,omitempty"`
}

// User はAPIが返す投稿者ごとの集計値を表す。
type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CommentCount  int64  `json:"comment_count"`
	TotalLikes    int64  `json:"total_likes"`
	TotalDislikes int64  `json:"total_dislikes"`
	TotalScore    int64  `json:"total_score"`
}

// UserPage は投稿者ランキングAPIの1ページ分のレスポンスを表す。
type UserPage struct {
	Users        []User `json:"users"`
	Page         int    `json:"page"`
	ItemsPerPage int    `json:"items_per_page"`
	HasMore      bool   `json:"has_more"`
	Next         string `json:"next,omitempty"`
}

// Client はコメントAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはスキームとホストを含むAPIのルート（例: http://localhost:8080）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ListComments はページ指定とフィルタに一致するコメント一覧を取得する。
func (c *Client) ListComments(ctx context.Context, p model.Pagination, f model.Filters) (*CommentPage, error) {
	var page CommentPage
	if err := c.get(ctx, CommentsPath(p, f), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetComment はIDを指定してコメントを1件取得する。
func (c *Client) GetComment(ctx context.Context, id int64) (*Comment, error) {
	var comment Comment
	if err := c.get(ctx, commentsPath+"/"+strconv.FormatInt(id, 10), &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListSites はスクレイピング対象サイトの一覧を取得する。
// orderを指定すると集計値の降順で返される。
func (c *Client) ListSites(ctx context.Context, order *model.CommentOrder) ([]Site, error) {
	var resp struct {
		Sites []Site `json:"sites"`
	}
	if err := c.get(ctx, SitesPath(order), &resp); err != nil {
		return nil, err
	}
	return resp.Sites, nil
}

// ListUsers は投稿者ランキングを取得する。
func (c *Client) ListUsers(ctx context.Context, p model.Pagination, f model.UserFilters) (*UserPage, error) {
	var page UserPage
	if err := c.get(ctx, UsersPath(p, f), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUser は投稿者1人の集計値を取得する。
func (c *Client) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := c.get(ctx, userPath(id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUserComments は投稿者1人のコメント一覧を取得する。fのAuthorは無視される。
func (c *Client) ListUserComments(ctx context.Context, id int64, p model.Pagination, f model.Filters) (*CommentPage, error) {
	f.Author = nil
	var page CommentPage
	if err := c.get(ctx, userPath(id)+"/comments?"+model.NewCommentsQuery(p, f).Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// get はpathにGETリクエストを送り、200応答のJSONをoutにデコードする。
// 200以外の応答は統一エラーフォーマットをデコードした*model.APIErrorとして返す。
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Commentman/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("コメントAPIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("コメントAPIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		var apiErr model.APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
			return &StatusError{StatusCode: resp.StatusCode, APIError: &apiErr}
		}
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// StatusError はAPIが200以外を返した場合のエラー。
// 統一エラーフォーマットのボディが得られた場合はAPIErrorに保持する。
type StatusError struct {
	StatusCode int
	APIError   *model.APIError
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	if e.APIError != nil {
		return fmt.Sprintf("コメントAPIがステータス %d を返しました: %s", e.StatusCode, e.APIError.Error())
	}
	return fmt.Sprintf("コメントAPIがステータス %d を返しました", e.StatusCode)
}

// Unwrap はerrors.Asで*model.APIErrorを取り出せるようにする。
func (e *StatusError) Unwrap() error {
	if e.APIError == nil {
		return nil
	}
	return e.APIError
}

// IsNotFound はエラーが404応答によるものかを判定する。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
