package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "Commentman/1.0 Comment Scraper"

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// StatusError はスクレイピング先が200以外のステータスを返したことを表す。
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPステータス %d: %s", e.StatusCode, e.URL)
}

// ParseError はレスポンスをHTMLやフィードとして解釈できなかったことを表す。
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("パース失敗 (%s): %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// fetchBody はGETリクエストを送信し、200の場合にボディを返す。
// それ以外のステータスは*StatusErrorとして返す。
func fetchBody(ctx context.Context, client *http.Client, rawURL, accept string, maxBodySize int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return body, nil
}

// siteOrigin はURLのスキームとホストのみを返す。
func siteOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("絶対URLではありません: %s", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
