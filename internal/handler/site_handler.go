package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/commentman/internal/middleware"
	"github.com/hitoshi/commentman/internal/model"
)

// siteResponse はスクレイピング対象サイトのレスポンス。
// 集計値はSiteStatsProviderが設定されている場合のみ含まれる。
type siteResponse struct {
	City          string `json:"city"`
	URL           string `json:"url"`
	CommentCount  *int64 `json:"comment_count,omitempty"`
	TotalLikes    *int64 `json:"total_likes,omitempty"`
	TotalDislikes *int64 `json:"total_dislikes,omitempty"`
	TotalScore    *int64 `json:"total_score,omitempty"`
}

// SiteStatsProvider はサイト別集計を返すサービスインターフェース。
type SiteStatsProvider interface {
	// ListSites は全サイトを集計値付きで返す。orderがnilの場合は設定順。
	ListSites(ctx context.Context, order *model.CommentOrder) ([]siteResponse, error)
}

// SiteHandler は設定済みサイト一覧を返すハンドラー。
type SiteHandler struct {
	sites []siteResponse
	stats SiteStatsProvider
}

// NewSiteHandler はSiteHandlerを生成する。
// statsがnilの場合は集計値を含まない静的な一覧を返す。
func NewSiteHandler(sites []model.Site, stats SiteStatsProvider) *SiteHandler {
	resp := make([]siteResponse, len(sites))
	for i, s := range sites {
		resp[i] = siteResponse{City: s.City, URL: s.URL}
	}
	return &SiteHandler{sites: resp, stats: stats}
}

// ListSites はcityフィルタに指定できるサイトの一覧を返す。
// GET /sites?order=likes
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites := h.sites
	if h.stats != nil {
		var err error
		sites, err = h.stats.ListSites(r.Context(), parseOrderParam(r.URL.Query()))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, struct {
		Sites []siteResponse `json:"sites"`
	}{Sites: sites})
}

// Pinger はヘルスチェックで疎通確認する依存先のインターフェース。
// *sql.DB がこれを満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthHandler はデータベースの疎通を確認するハンドラーを返す。
// GET /health
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type healthResponse struct {
	Status string `json:"status"`
}
