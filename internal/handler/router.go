package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/commentman/internal/metrics"
	"github.com/hitoshi/commentman/internal/middleware"
	"github.com/hitoshi/commentman/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// RequestRecorder がnilの場合はAPIメトリクスを記録しない。
	RequestRecorder metrics.RequestRecorder
	// Gatherer がnilの場合は/metricsを公開しない。
	Gatherer prometheus.Gatherer

	// コメント
	CommentService      CommentServiceInterface
	DefaultItemsPerPage int

	// UserService がnilの場合は/usersを公開しない。
	UserService UserServiceInterface

	// サイト・ヘルスチェック
	Sites []model.Site
	// SiteStats がnilの場合、/sitesは集計値を含まない。
	SiteStats SiteStatsProvider
	DB        Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.RequestRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.RequestRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	commentHandler := NewCommentHandler(deps.CommentService, deps.DefaultItemsPerPage)
	siteHandler := NewSiteHandler(deps.Sites, deps.SiteStats)

	// --- レート制限の対象外 ---
	r.Get("/health", HealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 公開API ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", commentHandler.ListComments)
			r.Get("/{id}", commentHandler.GetComment)
		})
		r.Get("/sites", siteHandler.ListSites)

		if deps.UserService != nil {
			userHandler := NewUserHandler(deps.UserService, deps.CommentService, deps.DefaultItemsPerPage)
			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.ListUsers)
				r.Get("/{id}", userHandler.GetUser)
				r.Get("/{id}/comments", userHandler.ListUserComments)
			})
		}
	})

	return r
}
