package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/commentman/internal/metrics"
)

// unmatchedRoute はchiのルートに一致しなかったリクエストのラベル値。
const unmatchedRoute = "unmatched"

// NewMetricsMiddleware はAPIリクエストの件数と処理時間を記録するミドルウェアを返す。
// ルートラベルにはchiのルートパターン（例: /comments/{id}）を使う。
func NewMetricsMiddleware(recorder metrics.RequestRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			recorder.RecordAPIRequest(r.Method, route, rec.statusCode, time.Since(start))
		})
	}
}
