package scrape

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/commentman/internal/model"
)

// ScrapeResult はHTTPステータスコードに基づくスクレイピング結果の分類。
type ScrapeResult int

const (
	// ScrapeResultOK はスクレイピング成功（200）。
	ScrapeResultOK ScrapeResult = iota
	// ScrapeResultStop はスクレイピング停止が必要なステータス（404/410/401/403）。
	ScrapeResultStop
	// ScrapeResultBackoff はバックオフが必要なステータス（429/5xx）。
	ScrapeResultBackoff
	// ScrapeResultUnknown は未知のステータスコード。
	ScrapeResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
	// parseFailureThreshold はパース失敗によるスクレイピング停止の閾値。
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードをスクレイピング結果に分類する。
func ClassifyHTTPStatus(statusCode int) ScrapeResult {
	switch {
	case statusCode == http.StatusOK:
		return ScrapeResultOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return ScrapeResultStop
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ScrapeResultStop
	case statusCode == http.StatusTooManyRequests:
		return ScrapeResultBackoff
	case statusCode >= 500:
		return ScrapeResultBackoff
	default:
		return ScrapeResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// DueInterval は記事の経過時間に応じたスクレイピング間隔を返す。
// 新しい記事ほどコメントが活発なため短い間隔で取得する。
func DueInterval(discoveredAt, now time.Time) time.Duration {
	age := now.Sub(discoveredAt)
	switch {
	case age < 24*time.Hour:
		return 15 * time.Minute
	case age < 48*time.Hour:
		return 30 * time.Minute
	case age < 96*time.Hour:
		return 60 * time.Minute
	case age < 120*time.Hour:
		return 120 * time.Minute
	default:
		return 240 * time.Minute
	}
}

// IsDue は記事がスクレイピング対象かどうかを判定する。
// 未取得の記事は常に対象。バックオフ中（NextScrapeAtが未来）の記事は対象外。
func IsDue(article *model.Article, now time.Time) bool {
	if article.ScrapeStatus != "" && article.ScrapeStatus != model.ScrapeStatusActive {
		return false
	}
	if article.LastScrapedAt == nil {
		return true
	}
	if now.Before(article.NextScrapeAt) {
		return false
	}
	return !now.Before(article.LastScrapedAt.Add(DueInterval(article.DiscoveredAt, now)))
}

// ApplyStop は記事のスクレイピングを停止する。
func ApplyStop(article *model.Article, reason string, now time.Time) {
	article.ScrapeStatus = model.ScrapeStatusStopped
	article.ErrorMessage = reason
	article.UpdatedAt = now
}

// ApplyBackoff は記事にバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_scrape_atを設定する。
func ApplyBackoff(article *model.Article, reason string, now time.Time) {
	article.ConsecutiveErrors++
	article.ErrorMessage = reason
	article.NextScrapeAt = now.Add(CalculateBackoff(article.ConsecutiveErrors - 1))
	article.UpdatedAt = now
}

// ApplySuccess はスクレイピング成功時に記事の状態をリセットし、次回の取得時刻を設定する。
func ApplySuccess(article *model.Article, now time.Time) {
	article.ConsecutiveErrors = 0
	article.ErrorMessage = ""
	scrapedAt := now
	article.LastScrapedAt = &scrapedAt
	article.NextScrapeAt = now.Add(DueInterval(article.DiscoveredAt, now))
	article.UpdatedAt = now
}

// ApplyParseFailure はパース失敗時に記事の連続エラー回数をインクリメントする。
// 閾値に達した場合はスクレイピングを停止する。
func ApplyParseFailure(article *model.Article, reason string, now time.Time) {
	article.ConsecutiveErrors++
	article.ErrorMessage = fmt.Sprintf("パース失敗 (%d回連続): %s", article.ConsecutiveErrors, reason)
	article.NextScrapeAt = now.Add(DueInterval(article.DiscoveredAt, now))
	article.UpdatedAt = now

	if article.ConsecutiveErrors >= parseFailureThreshold {
		article.ScrapeStatus = model.ScrapeStatusStopped
		article.ErrorMessage = fmt.Sprintf("パース失敗が%d回連続したためスクレイピングを停止しました: %s", article.ConsecutiveErrors, reason)
	}
}
