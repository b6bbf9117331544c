// Package model はドメインモデルを定義する。
package model

import "time"

// Article はスクレイピング対象のニュース記事を表す。
type Article struct {
	ID                int64
	City              string
	Title             string
	URL               string
	DiscoveredAt      time.Time
	LastScrapedAt     *time.Time
	ScrapeStatus      ScrapeStatus
	ConsecutiveErrors int
	ErrorMessage      string
	NextScrapeAt      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ScrapeStatus は記事のスクレイピング状態を表す。
type ScrapeStatus string

const (
	// ScrapeStatusActive はスクレイピング継続中の状態。
	ScrapeStatusActive ScrapeStatus = "active"
	// ScrapeStatusStopped はエラーによりスクレイピングを停止した状態。
	ScrapeStatusStopped ScrapeStatus = "stopped"
	// ScrapeStatusArchived は保持期間を過ぎてスクレイピング対象外になった状態。
	ScrapeStatusArchived ScrapeStatus = "archived"
)

// Site はスクレイピング対象サイトを表す。
// City はAPIのcityフィルタで使う短いコード（例: ssm）。
type Site struct {
	City string
	URL  string
}
