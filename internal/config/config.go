package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/commentman/internal/model"
)

// defaultSites はSCRAPE_SITES未設定時のスクレイピング対象サイト。
const defaultSites = "ssm=https://www.sootoday.com,tbay=https://www.tbnewswatch.com"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Scrape
	Sites               []model.Site
	ScrapeInterval      time.Duration
	ScrapeTimeout       time.Duration
	ScrapeMaxSize       int64
	ScrapeMaxConcurrent int
	ScrapeWindowDays    int
	ScrapeMaxPages      int
	ArchiveAfterDays    int

	// API
	DefaultItemsPerPage int
	MaxItemsPerPage     int

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはSCRAPE_SITESの形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	sites, err := ParseSites(getEnvString("SCRAPE_SITES", defaultSites))
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_SITES: %w", err)
	}
	cfg.Sites = sites

	cfg.ScrapeInterval = getEnvDuration("SCRAPE_INTERVAL", 15*time.Minute)
	cfg.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", 10*time.Second)
	cfg.ScrapeMaxSize = getEnvInt64("SCRAPE_MAX_SIZE", 5242880)
	cfg.ScrapeMaxConcurrent = getEnvInt("SCRAPE_MAX_CONCURRENT", 5)
	cfg.ScrapeWindowDays = getEnvInt("SCRAPE_WINDOW_DAYS", 7)
	cfg.ScrapeMaxPages = getEnvInt("SCRAPE_MAX_PAGES", 10)
	cfg.ArchiveAfterDays = getEnvInt("ARCHIVE_AFTER_DAYS", 30)
	cfg.DefaultItemsPerPage = getEnvInt("DEFAULT_ITEMS_PER_PAGE", 20)
	cfg.MaxItemsPerPage = getEnvInt("MAX_ITEMS_PER_PAGE", 100)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ClientConfig はcommentsサブコマンド（APIクライアント）の設定を保持する。
type ClientConfig struct {
	APIURL   string
	Timeout  time.Duration
	LogLevel string
}

// LoadClient はAPIクライアント用の設定を環境変数から読み込む。
// データベース接続は不要なため必須項目はない。
func LoadClient() *ClientConfig {
	return &ClientConfig{
		APIURL:   getEnvString("COMMENTMAN_API_URL", "http://localhost:8080"),
		Timeout:  getEnvDuration("COMMENTMAN_API_TIMEOUT", 10*time.Second),
		LogLevel: getEnvString("LOG_LEVEL", "warn"),
	}
}

// ParseSites は "city=url,city=url" 形式の文字列をサイト一覧に変換する。
// 都市コードは小文字に正規化する。
func ParseSites(raw string) ([]model.Site, error) {
	var sites []model.Site
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		city, siteURL, ok := strings.Cut(entry, "=")
		city = strings.ToLower(strings.TrimSpace(city))
		siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
		if !ok || city == "" || siteURL == "" {
			return nil, fmt.Errorf("entry %q must be city=url", entry)
		}
		if seen[city] {
			return nil, fmt.Errorf("duplicate city %q", city)
		}
		seen[city] = true
		sites = append(sites, model.Site{City: city, URL: siteURL})
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("no sites configured")
	}
	return sites, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
