package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/commentman/internal/comment"
	"github.com/hitoshi/commentman/internal/config"
	"github.com/hitoshi/commentman/internal/database"
	"github.com/hitoshi/commentman/internal/handler"
	"github.com/hitoshi/commentman/internal/logger"
	"github.com/hitoshi/commentman/internal/metrics"
	"github.com/hitoshi/commentman/internal/middleware"
	"github.com/hitoshi/commentman/internal/repository"
	"github.com/hitoshi/commentman/internal/security"
	"github.com/hitoshi/commentman/internal/stats"
	"github.com/hitoshi/commentman/internal/worker/archive"
	"github.com/hitoshi/commentman/internal/worker/scrape"
)

const (
	// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
	dbPingTimeout = 5 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
	// archiveInterval はアーカイブジョブの実行間隔。
	archiveInterval = 24 * time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。commentsサブコマンドは結果のJSONをwに出力し、
// ログは標準エラーに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	var rest []string
	if len(args) > 0 {
		rest = args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// healthcheck と comments はDBを使わないため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandComments:
		return runComments(ctx, os.Stderr, w, rest)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandScrape:
		return runScrape(ctx, cfg)
	case CommandMigrate:
		action, ok := ParseMigrateAction(rest)
		if !ok {
			return fmt.Errorf("unknown migrate action: %q", rest[0])
		}
		return runMigrate(cfg, action)
	default:
		return runServe(ctx, cfg)
	}
}

// newRegistry はGo/プロセスメトリクスを登録したレジストリとCollectorを生成する。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	commentRepo := repository.NewPostgresCommentRepo(db)
	commentService := comment.NewCommentService(commentRepo, cfg.Sites, cfg.MaxItemsPerPage)
	statsService := stats.NewStatsService(repository.NewPostgresStatsRepo(db), cfg.Sites, cfg.MaxItemsPerPage)
	statsAdapter := handler.NewStatsServiceAdapter(statsService)

	reg, collector := newRegistry()

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral),
		slog.Default(),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:              slog.Default(),
		CORSAllowedOrigin:   cfg.CORSAllowedOrigin,
		RateLimiter:         rateLimiter,
		RequestRecorder:     collector,
		Gatherer:            reg,
		CommentService:      handler.NewCommentServiceAdapter(commentService),
		DefaultItemsPerPage: cfg.DefaultItemsPerPage,
		UserService:         statsAdapter,
		Sites:               cfg.Sites,
		SiteStats:           statsAdapter,
		DB:                  db,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, "API server")
}

// runScrape はスクレイピングワーカーモードで起動する。
// 記事検出・コメント取得のスケジューラとアーカイブジョブを起動し、
// METRICS_PORTでPrometheusメトリクスを公開する。
func runScrape(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (scrape)")

	log := slog.Default()

	articleRepo := repository.NewPostgresArticleRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	reg, collector := newRegistry()

	upsertSvc := comment.NewCommentUpsertService(commentRepo, userRepo, sanitizer, log)
	discoverer := scrape.NewArticleDiscoverer(ssrfGuard, log, cfg.ScrapeTimeout, cfg.ScrapeMaxSize)
	scraper := scrape.NewCommentScraper(ssrfGuard, log, cfg.ScrapeTimeout, cfg.ScrapeMaxSize, cfg.ScrapeMaxPages)
	fetcher := scrape.NewFetcher(articleRepo, scraper, upsertSvc, ssrfGuard, collector, log)
	scheduler := scrape.NewScheduler(
		cfg.Sites, discoverer, articleRepo, fetcher, collector, log,
		cfg.ScrapeMaxConcurrent, cfg.ScrapeWindowDays,
	)
	archiveJob := archive.NewJob(db, collector, log, cfg.ArchiveAfterDays)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsDone := make(chan error, 1)
	go func() {
		metricsDone <- serveUntilDone(ctx, metricsServer, "metrics server")
	}()

	slog.Info("scrape worker starting",
		slog.Duration("scrape_interval", cfg.ScrapeInterval),
		slog.Int("max_concurrent", cfg.ScrapeMaxConcurrent),
		slog.Int("site_count", len(cfg.Sites)),
	)

	go archiveJob.Start(ctx, archiveInterval)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ScrapeInterval)

	if err := <-metricsDone; err != nil {
		return err
	}
	slog.Info("scrape worker stopped gracefully")
	return nil
}

// serveUntilDone はserverを起動し、ctxがキャンセルされたらシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// upは未適用のマイグレーションをすべて適用し、downは直近の1つを戻す。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("database schema version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
