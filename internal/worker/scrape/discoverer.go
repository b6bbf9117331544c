package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/commentman/internal/model"
)

const (
	htmlAccept = "text/html, application/xhtml+xml, */*"
	feedAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
)

// articlePathPrefixes はコメント対象記事として扱うパスのプレフィックス。
var articlePathPrefixes = []string{
	"/local-news/",
	"/spotlight/",
	"/great-stories/",
	"/videos/",
	"/local-sports/",
	"/local-entertainment",
	"/bulletin/",
	"/more-local/",
	"/city-police-beat/",
}

// ArticleDiscoverer はサイトのトップページとRSSフィードから記事を検出する。
type ArticleDiscoverer struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	now         func() time.Time
}

// NewArticleDiscoverer はArticleDiscovererの新しいインスタンスを生成する。
func NewArticleDiscoverer(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *ArticleDiscoverer {
	return &ArticleDiscoverer{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}
}

// Discover はサイトのトップページを取得し、記事一覧を返す。
//
// トップページのセクションリンクに加えて、headで告知されている同一ホストの
// フィードに含まれる記事も対象にする。フィードの取得失敗は警告ログのみとする。
// 結果は記事IDで重複排除され、検出順を保つ。
func (d *ArticleDiscoverer) Discover(ctx context.Context, site model.Site) ([]*model.Article, error) {
	if err := d.ssrfGuard.ValidateURL(site.URL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout, d.maxBodySize)
	body, err := fetchBody(ctx, client, site.URL, htmlAccept, d.maxBodySize)
	if err != nil {
		return nil, err
	}

	now := d.now()
	articles, err := parseSectionLinks(body, site, now)
	if err != nil {
		return nil, err
	}

	if link, ok := selectFeedLink(parseFeedLinks(body, site.URL), site.URL); ok {
		feedArticles, err := d.discoverFromFeed(ctx, client, site, link.URL, now)
		if err != nil {
			d.logger.Warn("フィードからの記事検出に失敗しました",
				slog.String("city", site.City),
				slog.String("feed_url", link.URL),
				slog.String("error", err.Error()),
			)
		} else {
			articles = append(articles, feedArticles...)
		}
	}

	result := dedupeArticles(articles)

	d.logger.Info("記事を検出しました",
		slog.String("city", site.City),
		slog.Int("article_count", len(result)),
	)

	return result, nil
}

// discoverFromFeed はフィードを取得しgofeedでパースして記事に変換する。
// 公開日時が取得できる記事は公開日時を発見日時として扱う。
func (d *ArticleDiscoverer) discoverFromFeed(
	ctx context.Context,
	client *http.Client,
	site model.Site,
	feedURL string,
	now time.Time,
) ([]*model.Article, error) {
	body, err := fetchBody(ctx, client, feedURL, feedAccept, d.maxBodySize)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: feedURL, Err: err}
	}

	base, err := url.Parse(site.URL)
	if err != nil {
		return nil, fmt.Errorf("サイトURLが不正です: %w", err)
	}

	articles := make([]*model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := item.Link
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}
		discoveredAt := now
		if item.PublishedParsed != nil && item.PublishedParsed.Before(now) {
			discoveredAt = *item.PublishedParsed
		}
		article, ok := newArticle(base, site.City, link, discoveredAt)
		if !ok {
			continue
		}
		article.Title = strings.TrimSpace(item.Title)
		articles = append(articles, article)
	}
	return articles, nil
}

// parseSectionLinks はトップページの a.section-item から記事を抽出する。
func parseSectionLinks(body []byte, site model.Site, now time.Time) ([]*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: site.URL, Err: err}
	}

	base, err := url.Parse(site.URL)
	if err != nil {
		return nil, fmt.Errorf("サイトURLが不正です: %w", err)
	}

	var articles []*model.Article
	doc.Find("a.section-item").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		article, ok := newArticle(base, site.City, href, now)
		if !ok {
			return
		}
		article.Title = strings.TrimSpace(s.Find("div.section-title").First().Text())
		articles = append(articles, article)
	})
	return articles, nil
}

// newArticle は記事URLを検証し、Articleを生成する。
// サイト外のリンク、対象外のセクション、IDを持たないURLは対象外。
func newArticle(base *url.URL, city, href string, discoveredAt time.Time) (*model.Article, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if !strings.EqualFold(u.Host, base.Host) || !hasArticlePrefix(u.Path) {
		return nil, false
	}
	id, ok := ArticleIDFromURL(u.String())
	if !ok {
		return nil, false
	}
	u.RawQuery = ""
	u.Fragment = ""
	return &model.Article{
		ID:           id,
		City:         city,
		URL:          u.String(),
		DiscoveredAt: discoveredAt,
		ScrapeStatus: model.ScrapeStatusActive,
	}, true
}

func hasArticlePrefix(path string) bool {
	for _, prefix := range articlePathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ArticleIDFromURL は記事URLの末尾の "-<数字>" から記事IDを取り出す。
func ArticleIDFromURL(rawURL string) (int64, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	path := strings.TrimRight(u.Path, "/")
	i := strings.LastIndex(path, "-")
	if i < 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(path[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// dedupeArticles は記事IDの重複を除く。タイトルが空のものは後続のタイトルで補う。
func dedupeArticles(articles []*model.Article) []*model.Article {
	index := make(map[int64]int, len(articles))
	result := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if i, ok := index[a.ID]; ok {
			if result[i].Title == "" {
				result[i].Title = a.Title
			}
			continue
		}
		index[a.ID] = len(result)
		result = append(result, a)
	}
	return result
}
