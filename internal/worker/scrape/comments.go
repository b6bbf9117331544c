package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/commentman/internal/model"
	"github.com/hitoshi/commentman/internal/querystring"
)

const (
	// commentsTagID はサイト側のコメントウィジェットが要求するタグID。
	commentsTagID = 2346
	// defaultMaxPages はmaxPagesが0以下の場合のページ上限。
	defaultMaxPages = 10
)

// CommentScraper は記事のコメントAPIをページングしながら取得し、コメントを抽出する。
type CommentScraper struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	maxPages    int
	now         func() time.Time
}

// NewCommentScraper はCommentScraperの新しいインスタンスを生成する。
func NewCommentScraper(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	maxPages int,
) *CommentScraper {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &CommentScraper{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		maxPages:    maxPages,
		now:         time.Now,
	}
}

// CommentsURL はコメント一覧APIのURLを組み立てる。lastIDが0の場合は先頭ページ。
func CommentsURL(origin string, articleID, lastID int64) string {
	q := querystring.Request{}.
		Add("Type", "Comment").
		Add("ContentId", articleID).
		Add("TagId", commentsTagID).
		Add("TagType", "Content").
		Add("Sort", "Oldest")
	if lastID > 0 {
		q = q.Add("lastId", lastID)
	}
	return origin + "/comments/get?" + q.Encode()
}

// RepliesURL は指定コメントへの返信一覧APIのURLを組み立てる。
func RepliesURL(origin string, articleID, parentID int64) string {
	q := querystring.Request{}.
		Add("ContentId", articleID).
		Add("TagId", commentsTagID).
		Add("TagType", "Content").
		Add("Sort", "Oldest").
		Add("lastId", `""`).
		Add("ParentId", parentID)
	return origin + "/comments/get?" + q.Encode()
}

// Scrape は記事の全コメント（返信を含む）を取得する。
//
// 先頭ページから lastId を進めながら取得し、続きが無くなるか
// ページ上限に達した時点で終了する。上限で打ち切った場合はCompleteがfalseになる。
// どのページの取得に失敗しても部分的な結果は返さない。
func (c *CommentScraper) Scrape(ctx context.Context, article *model.Article) (model.ScrapedComments, error) {
	origin, err := siteOrigin(article.URL)
	if err != nil {
		return model.ScrapedComments{}, fmt.Errorf("記事URLが不正です: %w", err)
	}

	client := c.ssrfGuard.NewSafeClient(c.timeout, c.maxBodySize)
	fetch := func(rawURL string) (*goquery.Document, error) {
		body, err := fetchBody(ctx, client, rawURL, htmlAccept, c.maxBodySize)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, &ParseError{URL: rawURL, Err: err}
		}
		return doc, nil
	}

	collector := newCommentCollector(c.now())
	var lastID int64
	topLevelTotal := 0
	pages := 0
	truncated := false

	for pages < c.maxPages {
		doc, err := fetch(CommentsURL(origin, article.ID, lastID))
		if err != nil {
			return model.ScrapedComments{}, err
		}
		pages++

		declared := declaredCount(doc)
		topLevel := selectTopLevelComments(doc)
		added := 0
		var replyParents []int64

		topLevel.Each(func(_ int, s *goquery.Selection) {
			id, isNew, ok := collector.add(s)
			if !ok {
				return
			}
			if isNew {
				added++
			}
			lastID = id
			s.Find("div.comment").Each(func(_ int, r *goquery.Selection) {
				collector.add(r)
			})
			if parent, ok := needsReplyFetch(s, id); ok {
				replyParents = append(replyParents, parent)
			}
		})

		for _, parent := range replyParents {
			replies, err := fetch(RepliesURL(origin, article.ID, parent))
			if err != nil {
				return model.ScrapedComments{}, err
			}
			replies.Find("div.comment").Each(func(_ int, r *goquery.Selection) {
				collector.add(r)
			})
		}

		topLevelTotal += added
		if added == 0 || !hasMorePages(doc, declared, topLevelTotal) {
			break
		}
		truncated = pages >= c.maxPages
	}

	if truncated {
		c.logger.Warn("コメント取得がページ上限に達しました",
			slog.Int64("article_id", article.ID),
			slog.Int("max_pages", c.maxPages),
			slog.Int("comments_fetched", len(collector.comments)),
		)
	}

	return model.ScrapedComments{Comments: collector.comments, Complete: !truncated}, nil
}

// commentCollector は取得順を保ったままコメントIDで重複排除する。
type commentCollector struct {
	fetchedAt time.Time
	seen      map[int64]bool
	comments  []model.ParsedComment
}

func newCommentCollector(fetchedAt time.Time) *commentCollector {
	return &commentCollector{
		fetchedAt: fetchedAt,
		seen:      make(map[int64]bool),
	}
}

// add はコメント要素を解析して追加し、そのIDと新規追加かどうかを返す。
// IDを持たない要素はokがfalse。
func (c *commentCollector) add(s *goquery.Selection) (id int64, isNew, ok bool) {
	pc, ok := parseComment(s, c.fetchedAt)
	if !ok {
		return 0, false, false
	}
	if c.seen[pc.ID] {
		return pc.ID, false, true
	}
	c.seen[pc.ID] = true
	c.comments = append(c.comments, pc)
	return pc.ID, true, true
}

// selectTopLevelComments はトップレベルのコメント要素を選択する。
// 記事ページの読み込み結果は div#comments を含み、API結果はコメントの並びのみを返す。
func selectTopLevelComments(doc *goquery.Document) *goquery.Selection {
	if root := doc.Find("div#comments"); root.Length() > 0 {
		return root.First().ChildrenFiltered("div.comment")
	}
	return doc.Find("div.comment[data-replies]")
}

// declaredCount は div#comments の data-count を返す。無い場合は-1。
func declaredCount(doc *goquery.Document) int {
	raw, ok := doc.Find("div#comments").First().Attr("data-count")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return n
}

// hasMorePages はトップレベルコメントの続きがあるかを判定する。
// 返信用のボタンは data-parent を持つため区別できる。
func hasMorePages(doc *goquery.Document, declared, fetched int) bool {
	if declared >= 0 && fetched < declared {
		return true
	}
	return doc.Find("button.comments-more").FilterFunction(func(_ int, s *goquery.Selection) bool {
		_, hasParent := s.Attr("data-parent")
		return !hasParent
	}).Length() > 0
}

// needsReplyFetch は返信を別途取得する必要があるかを判定し、親コメントIDを返す。
// 返信の件数が埋め込み済みの件数より多い場合、または「さらに表示」ボタンがある場合に取得する。
func needsReplyFetch(s *goquery.Selection, id int64) (int64, bool) {
	replies, _ := strconv.Atoi(s.AttrOr("data-replies", "0"))
	if replies <= 0 {
		return 0, false
	}
	more := s.Find("button.comments-more")
	if more.Length() == 0 && s.Find("div.comment").Length() >= replies {
		return 0, false
	}
	if raw, ok := more.First().Attr("data-parent"); ok {
		if parent, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && parent > 0 {
			return parent, true
		}
	}
	return id, true
}

// parseComment はコメント要素から投稿者、日時、本文、評価数を抽出する。
// 要素自身の値を読むため、入れ子の返信要素の値は参照しない。
func parseComment(s *goquery.Selection, fetchedAt time.Time) (model.ParsedComment, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s.AttrOr("data-id", "")), 10, 64)
	if err != nil || id <= 0 {
		return model.ParsedComment{}, false
	}

	own := ownContent(s)

	user := own.Filter("a.comment-un").First()
	userID, _ := trailingNumber(user.AttrOr("href", ""))

	postedAt := fetchedAt
	if raw, ok := own.Filter("time").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
			postedAt = t
		}
	}

	return model.ParsedComment{
		ID:       id,
		UserID:   userID,
		UserName: strings.TrimSpace(user.Text()),
		Time:     postedAt,
		Text:     strings.TrimSpace(own.Filter("div.comment-text").First().Text()),
		Likes:    voteCount(own.Filter("[value=Upvote]").First()),
		Dislikes: voteCount(own.Filter("[value=Downvote]").First()),
	}, true
}

// ownContent は返信要素を除いたコメント自身の子孫要素を返す。
func ownContent(s *goquery.Selection) *goquery.Selection {
	return s.Find("*").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return el.ParentsFiltered("div.comment").First().IsSelection(s)
	})
}

func voteCount(s *goquery.Selection) int32 {
	n, err := strconv.ParseInt(strings.TrimSpace(s.Text()), 10, 32)
	if err != nil || n < 0 {
		return 0
	}
	return int32(n)
}

// trailingNumber は文字列末尾の数字列を返す。"/users/123/" や "?UserId=123" を想定する。
func trailingNumber(raw string) (int64, bool) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	end := len(raw)
	start := end
	for start > 0 && raw[start-1] >= '0' && raw[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.ParseInt(raw[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
