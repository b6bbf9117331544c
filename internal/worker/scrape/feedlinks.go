package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのheadから検出されたRSS/Atomフィードのリンク。
type feedLink struct {
	URL  string
	Atom bool
}

// parseFeedLinks はHTMLのheadタグからRSS/Atomフィードリンクを検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseFeedLinks(htmlBody []byte, baseURL string) []feedLink {
	var links []feedLink

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				return links
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
				continue
			}

			resolved := resolveURL(baseU, href)
			if resolved == "" {
				continue
			}
			links = append(links, feedLink{URL: resolved, Atom: linkType == "application/atom+xml"})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return links
			}
		}
	}
}

// selectFeedLink はサイトと同一ホストのフィードを優先して1件選ぶ。
// 同一ホストのものが無い場合は外部ホストのフィードは使わない。
func selectFeedLink(links []feedLink, siteURL string) (feedLink, bool) {
	site, err := url.Parse(siteURL)
	if err != nil {
		return feedLink{}, false
	}
	var best feedLink
	found := false
	for _, l := range links {
		u, err := url.Parse(l.URL)
		if err != nil || !strings.EqualFold(u.Host, site.Host) {
			continue
		}
		if !found || (l.Atom && !best.Atom) {
			best = l
			found = true
		}
	}
	return best, found
}
