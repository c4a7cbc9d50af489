package feed

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// フィードとして扱う <link rel="alternate"> の type 属性
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
}

// LinkSource は、リンクと見出しのリストを提供できる任意の型を表します。
type LinkSource interface {
	GetLinks() []string
	GetTitles() []string
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks は gofeed.Feed からアイテムのリンクを抽出します。
func (a *FeedAdapter) GetLinks() []string {
	return a.collect(func(item *gofeed.Item) string { return item.Link })
}

// GetTitles は gofeed.Feed からアイテムのタイトルを抽出します。
func (a *FeedAdapter) GetTitles() []string {
	return a.collect(func(item *gofeed.Item) string { return strings.TrimSpace(item.Title) })
}

func (a *FeedAdapter) collect(field func(*gofeed.Item) string) []string {
	if a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	values := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item == nil {
			continue
		}
		if v := field(item); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Discover は、HTML の <link rel="alternate"> からフィードのURLを出現順に返します。
// 相対URLは pageURL を基準に解決します。
func Discover(pageURL, html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}
	base, _ := url.Parse(pageURL)

	found := []string{}
	seen := make(map[string]struct{})
	doc.Find(`link[rel="alternate"][href]`).Each(func(_ int, s *goquery.Selection) {
		if !isFeedType(s.AttrOr("type", "")) {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		abs := ref.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		found = append(found, abs)
	})
	return found
}

func isFeedType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, ft := range feedContentTypes {
		if t == ft {
			return true
		}
	}
	return false
}
