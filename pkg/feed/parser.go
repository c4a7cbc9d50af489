package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// BytesFetcher は、Parser が依存するボディ取得のインターフェースです。
type BytesFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Parser は、RSS/Atom フィードの取得とパースを行います。
type Parser struct {
	client BytesFetcher // インターフェースに依存
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
func NewParser(client BytesFetcher) *Parser {
	return &Parser{client: client}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := p.client.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	fp := gofeed.NewParser()
	feed, parseErr := fp.Parse(bytes.NewReader(body))
	if parseErr != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, parseErr)
	}
	return feed, nil
}

// Digest は、ページの HTML からフィードを探してパースし、記事タイトルを最大 limit 件返します。
// フィードが見つからない場合は空のスライスとエラーなしを返します。
func (p *Parser) Digest(ctx context.Context, pageURL, html string, limit int) ([]string, error) {
	feedURLs := Discover(pageURL, html)
	if len(feedURLs) == 0 {
		return []string{}, nil
	}

	// 最初に見つかったフィードのみを使う
	feed, err := p.FetchAndParse(ctx, feedURLs[0])
	if err != nil {
		return []string{}, err
	}

	titles := NewFeedAdapter(feed).GetTitles()
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}
