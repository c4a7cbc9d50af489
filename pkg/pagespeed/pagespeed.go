package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/types"
)

const (
	DefaultBaseURL  = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	StrategyDesktop = "desktop"

	// APIKeyHeader は APIキーを渡すヘッダー名です。キーは URL に含めません。
	APIKeyHeader = "X-Goog-Api-Key"
)

var categories = []string{"performance", "accessibility", "best-practices", "seo"}

// BytesFetcher は、追加ヘッダー付きでURLからレスポンスボディを取得する機能です (httpclient.Client が満たします)。
type BytesFetcher interface {
	FetchBytesWithHeaders(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Option は Client の設定を行う関数です。
type Option func(*Client)

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseURL は API のエンドポイントを差し替えます。
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// Client は PageSpeed Insights v5 API のクライアントです。
type Client struct {
	fetcher BytesFetcher
	apiKey  string
	baseURL string
	logger  *zap.Logger
}

// New は新しい Client を生成します。apiKey が空の場合、Run は常に nil を返します。
func New(fetcher BytesFetcher, apiKey string, opts ...Option) *Client {
	c := &Client{
		fetcher: fetcher,
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available は APIキーが設定されているかを返します。
func (c *Client) Available() bool {
	return c != nil && c.apiKey != "" && c.fetcher != nil
}

type lighthouseResponse struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]struct {
			NumericValue float64 `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// Run は pageURL のパフォーマンスを計測します。
// APIキーが設定されていない場合は (nil, nil) を返します。
func (c *Client) Run(ctx context.Context, pageURL string) (*types.PageSpeedResult, error) {
	if !c.Available() {
		c.logger.Debug("PageSpeed APIキーが設定されていないため計測をスキップします")
		return nil, nil
	}

	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", StrategyDesktop)
	for _, cat := range categories {
		q.Add("category", cat)
	}

	body, err := c.fetcher.FetchBytesWithHeaders(ctx, c.baseURL+"?"+q.Encode(), map[string]string{
		APIKeyHeader: c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("PageSpeed APIの呼び出しに失敗しました: %w", err)
	}

	var resp lighthouseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("PageSpeed APIの応答の解析に失敗しました: %w", err)
	}

	lh := resp.LighthouseResult
	score := func(name string) int {
		if cat, ok := lh.Categories[name]; ok && cat.Score != nil {
			return int(math.Round(*cat.Score * 100))
		}
		return 0
	}
	audit := func(name string) float64 {
		return lh.Audits[name].NumericValue
	}

	return &types.PageSpeedResult{
		PerformanceScore:       score("performance"),
		AccessibilityScore:     score("accessibility"),
		BestPracticesScore:     score("best-practices"),
		SEOScore:               score("seo"),
		FirstContentfulPaint:   audit("first-contentful-paint"),
		LargestContentfulPaint: audit("largest-contentful-paint"),
		CumulativeLayoutShift:  audit("cumulative-layout-shift"),
		SpeedIndex:             audit("speed-index"),
	}, nil
}
