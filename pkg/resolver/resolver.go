package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/metrics"
	"github.com/shouni/go-flowql/pkg/types"
)

const (
	// MaxPages は1回の解決で取得するページ数の上限です。
	MaxPages = 3
	// MaxFeedTitles はフィードから取り込む記事タイトルの上限です。
	MaxFeedTitles = 10
)

// 存在確認するAboutページの候補パス (優先順)
var aboutPaths = []string{
	"/about",
	"/about-us",
	"/about-me",
	"/company",
	"/who-we-are",
	"/our-story",
	"/team",
	"/info",
}

// ナビゲーションとみなす領域
var navSelectors = []string{"nav", ".nav", ".navigation", ".menu", "header", ".header"}

// Aboutページを示すアンカーテキストとhrefのキーワード
var (
	aboutTextKeywords = []string{"about", "company", "who we are", "our story", "team"}
	aboutHrefKeywords = []string{"about", "company", "who-we-are", "our-story", "team"}
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// PageExtractor は、1ページを取得して抽出する機能です。
type PageExtractor interface {
	FetchAndExtractRaw(ctx context.Context, pageURL string) (types.ExtractedPage, string, error)
}

// Prober は、URL が存在するか (200 を返すか) を軽量に確認する機能です。
type Prober interface {
	Exists(ctx context.Context, url string) bool
}

// FeedDigester は、ページの HTML からフィードの記事タイトルを取得する機能です。
type FeedDigester interface {
	Digest(ctx context.Context, pageURL, html string, limit int) ([]string, error)
}

// Resolver は、開始URL・サイトルート・Aboutページを順に取得し、CompositePage に統合します。
type Resolver struct {
	extractor PageExtractor
	prober    Prober
	feeds     FeedDigester
	logger    *zap.Logger
}

// Option は Resolver の設定を行うための関数型です。
type Option func(*Resolver)

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFeedDigester はフィード要約を有効にします。
func WithFeedDigester(f FeedDigester) Option {
	return func(r *Resolver) { r.feeds = f }
}

// New は、新しい Resolver を生成します。
func New(extractor PageExtractor, prober Prober, opts ...Option) (*Resolver, error) {
	if extractor == nil {
		return nil, fmt.Errorf("resolver.New: PageExtractor cannot be nil")
	}
	if prober == nil {
		return nil, fmt.Errorf("resolver.New: Prober cannot be nil")
	}
	r := &Resolver{
		extractor: extractor,
		prober:    prober,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve は startURL を起点にページ群を取得し、統合した CompositePage を返します。
// 開始URLの取得に失敗した場合のみエラーを返し、それ以外のページの失敗は結果から除外されます。
// ページは開始URL、サイトルート、Aboutページの順に逐次取得します。
func (r *Resolver) Resolve(ctx context.Context, startURL string) (types.CompositePage, error) {
	root, err := SiteRoot(startURL)
	if err != nil {
		return types.CompositePage{}, err
	}

	// 1. 開始URL (必須)
	startPage, startHTML, err := r.extractor.FetchAndExtractRaw(ctx, startURL)
	if err != nil {
		return types.CompositePage{}, fmt.Errorf("開始URLの取得に失敗しました: %w", err)
	}
	pages := []types.ExtractedPage{startPage}
	visited := map[string]struct{}{startURL: {}}

	// 2. サイトルート (開始URLと異なる場合のみ)
	rootHTML := ""
	if sameAsRoot(startURL, root) {
		rootHTML = startHTML
	} else {
		visited[root] = struct{}{}
		rootPage, html, err := r.extractor.FetchAndExtractRaw(ctx, root)
		if err != nil {
			r.logger.Warn("サイトルートの取得に失敗したため除外します", zap.String("url", root), zap.Error(err))
		} else {
			pages = append(pages, rootPage)
			rootHTML = html
		}
	}

	// 3. Aboutページ
	aboutURL := r.FindAboutPage(ctx, root, rootHTML)
	if aboutURL != "" && !isVisited(visited, aboutURL) && len(visited) < MaxPages {
		visited[aboutURL] = struct{}{}
		aboutPage, _, err := r.extractor.FetchAndExtractRaw(ctx, aboutURL)
		if err != nil {
			r.logger.Warn("Aboutページの取得に失敗したため除外します", zap.String("url", aboutURL), zap.Error(err))
			aboutURL = ""
		} else {
			pages = append(pages, aboutPage)
		}
	}

	composite := Merge(startURL, pages)
	composite.AboutURL = aboutURL

	// 4. フィード (任意、ページ数には数えない)
	if r.feeds != nil {
		composite.FeedTitles = r.digestFeed(ctx, startURL, startHTML, root, rootHTML)
	}

	metrics.PagesResolved.Observe(float64(len(pages)))
	r.logger.Info("ページ群を統合しました",
		zap.String("url", startURL),
		zap.Int("pages", len(pages)),
		zap.String("about", aboutURL),
	)
	return composite, nil
}

func (r *Resolver) digestFeed(ctx context.Context, startURL, startHTML, root, rootHTML string) []string {
	candidates := []struct{ url, html string }{{startURL, startHTML}, {root, rootHTML}}
	for _, c := range candidates {
		if c.html == "" {
			continue
		}
		titles, err := r.feeds.Digest(ctx, c.url, c.html, MaxFeedTitles)
		if err != nil {
			r.logger.Warn("フィードの取得に失敗しました", zap.String("url", c.url), zap.Error(err))
			continue
		}
		if len(titles) > 0 {
			return titles
		}
	}
	return nil
}

// FindAboutPage は、Aboutページの URL を探します。見つからない場合は空文字列を返します。
// まず候補パスを存在確認し、どれも 200 を返さなければ rootHTML のナビゲーション領域を走査します。
func (r *Resolver) FindAboutPage(ctx context.Context, root, rootHTML string) string {
	for _, path := range aboutPaths {
		candidate := root + path
		if r.prober.Exists(ctx, candidate) {
			r.logger.Debug("Aboutページを検出しました (パス)", zap.String("url", candidate))
			return candidate
		}
	}

	if rootHTML == "" {
		return ""
	}
	if found := FindAboutLink(root, rootHTML); found != "" {
		r.logger.Debug("Aboutページを検出しました (ナビゲーション)", zap.String("url", found))
		return found
	}
	return ""
}

// FindAboutLink は、ナビゲーション領域から About を示す同一オリジンのリンクを探します。
// セレクターの優先順に走査し、最初に見つかったリンクを返します。
func FindAboutLink(root, html string) string {
	base, err := url.Parse(root)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, selector := range navSelectors {
		found := ""
		doc.Find(selector).Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" || !looksLikeAbout(a.Text(), href) {
				return true
			}
			ref, err := url.Parse(href)
			if err != nil {
				return true
			}
			abs := base.ResolveReference(ref)
			if !sameOrigin(base, abs) {
				return true
			}
			found = abs.String()
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func looksLikeAbout(text, href string) bool {
	text = strings.ToLower(text)
	for _, kw := range aboutTextKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	href = strings.ToLower(href)
	for _, kw := range aboutHrefKeywords {
		if strings.Contains(href, kw) {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------
// URL ヘルパー
// ----------------------------------------------------------------------

// SiteRoot は、URL のスキームとホストからサイトルート (例: https://example.com) を返します。
func SiteRoot(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLの解析に失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("絶対URLではありません: %s", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func sameAsRoot(u, root string) bool {
	return u == root || u == root+"/"
}

// isVisited は、末尾のスラッシュの有無を区別せずに取得済みかを判定します。
func isVisited(visited map[string]struct{}, u string) bool {
	key := strings.TrimSuffix(u, "/")
	for v := range visited {
		if strings.TrimSuffix(v, "/") == key {
			return true
		}
	}
	return false
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
