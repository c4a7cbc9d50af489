package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/httpclient"
	"github.com/shouni/go-flowql/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	MaxMainTextLength = 10000 // 本文の最大文字数
	MaxLinks          = 50
	MaxImages         = 20
	MinContentLength  = 100 // 本文として採用するための最小文字数
	MinFooterLength   = 10
	MaxFooterLength   = 1000

	// 本文抽出前に取り除く要素
	noiseSelectors = "script, style, noscript, nav, header, aside, .advertisement, .ads, .cookie, .popup, .modal"

	// SPA 向けフォールバックで使うコンテナ
	containerSelectors = "#app, #root, #__next, [id*='app'], [id*='root'], [class*='container'], [class*='content'], section"

	footerLabel = "\n\nFOOTER INFORMATION:\n"

	// 分割されたdivテキストを採用する長さの範囲
	minDivTextLength = 20
	maxDivTextLength = 1000
)

// 本文領域のセレクター。具体的なタグから順に試す。
var contentSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".content",
	"#content",
	".main-content",
	"#main",
}

var footerSelectors = []string{
	"footer",
	".footer",
	"#footer",
	".site-footer",
	".page-footer",
	"[role='contentinfo']",
}

// metadata として収集する name 属性
var metaNameAllowList = []string{"author", "keywords", "robots", "viewport"}

// 抽出戦略の名前
const (
	StrategySelectorPrefix = "selector:"
	StrategyBody           = "body"
	StrategyContainers     = "fallback:containers"
	StrategyParagraphs     = "fallback:paragraphs"
	StrategyDivs           = "fallback:divs"
	StrategyRawBody        = "fallback:raw-body"
	StrategyEmpty          = "empty"
)

// Extractor は、Fetcher を使ってページ取得と内容抽出を行います。
type Extractor struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher, opts ...Option) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	e := &Extractor{
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// FetchAndExtract は指定されたURLを取得し、ExtractedPage を返します。
// エラーは取得の失敗のみで、抽出自体は失敗しません。
func (e *Extractor) FetchAndExtract(ctx context.Context, pageURL string) (types.ExtractedPage, error) {
	page, _, err := e.FetchAndExtractRaw(ctx, pageURL)
	return page, err
}

// FetchAndExtractRaw は FetchAndExtract と同じですが、UTF-8 に変換済みの HTML も返します。
// About ページ探索などで同じ HTML を再利用するために使います。
func (e *Extractor) FetchAndExtractRaw(ctx context.Context, pageURL string) (types.ExtractedPage, string, error) {
	res, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return types.ExtractedPage{}, "", err
	}

	html := httpclient.DecodeBody(res.RawBody, res.Headers.Get("Content-Type"))
	page := Extract(pageURL, html)
	e.logger.Debug("ページを抽出しました",
		zap.String("url", pageURL),
		zap.String("strategy", page.Strategy),
		zap.Int("chars", utf8.RuneCountInString(page.MainText)),
	)
	return page, html, nil
}

// ----------------------------------------------------------------------
// メイン関数 (純粋関数)
// ----------------------------------------------------------------------

// Extract は HTML から ExtractedPage を生成します。I/O を行わず、失敗しません。
// 同じ入力に対しては常に同じ結果を返します。pageURL はリンクと画像の絶対URL化に使います。
func Extract(pageURL, rawHTML string) types.ExtractedPage {
	page := types.ExtractedPage{
		URL:      pageURL,
		Headings: []string{},
		Links:    []string{},
		Images:   []string{},
		Metadata: map[string]string{},
		Strategy: StrategyEmpty,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return page
	}
	base, _ := url.Parse(pageURL)

	// 1. 本文戦略に依存しない項目は、ノイズ除去前の文書全体から抽出する
	page.Title = extractTitle(doc)
	page.Description = strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", ""))
	page.Headings = extractHeadings(doc)
	page.Links = extractURLs(doc, "a[href]", "href", base, MaxLinks)
	page.Images = extractURLs(doc, "img[src]", "src", base, MaxImages)
	page.Metadata = extractMetadata(doc)

	// 2. 本文はノイズ除去後の文書から抽出する
	page.MainText, page.Strategy = extractMainText(rawHTML)
	return page
}

// extractTitle は <title> を優先し、なければ最初の h1 を返します。
func extractTitle(doc *goquery.Document) string {
	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return collapseSpace(doc.Find("h1").First().Text())
}

func extractHeadings(doc *goquery.Document) []string {
	headings := []string{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if text := textUtils.NormalizeText(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})
	return headings
}

// extractURLs は、属性値を base で絶対URLに解決し、重複を除いて出現順に最大 limit 件返します。
func extractURLs(doc *goquery.Document, selector, attr string, base *url.URL, limit int) []string {
	result := []string{}
	seen := make(map[string]struct{})

	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, ok := s.Attr(attr)
		if !ok {
			return true
		}
		abs, ok := resolveURL(base, raw)
		if !ok {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		result = append(result, abs)
		return len(result) < limit
	})
	return result
}

// resolveURL は href を絶対URLに変換します。http/https 以外は除外します。
func resolveURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}

// extractMetadata は Open Graph / Twitter カードと許可リストの meta タグを収集します。
// 同じキーが複数ある場合は最初の値を採用します。
func extractMetadata(doc *goquery.Document) map[string]string {
	metadata := make(map[string]string)
	put := func(key, value string) {
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		put(s.AttrOr("property", ""), s.AttrOr("content", ""))
	})
	doc.Find(`meta[name^="twitter:"]`).Each(func(_ int, s *goquery.Selection) {
		put(s.AttrOr("name", ""), s.AttrOr("content", ""))
	})
	for _, name := range metaNameAllowList {
		put(name, doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).First().AttrOr("content", ""))
	}
	return metadata
}

// ----------------------------------------------------------------------
// 本文抽出
// ----------------------------------------------------------------------

// extractMainText は本文テキストと、使用した戦略名を返します。
func extractMainText(rawHTML string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", StrategyEmpty
	}
	doc.Find(noiseSelectors).Remove()

	// 1. 本文領域セレクターを順に試す
	main, strategy := "", ""
	for _, selector := range contentSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if text := collapseSpace(sel.Text()); runeLen(text) > MinContentLength {
			main, strategy = text, StrategySelectorPrefix+selector
			break
		}
	}

	// 2. 見つからなければ body 全体
	if main == "" {
		main, strategy = collapseSpace(doc.Find("body").Text()), StrategyBody
	}

	// 3. フッターには所在地などの情報が含まれることが多いため、ラベル付きで追加する
	footer := extractFooter(doc)
	text := finalize(withFooter(main, footer))

	// 4. それでも短い場合 (JSで描画されるSPAなど) はフォールバック戦略を順に試す。
	//    フォールバックは script/style のみを除いた文書に対して行う。
	if runeLen(text) < MinContentLength {
		light, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
		if err != nil {
			return text, strategy
		}
		light.Find("script, style, noscript").Remove()

		best, bestStrategy := text, strategy
		for _, fb := range fallbackStrategies {
			candidate := finalize(withFooter(fb.run(light), footer))
			if runeLen(candidate) >= MinContentLength {
				return candidate, fb.name
			}
			if runeLen(candidate) > runeLen(best) {
				best, bestStrategy = candidate, fb.name
			}
		}
		if best == "" {
			return "", StrategyEmpty
		}
		return best, bestStrategy
	}
	return text, strategy
}

type fallbackStrategy struct {
	name string
	run  func(doc *goquery.Document) string
}

var fallbackStrategies = []fallbackStrategy{
	{StrategyContainers, longestContainerText},
	{StrategyParagraphs, paragraphText},
	{StrategyDivs, boundedDivText},
	{StrategyRawBody, bodyText},
}

// longestContainerText は、汎用コンテナのうち最も長いテキストを返します。
func longestContainerText(doc *goquery.Document) string {
	longest := ""
	doc.Find(containerSelectors).Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); runeLen(text) > runeLen(longest) {
			longest = text
		}
	})
	return longest
}

// paragraphText は、すべての段落テキストを結合します。
func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

// boundedDivText は、子divを持たないdivのうち長さが範囲内のテキストを重複なく結合します。
func boundedDivText(doc *goquery.Document) string {
	var parts []string
	seen := make(map[string]struct{})
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if s.Find("div").Length() > 0 {
			return
		}
		text := collapseSpace(s.Text())
		n := runeLen(text)
		if n < minDivTextLength || n > maxDivTextLength {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	})
	return strings.Join(parts, " ")
}

// bodyText は body 全体のテキストを返します。
func bodyText(doc *goquery.Document) string {
	return collapseSpace(doc.Find("body").Text())
}

// extractFooter は最初に十分な長さを持つフッターのテキストを返します。
func extractFooter(doc *goquery.Document) string {
	for _, selector := range footerSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		if runeLen(text) > MinFooterLength {
			return collapseSpace(truncateRunes(text, MaxFooterLength))
		}
	}
	return ""
}

func withFooter(main, footer string) string {
	if footer == "" {
		return main
	}
	return main + footerLabel + footer
}

// finalize は空白を畳み込み、最大文字数で切り詰めます。
func finalize(text string) string {
	return strings.TrimSpace(truncateRunes(collapseSpace(text), MaxMainTextLength))
}

// ----------------------------------------------------------------------
// 文字列ヘルパー
// ----------------------------------------------------------------------

// collapseSpace は連続する空白文字を1つの半角スペースにまとめます。
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateRunes は s を最大 n 文字 (rune) に切り詰めます。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var buf bytes.Buffer
	count := 0
	for _, r := range s {
		if count >= n {
			break
		}
		buf.WriteRune(r)
		count++
	}
	return buf.String()
}
