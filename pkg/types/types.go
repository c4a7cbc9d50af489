package types

import (
	"net/http"
	"time"
)

// NotFound は、モデルの出力から値を得られなかった項目に設定される番兵値です。
// 「データなし」を意味し、エラーとして扱ってはいけません。
const NotFound = "Not found"

// FetchResult は、1回のHTTP取得の結果を保持します。
// Extractor に渡された時点で役目を終える一時的な値です。
type FetchResult struct {
	URL     string      // 最終的に取得したURL (リダイレクト後)
	Status  int         // HTTPステータスコード
	RawBody []byte      // レスポンスボディ (上限サイズ以内)
	Headers http.Header // レスポンスヘッダー
}

// ExtractedPage は、1ページ分のHTMLから抽出した内容です。生成後は変更しません。
type ExtractedPage struct {
	URL         string            `json:"url" yaml:"url"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description" yaml:"description"`
	MainText    string            `json:"mainText" yaml:"mainText"` // 最大 10,000 文字
	Headings    []string          `json:"headings" yaml:"headings"`
	Links       []string          `json:"links" yaml:"links"`   // 重複なし、最大 50 件
	Images      []string          `json:"images" yaml:"images"` // 重複なし、最大 20 件
	Metadata    map[string]string `json:"metadata" yaml:"metadata"`
	// Strategy は本文の取得に使われた抽出戦略です (例: "selector:main", "fallback:paragraphs")。
	Strategy string `json:"strategy" yaml:"strategy"`
}

// CompositePage は、最大3ページ (指定URL、サイトルート、About ページ) をこの順で統合したものです。
type CompositePage struct {
	PrimaryURL  string            `json:"primaryUrl" yaml:"primaryUrl"`
	Pages       []ExtractedPage   `json:"pages" yaml:"pages"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description" yaml:"description"`
	MainText    string            `json:"mainText" yaml:"mainText"`
	Headings    []string          `json:"headings" yaml:"headings"`
	Links       []string          `json:"links" yaml:"links"`
	Images      []string          `json:"images" yaml:"images"`
	Metadata    map[string]string `json:"metadata" yaml:"metadata"`
	AboutURL    string            `json:"aboutUrl,omitempty" yaml:"aboutUrl,omitempty"`
	FeedTitles  []string          `json:"feedTitles,omitempty" yaml:"feedTitles,omitempty"`
}

// BusinessProfile は、サイト内容から推定した事業の属性です。
// 推定できなかった項目には NotFound が入ります。
type BusinessProfile struct {
	CompanyName     string `json:"companyName" yaml:"companyName"`
	WhatTheyDo      string `json:"whatTheyDo" yaml:"whatTheyDo"`
	WhoTheyServe    string `json:"whoTheyServe" yaml:"whoTheyServe"`
	CityAndCountry  string `json:"cityAndCountry" yaml:"cityAndCountry"`
	ServicesOffered string `json:"servicesOffered" yaml:"servicesOffered"`
	Pricing         string `json:"pricing" yaml:"pricing"`
	Industry        string `json:"industry" yaml:"industry"`
	BusinessModel   string `json:"businessModel" yaml:"businessModel"`
}

// NotFoundProfile は、すべての項目が NotFound のプロファイルを返します。
func NotFoundProfile() BusinessProfile {
	return BusinessProfile{
		CompanyName:     NotFound,
		WhatTheyDo:      NotFound,
		WhoTheyServe:    NotFound,
		CityAndCountry:  NotFound,
		ServicesOffered: NotFound,
		Pricing:         NotFound,
		Industry:        NotFound,
		BusinessModel:   NotFound,
	}
}

// IsKnown は、値が空でも番兵値でもない場合に true を返します。
func IsKnown(v string) bool {
	return v != "" && v != NotFound
}

// BusinessType は、質問文の言い回しを決めるための事業分類です。
type BusinessType struct {
	Type      string `json:"type" yaml:"type"`           // local | national | online
	Audience  string `json:"audience" yaml:"audience"`   // B2B | B2C | B2B2C | Unknown
	Reasoning string `json:"reasoning" yaml:"reasoning"` // 分類理由
}

const (
	BusinessTypeLocal    = "local"
	BusinessTypeNational = "national"
	BusinessTypeOnline   = "online"
)

// 各エンジン呼び出しの状態
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// EngineResult は、1つの質問に対する1エンジン分の結果です。
type EngineResult struct {
	EngineName     string `json:"engineName" yaml:"engineName"`
	ResponseText   string `json:"responseText" yaml:"responseText"`
	Matched        bool   `json:"matched" yaml:"matched"`
	Status         string `json:"status" yaml:"status"`
	ResponseTimeMs int64  `json:"responseTimeMs" yaml:"responseTimeMs"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
	Unavailable    bool   `json:"unavailable,omitempty" yaml:"unavailable,omitempty"` // APIキー未設定などで呼び出さなかった
}

// Transient は、呼び出したうえで失敗した (再実行で回復しうる) セルかを返します。
func (r EngineResult) Transient() bool {
	return r.Status == StatusFail && !r.Unavailable
}

// VerificationResult は、1つの質問に対する全エンジンの結果です。
// PerEngineResult の長さは常に設定済みエンジン数と一致します。
type VerificationResult struct {
	Question        string         `json:"question" yaml:"question"`
	PerEngineResult []EngineResult `json:"perEngineResult" yaml:"perEngineResult"`
}

// ContentStats は、統合済み本文の簡易分析結果です。
type ContentStats struct {
	WordCount        int      `json:"wordCount" yaml:"wordCount"`
	ReadingTime      int      `json:"readingTime" yaml:"readingTime"` // 分
	Sentiment        string   `json:"sentiment" yaml:"sentiment"`
	Topics           []string `json:"topics" yaml:"topics"`
	KeyPhrases       []string `json:"keyPhrases" yaml:"keyPhrases"`
	Complexity       string   `json:"complexity" yaml:"complexity"`
	HeaderCount      int      `json:"headerCount" yaml:"headerCount"`
	ParagraphCount   int      `json:"paragraphCount" yaml:"paragraphCount"`
	LinkCount        int      `json:"linkCount" yaml:"linkCount"`
	ImageCount       int      `json:"imageCount" yaml:"imageCount"`
	HasTitle         bool     `json:"hasTitle" yaml:"hasTitle"`
	HasDescription   bool     `json:"hasDescription" yaml:"hasDescription"`
	TitleLength      int      `json:"titleLength" yaml:"titleLength"`
	DescriptionLen   int      `json:"descriptionLength" yaml:"descriptionLength"`
	ContentTruncated bool     `json:"contentTruncated" yaml:"contentTruncated"`
	AnalysisFlag     string   `json:"analysisFlag" yaml:"analysisFlag"`
}

// PageSpeedResult は、サイトパフォーマンス計測サービスの結果です。
type PageSpeedResult struct {
	PerformanceScore       int     `json:"performanceScore" yaml:"performanceScore"`
	AccessibilityScore     int     `json:"accessibilityScore" yaml:"accessibilityScore"`
	BestPracticesScore     int     `json:"bestPracticesScore" yaml:"bestPracticesScore"`
	SEOScore               int     `json:"seoScore" yaml:"seoScore"`
	FirstContentfulPaint   float64 `json:"firstContentfulPaint" yaml:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint" yaml:"largestContentfulPaint"`
	CumulativeLayoutShift  float64 `json:"cumulativeLayoutShift" yaml:"cumulativeLayoutShift"`
	SpeedIndex             float64 `json:"speedIndex" yaml:"speedIndex"`
}

// Report は、1つのURLに対するパイプライン全体の出力です。
type Report struct {
	ID                string               `json:"id" yaml:"id"`
	URL               string               `json:"url" yaml:"url"`
	FaviconURL        string               `json:"faviconUrl" yaml:"faviconUrl"`
	Composite         CompositePage        `json:"composite" yaml:"composite"`
	Stats             ContentStats         `json:"stats" yaml:"stats"`
	Profile           BusinessProfile      `json:"businessSummary" yaml:"businessSummary"`
	SummaryDegraded   string               `json:"summaryDegraded,omitempty" yaml:"summaryDegraded,omitempty"`
	BusinessType      BusinessType         `json:"businessType" yaml:"businessType"`
	Questions         []string             `json:"questions" yaml:"questions"`
	QuestionsDegraded string               `json:"questionsDegraded,omitempty" yaml:"questionsDegraded,omitempty"`
	Results           []VerificationResult `json:"results" yaml:"results"`
	PageSpeed         *PageSpeedResult     `json:"pageSpeed,omitempty" yaml:"pageSpeed,omitempty"`
	CreatedAt         time.Time            `json:"createdAt" yaml:"createdAt"`
	Cached            bool                 `json:"cached" yaml:"cached"`
}

// URLResult は、バッチ処理における1URL分の結果、またはその処理中に発生したエラーを保持します。
type URLResult struct {
	URL    string  // 処理対象のURL
	Report *Report // 成功時のレポート
	Error  error   // 処理中に発生したエラー
}
