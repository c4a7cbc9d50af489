package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/analyze"
	"github.com/shouni/go-flowql/pkg/cache"
	"github.com/shouni/go-flowql/pkg/metrics"
	"github.com/shouni/go-flowql/pkg/questions"
	"github.com/shouni/go-flowql/pkg/summarize"
	"github.com/shouni/go-flowql/pkg/types"
	"github.com/shouni/go-flowql/pkg/verify"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// SiteResolver は、開始URLから統合ページを作ります。
type SiteResolver interface {
	Resolve(ctx context.Context, startURL string) (types.CompositePage, error)
}

// ProfileSummarizer は、本文から事業プロファイルを推定します。
type ProfileSummarizer interface {
	Summarize(ctx context.Context, compositeText string) summarize.Summary
}

// QuestionGenerator は、事業プロファイルから質問を生成します。
type QuestionGenerator interface {
	Generate(ctx context.Context, p types.BusinessProfile) questions.QuestionSet
}

// CitationVerifier は、各エンジンの回答に会社名が含まれるかを確認します。
type CitationVerifier interface {
	Verify(ctx context.Context, questions []string, companyName string) []types.VerificationResult
}

// PerformanceScorer は、サイトのパフォーマンスを計測します (任意)。
type PerformanceScorer interface {
	Run(ctx context.Context, pageURL string) (*types.PageSpeedResult, error)
}

// ----------------------------------------------------------------------
// Pipeline
// ----------------------------------------------------------------------

// Option は Pipeline の設定を行う関数です。
type Option func(*Pipeline)

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCache はレポートのキャッシュと有効期間を設定します。
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.cache = c
		}
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

// WithPageSpeed はパフォーマンス計測を有効にします。
func WithPageSpeed(s PerformanceScorer) Option {
	return func(p *Pipeline) {
		p.pageSpeed = s
	}
}

// Pipeline は、取得・要約・質問生成・引用確認を順に実行するオーケストレーターです。
type Pipeline struct {
	resolver   SiteResolver
	summarizer ProfileSummarizer
	generator  QuestionGenerator
	verifier   CitationVerifier
	pageSpeed  PerformanceScorer

	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// New は新しい Pipeline を生成します。
func New(resolver SiteResolver, summarizer ProfileSummarizer, generator QuestionGenerator, verifier CitationVerifier, opts ...Option) (*Pipeline, error) {
	if resolver == nil || summarizer == nil || generator == nil || verifier == nil {
		return nil, fmt.Errorf("パイプラインの構成要素が不足しています")
	}
	p := &Pipeline{
		resolver:   resolver,
		summarizer: summarizer,
		generator:  generator,
		verifier:   verifier,
		cache:      cache.Nop{},
		cacheTTL:   cache.DefaultTTL,
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run は rawURL を解析し、レポートを返します。
// エラーになるのは、URLが不正な場合と開始URLの取得に失敗した場合だけです。
// それ以外の失敗は番兵値や status="fail" としてレポートに含まれます。
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*types.Report, error) {
	start := p.now()

	target, err := NormalizeURL(rawURL)
	if err != nil {
		metrics.AnalysesCompleted.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if cached, ok := p.lookup(ctx, target); ok {
		p.logger.Info("キャッシュ済みのレポートを返します", zap.String("url", target))
		metrics.AnalysesCompleted.WithLabelValues("cached").Inc()
		return cached, nil
	}

	// 1. ページ群の取得と統合
	composite, err := p.resolver.Resolve(ctx, target)
	if err != nil {
		metrics.AnalysesCompleted.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("サイトの取得に失敗しました (URL: %s): %w", target, err)
	}

	// 2. 本文の統計
	stats := analyze.Analyze(composite)

	// 3. 事業プロファイル
	summary := p.summarizer.Summarize(ctx, composite.MainText)

	// 4. 質問生成 (会社名は伏せる)
	qs := p.generator.Generate(ctx, summary.Profile)

	// 5. 引用確認
	results := p.verifier.Verify(ctx, qs.Questions, summary.Profile.CompanyName)

	report := &types.Report{
		ID:           p.newID(),
		URL:          target,
		FaviconURL:   FaviconURL(target),
		Composite:    composite,
		Stats:        stats,
		Profile:      summary.Profile,
		BusinessType: qs.BusinessType,
		Questions:    qs.Questions,
		Results:      results,
		CreatedAt:    p.now().UTC(),
	}
	if summary.Degraded {
		report.SummaryDegraded = summary.Reason
	}
	if qs.Degraded {
		report.QuestionsDegraded = qs.Reason
	}

	// 6. パフォーマンス (任意)
	if p.pageSpeed != nil {
		ps, err := p.pageSpeed.Run(ctx, target)
		if err != nil {
			p.logger.Warn("パフォーマンス計測に失敗しました", zap.String("url", target), zap.Error(err))
		}
		report.PageSpeed = ps
	}

	if reason := uncacheableReason(summary, qs, results); reason != "" {
		p.logger.Debug("一時的な失敗を含むためレポートをキャッシュしません", zap.String("url", target), zap.String("reason", reason))
	} else {
		p.store(ctx, target, report)
	}

	metrics.AnalysesCompleted.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.Observe(p.now().Sub(start).Seconds())
	p.logger.Info("解析が完了しました",
		zap.String("url", target),
		zap.String("id", report.ID),
		zap.Int("pages", len(composite.Pages)),
		zap.Int("questions", len(report.Questions)),
		zap.Bool("summaryDegraded", summary.Degraded),
	)
	return report, nil
}

func (p *Pipeline) lookup(ctx context.Context, target string) (*types.Report, bool) {
	raw, ok := p.cache.Get(ctx, CacheKey(target))
	if !ok {
		return nil, false
	}
	var r types.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		p.logger.Warn("キャッシュの内容を読み込めないため破棄します", zap.String("url", target), zap.Error(err))
		_ = p.cache.Delete(ctx, CacheKey(target))
		return nil, false
	}
	r.Cached = true
	return &r, true
}

// uncacheableReason は、再実行で結果が変わりうる場合にその理由を返します。
// APIキー未設定による縮退は再実行しても変わらないためキャッシュします。
func uncacheableReason(summary summarize.Summary, qs questions.QuestionSet, results []types.VerificationResult) string {
	switch {
	case summary.Degraded && summary.Reason != summarize.ReasonUnavailable:
		return "summary: " + summary.Reason
	case qs.Degraded && qs.Reason == questions.ReasonCallFailed:
		return "questions: " + qs.Reason
	case verify.HasTransientFailure(results):
		return "engine call failed"
	}
	return ""
}

func (p *Pipeline) store(ctx context.Context, target string, r *types.Report) {
	raw, err := json.Marshal(r)
	if err != nil {
		p.logger.Warn("レポートのシリアライズに失敗しました", zap.Error(err))
		return
	}
	if err := p.cache.Set(ctx, CacheKey(target), raw, p.cacheTTL); err != nil {
		p.logger.Warn("レポートのキャッシュに失敗しました", zap.String("url", target), zap.Error(err))
	}
}

// Invalidate は rawURL のキャッシュ済みレポートを削除します。
func (p *Pipeline) Invalidate(ctx context.Context, rawURL string) error {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	return p.cache.Delete(ctx, CacheKey(target))
}
