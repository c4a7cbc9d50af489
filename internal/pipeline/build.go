package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/cache"
	"github.com/shouni/go-flowql/pkg/config"
	"github.com/shouni/go-flowql/pkg/engine"
	"github.com/shouni/go-flowql/pkg/extract"
	"github.com/shouni/go-flowql/pkg/feed"
	"github.com/shouni/go-flowql/pkg/httpclient"
	"github.com/shouni/go-flowql/pkg/llm"
	"github.com/shouni/go-flowql/pkg/pagespeed"
	"github.com/shouni/go-flowql/pkg/questions"
	"github.com/shouni/go-flowql/pkg/resolver"
	"github.com/shouni/go-flowql/pkg/summarize"
	"github.com/shouni/go-flowql/pkg/verify"
)

// Components は、設定から組み立てた構成要素です。CLI の各サブコマンドと HTTP サーバーが共有します。
type Components struct {
	Config     *config.Config
	HTTP       *httpclient.Client
	Extractor  *extract.Extractor
	Resolver   *resolver.Resolver
	Summarizer *summarize.Summarizer
	Generator  *questions.Generator
	Engines    []engine.Engine
	Verifier   *verify.Verifier
	PageSpeed  *pagespeed.Client
	Cache      cache.Cache
	Pipeline   *Pipeline

	closers []func() error
}

// Close は、外部接続 (Redis など) を閉じます。
func (c *Components) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildOptions は Build の追加設定です。
type BuildOptions struct {
	NoCache bool
}

// Build は、設定からすべての構成要素を組み立てます。
// APIキーがない要素は縮退した状態で組み立て、エラーにはしません。
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts BuildOptions) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg}

	// 取得
	c.HTTP = httpclient.New(cfg.Fetch.Timeout,
		httpclient.WithMaxAttempts(cfg.Fetch.MaxAttempts),
		httpclient.WithRetryStep(cfg.Fetch.RetryStep),
		httpclient.WithMaxBodySize(cfg.Fetch.MaxBodySize),
		httpclient.WithProbeTimeout(cfg.Fetch.ProbeTimeout),
		httpclient.WithLogger(logger.Named("http")),
	)

	extractor, err := extract.NewExtractor(c.HTTP, extract.WithLogger(logger.Named("extract")))
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
	}
	c.Extractor = extractor

	resolverOpts := []resolver.Option{resolver.WithLogger(logger.Named("resolver"))}
	if cfg.Fetch.WithFeed {
		resolverOpts = append(resolverOpts, resolver.WithFeedDigester(feed.NewParser(c.HTTP)))
	}
	c.Resolver, err = resolver.New(extractor, c.HTTP, resolverOpts...)
	if err != nil {
		return nil, fmt.Errorf("Resolverの初期化エラー: %w", err)
	}

	// 要約・質問生成
	var completer llm.Completer
	client, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.Engines.OpenAI.APIKey,
		Model:   cfg.Summarizer.Model,
		Timeout: cfg.Engines.Timeout,
	})
	switch {
	case err == nil:
		completer = client
	case errors.Is(err, llm.ErrMissingAPIKey):
		logger.Warn("OPENAI_API_KEY が未設定のため、要約と質問生成は縮退します")
	default:
		return nil, fmt.Errorf("要約モデルの初期化エラー: %w", err)
	}
	c.Summarizer = summarize.New(completer, summarize.WithLogger(logger.Named("summarize")))
	c.Generator = questions.NewGenerator(completer, questions.WithLogger(logger.Named("questions")))

	// 引用確認
	c.Engines = engine.NewDefaultSet(ctx, cfg.EngineSettings(), c.HTTP, logger.Named("engine"))
	c.Verifier = verify.New(c.Engines, verify.WithLogger(logger.Named("verify")))

	// パフォーマンス
	// 計測は取得より大幅に遅く、1回の呼び出しでクォータを消費するため専用のクライアントで1回だけ試行する
	psHTTP := httpclient.New(cfg.PageSpeed.Timeout,
		httpclient.WithMaxAttempts(1),
		httpclient.WithMaxBodySize(cfg.Fetch.MaxBodySize),
		httpclient.WithLogger(logger.Named("pagespeed.http")),
	)
	c.PageSpeed = pagespeed.New(psHTTP, cfg.PageSpeed.APIKey,
		pagespeed.WithBaseURL(cfg.PageSpeed.BaseURL),
		pagespeed.WithLogger(logger.Named("pagespeed")),
	)

	// キャッシュ
	c.Cache, err = c.buildCache(ctx, opts.NoCache, logger)
	if err != nil {
		return nil, err
	}

	pipelineOpts := []Option{
		WithLogger(logger.Named("pipeline")),
		WithCache(c.Cache, cfg.Cache.TTL),
	}
	if c.PageSpeed.Available() {
		pipelineOpts = append(pipelineOpts, WithPageSpeed(c.PageSpeed))
	}
	c.Pipeline, err = New(c.Resolver, c.Summarizer, c.Generator, c.Verifier, pipelineOpts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) buildCache(ctx context.Context, disabled bool, logger *zap.Logger) (cache.Cache, error) {
	backend := c.Config.Cache.Backend
	if disabled {
		backend = config.CacheNone
	}
	switch backend {
	case config.CacheNone:
		return cache.Nop{}, nil
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, c.Config.Cache.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("キャッシュの初期化エラー: %w", err)
		}
		c.closers = append(c.closers, r.Close)
		logger.Info("Redisキャッシュを使用します", zap.String("addr", c.Config.Cache.RedisAddr))
		return r, nil
	default:
		return cache.NewLocalLRU(c.Config.Cache.Capacity), nil
	}
}
