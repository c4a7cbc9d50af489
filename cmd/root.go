package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-flowql/internal/pipeline"
	"github.com/shouni/go-flowql/pkg/config"
	"github.com/shouni/go-flowql/pkg/extract"
	"github.com/shouni/go-flowql/pkg/httpclient"
)

// --- グローバル定数 ---

const (
	appName           = "flowql"
	defaultTimeoutSec = 15 // 秒
	defaultMaxRetries = 3  // 最大試行回数

	// 全体処理のタイムアウト (HTTPタイムアウトが 0 の場合に利用)
	DefaultOverallTimeout = 5 * time.Minute
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout タイムアウト
	MaxRetries int    // --max-retries 最大試行回数
	ConfigFile string // --config-file 設定ファイル (YAML)
	NoCache    bool   // --no-cache レポートキャッシュを使わない
}

var (
	Flags     AppFlags
	appConfig *config.Config
	appLogger = zap.NewNop()
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		defaultTimeoutSec,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxRetries,
		"max-retries",
		defaultMaxRetries,
		"HTTPリクエストの最大試行回数",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.ConfigFile,
		"config-file",
		"",
		"設定ファイル (YAML) のパス",
	)
	rootCmd.PersistentFlags().BoolVar(
		&Flags.NoCache,
		"no-cache",
		false,
		"解析レポートのキャッシュを使わない",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(clibase.Flags.Verbose)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗しました: %w", err)
	}
	appLogger = logger

	config.LoadDotEnv()
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return err
	}

	// 明示的に指定されたフラグだけを設定に反映する
	if f := cmd.Flag("timeout"); f != nil && f.Changed {
		cfg.Fetch.Timeout = time.Duration(Flags.TimeoutSec) * time.Second
	}
	if f := cmd.Flag("max-retries"); f != nil && f.Changed {
		cfg.Fetch.MaxAttempts = Flags.MaxRetries
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	appConfig = cfg

	appLogger.Debug("設定を読み込みました",
		zap.Duration("timeout", cfg.Fetch.Timeout),
		zap.Int("max_attempts", cfg.Fetch.MaxAttempts),
		zap.String("cache", cfg.Cache.Backend),
		zap.Any("engines", cfg.EngineAvailability()),
	)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// newHTTPClient は、設定に従った共有HTTPクライアントを返します。
func newHTTPClient() *httpclient.Client {
	return httpclient.New(appConfig.Fetch.Timeout,
		httpclient.WithMaxAttempts(appConfig.Fetch.MaxAttempts),
		httpclient.WithRetryStep(appConfig.Fetch.RetryStep),
		httpclient.WithMaxBodySize(appConfig.Fetch.MaxBodySize),
		httpclient.WithProbeTimeout(appConfig.Fetch.ProbeTimeout),
		httpclient.WithLogger(appLogger.Named("http")),
	)
}

func newExtractor(client *httpclient.Client) (*extract.Extractor, error) {
	extractor, err := extract.NewExtractor(client, extract.WithLogger(appLogger.Named("extract")))
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
	}
	return extractor, nil
}

// buildComponents は、解析パイプライン全体を組み立てます。
// レポートを扱わないサブコマンドは withCache に false を渡します。
func buildComponents(ctx context.Context, withCache bool) (*pipeline.Components, error) {
	c, err := pipeline.Build(ctx, appConfig, appLogger, pipeline.BuildOptions{NoCache: Flags.NoCache || !withCache})
	if err != nil {
		return nil, fmt.Errorf("構成要素の初期化に失敗しました: %w", err)
	}
	return c, nil
}

// commandContext は、Ctrl+C で中断でき、全体タイムアウトを持つコンテキストを返します。
// timeout が 0 の場合はタイムアウトを設定しません。
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// overallTimeout は、HTTPタイムアウトの factor 倍を全体のタイムアウトとして返します。
func overallTimeout(factor int) time.Duration {
	if appConfig == nil || appConfig.Fetch.Timeout <= 0 {
		return DefaultOverallTimeout
	}
	return appConfig.Fetch.Timeout * time.Duration(factor)
}

// --- エントリポイント ---

// clibase.Execute は失敗時に os.Exit するため defer は実行されない。
// ログのフラッシュはコマンド終了時 (成功・失敗とも) の cobra の終了処理で行う。
func init() {
	cobra.OnFinalize(syncLogger)
}

// syncLogger は、バッファされたログを書き出します。
func syncLogger() {
	_ = appLogger.Sync()
}

// Execute は、rootCmd を実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		analyzeCmd,
		extractCmd,
		resolveCmd,
		questionsCmd,
		verifyCmd,
		batchCmd,
		parseCmd,
		serveCmd,
	)
}
