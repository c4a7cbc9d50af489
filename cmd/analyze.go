package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/internal/pipeline"
	"github.com/shouni/go-flowql/pkg/report"
	"github.com/shouni/go-flowql/pkg/types"
)

// analyze 全体は多数のLLM呼び出しを含むため、HTTPタイムアウトより十分長くとる
const analyzeTimeoutFactor = 20

var (
	analyzeURL     string
	analyzeFormat  string
	analyzeFresh   bool
	analyzeTimings bool
)

// runAnalyzePipeline は、URLの解析を実行するメインロジックです。
func runAnalyzePipeline(ctx context.Context, p *pipeline.Pipeline, rawURL string, fresh bool) (*types.Report, error) {
	if fresh {
		if err := p.Invalidate(ctx, rawURL); err != nil {
			return nil, err
		}
	}
	r, err := p.Run(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("サイト解析エラー (URL: %s): %w", rawURL, err)
	}
	return r, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "サイトを解析し、AI回答エンジンに引用されているかを確認します",
	Long: `指定されたURLのサイトを取得・解析して事業プロファイルを要約し、
購入検討者が尋ねそうな質問を各AI回答エンジン (ChatGPT, Claude, Gemini, Perplexity) に送って
回答に会社名が含まれるかを一覧表示します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 入力の検証
		if err := checkFormat(analyzeFormat, report.Formats()...); err != nil {
			return err
		}
		target, err := resolveURLInput(analyzeURL, cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(overallTimeout(analyzeTimeoutFactor))
		defer cancel()

		// 2. 依存性の初期化
		c, err := buildComponents(ctx, true)
		if err != nil {
			return err
		}
		defer c.Close()

		log.Printf("解析を開始します (URL: %s)", target)

		// 3. メインロジックの実行
		r, err := runAnalyzePipeline(ctx, c.Pipeline, target, analyzeFresh)
		if err != nil {
			return err
		}

		// 4. 結果の出力
		return report.Write(cmd.OutOrStdout(), analyzeFormat, r, c.Verifier.EngineNames(), csvOptions(analyzeTimings)...)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeURL, "url", "u", "", "解析対象のURL")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", report.FormatTable, "出力形式 (table|json|yaml|csv)")
	analyzeCmd.Flags().BoolVar(&analyzeFresh, "fresh", false, "キャッシュ済みのレポートを破棄して再解析する")
	analyzeCmd.Flags().BoolVar(&analyzeTimings, "timings", false, "CSV出力にエンジンごとの応答時間 (ミリ秒) の列を追加する")
}
