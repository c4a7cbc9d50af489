package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/pkg/batch"
	"github.com/shouni/go-flowql/pkg/types"
	"github.com/shouni/go-flowql/pkg/verify"
)

// コマンドラインフラグ変数を定義
var (
	inputURLs   string // --urls フラグで受け取るカンマ区切りのURLリスト
	concurrency int    // --concurrency フラグで受け取る並列実行数
)

// runBatchPipeline は、複数URLの並列解析を実行するメインロジックです。
func runBatchPipeline(ctx context.Context, w io.Writer, runner *batch.Runner, urls []string) (failed int) {
	results := runner.RunAll(ctx, urls)
	return printBatchResults(w, results)
}

func printBatchResults(w io.Writer, results []types.URLResult) (failed int) {
	fmt.Fprintln(w, "--- 並列解析結果 ---")

	for i, res := range results {
		if res.Error != nil {
			failed++
			fmt.Fprintf(w, "❌ [%d] %s\n", i+1, res.URL)
			fmt.Fprintf(w, "     エラー: %v\n", res.Error)
			continue
		}
		r := res.Report
		fmt.Fprintf(w, "✅ [%d] %s\n", i+1, res.URL)
		fmt.Fprintf(w, "     会社名: %s (%s)\n", r.Profile.CompanyName, r.BusinessType.Type)
		fmt.Fprintf(w, "     引用数: %d / %d\n", verify.MatchCount(r.Results), cellCount(r.Results))
		if r.Cached {
			fmt.Fprintln(w, "     (キャッシュ済みのレポート)")
		}
	}

	fmt.Fprintln(w, "-------------------------------")
	fmt.Fprintf(w, "完了: 成功 %d 件, 失敗 %d 件\n", len(results)-failed, failed)
	return failed
}

func cellCount(results []types.VerificationResult) int {
	n := 0
	for _, vr := range results {
		n += len(vr.PerEngineResult)
	}
	return n
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "複数のURLを並列で解析します",
	Long:  `--urls フラグでカンマ区切りのURLリストを受け取るか、標準入力からURLを一行ずつ読み込み、指定された最大同時実行数で並列解析を実行します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 処理対象URLのリストを決定
		urls := splitList(inputURLs)
		if len(urls) == 0 {
			log.Println("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)...")
			lines, err := readLines(cmd.InOrStdin())
			if err != nil {
				return err
			}
			urls = lines
		}
		if len(urls) == 0 {
			return fmt.Errorf("処理対象のURLが一つも指定されていません")
		}

		n := appConfig.Batch.Concurrency
		if f := cmd.Flag("concurrency"); f != nil && f.Changed {
			n = concurrency
		}

		ctx, cancel := commandContext(overallTimeout(analyzeTimeoutFactor) * time.Duration(len(urls)))
		defer cancel()

		// 2. 依存性の初期化
		c, err := buildComponents(ctx, true)
		if err != nil {
			return err
		}
		defer c.Close()

		runner := batch.NewRunner(c.Pipeline,
			batch.WithMaxConcurrency(n),
			batch.WithRateLimit(appConfig.Batch.RateLimit),
			batch.WithLogger(appLogger.Named("batch")),
		)
		log.Printf("並列解析開始 (対象URL数: %d, 最大同時実行数: %d)", len(urls), n)

		// 3. メインロジックの実行
		if failed := runBatchPipeline(ctx, cmd.OutOrStdout(), runner, urls); failed == len(urls) {
			return fmt.Errorf("すべてのURLの解析に失敗しました")
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&inputURLs, "urls", "u", "",
		"解析対象のカンマ区切りURLリスト (例: url1,url2,url3)")

	batchCmd.Flags().IntVarP(&concurrency, "concurrency", "c",
		batch.DefaultMaxConcurrency,
		fmt.Sprintf("最大並列実行数 (デフォルト: %d)", batch.DefaultMaxConcurrency))
}
