package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/pkg/report"
	"github.com/shouni/go-flowql/pkg/verify"
)

var (
	verifyCompany   string
	verifyQuestions []string
	verifyFormat    string
	verifyTimings   bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "質問を各AI回答エンジンに送り、回答に会社名が含まれるかを確認します",
	Long: `--question で指定された質問 (省略時は標準入力の各行) を ChatGPT, Claude, Gemini, Perplexity に送り、
回答に --company の会社名がそのまま含まれるかを質問×エンジンの表で表示します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(verifyFormat, report.FormatTable, report.FormatJSON, report.FormatYAML, report.FormatCSV); err != nil {
			return err
		}
		company := strings.TrimSpace(verifyCompany)
		if company == "" {
			return fmt.Errorf("会社名 (--company) が指定されていません")
		}

		// 1. 質問の決定 (フラグ優先)
		qs := verifyQuestions
		if len(qs) == 0 {
			log.Println("質問が指定されていないため、標準入力から1行ずつ読み込みます (Ctrl+DまたはEOFで終了)...")
			lines, err := readLines(cmd.InOrStdin())
			if err != nil {
				return err
			}
			qs = lines
		}
		if len(qs) == 0 {
			return fmt.Errorf("質問が一つも指定されていません")
		}

		ctx, cancel := commandContext(overallTimeout(4 * len(qs)))
		defer cancel()

		// 2. 依存性の初期化
		c, err := buildComponents(ctx, false)
		if err != nil {
			return err
		}
		defer c.Close()

		// 3. 引用確認の実行
		results := c.Verifier.Verify(ctx, qs, company)
		engines := c.Verifier.EngineNames()

		// 4. 結果の出力
		w := cmd.OutOrStdout()
		switch strings.ToLower(verifyFormat) {
		case report.FormatJSON:
			return report.WriteJSON(w, results)
		case report.FormatYAML:
			return report.WriteYAML(w, results)
		case report.FormatCSV:
			return report.WriteCSV(w, results, engines, csvOptions(verifyTimings)...)
		}
		fmt.Fprintln(w, report.RenderMatrix(results, engines))
		fmt.Fprintf(w, "引用数: %d / %d\n", verify.MatchCount(results), len(results)*len(engines))
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyCompany, "company", "c", "", "確認する会社名 (大文字小文字を区別)")
	verifyCmd.Flags().StringArrayVarP(&verifyQuestions, "question", "q", nil, "エンジンに送る質問 (複数指定可)")
	verifyCmd.Flags().StringVarP(&verifyFormat, "format", "f", report.FormatTable, "出力形式 (table|json|yaml|csv)")
	verifyCmd.Flags().BoolVar(&verifyTimings, "timings", false, "CSV出力にエンジンごとの応答時間 (ミリ秒) の列を追加する")
}
