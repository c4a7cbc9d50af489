package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/pkg/questions"
	"github.com/shouni/go-flowql/pkg/report"
	"github.com/shouni/go-flowql/pkg/summarize"
	"github.com/shouni/go-flowql/pkg/types"
)

var (
	profileFile     string
	questionsFormat string
)

// readProfile は、事業プロファイルの JSON を読み込みます。
// {"businessSummary": {...}} の形式と、プロファイル単体の形式の両方を受け付けます。
func readProfile(r io.Reader) (types.BusinessProfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.BusinessProfile{}, fmt.Errorf("プロファイルの読み込みに失敗しました: %w", err)
	}
	var wrapped struct {
		BusinessSummary *types.BusinessProfile `json:"businessSummary"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return types.BusinessProfile{}, fmt.Errorf("プロファイルのJSONが不正です: %w", err)
	}
	if wrapped.BusinessSummary != nil {
		return summarize.NormalizeProfile(*wrapped.BusinessSummary), nil
	}
	var p types.BusinessProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return types.BusinessProfile{}, fmt.Errorf("プロファイルのJSONが不正です: %w", err)
	}
	return summarize.NormalizeProfile(p), nil
}

func printQuestionSet(w io.Writer, set questions.QuestionSet) {
	bt := set.BusinessType
	fmt.Fprintf(w, "事業種別: %s / 顧客: %s\n", bt.Type, bt.Audience)
	if bt.Reasoning != "" {
		fmt.Fprintf(w, "分類理由: %s\n", bt.Reasoning)
	}
	if set.Degraded {
		fmt.Fprintf(w, "(テンプレートで補完: %s)\n", set.Reason)
	}
	fmt.Fprintln(w, "--- 質問 ---")
	for i, q := range set.Questions {
		fmt.Fprintf(w, "%d. %s\n", i+1, q)
	}
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "事業プロファイル (JSON) から検索風の質問を生成します",
	Long: `標準入力または --file で指定された事業プロファイルの JSON を読み込み、
事業種別 (local/national/online) を判定して、会社名を含まない質問を3つ生成します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(questionsFormat, formatText, report.FormatJSON, report.FormatYAML); err != nil {
			return err
		}

		// 1. プロファイルの読み込み
		in := cmd.InOrStdin()
		if profileFile != "" {
			f, err := os.Open(profileFile)
			if err != nil {
				return fmt.Errorf("プロファイルファイルを開けません: %w", err)
			}
			defer f.Close()
			in = f
		}
		profile, err := readProfile(in)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(overallTimeout(4))
		defer cancel()

		// 2. 依存性の初期化
		c, err := buildComponents(ctx, false)
		if err != nil {
			return err
		}
		defer c.Close()

		// 3. 質問の生成
		set := c.Generator.Generate(ctx, profile)

		// 4. 結果の出力
		if strings.EqualFold(questionsFormat, formatText) {
			printQuestionSet(cmd.OutOrStdout(), set)
			return nil
		}
		return writeStructured(cmd.OutOrStdout(), questionsFormat, set)
	},
}

func init() {
	questionsCmd.Flags().StringVar(&profileFile, "file", "", "事業プロファイル (JSON) のファイルパス (省略時は標準入力)")
	questionsCmd.Flags().StringVarP(&questionsFormat, "format", "f", formatText, "出力形式 (text|json|yaml)")
}
