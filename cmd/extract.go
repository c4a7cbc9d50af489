package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/internal/pipeline"
	"github.com/shouni/go-flowql/pkg/extract"
	"github.com/shouni/go-flowql/pkg/report"
	"github.com/shouni/go-flowql/pkg/types"
)

const (
	formatText = "text"

	// プレビュー表示する本文の最大文字数
	previewLength = 300
)

var (
	extractURL    string
	extractFormat string
)

// runExtractionPipeline は、1ページ分の取得と抽出を実行するメインロジックです。
func runExtractionPipeline(ctx context.Context, extractor *extract.Extractor, rawURL string) (types.ExtractedPage, error) {
	page, err := extractor.FetchAndExtract(ctx, rawURL)
	if err != nil {
		return types.ExtractedPage{}, fmt.Errorf("コンテンツ抽出エラー (URL: %s): %w", rawURL, err)
	}
	return page, nil
}

func printPage(w io.Writer, page types.ExtractedPage) {
	fmt.Fprintf(w, "URL: %s\n", page.URL)
	fmt.Fprintf(w, "タイトル: %s\n", page.Title)
	if page.Description != "" {
		fmt.Fprintf(w, "説明: %s\n", page.Description)
	}
	fmt.Fprintf(w, "抽出方法: %s\n", page.Strategy)
	fmt.Fprintf(w, "見出し: %d 件, リンク: %d 件, 画像: %d 件\n", len(page.Headings), len(page.Links), len(page.Images))
	if page.MainText == "" {
		fmt.Fprintln(w, "本文は見つかりませんでした")
		return
	}
	fmt.Fprintln(w, "--- 抽出された本文 ---")
	fmt.Fprintln(w, page.MainText)
	fmt.Fprintln(w, "-----------------------")
}

func preview(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= previewLength {
		return string(r)
	}
	return string(r[:previewLength]) + "..."
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "指定されたURLまたは標準入力から1ページ分のコンテンツを抽出します",
	Long:  `指定されたURLのページを取得し、タイトル・説明・本文・見出し・リンク・画像・メタデータを抽出します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(extractFormat, formatText, report.FormatJSON, report.FormatYAML); err != nil {
			return err
		}

		// 1. 処理対象URLの決定 (フラグ優先)
		raw, err := resolveURLInput(extractURL, cmd.InOrStdin())
		if err != nil {
			return err
		}
		target, err := pipeline.NormalizeURL(raw)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(overallTimeout(2))
		defer cancel()
		log.Printf("処理対象URL: %s", target)

		// 2. 依存性の初期化
		extractor, err := newExtractor(newHTTPClient())
		if err != nil {
			return err
		}

		// 3. メインロジックの実行
		page, err := runExtractionPipeline(ctx, extractor, target)
		if err != nil {
			return err
		}

		// 4. 結果の出力
		if strings.EqualFold(extractFormat, formatText) {
			printPage(cmd.OutOrStdout(), page)
			return nil
		}
		return writeStructured(cmd.OutOrStdout(), extractFormat, page)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractURL, "url", "u", "", "抽出対象のURL")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", formatText, "出力形式 (text|json|yaml)")
}
