package cmd

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/internal/pipeline"
	"github.com/shouni/go-flowql/pkg/feed"
	"github.com/shouni/go-flowql/pkg/report"
	"github.com/shouni/go-flowql/pkg/resolver"
	"github.com/shouni/go-flowql/pkg/types"
)

var (
	resolveURL    string
	resolveFormat string
	resolveFeed   bool
)

func printComposite(w io.Writer, cp types.CompositePage) {
	fmt.Fprintf(w, "--- 統合ページ (%d ページ) ---\n", len(cp.Pages))
	for i, p := range cp.Pages {
		fmt.Fprintf(w, "[%d] %s (%s)\n", i+1, p.URL, p.Strategy)
	}
	if cp.AboutURL != "" {
		fmt.Fprintf(w, "About ページ: %s\n", cp.AboutURL)
	}
	fmt.Fprintf(w, "タイトル: %s\n", cp.Title)
	if cp.Description != "" {
		fmt.Fprintf(w, "説明: %s\n", cp.Description)
	}
	if len(cp.FeedTitles) > 0 {
		fmt.Fprintf(w, "フィード記事: %s\n", strings.Join(cp.FeedTitles, " / "))
	}
	fmt.Fprintf(w, "本文 (%d 文字): %s\n", len([]rune(cp.MainText)), preview(cp.MainText))
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "トップページと About ページなどを統合したコンテンツを表示します",
	Long: `指定されたURLのトップページを取得し、SPAの場合は /about などの候補ページを探索して
最大3ページ分のコンテンツを1つの統合ページにまとめます。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(resolveFormat, formatText, report.FormatJSON, report.FormatYAML); err != nil {
			return err
		}
		raw, err := resolveURLInput(resolveURL, cmd.InOrStdin())
		if err != nil {
			return err
		}
		target, err := pipeline.NormalizeURL(raw)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(overallTimeout(6))
		defer cancel()
		log.Printf("処理対象URL: %s", target)

		// 1. 依存性の初期化 (HTTPClient -> Extractor -> Resolver)
		client := newHTTPClient()
		extractor, err := newExtractor(client)
		if err != nil {
			return err
		}
		opts := []resolver.Option{resolver.WithLogger(appLogger.Named("resolver"))}
		if resolveFeed || appConfig.Fetch.WithFeed {
			opts = append(opts, resolver.WithFeedDigester(feed.NewParser(client)))
		}
		res, err := resolver.New(extractor, client, opts...)
		if err != nil {
			return fmt.Errorf("Resolverの初期化エラー: %w", err)
		}

		// 2. メインロジックの実行
		cp, err := res.Resolve(ctx, target)
		if err != nil {
			return fmt.Errorf("サイト統合エラー (URL: %s): %w", target, err)
		}

		// 3. 結果の出力
		if strings.EqualFold(resolveFormat, formatText) {
			printComposite(cmd.OutOrStdout(), cp)
			return nil
		}
		return writeStructured(cmd.OutOrStdout(), resolveFormat, cp)
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveURL, "url", "u", "", "対象サイトのURL")
	resolveCmd.Flags().StringVarP(&resolveFormat, "format", "f", formatText, "出力形式 (text|json|yaml)")
	resolveCmd.Flags().BoolVar(&resolveFeed, "with-feed", false, "RSS/Atomフィードの記事タイトルも統合する")
}
