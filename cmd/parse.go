package cmd

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-flowql/pkg/feed"
)

// フィードURLを保持するフラグ変数
var feedURL string

// フィード取得の全体タイムアウトはHTTPタイムアウトの2倍 (extractCmdと統一)
const overallFeedTimeoutFactor = 2

// runParsePipeline は、フィードの取得とパースを実行するメインロジックです。
func runParsePipeline(ctx context.Context, url string, parser *feed.Parser) (*gofeed.Feed, error) {
	parsedFeed, err := parser.FetchAndParse(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得およびパースエラー (URL: %s): %w", url, err)
	}
	return parsedFeed, nil
}

func printFeed(w io.Writer, parsedFeed *gofeed.Feed) {
	fmt.Fprintf(w, "--- フィード解析結果 ---\n")
	fmt.Fprintf(w, "フィードタイトル: %s\n", parsedFeed.Title)
	if parsedFeed.Link != "" {
		fmt.Fprintf(w, "リンク: %s\n", parsedFeed.Link)
	}
	fmt.Fprintf(w, "合計記事数: %d\n", len(parsedFeed.Items))
	fmt.Fprintln(w, "-----------------------")

	for i, item := range parsedFeed.Items {
		fmt.Fprintf(w, "[%d] %s\n", i+1, item.Title)
		fmt.Fprintf(w, "    URL: %s\n", item.Link)
		if item.PublishedParsed != nil {
			fmt.Fprintf(w, "    公開日: %s\n", item.PublishedParsed.Local().Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Fprintln(w)
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "RSS/Atomフィードを取得・解析し、タイトルと記事を一覧表示します",
	Long: `指定されたURLからRSSまたはAtomフィードを取得し、その内容（フィードタイトル、記事タイトル、URL）を整形して表示します。
resolve --with-feed が統合ページに取り込む記事タイトルの確認に使えます。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(overallTimeout(overallFeedTimeoutFactor))
		defer cancel()
		log.Printf("処理対象フィードURL: %s", feedURL)

		// 1. 依存性の初期化
		parser := feed.NewParser(newHTTPClient())

		// 2. メインロジックの実行
		parsedFeed, err := runParsePipeline(ctx, feedURL, parser)
		if err != nil {
			return fmt.Errorf("フィード解析パイプラインの実行エラー: %w", err)
		}

		// 3. 結果の出力
		printFeed(cmd.OutOrStdout(), parsedFeed)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	_ = parseCmd.MarkFlagRequired("url")
}
