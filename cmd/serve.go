package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-flowql/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "解析パイプラインを HTTP API として公開します",
	Long: `POST /api/analyze, POST /api/generate-questions, POST /api/llm/query, GET /api/llm/engines と
/healthz, /metrics を提供する HTTP サーバーを起動します。Ctrl+C で正常終了します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		addr := appConfig.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		// サーバーは全体タイムアウトを持たず、シグナルでのみ停止する
		ctx, cancel := commandContext(0)
		defer cancel()

		c, err := buildComponents(ctx, true)
		if err != nil {
			return err
		}
		defer c.Close()

		srv := server.New(c.Pipeline, c.Generator, c.Verifier, c.Engines,
			server.WithLogger(appLogger.Named("server")),
		)
		appLogger.Info("エンジンの利用可否", zap.Any("engines", appConfig.EngineAvailability()))
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "待ち受けアドレス (省略時は設定ファイルの server.addr)")
}
