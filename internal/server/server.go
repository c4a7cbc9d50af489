package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/engine"
	"github.com/shouni/go-flowql/pkg/questions"
	"github.com/shouni/go-flowql/pkg/types"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Analyzer は、URLを解析してレポートを返します。
type Analyzer interface {
	Run(ctx context.Context, rawURL string) (*types.Report, error)
}

// QuestionGenerator は、事業プロファイルから質問を生成します。
type QuestionGenerator interface {
	Generate(ctx context.Context, p types.BusinessProfile) questions.QuestionSet
}

// CitationVerifier は、各エンジンの回答に会社名が含まれるかを確認します。
type CitationVerifier interface {
	Verify(ctx context.Context, questions []string, companyName string) []types.VerificationResult
}

// Server は解析パイプラインを HTTP API として公開します。
type Server struct {
	analyzer  Analyzer
	generator QuestionGenerator
	verifier  CitationVerifier
	engines   []engine.Engine
	logger    *zap.Logger
}

// Option は Server の設定を行う関数です。
type Option func(*Server)

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New は新しい Server を生成します。
func New(analyzer Analyzer, generator QuestionGenerator, verifier CitationVerifier, engines []engine.Engine, opts ...Option) *Server {
	s := &Server{
		analyzer:  analyzer,
		generator: generator,
		verifier:  verifier,
		engines:   engines,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler はルーティング済みの http.Handler を返します。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/generate-questions", s.handleGenerateQuestions)
	mux.HandleFunc("POST /api/llm/query", s.handleQuery)
	mux.HandleFunc("GET /api/llm/engines", s.handleEngines)

	return s.requestLogger(mux)
}

// ListenAndServe は addr で待ち受け、ctx がキャンセルされると正常終了します。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動しました", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗しました: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("HTTPサーバーを停止します")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗しました: %w", err)
	}
	return nil
}

// ----------------------------------------------------------------------
// ミドルウェア
// ----------------------------------------------------------------------

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("リクエストを処理しました",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
