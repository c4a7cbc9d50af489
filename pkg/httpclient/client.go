package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/shouni/go-flowql/pkg/metrics"
	"github.com/shouni/go-flowql/pkg/retry"
	"github.com/shouni/go-flowql/pkg/types"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout  = 15 * time.Second
	DefaultProbeTimeout = 5 * time.Second
	MaxBodySize         = int64(2_000_000) // レスポンスボディの最大読み込みサイズ

	// サイトからのブロックを避けるためのUser-Agent
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

	maxErrorBodyLength = 1024
)

// ErrBodyTooLarge は、レスポンスボディが上限サイズを超えたことを示します。
var ErrBodyTooLarge = errors.New("レスポンスボディが最大サイズを超えました")

// NonRetryableHTTPError はHTTP 4xx系のステータスコードエラーを示すカスタムエラー型です。
type NonRetryableHTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *NonRetryableHTTPError) Error() string {
	if len(e.Body) > 0 {
		body := strings.TrimSpace(string(e.Body))
		if len(body) > maxErrorBodyLength {
			body = body[:maxErrorBodyLength] + "..."
		}
		return fmt.Sprintf("HTTPクライアントエラー (非リトライ対象): ステータスコード %d, ボディ: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("HTTPクライアントエラー (非リトライ対象): ステータスコード %d, ボディなし", e.StatusCode)
}

// NetworkError は、すべての試行を使い切った取得の失敗を表します。
// 元の原因は Unwrap で取り出せます。
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ネットワークエラー (URL: %s, 試行回数: %d): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError は、err が NetworkError を含むかどうかを判定します。
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Doer は、標準の *http.Client.Do()と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client はHTTPリクエストと線形バックオフを用いたリトライロジックを管理します。
type Client struct {
	httpClient   Doer
	timeout      time.Duration
	probeTimeout time.Duration
	maxBodySize  int64
	retryConfig  retry.Config
	logger       *zap.Logger
}

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) { c.httpClient = doer }
}

// WithMaxAttempts は初回を含めた最大試行回数を設定します。
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) { c.retryConfig.MaxAttempts = n }
}

// WithRetryStep は線形バックオフの刻み幅を設定します。
func WithRetryStep(step time.Duration) ClientOption {
	return func(c *Client) { c.retryConfig.Step = step }
}

// WithMaxBodySize はレスポンスボディの上限サイズを設定します。
func WithMaxBodySize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithProbeTimeout は存在確認 (HEAD) のタイムアウトを設定します。
func WithProbeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New は、新しいClientを生成します。timeout はリクエスト1回あたりの応答タイムアウトです。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		timeout:      timeout,
		probeTimeout: DefaultProbeTimeout,
		maxBodySize:  MaxBodySize,
		retryConfig:  retry.DefaultConfig(),
		logger:       zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}

	c.retryConfig.Notify = func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("取得に失敗したためリトライします",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return c
}

// addCommonHeaders は共通のHTTPヘッダーを設定します。
func (c *Client) addCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

// Fetch は URL に GET を発行し、結果を返します。
// URL の正規化は行いません (呼び出し側の責務)。すべての試行が失敗した場合は *NetworkError を返します。
func (c *Client) Fetch(ctx context.Context, url string) (*types.FetchResult, error) {
	return c.FetchWithHeaders(ctx, url, nil)
}

// FetchWithHeaders は、headers をリクエストに追加して Fetch と同じ取得を行います。
// 認証情報はクエリではなくヘッダーで渡すことで、エラーやログに URL ごと残らないようにします。
func (c *Client) FetchWithHeaders(ctx context.Context, url string, headers map[string]string) (*types.FetchResult, error) {
	var result *types.FetchResult

	op := func() error {
		var fetchErr error
		result, fetchErr = c.doFetch(ctx, url, headers)
		if fetchErr != nil {
			metrics.FetchAttempts.WithLabelValues("error").Inc()
			return fetchErr
		}
		metrics.FetchAttempts.WithLabelValues("ok").Inc()
		return nil
	}

	// 呼び出し元のキャンセル/タイムアウトはリトライしても回復しない
	shouldRetry := func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return isHTTPRetryableError(err)
	}

	attempts, err := retry.DoCount(ctx, c.retryConfig, fmt.Sprintf("URL(%s)のフェッチ", url), op, shouldRetry)
	if err != nil {
		return nil, &NetworkError{URL: url, Attempts: attempts, Err: err}
	}
	return result, nil
}

// FetchBytes は Fetch のボディのみを返す簡易版です。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return c.FetchBytesWithHeaders(ctx, url, nil)
}

// FetchBytesWithHeaders は FetchWithHeaders のボディのみを返す簡易版です。
func (c *Client) FetchBytesWithHeaders(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	res, err := c.FetchWithHeaders(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	return res.RawBody, nil
}

// doFetch は実際の一度のHTTP GETリクエストを実行します。
func (c *Client) doFetch(ctx context.Context, url string, headers map[string]string) (*types.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NonRetryableHTTPError{StatusCode: 0, Body: []byte(err.Error())}
	}
	c.addCommonHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponseForRetry(resp); err != nil {
		return nil, err
	}

	body, err := c.readLimited(resp)
	if err != nil {
		return nil, err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &types.FetchResult{
		URL:     finalURL,
		Status:  resp.StatusCode,
		RawBody: body,
		Headers: resp.Header,
	}, nil
}

// readLimited はレスポンスボディを上限サイズまで読み込みます。
// ちょうど上限サイズのボディは受け入れ、1バイトでも超えた場合は ErrBodyTooLarge を返します。
func (c *Client) readLimited(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > c.maxBodySize {
		return nil, fmt.Errorf("%w (%dバイト > %dバイト)", ErrBodyTooLarge, resp.ContentLength, c.maxBodySize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w (上限 %dバイト)", ErrBodyTooLarge, c.maxBodySize)
	}
	return body, nil
}

// Exists は、HEAD リクエストで URL が 200 を返すかどうかを確認します。
// 軽量な存在確認であり、リトライは行いません。
func (c *Client) Exists(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	c.addCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyLength))

	return resp.StatusCode == http.StatusOK
}

// PostJSON は指定されたデータをJSONとしてPOSTし、レスポンスボディを返します。
// LLM API 呼び出し用のため、リトライは行いません。2xx 以外はエラーとして返します。
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, data any) ([]byte, error) {
	requestBody, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("JSONデータのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("POSTリクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP POSTリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, &NonRetryableHTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return c.readLimited(resp)
}

// checkResponseForRetry はHTTPレスポンスのステータスコードを評価し、リトライすべきエラーか、非リトライ対象のエラーかを返します。
// 2xx と、HTTPクライアントが追跡しなかった 3xx は成功として扱います。
func checkResponseForRetry(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}

	// 注意: この関数はレスポンスボディを読み込みますが、閉じる責務は持ちません。
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))

	// 5xx 系 (およびその他): リトライ対象のサーバーエラー
	if resp.StatusCode >= 500 || resp.StatusCode < 400 {
		return fmt.Errorf("HTTPステータスコードエラー (リトライ対象): %d, 詳細: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	// 4xx 系: 非リトライ対象のクライアントエラー
	return &NonRetryableHTTPError{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
	}
}

// IsNonRetryableError は与えられたエラーが非リトライ対象のHTTPエラーであるかを判断します。
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var nonRetryable *NonRetryableHTTPError
	return errors.As(err, &nonRetryable)
}

// isHTTPRetryableError はエラーがHTTPリトライ対象かどうかを判定します。
func isHTTPRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsNonRetryableError(err) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	return true
}

// DecodeBody は、Content-Type とボディの内容から文字コードを判定し、UTF-8 の文字列に変換します。
func DecodeBody(body []byte, contentType string) string {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
