package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	// モック側では *http.Response 型の nil を返すこと
	return args.Get(0).(*http.Response), args.Error(1)
}

func newResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: -1,
		Header:        make(http.Header),
	}
}

// テスト用の高速なクライアント
func newTestClient(doer Doer, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithHTTPClient(doer), WithRetryStep(time.Millisecond)}, opts...)
	return New(time.Second, opts...)
}

func TestNew(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		client := New(0)
		assert.Equal(t, DefaultHTTPTimeout, client.httpClient.(*http.Client).Timeout)
		assert.Equal(t, MaxBodySize, client.maxBodySize)
		assert.Equal(t, 3, client.retryConfig.MaxAttempts)
	})
	t.Run("custom timeout", func(t *testing.T) {
		timeout := 30 * time.Second
		client := New(timeout)
		assert.Equal(t, timeout, client.httpClient.(*http.Client).Timeout)
	})
	t.Run("with options", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		client := New(10*time.Second, WithHTTPClient(mockClient), WithMaxAttempts(5), WithMaxBodySize(10))
		assert.Equal(t, mockClient, client.httpClient)
		assert.Equal(t, 5, client.retryConfig.MaxAttempts)
		assert.Equal(t, int64(10), client.maxBodySize)
	})
}

func TestNonRetryableHTTPError_Error(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		expected   string
		statusCode int
	}{
		{"non-empty body", []byte("error body"), "HTTPクライアントエラー (非リトライ対象): ステータスコード 400, ボディ: error body", 400},
		{"empty body", nil, "HTTPクライアントエラー (非リトライ対象): ステータスコード 400, ボディなし", 400},
		{"truncated body", []byte(strings.Repeat("a", 1025)), "HTTPクライアントエラー (非リトライ対象): ステータスコード 400, ボディ: " + strings.Repeat("a", 1024) + "...", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &NonRetryableHTTPError{StatusCode: tt.statusCode, Body: tt.body}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestFetch(t *testing.T) {
	t.Run("successful fetch sets user agent", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Method == http.MethodGet && req.Header.Get("User-Agent") == UserAgent
		})).Return(newResponse(http.StatusOK, []byte("<html></html>")), nil).Once()

		client := newTestClient(mockClient)
		res, err := client.Fetch(context.Background(), "https://example.com")

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, []byte("<html></html>"), res.RawBody)
		assert.Equal(t, "https://example.com", res.URL)
		mockClient.AssertExpectations(t)
	})

	t.Run("extra headers are sent alongside common ones", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Header.Get("X-Goog-Api-Key") == "k" && req.Header.Get("User-Agent") == UserAgent
		})).Return(newResponse(http.StatusOK, []byte("{}")), nil).Once()

		client := newTestClient(mockClient)
		body, err := client.FetchBytesWithHeaders(context.Background(), "https://example.com/api", map[string]string{"X-Goog-Api-Key": "k"})

		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), body)
		mockClient.AssertExpectations(t)
	})

	t.Run("5xx is retried and then succeeds", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusServiceUnavailable, []byte("busy")), nil).Once()
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusOK, []byte("ok")), nil).Once()

		client := newTestClient(mockClient)
		body, err := client.FetchBytes(context.Background(), "https://example.com")

		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), body)
		mockClient.AssertNumberOfCalls(t, "Do", 2)
	})

	t.Run("three failures surface as a single network error", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		cause := errors.New("connection refused")
		mockClient.On("Do", mock.Anything).Return((*http.Response)(nil), cause).Times(3)

		client := newTestClient(mockClient)
		res, err := client.Fetch(context.Background(), "https://unreachable.example")

		require.Nil(t, res)
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 3, netErr.Attempts)
		assert.Equal(t, "https://unreachable.example", netErr.URL)
		assert.ErrorIs(t, err, cause)
		assert.True(t, IsNetworkError(err))
		mockClient.AssertNumberOfCalls(t, "Do", 3)
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusNotFound, []byte("not found")), nil).Once()

		client := newTestClient(mockClient)
		_, err := client.Fetch(context.Background(), "https://example.com/missing")

		require.Error(t, err)
		assert.True(t, IsNetworkError(err))
		assert.True(t, IsNonRetryableError(err))
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})

	t.Run("3xx without redirect is accepted", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusNotModified, nil), nil).Once()

		client := newTestClient(mockClient)
		res, err := client.Fetch(context.Background(), "https://example.com")

		require.NoError(t, err)
		assert.Equal(t, http.StatusNotModified, res.Status)
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return((*http.Response)(nil), context.Canceled).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := newTestClient(mockClient)
		_, err := client.Fetch(ctx, "https://example.com")

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})
}

func TestFetch_BodySizeBoundary(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"exactly max size is accepted", int(MaxBodySize), false},
		{"one byte over max size is rejected", int(MaxBodySize) + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockHTTPClient)
			mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusOK, bytes.Repeat([]byte("a"), tt.size)), nil).Once()

			client := newTestClient(mockClient)
			res, err := client.Fetch(context.Background(), "https://example.com/large")

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBodyTooLarge)
				// サイズ超過はリトライしない
				mockClient.AssertNumberOfCalls(t, "Do", 1)
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.RawBody, tt.size)
		})
	}
}

func TestExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/about":
			w.WriteHeader(http.StatusOK)
		case "/moved":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(time.Second)

	tests := []struct {
		path string
		want bool
	}{
		{"/about", true},
		{"/moved", false},
		{"/missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, client.Exists(context.Background(), server.URL+tt.path))
		})
	}

	t.Run("unreachable host", func(t *testing.T) {
		assert.False(t, client.Exists(context.Background(), "http://127.0.0.1:1/about"))
	})
}

func TestPostJSON(t *testing.T) {
	t.Run("sends headers and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "secret", r.Header.Get("x-api-key"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"q":"hello"}`, string(body))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		client := New(time.Second)
		resp, err := client.PostJSON(context.Background(), server.URL, map[string]string{"x-api-key": "secret"}, map[string]string{"q": "hello"})

		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(resp))
	})

	t.Run("non 2xx returns error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid key"))
		}))
		defer server.Close()

		client := New(time.Second)
		_, err := client.PostJSON(context.Background(), server.URL, nil, map[string]string{})

		var httpErr *NonRetryableHTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	})
}

func TestDecodeBody(t *testing.T) {
	// "café" in ISO-8859-1
	latin1 := []byte{'c', 'a', 'f', 0xe9}
	assert.Equal(t, "café", DecodeBody(latin1, "text/html; charset=iso-8859-1"))
	assert.Equal(t, "plain", DecodeBody([]byte("plain"), "text/html; charset=utf-8"))
}
