package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey は、APIキーが設定されていないことを示します。
var ErrMissingAPIKey = errors.New("APIキーが設定されていません")

// ErrNoJSON は、モデルの応答に JSON が含まれていないことを示します。
var ErrNoJSON = errors.New("応答にJSONオブジェクトが含まれていません")

// Request は、1回の補完リクエストです。
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer は、テキスト補完を行うホスト型言語モデルの抽象です。
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc は、関数を Completer として扱うためのアダプターです。
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ExtractJSONObject は、モデルの応答からJSONオブジェクト部分を取り出します。
// コードフェンスや前後の説明文は取り除きます。
func ExtractJSONObject(reply string) (string, error) {
	return extractDelimited(reply, "{", "}")
}

// ExtractJSONArray は、モデルの応答からJSON配列部分を取り出します。
func ExtractJSONArray(reply string) (string, error) {
	return extractDelimited(reply, "[", "]")
}

func extractDelimited(reply, open, close string) (string, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, open)
	end := strings.LastIndex(s, close)
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// DecodeJSON は、応答からJSONオブジェクトを取り出して v にデコードします。
func DecodeJSON(reply string, v any) error {
	obj, err := ExtractJSONObject(reply)
	if err != nil {
		return err
	}
	return decode(obj, v)
}

// DecodeJSONArray は、応答からJSON配列を取り出して v にデコードします。
func DecodeJSONArray(reply string, v any) error {
	arr, err := ExtractJSONArray(reply)
	if err != nil {
		return err
	}
	return decode(arr, v)
}

func decode(obj string, v any) error {
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("応答のJSONデコードに失敗しました: %w", err)
	}
	return nil
}
