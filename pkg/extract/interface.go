package extract

import (
	"context"

	"github.com/shouni/go-flowql/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、1ページ分のHTTP取得を行う機能のインターフェースを定義します。
// Extractor と Resolver は、この抽象に依存します。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*types.FetchResult, error)
}
