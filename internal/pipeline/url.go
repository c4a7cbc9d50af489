package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL は、入力URLの形式が不正であることを示します。
var ErrInvalidURL = errors.New("URLの形式が不正です")

// CacheKeyPrefix はレポートのキャッシュキーの接頭辞です。
const CacheKeyPrefix = "flowql:report:"

// NormalizeURL は、入力を前後の空白を除いたうえで絶対URLに正規化します。
// スキームがなければ https:// を補います。http/https 以外やホストのないURLは ErrInvalidURL です。
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: 空のURL", ErrInvalidURL)
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: 未対応のスキーム %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return "", fmt.Errorf("%w: ホストがありません: %q", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// FaviconURL は、サイトの /favicon.ico のURLを返します。
func FaviconURL(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Hostname() + "/favicon.ico"
}

// CacheKey はレポートのキャッシュキーを返します。
func CacheKey(normalized string) string {
	return CacheKeyPrefix + normalized
}
