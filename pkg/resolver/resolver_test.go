package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-flowql/pkg/extract"
	"github.com/shouni/go-flowql/pkg/httpclient"
	"github.com/shouni/go-flowql/pkg/types"
)

// fakeSite は URL と HTML の対応表で動作する PageExtractor / Prober の実装です。
type fakeSite struct {
	pages    map[string]string
	existing map[string]bool
	failures map[string]error
	fetched  []string
	probed   []string
}

func (f *fakeSite) FetchAndExtractRaw(ctx context.Context, pageURL string) (types.ExtractedPage, string, error) {
	f.fetched = append(f.fetched, pageURL)
	if err, ok := f.failures[pageURL]; ok {
		return types.ExtractedPage{}, "", err
	}
	html, ok := f.pages[pageURL]
	if !ok {
		return types.ExtractedPage{}, "", &httpclient.NetworkError{URL: pageURL, Attempts: 3, Err: errors.New("404")}
	}
	return extract.Extract(pageURL, html), html, nil
}

func (f *fakeSite) Exists(ctx context.Context, url string) bool {
	f.probed = append(f.probed, url)
	return f.existing[url]
}

type fakeFeeds struct {
	titles []string
	calls  []string
}

func (f *fakeFeeds) Digest(ctx context.Context, pageURL, html string, limit int) ([]string, error) {
	f.calls = append(f.calls, pageURL)
	return f.titles, nil
}

func newTestResolver(t *testing.T, site *fakeSite, opts ...Option) *Resolver {
	t.Helper()
	r, err := New(site, site, opts...)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	site := &fakeSite{}
	_, err := New(nil, site)
	assert.Error(t, err)
	_, err = New(site, nil)
	assert.Error(t, err)
}

func TestResolve_AboutFromNavigation(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com": `<html><head><title>Home</title></head><body>
				<nav><a href="/pricing">Pricing</a><a href="/our-story">Our Story</a></nav>
				<main>Welcome</main></body></html>`,
			"https://example.com/our-story": `<html><head><title>Story</title></head><body><main>Founded in Springfield</main></body></html>`,
		},
	}
	r := newTestResolver(t, site)

	composite, err := r.Resolve(context.Background(), "https://example.com")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/our-story", composite.AboutURL)
	assert.Equal(t, []string{"https://example.com", "https://example.com/our-story"}, site.fetched)
	assert.Len(t, composite.Pages, 2)
	assert.Equal(t, "Home", composite.Title)
	assert.Contains(t, composite.MainText, "Founded in Springfield")
	// 候補パスはすべて存在確認されている
	assert.Len(t, site.probed, len(aboutPaths))
}

func TestResolve_AboutFromProbe(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com/pricing": `<html><body><main>Plans</main></body></html>`,
			"https://example.com":         `<html><head><title>Root</title></head><body><nav><a href="/about">About</a></nav></body></html>`,
			"https://example.com/company": `<html><body><main>We are a company</main></body></html>`,
		},
		existing: map[string]bool{
			"https://example.com/company": true,
			"https://example.com/team":    true,
		},
	}
	r := newTestResolver(t, site)

	composite, err := r.Resolve(context.Background(), "https://example.com/pricing")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/company", composite.AboutURL)
	assert.Equal(t, []string{
		"https://example.com/pricing",
		"https://example.com",
		"https://example.com/company",
	}, site.fetched)
	// 開始ページにタイトルがないため、ルートのタイトルが採用される
	assert.Equal(t, "Root", composite.Title)
	assert.Equal(t, "https://example.com/pricing", composite.PrimaryURL)
}

func TestResolve_PartialFailure(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com/blog": `<html><head><title>Blog</title></head><body><main>Posts</main></body></html>`,
		},
		existing: map[string]bool{"https://example.com/about": true},
		failures: map[string]error{
			"https://example.com":       errors.New("root down"),
			"https://example.com/about": errors.New("about down"),
		},
	}
	r := newTestResolver(t, site)

	composite, err := r.Resolve(context.Background(), "https://example.com/blog")

	require.NoError(t, err)
	assert.Len(t, composite.Pages, 1)
	assert.Equal(t, "Blog", composite.Title)
	assert.Empty(t, composite.AboutURL)
}

func TestResolve_StartFailureIsFatal(t *testing.T) {
	netErr := &httpclient.NetworkError{URL: "https://down.example", Attempts: 3, Err: errors.New("connection refused")}
	site := &fakeSite{failures: map[string]error{"https://down.example": netErr}}
	r := newTestResolver(t, site)

	_, err := r.Resolve(context.Background(), "https://down.example")

	require.Error(t, err)
	var got *httpclient.NetworkError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 3, got.Attempts)
	assert.Empty(t, site.probed)
}

func TestResolve_NeverMoreThanThreePages(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com/a":     `<html><body>a</body></html>`,
			"https://example.com":       `<html><body>root</body></html>`,
			"https://example.com/about": `<html><body>about</body></html>`,
		},
		existing: map[string]bool{"https://example.com/about": true},
	}
	r := newTestResolver(t, site)

	composite, err := r.Resolve(context.Background(), "https://example.com/a")

	require.NoError(t, err)
	assert.LessOrEqual(t, len(site.fetched), MaxPages)
	assert.Len(t, composite.Pages, 3)
}

func TestResolve_StartIsAboutPage(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com/about": `<html><body>about</body></html>`,
			"https://example.com":       `<html><body>root</body></html>`,
		},
		existing: map[string]bool{"https://example.com/about": true},
	}
	r := newTestResolver(t, site)

	composite, err := r.Resolve(context.Background(), "https://example.com/about")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/about", "https://example.com"}, site.fetched)
	assert.Len(t, composite.Pages, 2)
}

func TestResolve_TrailingSlashIsSamePage(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com/about/": `<html><body>about</body></html>`,
			"https://example.com":        `<html><body>root</body></html>`,
		},
		existing: map[string]bool{"https://example.com/about": true},
	}
	r := newTestResolver(t, site)

	composite, err := r.Resolve(context.Background(), "https://example.com/about/")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/about/", "https://example.com"}, site.fetched)
	assert.Len(t, composite.Pages, 2)
}

func TestIsVisited(t *testing.T) {
	visited := map[string]struct{}{"https://example.com/about/": {}, "https://example.com": {}}

	assert.True(t, isVisited(visited, "https://example.com/about"))
	assert.True(t, isVisited(visited, "https://example.com/about/"))
	assert.True(t, isVisited(visited, "https://example.com/"))
	assert.False(t, isVisited(visited, "https://example.com/company"))
}

func TestResolve_FeedDigest(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{"https://example.com": `<html><body>root</body></html>`},
	}
	feeds := &fakeFeeds{titles: []string{"Launch week"}}
	r := newTestResolver(t, site, WithFeedDigester(feeds))

	composite, err := r.Resolve(context.Background(), "https://example.com/")

	require.NoError(t, err)
	assert.Equal(t, []string{"Launch week"}, composite.FeedTitles)
	assert.Equal(t, []string{"https://example.com/"}, feeds.calls)
	assert.Len(t, composite.Pages, 1)
}

func TestFindAboutLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "anchor text",
			html: `<nav><a href="/story">Our Story</a></nav>`,
			want: "https://example.com/story",
		},
		{
			name: "href keyword",
			html: `<div class="menu"><a href="/who-we-are">Us</a></div>`,
			want: "https://example.com/who-we-are",
		},
		{
			name: "cross origin link is ignored",
			html: `<nav><a href="https://other.example/about">About</a></nav><header><a href="/team">Team</a></header>`,
			want: "https://example.com/team",
		},
		{
			name: "look-alike host is ignored",
			html: `<nav><a href="https://example.com.evil.test/about">About</a></nav>`,
			want: "",
		},
		{
			name: "links outside navigation are ignored",
			html: `<main><a href="/about">About</a></main>`,
			want: "",
		},
		{
			name: "selector order wins over document order",
			html: `<header><a href="/company">Company</a></header><nav><a href="/about">About</a></nav>`,
			want: "https://example.com/about",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindAboutLink("https://example.com", tt.html))
		})
	}
}

func TestSiteRoot(t *testing.T) {
	root, err := SiteRoot("https://example.com:8443/a/b?c=d")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443", root)

	_, err = SiteRoot("example.com")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	pages := []types.ExtractedPage{
		{
			URL:      "https://example.com/pricing",
			MainText: "pricing text",
			Headings: []string{"Plans"},
			Links:    []string{"https://example.com/a", "https://example.com/b"},
			Images:   []string{"https://example.com/1.png"},
			Metadata: map[string]string{"og:title": "Pricing"},
		},
		{
			URL:         "https://example.com",
			Title:       "Acme",
			Description: "Widgets",
			MainText:    "home text",
			Headings:    []string{"Welcome", "Plans"},
			Links:       []string{"https://example.com/b", "https://example.com/c"},
			Metadata:    map[string]string{"og:title": "Home", "author": "Jane"},
		},
		{
			URL:         "https://example.com/about",
			Title:       "About Acme",
			Description: "About",
			Images:      []string{"https://example.com/1.png", "https://example.com/2.png"},
		},
	}

	got := Merge("https://example.com/pricing", pages)

	want := types.CompositePage{
		PrimaryURL:  "https://example.com/pricing",
		Pages:       pages,
		Title:       "Acme",
		Description: "Widgets",
		MainText:    "pricing text\n\nhome text",
		Headings:    []string{"Plans", "Welcome"},
		Links:       []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"},
		Images:      []string{"https://example.com/1.png", "https://example.com/2.png"},
		Metadata:    map[string]string{"og:title": "Pricing", "author": "Jane"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_TitlePrecedence(t *testing.T) {
	titles := [][]string{
		{"", "", ""},
		{"A", "B", "C"},
		{"", "B", "C"},
		{"", "", "C"},
		{"A", "", "C"},
	}
	for _, set := range titles {
		for n := 1; n <= len(set); n++ {
			var pages []types.ExtractedPage
			want := ""
			for _, title := range set[:n] {
				pages = append(pages, types.ExtractedPage{Title: title})
				if want == "" {
					want = title
				}
			}
			assert.Equal(t, want, Merge("u", pages).Title)
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge("https://example.com", nil)
	assert.Empty(t, got.MainText)
	assert.NotNil(t, got.Pages)
	assert.NotNil(t, got.Metadata)
}
