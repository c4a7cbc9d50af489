package resolver

import (
	"strings"

	"github.com/shouni/go-flowql/pkg/types"
)

// Merge は、優先順に並んだページを1つの CompositePage に統合します。
//   - タイトルと説明は、空でない最初のページの値を採用します。
//   - 本文は空でないものを "\n\n" で連結します。
//   - 見出し・リンク・画像は出現順を保ったまま重複を除いて統合します。
//   - metadata は同じキーについて最初に現れた値を採用します。
func Merge(primaryURL string, pages []types.ExtractedPage) types.CompositePage {
	c := types.CompositePage{
		PrimaryURL: primaryURL,
		Pages:      pages,
		Headings:   []string{},
		Links:      []string{},
		Images:     []string{},
		Metadata:   map[string]string{},
	}
	if c.Pages == nil {
		c.Pages = []types.ExtractedPage{}
	}

	var texts []string
	headings, links, images := newOrderedSet(), newOrderedSet(), newOrderedSet()

	for _, p := range pages {
		if c.Title == "" {
			c.Title = p.Title
		}
		if c.Description == "" {
			c.Description = p.Description
		}
		if strings.TrimSpace(p.MainText) != "" {
			texts = append(texts, p.MainText)
		}
		headings.add(p.Headings...)
		links.add(p.Links...)
		images.add(p.Images...)
		for k, v := range p.Metadata {
			if _, exists := c.Metadata[k]; !exists {
				c.Metadata[k] = v
			}
		}
	}

	c.MainText = strings.Join(texts, "\n\n")
	c.Headings = headings.items
	c.Links = links.items
	c.Images = images.items
	return c
}

// orderedSet は挿入順を保つ文字列集合です。
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
