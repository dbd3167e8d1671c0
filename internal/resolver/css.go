package resolver

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapeflow/webscrape/internal/config"
)

// cssBackend resolves CSS selectors via goquery.
type cssBackend struct{}

func (cssBackend) find(doc *Document, scope *match, expr string) ([]match, error) {
	root := doc.cssRoot
	if scope != nil && scope.kind == config.SelectorCSS {
		root = scope.css
	}
	if root == nil {
		return nil, nil
	}

	sel := root.Find(expr)
	matches := make([]match, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		matches = append(matches, match{kind: config.SelectorCSS, css: s})
	})
	return matches, nil
}

func (cssBackend) text(m match) string {
	return strings.TrimSpace(m.css.Text())
}

func (cssBackend) html(m match, outer bool) string {
	if outer {
		s, _ := goquery.OuterHtml(m.css)
		return s
	}
	s, _ := m.css.Html()
	return s
}

func (cssBackend) attr(m match, name string) string {
	v, _ := m.css.Attr(name)
	return v
}
