package resolver

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/scrapeflow/webscrape/internal/config"
)

// xpathBackend resolves XPath expressions via antchfx/htmlquery.
type xpathBackend struct{}

func (xpathBackend) find(doc *Document, scope *match, expr string) ([]match, error) {
	var root *html.Node
	if scope != nil && scope.kind == config.SelectorXPath {
		root = scope.xml
	} else {
		root = doc.htmlRoot
	}
	if root == nil {
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, err
	}
	matches := make([]match, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, match{kind: config.SelectorXPath, xml: n})
	}
	return matches, nil
}

func (xpathBackend) text(m match) string {
	return strings.TrimSpace(htmlquery.InnerText(m.xml))
}

func (xpathBackend) html(m match, outer bool) string {
	return htmlquery.OutputHTML(m.xml, outer)
}

func (xpathBackend) attr(m match, name string) string {
	return htmlquery.SelectAttr(m.xml, name)
}
