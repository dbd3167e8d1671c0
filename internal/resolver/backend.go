package resolver

import "github.com/scrapeflow/webscrape/internal/config"

// backend is the one-dispatch-point-per-kind interface every selector
// resolver implements (§9 "tagged variant with one dispatch point per
// backend").
type backend interface {
	find(doc *Document, scope *match, expr string) ([]match, error)
	text(m match) string
	html(m match, outer bool) string
	attr(m match, name string) string
}

func backendFor(kind config.SelectorKind) backend {
	switch kind {
	case config.SelectorCSS:
		return cssBackend{}
	case config.SelectorXPath:
		return xpathBackend{}
	case config.SelectorJSONPath:
		return jsonPathBackend{}
	case config.SelectorRegex:
		return regexBackend{}
	default:
		return nil
	}
}
