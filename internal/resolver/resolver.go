// Package resolver implements the external selector-resolution layer: given
// a parsed document and a field spec, it returns the matching value(s). It
// is polymorphic over four selector backends (css, xpath, json_path, regex)
// behind one tagged-variant dispatch point.
package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/scrapeflow/webscrape/internal/config"
	"github.com/scrapeflow/webscrape/internal/transform"
	"github.com/scrapeflow/webscrape/internal/types"
)

// Document is a parsed response body ready for field resolution. Exactly
// one of its root representations is populated, chosen by response type;
// the raw body is always kept so the regex backend can run regardless.
type Document struct {
	kind    config.ResponseType
	htmlRoot *html.Node
	cssRoot  *goquery.Selection
	jsonRoot any
	raw      string
	BaseURL  *url.URL
}

// Parse builds a Document from a fetched body.
func Parse(body []byte, responseType config.ResponseType, baseURL string) (*Document, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &types.ParseError{URL: baseURL, Err: fmt.Errorf("parse base url: %w", err)}
	}

	doc := &Document{kind: responseType, raw: string(body), BaseURL: base}

	switch responseType {
	case config.ResponseJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, &types.ParseError{URL: baseURL, Err: fmt.Errorf("parse json body: %w", err)}
		}
		doc.jsonRoot = v
	default:
		root, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, &types.ParseError{URL: baseURL, Err: fmt.Errorf("parse html body: %w", err)}
		}
		doc.htmlRoot = root
		doc.cssRoot = goquery.NewDocumentFromNode(root).Selection
	}
	return doc, nil
}

// match is one resolved node, tagged by the backend that produced it.
type match struct {
	kind config.SelectorKind
	css  *goquery.Selection
	xml  *html.Node
	jsn  any
	str  string
}

// ExtractFields applies every top-level field spec to the document,
// producing one Record in declaration order (§4.10, §8 invariant 8).
func ExtractFields(doc *Document, fields []*config.FieldSpec, sourceURL string) (*types.Record, error) {
	rec := types.NewRecord(sourceURL)
	for _, f := range fields {
		val, err := resolveField(doc, nil, f)
		if err != nil {
			return nil, err
		}
		rec.Set(f.Name, val)
	}
	return rec, nil
}

// resolveField resolves one FieldSpec node against scope (nil = document
// root), returning a scalar (or a map[string]any when children are
// declared), or, when is_list is set, an []any of those values.
func resolveField(doc *Document, scope *match, f *config.FieldSpec) (any, error) {
	matches, usedKind, err := firstMatchingSelector(doc, scope, f.Selectors)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if f.IsList {
			return []any{}, nil
		}
		return nil, nil
	}

	if !f.IsList {
		matches = matches[:1]
	}

	values := make([]any, 0, len(matches))
	for _, m := range matches {
		v, err := resolveMatchValue(doc, m, f, usedKind)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	if !f.IsList {
		return values[0], nil
	}
	return values, nil
}

// resolveMatchValue turns one matched node into its field value: either a
// transformed scalar, or (if children are declared) a nested map built by
// recursing the children field tree with this node as the new scope.
func resolveMatchValue(doc *Document, m match, f *config.FieldSpec, kind config.SelectorKind) (any, error) {
	if len(f.Children) > 0 {
		nested := make(map[string]any, len(f.Children))
		for _, child := range f.Children {
			v, err := resolveField(doc, &m, child)
			if err != nil {
				return nil, err
			}
			nested[child.Name] = v
		}
		return nested, nil
	}

	raw := extractRaw(m, f.Attribute)
	typed, err := transform.ApplyChain(raw, f.Transformers, doc.BaseURL)
	if err != nil {
		return nil, &types.ParseError{Selector: f.Name, Err: err}
	}
	return typed, nil
}

// extractRaw pulls the raw string value out of a match per the requested
// attribute ("", "text" => text content; "html"/"innerHTML"/"outerHTML";
// anything else is treated as an HTML attribute name).
func extractRaw(m match, attribute string) string {
	switch attribute {
	case "", "text":
		return backendFor(m.kind).text(m)
	case "html", "innerHTML":
		return backendFor(m.kind).html(m, false)
	case "outerHTML":
		return backendFor(m.kind).html(m, true)
	default:
		return backendFor(m.kind).attr(m, attribute)
	}
}

// firstMatchingSelector tries each selector in declaration order and
// returns the first whose expression matches anything (§6 tie-break rule).
func firstMatchingSelector(doc *Document, scope *match, selectors []config.Selector) ([]match, config.SelectorKind, error) {
	for _, sel := range selectors {
		b := backendFor(sel.Kind)
		if b == nil {
			return nil, "", fmt.Errorf("unsupported selector kind %q", sel.Kind)
		}
		matches, err := b.find(doc, scope, sel.Expression)
		if err != nil {
			return nil, "", err
		}
		if len(matches) > 0 {
			return matches, sel.Kind, nil
		}
	}
	return nil, "", nil
}
