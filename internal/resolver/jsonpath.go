package resolver

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"

	"github.com/scrapeflow/webscrape/internal/config"
)

// jsonPathBackend resolves JSONPath expressions via PaesslerAG/jsonpath.
type jsonPathBackend struct{}

func (jsonPathBackend) find(doc *Document, scope *match, expr string) ([]match, error) {
	var root any
	if scope != nil && scope.kind == config.SelectorJSONPath {
		root = scope.jsn
	} else {
		root = doc.jsonRoot
	}
	if root == nil {
		return nil, nil
	}

	result, err := jsonpath.Get(expr, root)
	if err != nil {
		// No match is not an error condition for field resolution — the
		// resolver simply falls through to the next selector.
		return nil, nil
	}

	switch v := result.(type) {
	case []any:
		matches := make([]match, 0, len(v))
		for _, item := range v {
			matches = append(matches, match{kind: config.SelectorJSONPath, jsn: item})
		}
		return matches, nil
	default:
		return []match{{kind: config.SelectorJSONPath, jsn: v}}, nil
	}
}

func (jsonPathBackend) text(m match) string {
	return jsonScalarToString(m.jsn)
}

func (jsonPathBackend) html(m match, _ bool) string {
	return jsonScalarToString(m.jsn)
}

func (jsonPathBackend) attr(m match, name string) string {
	if obj, ok := m.jsn.(map[string]any); ok {
		return jsonScalarToString(obj[name])
	}
	return ""
}

func jsonScalarToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
