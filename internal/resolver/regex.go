package resolver

import (
	"regexp"

	"github.com/scrapeflow/webscrape/internal/config"
)

// regexBackend applies a regular expression against the raw response body
// (or, when scoped under another regex match, the captured text). A regex
// with at least one capture group extracts the first group, otherwise the
// whole match.
type regexBackend struct{}

func (regexBackend) find(doc *Document, scope *match, expr string) ([]match, error) {
	base := doc.raw
	if scope != nil && scope.kind == config.SelectorRegex {
		base = scope.str
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	var texts []string
	if re.NumSubexp() > 0 {
		for _, sm := range re.FindAllStringSubmatch(base, -1) {
			if len(sm) > 1 {
				texts = append(texts, sm[1])
			}
		}
	} else {
		texts = re.FindAllString(base, -1)
	}

	matches := make([]match, 0, len(texts))
	for _, t := range texts {
		matches = append(matches, match{kind: config.SelectorRegex, str: t})
	}
	return matches, nil
}

func (regexBackend) text(m match) string           { return m.str }
func (regexBackend) html(m match, _ bool) string    { return m.str }
func (regexBackend) attr(m match, _ string) string  { return m.str }
