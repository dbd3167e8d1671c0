// Package transform implements the per-field transformer chain (string ->
// typed value), shaped like a middleware chain but operating on one
// field's raw string rather than a whole item.
package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/scrapeflow/webscrape/internal/config"
)

// ApplyChain runs value through each transformer in order, returning the
// final typed result. A transformer that expects a string input receives
// the previous step's fmt.Sprint representation, so mixed chains (e.g.
// strip -> to_float) compose naturally.
func ApplyChain(value string, chain []config.Transformer, baseURL *url.URL) (any, error) {
	var current any = value
	for _, t := range chain {
		next, err := apply(t, current, baseURL)
		if err != nil {
			return nil, fmt.Errorf("transformer %q: %w", t.Name, err)
		}
		current = next
	}
	return current, nil
}

func apply(t config.Transformer, current any, baseURL *url.URL) (any, error) {
	s := toString(current)

	switch t.Name {
	case config.TransformStrip:
		return strings.TrimSpace(s), nil

	case config.TransformToFloat:
		if s == "" {
			return float64(0), nil
		}
		cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, fmt.Errorf("to_float %q: %w", s, err)
		}
		return f, nil

	case config.TransformToInt:
		if s == "" {
			return int64(0), nil
		}
		cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		i, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("to_int %q: %w", s, err)
		}
		return i, nil

	case config.TransformRegex:
		if len(t.Args) < 1 {
			return nil, fmt.Errorf("regex transformer requires a pattern arg")
		}
		re, err := regexp.Compile(t.Args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", t.Args[0], err)
		}
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", nil
		}
		if len(m) > 1 {
			return m[1], nil
		}
		return m[0], nil

	case config.TransformReplace:
		if len(t.Args) < 2 {
			return nil, fmt.Errorf("replace transformer requires [old, new] args")
		}
		return strings.ReplaceAll(s, t.Args[0], t.Args[1]), nil

	case config.TransformToAbsoluteURL:
		if baseURL == nil || s == "" {
			return s, nil
		}
		ref, err := url.Parse(s)
		if err != nil {
			return s, nil
		}
		return baseURL.ResolveReference(ref).String(), nil

	default:
		return nil, fmt.Errorf("unknown transformer %q", t.Name)
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
