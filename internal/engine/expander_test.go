package engine

import (
	"testing"

	"github.com/scrapeflow/webscrape/internal/config"
)

func TestResolveChildURLAbsolutizesRelativeLinks(t *testing.T) {
	got := resolveChildURL("/widgets/42", "https://shop.example.com/catalog", config.ResponseHTML)
	want := "https://shop.example.com/widgets/42"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveChildURLLeavesAbsoluteLinksAlone(t *testing.T) {
	got := resolveChildURL("https://other.example.com/x", "https://shop.example.com/catalog", config.ResponseHTML)
	want := "https://other.example.com/x"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveChildURLAppendsJSONSuffixInJSONMode(t *testing.T) {
	got := resolveChildURL("/items/7/", "https://api.example.com/base", config.ResponseJSON)
	want := "https://api.example.com/items/7.json"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveChildURLDoesNotDoubleAppendJSONSuffix(t *testing.T) {
	got := resolveChildURL("/items/7.json", "https://api.example.com/base", config.ResponseJSON)
	want := "https://api.example.com/items/7.json"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveChildURLEmptyInputYieldsEmpty(t *testing.T) {
	if got := resolveChildURL("", "https://example.com/", config.ResponseHTML); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestToURLListHandlesScalarAndListValues(t *testing.T) {
	if got := toURLList("https://example.com/a"); len(got) != 1 || got[0] != "https://example.com/a" {
		t.Fatalf("unexpected scalar result: %v", got)
	}
	if got := toURLList([]any{"https://example.com/a", "", "https://example.com/b"}); len(got) != 2 {
		t.Fatalf("expected 2 urls (empty filtered), got %v", got)
	}
	if got := toURLList(nil); got != nil {
		t.Fatalf("expected nil for unsupported type, got %v", got)
	}
}
