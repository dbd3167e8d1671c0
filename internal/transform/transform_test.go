package transform

import (
	"net/url"
	"testing"

	"github.com/scrapeflow/webscrape/internal/config"
)

func chain(names ...config.TransformerName) []config.Transformer {
	out := make([]config.Transformer, len(names))
	for i, n := range names {
		out[i] = config.Transformer{Name: n}
	}
	return out
}

func TestApplyChainStripThenToFloat(t *testing.T) {
	got, err := ApplyChain("  1,234.5  ", chain(config.TransformStrip, config.TransformToFloat), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(float64) != 1234.5 {
		t.Fatalf("got %v, want 1234.5", got)
	}
}

func TestApplyChainToInt(t *testing.T) {
	got, err := ApplyChain("42", chain(config.TransformToInt), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(int64) != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestApplyChainRegexCapturesGroup(t *testing.T) {
	t1 := config.Transformer{Name: config.TransformRegex, Args: []string{`price: (\d+)`}}
	got, err := ApplyChain("price: 99", []config.Transformer{t1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(string) != "99" {
		t.Fatalf("got %v, want 99", got)
	}
}

func TestApplyChainReplace(t *testing.T) {
	t1 := config.Transformer{Name: config.TransformReplace, Args: []string{"foo", "bar"}}
	got, err := ApplyChain("foofoo", []config.Transformer{t1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(string) != "barbar" {
		t.Fatalf("got %v, want barbar", got)
	}
}

func TestApplyChainToAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/articles/")
	got, err := ApplyChain("../page", chain(config.TransformToAbsoluteURL), base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(string) != "https://example.com/page" {
		t.Fatalf("got %v", got)
	}
}

func TestApplyChainUnknownTransformerErrors(t *testing.T) {
	_, err := ApplyChain("x", chain(config.TransformerName("bogus")), nil)
	if err == nil {
		t.Fatal("expected an error for an unknown transformer")
	}
}

func TestApplyChainToFloatInvalidErrors(t *testing.T) {
	_, err := ApplyChain("not-a-number", chain(config.TransformToFloat), nil)
	if err == nil {
		t.Fatal("expected an error for a non-numeric to_float input")
	}
}
