package config

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"
)

// validate is a package-level validator.Validate, built once and shared by
// every struct type rather than constructed per call: the library caches
// struct metadata per instance, and a single instance is safe for
// concurrent use.
var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// Validate checks the ambient configuration for invalid values. Struct-tag
// rules (required fields, oneof enums, numeric ranges) are checked by
// go-playground/validator against the `validate` tags on Config and its
// nested structs; the one rule the tags can't express — metrics.port only
// matters when metrics.enabled — is checked by hand afterward.
func Validate(cfg *Config) error {
	if err := validatorInstance().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateJob checks a JobConfig for invalid or missing required values.
// Struct-tag rules live on JobConfig and its nested types (job.go); the
// rules that depend on which field holds which value — base_url and
// pagination required only for mode=pagination, start_urls only for
// mode=list, the recursive follow_url/nested_fields pairing inside the
// field tree — stay hand-written because validator's declarative tags
// can't express "required when this other field equals X" across a
// recursive structure cleanly.
func ValidateJob(job *JobConfig) error {
	if job.ResponseType == "" {
		job.ResponseType = ResponseHTML
	}

	if err := validatorInstance().Struct(job); err != nil {
		return fmt.Errorf("job: %w", err)
	}

	switch job.Mode {
	case ModePagination:
		if job.BaseURL == "" {
			return fmt.Errorf("job.base_url is required for mode=pagination")
		}
		if job.Pagination == nil || job.Pagination.MaxPages < 1 {
			return fmt.Errorf("job.pagination.max_pages must be >= 1 for mode=pagination")
		}
	case ModeList:
		if len(job.StartURLs) == 0 {
			return fmt.Errorf("job.start_urls must be non-empty for mode=list")
		}
	}

	if err := validateFieldTree(job.Fields); err != nil {
		return err
	}

	return nil
}

func validateFieldTree(fields []*FieldSpec) error {
	for _, f := range fields {
		for _, s := range f.Selectors {
			switch s.Kind {
			case SelectorCSS, SelectorXPath, SelectorJSONPath, SelectorRegex:
			default:
				return fmt.Errorf("field %q: unsupported selector kind %q", f.Name, s.Kind)
			}
		}
		if len(f.Children) > 0 {
			if err := validateFieldTree(f.Children); err != nil {
				return err
			}
		}
		if f.FollowURL {
			if len(f.NestedFields) == 0 {
				return fmt.Errorf("field %q: follow_url requires nested_fields", f.Name)
			}
			if err := validateFieldTree(f.NestedFields); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateURL checks if a URL string is valid for fetching.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
