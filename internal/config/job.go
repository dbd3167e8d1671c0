package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Mode selects which driver (§4.8/§4.9) runs the job.
type Mode string

const (
	ModePagination Mode = "pagination"
	ModeList       Mode = "list"
)

// ResponseType selects how a fetched body is interpreted by the resolver.
type ResponseType string

const (
	ResponseHTML ResponseType = "html"
	ResponseJSON ResponseType = "json"
)

// SelectorKind is the resolver backend a Selector dispatches to.
type SelectorKind string

const (
	SelectorCSS      SelectorKind = "css"
	SelectorXPath    SelectorKind = "xpath"
	SelectorJSONPath SelectorKind = "json_path"
	SelectorRegex    SelectorKind = "regex"
)

// Selector is (kind, expression). A bare JSON string normalizes to css via
// UnmarshalJSON (§6 shorthand rule).
type Selector struct {
	Kind       SelectorKind `json:"type"`
	Expression string       `json:"value"`
}

func (s *Selector) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		s.Kind = SelectorCSS
		s.Expression = asString
		return nil
	}
	type alias Selector
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Kind == "" {
		a.Kind = SelectorCSS
	}
	*s = Selector(a)
	return nil
}

// TransformerName enumerates the supported field transformer chain steps.
type TransformerName string

const (
	TransformStrip          TransformerName = "strip"
	TransformToFloat        TransformerName = "to_float"
	TransformToInt          TransformerName = "to_int"
	TransformRegex          TransformerName = "regex"
	TransformReplace        TransformerName = "replace"
	TransformToAbsoluteURL  TransformerName = "to_absolute_url"
)

// Transformer is (name, args). A bare JSON string normalizes to {name, args: []}.
type Transformer struct {
	Name TransformerName `json:"name"`
	Args []string        `json:"args"`
}

func (t *Transformer) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		t.Name = TransformerName(asString)
		t.Args = nil
		return nil
	}
	type alias Transformer
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = Transformer(a)
	return nil
}

// FieldSpec is a recursive extraction-tree node (§3).
type FieldSpec struct {
	Name         string        `json:"name"                   validate:"required"`
	Selectors    []Selector    `json:"selectors"              validate:"required,min=1"`
	Attribute    string        `json:"attribute,omitempty"`
	Transformers []Transformer `json:"transformers,omitempty"`
	IsList       bool          `json:"is_list,omitempty"`
	Children     []*FieldSpec  `json:"children,omitempty"      validate:"omitempty,dive"`
	FollowURL    bool          `json:"follow_url,omitempty"`
	NestedFields []*FieldSpec  `json:"nested_fields,omitempty" validate:"omitempty,dive"`
}

// UnmarshalJSON accepts both the canonical {name, selectors: [...]} shape
// and the shorthand {name, selector: "..."} singular key.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	type alias FieldSpec
	var raw struct {
		alias
		Selector *Selector `json:"selector"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FieldSpec(raw.alias)
	if raw.Selector != nil {
		f.Selectors = append([]Selector{*raw.Selector}, f.Selectors...)
	}
	return nil
}

// PaginationSpec drives the pagination driver's "next" link lookup.
type PaginationSpec struct {
	Selector Selector `json:"selector"`
	MaxPages int      `json:"max_pages" validate:"min=1"`
}

// Interaction is one step of a browser interaction script (§4.5).
type Interaction struct {
	Type     string `json:"type"` // wait|scroll|click|fill|press|hover|key_press
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	Duration int     `json:"duration,omitempty"` // ms, for "wait"
}

// AuthType enumerates supported OAuth grants (§4.6).
type AuthType string

const (
	AuthPasswordCredentials AuthType = "password"
	AuthBearer              AuthType = "bearer"
)

// Authentication configures the token manager.
type Authentication struct {
	Type         AuthType `json:"type"                    validate:"required,oneof=password bearer"`
	TokenURL     string   `json:"token_url,omitempty"     validate:"required_if=Type password"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Username     string   `json:"username,omitempty"`
	Password     string   `json:"password,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	Token        string   `json:"token,omitempty"         validate:"required_if=Type bearer"` // pre-issued bearer token
}

// JobConfig is the immutable, declarative description of one scrape run
// (§3, §6). It is loaded from a JSON file and validated once before the
// engine is constructed around it.
type JobConfig struct {
	Name         string       `json:"name"                   validate:"required"`
	Mode         Mode         `json:"mode"                   validate:"required,oneof=pagination list"`
	BaseURL      string       `json:"base_url,omitempty"     validate:"omitempty,url"`
	StartURLs    []string     `json:"start_urls,omitempty"   validate:"omitempty,dive,url"`
	ResponseType ResponseType `json:"response_type"          validate:"omitempty,oneof=html json"`

	UsePlaywright   bool          `json:"use_playwright"`
	WaitForSelector string        `json:"wait_for_selector,omitempty"`
	Interactions    []Interaction `json:"interactions,omitempty"`

	MinDelay float64 `json:"min_delay"`
	MaxDelay float64 `json:"max_delay"`

	Proxies []string          `json:"proxies,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Authentication *Authentication `json:"authentication,omitempty"`

	Concurrency      int    `json:"concurrency"               validate:"omitempty,min=1"`
	RateLimit        int    `json:"rate_limit"                validate:"omitempty,min=1"`
	RespectRobotsTxt bool   `json:"respect_robots_txt"`
	UseCheckpointing bool   `json:"use_checkpointing"`
	RequestTimeoutS  int    `json:"request_timeout"           validate:"omitempty,min=1"`
	MaxNestedURLs    int    `json:"max_nested_urls"           validate:"omitempty,min=0"`
	CookiesFile      string `json:"cookies_file,omitempty"`

	Fields     []*FieldSpec    `json:"fields"     validate:"required,min=1,dive"`
	Pagination *PaginationSpec `json:"pagination,omitempty"`
}

// LoadJob reads and parses a JobConfig from a JSON file.
func LoadJob(path string) (*JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job config: %w", err)
	}
	var job JobConfig
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job config: %w", err)
	}
	return &job, nil
}

// ApplyDefaults fills unset JobConfig fields from the ambient RunDefaults.
func ApplyDefaults(job *JobConfig, d RunDefaults) {
	if job.Concurrency <= 0 {
		job.Concurrency = d.Concurrency
	}
	if job.RateLimit <= 0 {
		job.RateLimit = d.RateLimit
	}
	if job.RequestTimeoutS <= 0 {
		job.RequestTimeoutS = int(d.RequestTimeout.Seconds())
	}
	if job.MinDelay <= 0 {
		job.MinDelay = d.MinDelay
	}
	if job.MaxDelay <= 0 {
		job.MaxDelay = d.MaxDelay
	}
	if job.MaxNestedURLs <= 0 {
		job.MaxNestedURLs = d.MaxNestedURLs
	}
}
