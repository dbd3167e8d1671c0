package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request is a single outbound fetch: one URL fetched once, by either the
// direct-HTTP or the headless-browser backend.
type Request struct {
	URL     *url.URL
	Method  string
	Headers http.Header

	// JobName scopes the checkpoint row and output paths for this fetch.
	JobName string

	// ParentURL is set for child fetches spawned by a follow_url field.
	ParentURL string

	// RetryCount tracks attempts already made for this URL.
	RetryCount int

	Timeout   time.Duration
	CreatedAt time.Time
}

// NewRequest builds a Request with sensible defaults, mirroring the job's
// default timeout.
func NewRequest(jobName, rawURL string, timeout time.Duration) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		JobName:   jobName,
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}, nil
}

func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
