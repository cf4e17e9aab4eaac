// Package model holds the wire-level data types shared across the
// cluster: jobs, per-host governor state, proxy entries, worker
// records, and result/failure records.
package model

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MaxPriority is the practical ceiling for a Job's priority.
const MaxPriority = 10

// DefaultParser is used when a Job omits its parser name.
const DefaultParser = "html-cheerio"

// HTTPSpec describes the request a Worker issues for a Job.
type HTTPSpec struct {
	Method  string            `json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// Job is an immutable-once-enqueued scraping request.
type Job struct {
	ID       string         `json:"id"`
	URL      string         `json:"url" validate:"required,url"`
	Parser   string         `json:"parser,omitempty"`
	Priority int            `json:"priority" validate:"min=0,max=10"`
	Metadata map[string]any `json:"metadata,omitempty"`
	HTTP     HTTPSpec       `json:"http,omitempty"`
}

// ApplyDefaults fills in the Job fields the spec says default: parser,
// metadata, and HTTP method.
func (j *Job) ApplyDefaults() {
	if j.Parser == "" {
		j.Parser = DefaultParser
	}
	if j.Metadata == nil {
		j.Metadata = map[string]any{}
	}
	if j.HTTP.Method == "" {
		j.HTTP.Method = http.MethodGet
	}
}

// Hostname returns the lowercased hostname of the Job's URL.
func (j Job) Hostname() (string, error) {
	u, err := url.Parse(j.URL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no hostname", j.URL)
	}
	return strings.ToLower(u.Hostname()), nil
}

// HasBody reports whether the HTTP method honors a request body.
func (s HTTPSpec) HasBody() bool {
	switch s.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return s.Body != nil
	default:
		return false
	}
}
