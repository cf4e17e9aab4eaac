// Package dispatcher implements the Request Dispatcher (§4.5): the
// single place job execution composes a proxy, a User-Agent, the
// per-host politeness delay, and the actual HTTP round trip, then
// reports the outcome to the Governor and Proxy Manager.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grishkovelli/asc/internal/apperrors"
	"github.com/grishkovelli/asc/internal/governor"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/proxymanager"
	"github.com/grishkovelli/asc/internal/useragent"
)

const (
	maxRedirects   = 5
	headersTimeout = 30 * time.Second
	bodyTimeout    = 30 * time.Second
)

var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"Accept-Encoding": "gzip,deflate,br",
	"Connection":      "keep-alive",
}

// Result is the outcome of a single dispatched request.
type Result struct {
	Body       string
	StatusCode int
	FinalURL   string
	Blocked    bool
	Successful bool
}

// Dispatcher composes the Proxy Manager, UA Rotator, and Governor
// into a single request-execution step.
type Dispatcher struct {
	proxies *proxymanager.Manager
	agents  *useragent.Rotator
	gov     *governor.Governor
}

// New builds a Dispatcher from its three collaborators.
func New(proxies *proxymanager.Manager, agents *useragent.Rotator, gov *governor.Governor) *Dispatcher {
	return &Dispatcher{proxies: proxies, agents: agents, gov: gov}
}

// Dispatch executes job's HTTP request per §4.5's seven-step
// algorithm and reports the outcome to the Governor and Proxy
// Manager before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, job model.Job) (*Result, error) {
	target, err := url.Parse(job.URL)
	if err != nil || target.Host == "" {
		return nil, apperrors.NewInvalidURLError(job.URL, err)
	}
	host := strings.ToLower(target.Hostname())

	var proxy *url.URL
	if d.proxies != nil {
		proxy = d.proxies.Next()
	}
	ua := d.agents.Random()

	delay := d.gov.DelayFor(ctx, host)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apperrors.NewRequestFailedError(ctx.Err())
		}
	}

	req, err := d.buildRequest(ctx, job, target, ua)
	if err != nil {
		return nil, apperrors.NewRequestFailedError(err)
	}

	client := d.buildClient(proxy)
	resp, err := client.Do(req)
	if err != nil {
		d.gov.Report(host, false)
		if proxy != nil && d.proxies != nil {
			d.proxies.Report(proxy, false)
		}
		return nil, apperrors.NewRequestFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.gov.Report(host, false)
		if proxy != nil && d.proxies != nil {
			d.proxies.Report(proxy, false)
		}
		return nil, apperrors.NewRequestFailedError(err)
	}

	blocked := d.gov.IsBlocked(resp.StatusCode, string(body))
	successful := !blocked && resp.StatusCode >= 200 && resp.StatusCode < 400

	d.gov.Report(host, successful)
	if proxy != nil && d.proxies != nil {
		d.proxies.Report(proxy, successful)
	}

	finalURL := target.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Blocked:    blocked,
		Successful: successful,
	}, nil
}

func (d *Dispatcher) buildRequest(ctx context.Context, job model.Job, target *url.URL, ua string) (*http.Request, error) {
	method := job.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	headers := make(map[string]string, len(defaultHeaders)+len(job.HTTP.Headers)+1)
	for k, v := range defaultHeaders {
		headers[k] = v
	}
	for k, v := range job.HTTP.Headers {
		headers[k] = v
	}

	if job.HTTP.HasBody() {
		switch b := job.HTTP.Body.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(job.HTTP.Body)
			if err != nil {
				return nil, err
			}
			bodyReader = bytes.NewReader(encoded)
			if _, ok := headers["Content-Type"]; !ok {
				headers["Content-Type"] = "application/json"
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" && ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	return req, nil
}

// buildClient returns an http.Client scoped to this single request,
// routed through proxy when one was selected, bounded by the header
// and body timeouts and the redirect cap of §4.5 step 5.
func (d *Dispatcher) buildClient(proxy *url.URL) *http.Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: headersTimeout,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   bodyTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
