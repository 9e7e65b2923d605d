// Package upstream relays CLE requests to the official N++ server.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

const (
	// DefaultBaseURL is the official server.
	DefaultBaseURL = "https://dojo.nplusplus.ninja"
	// DefaultTimeout bounds a forwarded request.
	DefaultTimeout = 5 * time.Second

	maxResponseBytes = 8 << 20
)

// hopHeaders are not copied to the upstream request.
var hopHeaders = []string{"Host", "Content-Length", "Connection", "Accept-Encoding", "X-Forwarded-For"}

// HTTPForwarder implements scoreservice.Forwarder over HTTPS.
type HTTPForwarder struct {
	client  *http.Client
	baseURL string
}

// NewHTTPForwarder creates a forwarder. Empty arguments select the defaults.
func NewHTTPForwarder(baseURL string, timeout time.Duration) *HTTPForwarder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPForwarder{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ scoreservice.Forwarder = (*HTTPForwarder)(nil)

// UpstreamPath drops the mappack segment of a CLE path, so that
// /CTP/prod/steam/login becomes /prod/steam/login.
func UpstreamPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	first, rest, found := strings.Cut(trimmed, "/")
	if !found || first == "prod" {
		return "/" + trimmed
	}
	return "/" + rest
}

// Forward sends the request upstream. Answers other than 200 yield a nil body.
func (f *HTTPForwarder) Forward(ctx context.Context, req scoreservice.UpstreamRequest) ([]byte, error) {
	const op = "upstream.Forward"

	url := f.baseURL + UpstreamPath(req.Path)
	if req.RawQuery != "" {
		url += "?" + req.RawQuery
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	out, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	res, err := f.client.Do(out)
	if err != nil {
		return nil, npp.Errorf(op, npp.ErrTransient, "%s %s: %v", method, req.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes))
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, npp.Errorf(op, npp.ErrTransient, "read response: %v", err)
	}
	return body, nil
}
