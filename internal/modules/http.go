package modules

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPConfig bounds outbound requests made by the http modules.
type HTTPConfig struct {
	MaxResponseBody int64
	DefaultTimeout  time.Duration
}

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultHTTPTimeout     = 30 * time.Second
)

type httpCaller struct {
	cfg HTTPConfig
}

// HTTPModules returns the utilities.http operations.
//
// request takes the full option object: method, url, headers, body,
// body_encoding (json|form|text|raw), auth {type: bearer|basic|api_key},
// timeout, follow_redirects, max_redirects, tls_skip_verify and
// fail_on_error_status. The response is
// {status_code, status, headers, body, content_type, duration_ms}.
func HTTPModules(cfg HTTPConfig) []Descriptor {
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultHTTPTimeout
	}
	h := &httpCaller{cfg: cfg}

	return []Descriptor{
		Object("utilities.http.request", "HTTP request with full control over method, headers, body, auth and redirects",
			[]string{"url", "method", "headers", "body", "body_encoding", "auth", "timeout",
				"follow_redirects", "max_redirects", "tls_skip_verify", "fail_on_error_status"},
			h.do),

		Scalar("utilities.http.get", "HTTP GET a URL", "url",
			func(ctx context.Context, v any) (any, error) {
				return h.do(ctx, map[string]any{"url": v, "method": http.MethodGet})
			}),

		Positional("utilities.http.post", "HTTP POST a JSON body to a URL",
			[]string{"url", "body"},
			func(ctx context.Context, args []any) (any, error) {
				return h.do(ctx, map[string]any{"url": args[0], "body": args[1], "method": http.MethodPost})
			}),

		Positional("utilities.http.fetch", "HTTP request with an explicit method and no body",
			[]string{"url", "method"},
			func(ctx context.Context, args []any) (any, error) {
				return h.do(ctx, map[string]any{"url": args[0], "method": args[1]})
			}),
	}
}

func (h *httpCaller) do(ctx context.Context, params map[string]any) (any, error) {
	rawURL := stringParam(params, "url", "")
	if rawURL == "" {
		return nil, fmt.Errorf("missing required param 'url'")
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	method := strings.ToUpper(stringParam(params, "method", http.MethodGet))

	timeout := h.cfg.DefaultTimeout
	if ts := stringParam(params, "timeout", ""); ts != "" {
		if d, err := time.ParseDuration(ts); err == nil {
			timeout = d
		}
	}

	body, contentType, err := encodeBody(params["body"], stringParam(params, "body_encoding", "json"))
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if hm, ok := params["headers"].(map[string]any); ok {
		for k, v := range hm {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if auth, ok := params["auth"].(map[string]any); ok {
		applyAuth(req, auth)
	}

	client := newHTTPClient(
		boolParam(params, "tls_skip_verify", false),
		boolParam(params, "follow_redirects", true),
		intParam(params, "max_redirects", 10),
	)

	start := time.Now()
	resp, err := client.Do(req)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	respContentType := resp.Header.Get("Content-Type")
	respHeaders := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	result := map[string]any{
		"status_code":  resp.StatusCode,
		"status":       resp.Status,
		"headers":      respHeaders,
		"body":         decodeResponseBody(bodyBytes, respContentType),
		"content_type": respContentType,
		"duration_ms":  durationMs,
	}

	if boolParam(params, "fail_on_error_status", false) && resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return result, nil
}

func encodeBody(raw any, encoding string) (io.Reader, string, error) {
	if raw == nil {
		return nil, "", nil
	}
	switch encoding {
	case "form":
		formData, ok := raw.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("form body must be an object, got %T", raw)
		}
		vals := url.Values{}
		for k, v := range formData {
			vals.Set(k, fmt.Sprintf("%v", v))
		}
		return strings.NewReader(vals.Encode()), "application/x-www-form-urlencoded", nil
	case "text":
		return strings.NewReader(fmt.Sprintf("%v", raw)), "text/plain", nil
	case "raw":
		return strings.NewReader(fmt.Sprintf("%v", raw)), "", nil
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, "", fmt.Errorf("marshal body as JSON: %w", err)
		}
		return strings.NewReader(string(b)), "application/json", nil
	}
}

func applyAuth(req *http.Request, auth map[string]any) {
	switch stringParam(auth, "type", "") {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+stringParam(auth, "token", ""))
	case "basic":
		req.SetBasicAuth(stringParam(auth, "username", ""), stringParam(auth, "password", ""))
	case "api_key":
		if name := stringParam(auth, "header_name", ""); name != "" {
			req.Header.Set(name, stringParam(auth, "header_value", ""))
		}
	}
}

// newHTTPClient builds a client per call so per-request settings never leak.
func newHTTPClient(tlsSkipVerify, followRedirects bool, maxRedirects int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client := &http.Client{Transport: transport}

	switch {
	case !followRedirects:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case maxRedirects > 0:
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}
	return client
}

func decodeResponseBody(b []byte, contentType string) any {
	if len(b) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		var v any
		if err := json.Unmarshal(b, &v); err == nil {
			return v
		}
	}
	return string(b)
}
