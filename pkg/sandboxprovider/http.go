package sandboxprovider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/forgekit/autoforge/pkg/config"
)

// HTTPProvider talks to a remote sandbox-provisioning REST API (a cloud
// devbox service, a firecracker fleet manager fronted by HTTP). It retries
// transient failures (connection errors, 5xx) with exponential backoff, the
// same recovery posture the coding-agent provider interface docs expect
// (§6.2: "sandbox provider flake" is a transient, retryable error class).
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	maxTry  int
}

// NewHTTPProvider builds an HTTPProvider from a sandbox provider's transport
// config. cfg.Type must be TransportTypeHTTP.
func NewHTTPProvider(cfg config.TransportConfig) (*HTTPProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http sandbox provider requires url")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.VerifySSL != nil && !*cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // operator opted in via config
			MinVersion:         tls.VersionTLS12,
		}
	}

	var rt http.RoundTripper = transport
	if cfg.BearerToken != "" {
		rt = &bearerRoundTripper{base: rt, token: cfg.BearerToken}
	}
	rt = otelhttp.NewTransport(rt, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return "sandboxprovider.http " + r.Method + " " + r.URL.Path
	}))

	timeout := 60 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &HTTPProvider{
		client:  &http.Client{Transport: rt, Timeout: timeout},
		baseURL: cfg.URL,
		maxTry:  3,
	}, nil
}

type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (t *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

type createSandboxRequest struct {
	Image     string            `json:"image"`
	Resources Resources         `json:"resources"`
	Labels    map[string]string `json:"labels,omitempty"`
}

func (p *HTTPProvider) CreateSandbox(ctx context.Context, image string, resources Resources, labels map[string]string) (*Sandbox, error) {
	var sb Sandbox
	err := p.retry(ctx, func() error {
		return p.doJSON(ctx, http.MethodPost, "/sandboxes", createSandboxRequest{
			Image: image, Resources: resources, Labels: labels,
		}, &sb)
	})
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	return &sb, nil
}

func (p *HTTPProvider) UploadFiles(ctx context.Context, sandboxID string, files map[string][]byte) error {
	body := map[string]string{}
	for path, content := range files {
		body[path] = string(content)
	}
	return p.retry(ctx, func() error {
		return p.doJSON(ctx, http.MethodPost, fmt.Sprintf("/sandboxes/%s/files", url.PathEscape(sandboxID)), body, nil)
	})
}

type execRequest struct {
	Command string            `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
}

func (p *HTTPProvider) Exec(ctx context.Context, sandboxID, command string, env map[string]string) (ExecResult, error) {
	var result ExecResult
	err := p.retry(ctx, func() error {
		return p.doJSON(ctx, http.MethodPost, fmt.Sprintf("/sandboxes/%s/exec", url.PathEscape(sandboxID)), execRequest{
			Command: command, Env: env,
		}, &result)
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec in sandbox %s: %w", sandboxID, err)
	}
	return result, nil
}

// Delete is idempotent: a 404 from the provider means the sandbox is
// already gone, which is the desired end state, not an error.
func (p *HTTPProvider) Delete(ctx context.Context, sandboxID string) error {
	err := p.retry(ctx, func() error {
		err := p.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/sandboxes/%s", url.PathEscape(sandboxID)), nil, nil)
		if isNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete sandbox %s: %w", sandboxID, err)
	}
	return nil
}

func (p *HTTPProvider) GetPreviewLink(ctx context.Context, sandboxID string, port int) (PreviewLink, error) {
	var link PreviewLink
	path := fmt.Sprintf("/sandboxes/%s/preview?port=%d", url.PathEscape(sandboxID), port)
	err := p.retry(ctx, func() error {
		return p.doJSON(ctx, http.MethodGet, path, nil, &link)
	})
	if err != nil {
		return PreviewLink{}, fmt.Errorf("preview link for sandbox %s: %w", sandboxID, err)
	}
	return link, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sandbox provider returned %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return err != nil && asStatusError(err, &se) && se.code == http.StatusNotFound
}

func asStatusError(err error, target **statusError) bool {
	if se, ok := err.(*statusError); ok {
		*target = se
		return true
	}
	return false
}

func (p *HTTPProvider) doJSON(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	var reader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(data)}
	}
	if respBody != nil && len(data) > 0 {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// retry runs op with exponential backoff, giving up after maxTry attempts.
// A 4xx statusError (other than the 404s callers already special-case) is
// not retried — it reflects a bad request, not a transient provider flake.
func (p *HTTPProvider) retry(ctx context.Context, op func() error) error {
	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.maxTry-1)), ctx)
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var se *statusError
		if asStatusError(err, &se) && se.code >= 400 && se.code < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
