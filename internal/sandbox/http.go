package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/errors"
)

// HTTPProvider implements Provider against a REST sandbox service.
//
// Endpoints:
//
//	POST {base}/v1/sandboxes                    create
//	GET  {base}/v1/sandboxes/{id}               probe (reconnect)
//	POST {base}/v1/sandboxes/{id}/exec          run command
//	GET  {base}/v1/sandboxes/{id}/files?path=   read file
//	PUT  {base}/v1/sandboxes/{id}/files?path=   write file
//	POST {base}/v1/sandboxes/{id}/mkdirs        create directories
//	GET  {base}/v1/sandboxes/{id}/tree?root=    recursive listing
//
// 404 and 409 responses on a sandbox resource mean the sandbox is gone and
// are tagged GoneError here so callers never parse response wording.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPProvider builds a provider from config. Returns
// SANDBOX_UNAVAILABLE when the service URL or token is missing.
func NewHTTPProvider(cfg *config.Config) (*HTTPProvider, error) {
	if cfg.SandboxURL == "" {
		return nil, errors.NewSandboxUnavailable("no sandbox service URL configured")
	}
	token := cfg.SandboxToken()
	if token == "" {
		return nil, errors.NewSandboxUnavailable("no sandbox API token configured")
	}

	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.SandboxURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type sandboxInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (p *HTTPProvider) Create(ctx context.Context) (Sandbox, error) {
	var info sandboxInfo
	if err := p.do(ctx, http.MethodPost, "/v1/sandboxes", "", nil, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, errors.NewSandboxUnavailable("sandbox service returned no ID")
	}
	return &httpSandbox{provider: p, id: info.ID}, nil
}

func (p *HTTPProvider) Connect(ctx context.Context, id string) (Sandbox, error) {
	var info sandboxInfo
	if err := p.do(ctx, http.MethodGet, "/v1/sandboxes/"+url.PathEscape(id), id, nil, &info); err != nil {
		return nil, err
	}
	if info.Status != "" && info.Status != "running" {
		return nil, &GoneError{SandboxID: id, Err: fmt.Errorf("status %s", info.Status)}
	}
	return &httpSandbox{provider: p, id: id}, nil
}

// do issues one request and decodes the JSON response into out (when non-nil).
// sandboxID, when set, tags 404/409 responses as GoneError.
func (p *HTTPProvider) do(ctx context.Context, method, path, sandboxID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewSandboxUnavailable(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusConflict {
		if sandboxID != "" {
			return &GoneError{SandboxID: sandboxID, Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
		}
		return errors.NewSandboxUnavailable(fmt.Sprintf("sandbox service returned %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewSandboxUnavailable(fmt.Sprintf("sandbox service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

type httpSandbox struct {
	provider *HTTPProvider
	id       string
}

func (s *httpSandbox) ID() string { return s.id }

func (s *httpSandbox) List(ctx context.Context, root string) ([]string, error) {
	var out struct {
		Paths []string `json:"paths"`
	}
	path := "/v1/sandboxes/" + url.PathEscape(s.id) + "/tree?root=" + url.QueryEscape(root)
	if err := s.provider.do(ctx, http.MethodGet, path, s.id, nil, &out); err != nil {
		return nil, err
	}
	return out.Paths, nil
}

func (s *httpSandbox) ReadFile(ctx context.Context, path string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	reqPath := "/v1/sandboxes/" + url.PathEscape(s.id) + "/files?path=" + url.QueryEscape(path)
	if err := s.provider.do(ctx, http.MethodGet, reqPath, s.id, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (s *httpSandbox) WriteFile(ctx context.Context, path, content string) error {
	reqPath := "/v1/sandboxes/" + url.PathEscape(s.id) + "/files?path=" + url.QueryEscape(path)
	body := map[string]string{"content": content}
	return s.provider.do(ctx, http.MethodPut, reqPath, s.id, body, nil)
}

func (s *httpSandbox) MakeDirs(ctx context.Context, dir string) error {
	reqPath := "/v1/sandboxes/" + url.PathEscape(s.id) + "/mkdirs"
	body := map[string]string{"path": dir}
	return s.provider.do(ctx, http.MethodPost, reqPath, s.id, body, nil)
}

func (s *httpSandbox) RunCommand(ctx context.Context, command, cwd string, timeout time.Duration) (*RunResult, error) {
	var out struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		ExitCode int    `json:"exit_code"`
		TimedOut bool   `json:"timed_out"`
	}
	reqPath := "/v1/sandboxes/" + url.PathEscape(s.id) + "/exec"
	body := map[string]any{
		"command":      command,
		"cwd":          cwd,
		"timeout_secs": int(timeout.Seconds()),
	}
	if err := s.provider.do(ctx, http.MethodPost, reqPath, s.id, body, &out); err != nil {
		return nil, err
	}
	if out.TimedOut {
		return nil, errors.NewCommandTimeout(int(timeout.Seconds()))
	}
	return &RunResult{Stdout: out.Stdout, Stderr: out.Stderr, ExitCode: out.ExitCode}, nil
}
