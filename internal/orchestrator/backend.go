package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request is the input handed to an analysis backend.
type Request struct {
	SubjectID string         `json:"subjectId"`
	Params    map[string]any `json:"params,omitempty"`
}

// Backend performs one kind of analysis. Implementations return the raw
// response body; shape validation happens in the orchestrator.
type Backend interface {
	// Analyze runs the analysis for req. Transient failures wrap
	// ErrTransient so the orchestrator can retry them.
	Analyze(ctx context.Context, req Request) ([]byte, error)
	// Ping probes backend availability.
	Ping(ctx context.Context) error
}

// HTTPBackend calls an analysis service over JSON/HTTP.
type HTTPBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPBackend creates a backend client for the given base URL.
func NewHTTPBackend(baseURL, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		// Per-call deadlines come from the orchestrator policy, so no
		// client-level timeout here.
		httpClient: &http.Client{},
	}
}

// Analyze posts req to the backend and returns the raw response body.
func (b *HTTPBackend) Analyze(ctx context.Context, req Request) ([]byte, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/analyze", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: backend status %d: %s", ErrTransient, resp.StatusCode, truncate(respBody, 200))
	default:
		return nil, fmt.Errorf("backend rejected request (status %d): %s", resp.StatusCode, truncate(respBody, 200))
	}
}

// Ping probes the backend health endpoint.
func (b *HTTPBackend) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
