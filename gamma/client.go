package gamma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultBaseURL is the public Gamma API endpoint.
const DefaultBaseURL = "https://public-api.gamma.app/v1.0"

const (
	// DefaultPollInterval is the delay between status polls.
	DefaultPollInterval = 5 * time.Second
	// DefaultPollTimeout bounds how long a generation is polled before
	// giving up.
	DefaultPollTimeout = 300 * time.Second
)

// maxErrorBodySize limits how much of an error response body we read.
const maxErrorBodySize = 4096

func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	return string(data)
}

// Client is the generation API surface the pipeline depends on. HTTPClient
// is the production implementation; tests substitute their own.
type Client interface {
	Generate(ctx context.Context, req *GenerationRequest) (string, error)
	GenerateFromTemplate(ctx context.Context, req *FromTemplateRequest) (string, error)
	Status(ctx context.Context, generationID string) (*GenerationStatus, error)
	WaitForCompletion(ctx context.Context, generationID string) (*GenerationStatus, error)
	DownloadExport(ctx context.Context, exportURL, destPath string) error
	Themes(ctx context.Context) ([]ThemeInfo, error)
	Folders(ctx context.Context) ([]FolderInfo, error)
}

// HTTPClient talks to the Gamma REST API with an account API key.
type HTTPClient struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
	client       *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the given API key. An empty baseURL
// selects the public endpoint.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Generate submits a fresh generation and returns its id.
func (c *HTTPClient) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	var resp struct {
		GenerationID string `json:"generationId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/generations", req, &resp); err != nil {
		return "", err
	}
	if resp.GenerationID == "" {
		return "", fmt.Errorf("gamma generate: response carried no generation id")
	}
	return resp.GenerationID, nil
}

// GenerateFromTemplate submits a generation seeded from an existing deck
// and returns its id.
func (c *HTTPClient) GenerateFromTemplate(ctx context.Context, req *FromTemplateRequest) (string, error) {
	var resp struct {
		GenerationID string `json:"generationId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/generations/from-template", req, &resp); err != nil {
		return "", err
	}
	if resp.GenerationID == "" {
		return "", fmt.Errorf("gamma generate from template: response carried no generation id")
	}
	return resp.GenerationID, nil
}

// Status polls one generation.
func (c *HTTPClient) Status(ctx context.Context, generationID string) (*GenerationStatus, error) {
	var status GenerationStatus
	if err := c.doJSON(ctx, http.MethodGet, "/generations/"+generationID, nil, &status); err != nil {
		return nil, err
	}
	if status.GenerationID == "" {
		status.GenerationID = generationID
	}
	return &status, nil
}

// WaitForCompletion polls the generation until it completes, fails, the
// polling window elapses or ctx is cancelled.
func (c *HTTPClient) WaitForCompletion(ctx context.Context, generationID string) (*GenerationStatus, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := c.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	deadline := time.Now().Add(timeout)

	lastStatus := StatusPending
	for {
		status, err := c.Status(ctx, generationID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case StatusCompleted:
			return status, nil
		case StatusFailed:
			return status, &GenerationFailedError{GenerationID: generationID}
		}
		lastStatus = status.Status

		if time.Now().After(deadline) {
			return status, &PollTimeoutError{GenerationID: generationID, LastStatus: lastStatus}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// DownloadExport fetches the exported file behind a signed URL into
// destPath, creating parent directories as needed. The export URL carries
// its own authorization, so no API key is sent.
func (c *HTTPClient) DownloadExport(ctx context.Context, exportURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return fmt.Errorf("gamma download: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gamma download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gamma download: status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("gamma download: %w", err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("gamma download: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("gamma download: %w", err)
	}
	return f.Close()
}

// listingPageLimit is the largest page size the listing endpoints accept.
const listingPageLimit = 50

// Themes lists the first page of themes available to the account.
func (c *HTTPClient) Themes(ctx context.Context) ([]ThemeInfo, error) {
	var resp struct {
		Data    []ThemeInfo `json:"data"`
		HasMore bool        `json:"hasMore"`
	}
	path := fmt.Sprintf("/themes?limit=%d", listingPageLimit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Folders lists the first page of folders available to the account.
func (c *HTTPClient) Folders(ctx context.Context) ([]FolderInfo, error) {
	var resp struct {
		Data    []FolderInfo `json:"data"`
		HasMore bool         `json:"hasMore"`
	}
	path := fmt.Sprintf("/folders?limit=%d", listingPageLimit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// doJSON performs one authenticated request, mapping the API's error
// statuses onto typed errors.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	op := method + " " + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gamma %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("gamma %s: %w", op, err)
	}
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gamma %s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Operation: op}
	case resp.StatusCode == http.StatusBadRequest:
		return &RequestError{Operation: op, Message: apiMessage(resp.Body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("gamma %s: status %d: %s", op, resp.StatusCode, readErrorBody(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gamma %s: decode response: %w", op, err)
	}
	return nil
}

// apiMessage extracts the server's message field from an error body,
// falling back to the raw body text.
func apiMessage(body io.Reader) string {
	raw := readErrorBody(body)
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return raw
}
