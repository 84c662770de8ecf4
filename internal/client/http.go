package client

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

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
)

// HTTPClient implements Client against the tendergraph HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for baseURL (e.g. "http://localhost:8080").
// When token is non-empty it is sent as a bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) ListProjects(ctx context.Context) ([]*model.Project, error) {
	var ps []*model.Project
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *HTTPClient) Todos(ctx context.Context, projectID string) (*Todos, error) {
	var t Todos
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "todos"), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) FilterTodos(ctx context.Context, projectID, where string) ([]*todo.Item, error) {
	var items []*todo.Item
	path := projectPath(projectID, "todos") + "?" + url.Values{"where": {where}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *HTTPClient) View(ctx context.Context, projectID string, view View) ([]*todo.Item, error) {
	var items []*todo.Item
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "todos", string(view)), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Export returns the rendered report body.
func (c *HTTPClient) Export(ctx context.Context, projectID, format string) (string, error) {
	path := projectPath(projectID, "todos", "export") + "?" + url.Values{"format": {format}}.Encode()
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPClient) Complete(ctx context.Context, projectID, nodeID string) (*project.StatusChange, error) {
	var change project.StatusChange
	if err := c.doJSON(ctx, http.MethodPut, projectPath(projectID, "todos", nodeID, "complete"), nil, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, projectID, nodeID string, status model.Status) (*project.StatusChange, error) {
	var change project.StatusChange
	body := map[string]string{"status": string(status)}
	if err := c.doJSON(ctx, http.MethodPut, projectPath(projectID, "nodes", nodeID, "status"), body, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

func (c *HTTPClient) SearchNodes(ctx context.Context, projectID, query string) ([]*model.Node, error) {
	var nodes []*model.Node
	path := projectPath(projectID, "nodes") + "?" + url.Values{"q": {query}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// projectPath joins escaped segments below /v1/projects/{project}.
func projectPath(projectID string, segments ...string) string {
	var b strings.Builder
	b.WriteString("/v1/projects/")
	b.WriteString(url.PathEscape(projectID))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into result when it is non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, result any) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
