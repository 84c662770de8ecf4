package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TikaClient extracts plain text from binary formats (PDF, legacy Office,
// ODF, RTF) through an Apache Tika server.
type TikaClient struct {
	baseURL    string
	httpClient *http.Client
}

// TikaError is returned when the Tika server answers with an error status.
type TikaError struct {
	StatusCode int
	Message    string
}

func (e *TikaError) Error() string {
	return fmt.Sprintf("tika: HTTP %d: %s", e.StatusCode, e.Message)
}

// NewTikaClient targets the Tika server at baseURL
// (e.g. "http://localhost:9998").
func NewTikaClient(baseURL string, timeout time.Duration) *TikaClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &TikaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Extract sends the file body to Tika and returns the plain text.
func (c *TikaClient) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain; charset=UTF-8")
	req.Header.Set("Content-Disposition", "attachment; filename="+url.PathEscape(filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", &TikaError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return strings.TrimSpace(string(body)), nil
}
