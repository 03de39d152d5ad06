package helpers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// maxBodySize caps how much of a page is read into memory
const maxBodySize = 8 << 20

// Response is the outcome of a single page retrieval. Any status code is a
// valid response; only transport failures are returned as errors.
type Response struct {
	Status      int
	ContentType string
	Body        string
	FinalURL    string
}

// Client retrieves pages with a fixed browser-like header set
type Client struct {
	client    *http.Client
	userAgent string
}

// NewClient creates a client with a per-request timeout. Redirects are
// followed by the default policy.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
			},
		},
		userAgent: userAgent,
	}
}

// HTTPClient exposes the underlying client (used by tests to mock the transport)
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Fetch sends a GET request, decodes the body to UTF-8 and returns it with
// the status and content type.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	reader, err := decompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := toUTF8(bodyBytes, contentType)
	if err != nil {
		return nil, err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: contentType,
		Body:        body,
		FinalURL:    finalURL,
	}, nil
}

// decompressReader wraps a reader with the decoder for the content encoding
func decompressReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}

// toUTF8 converts the body using the charset from Content-Type or markup
func toUTF8(body []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return string(body), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return "", fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.String(), nil
}
