// Package gtranslate is a translation provider for the public Google
// Translate web endpoint used by the browser extension ("gtx" client).
package gtranslate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public web endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Client calls the endpoint, throttled by a token bucket shared by all
// callers of the client.
type Client struct {
	Endpoint string
	limiter  *rate.Limiter
	client   *http.Client
}

// NewClient creates a Client allowing rps requests per second. A
// non-positive rps disables throttling.
func NewClient(endpoint string, rps float64, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Client{
		Endpoint: endpoint,
		limiter:  limiter,
		client:   &http.Client{Timeout: timeout},
	}
}

// Translate translates text from source ("auto" to detect) to target.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("translate rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	form := url.Values{}
	form.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"?"+q.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; doctranslate)")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate error (HTTP %d): %s", resp.StatusCode, truncate(string(body), 200))
	}
	return ParseResponse(body)
}

// ParseResponse extracts the translation from the endpoint's nested array
// response: [[["translated","original",...],...],null,"en",...].
func ParseResponse(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(root) == 0 {
		return "", fmt.Errorf("empty translate response")
	}
	var segments []json.RawMessage
	if err := json.Unmarshal(root[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected translate response shape: %w", err)
	}

	var b strings.Builder
	for _, raw := range segments {
		var seg []json.RawMessage
		if err := json.Unmarshal(raw, &seg); err != nil || len(seg) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(seg[0], &part); err != nil {
			continue
		}
		b.WriteString(part)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("translate response has no text")
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
