package connector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
)

// HTTPConnector talks to a processor over its REST surface. Timeouts and
// transport failures surface as ErrUnreachable; non-2xx answers with a
// decoded body surface as in-band declines.
type HTTPConnector struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPConnector builds a connector bound to a processor base URL with a
// bounded per-call timeout.
func NewHTTPConnector(name, url string, timeout time.Duration) *HTTPConnector {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPConnector{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (c *HTTPConnector) Name() string {
	return c.name
}

func (c *HTTPConnector) Authorize(ctx context.Context, authReq *AuthorizeRequest) (*AuthorizeResult, error) {
	var res AuthorizeResult
	if err := c.post(ctx, "/authorizations", authReq, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPConnector) CheckAuthenticationOutcome(ctx context.Context, reference string) (*AuthenticationResult, error) {
	var res AuthenticationResult
	if err := c.get(ctx, fmt.Sprintf("/authentications/%s", reference), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPConnector) Capture(ctx context.Context, reference string, amount int64) (*CaptureResult, error) {
	body := map[string]interface{}{
		"reference": reference,
		"amount":    amount,
	}
	var res CaptureResult
	if err := c.post(ctx, "/captures", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPConnector) QueryStatus(ctx context.Context, reference string) (*StatusResult, error) {
	var res StatusResult
	if err := c.get(ctx, fmt.Sprintf("/payments/%s", reference), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPConnector) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *HTTPConnector) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", c.name, err)
	}
	return c.do(req, out)
}

func (c *HTTPConnector) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: received status code %d", ErrUnreachable, resp.StatusCode)
	}
	// 4xx bodies still decode: declines arrive as in-band statuses with a
	// reason code, not as transport errors.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnreachable, err)
	}
	return nil
}
