package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxResponseBytes   = 1 << 20
)

// HttpClient calls a JSON service under BaseURL. GETs are retried on
// network errors and 5xx with a short backoff, within the caller's deadline.
type HttpClient struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64
	RetryDelay time.Duration
}

func NewHttpClient(baseURL string, timeout time.Duration) *HttpClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HttpClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		MaxRetries: 2,
		RetryDelay: 50 * time.Millisecond,
	}
}

type Response struct {
	*http.Response
	Body []byte
}

// DecodeJSON keeps numbers as json.Number so prices are not rounded through float64.
func (r *Response) DecodeJSON(target any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	return dec.Decode(target)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// GET returns the last response when every attempt got a 5xx, so callers can
// still inspect the status.
func (c *HttpClient) GET(ctx context.Context, path string) (*Response, error) {
	var resp *Response
	op := func() error {
		r, err := c.do(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server error: %s", r.Status)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx))
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func (c *HttpClient) do(ctx context.Context, method, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{Response: resp, Body: body}, nil
}

// GetErrorMessage extracts a human-readable message from an error body.
func GetErrorMessage(resp *Response) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil {
		return fmt.Sprintf("unreadable error body (status %d)", resp.StatusCode)
	}
	for _, s := range []string{errResp.Message, errResp.Error, errResp.Code} {
		if s != "" {
			return s
		}
	}
	return http.StatusText(resp.StatusCode)
}
