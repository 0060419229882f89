package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClassifier calls a remote classification service:
// POST {baseURL}/classify {"text": "..."} -> Result.
type HTTPClassifier struct {
	baseURL    string
	httpClient *resty.Client
}

type classifyRequest struct {
	Text string `json:"text"`
}

func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "support-desk-sentiment/1.0").
		SetTimeout(timeout)

	return &HTTPClassifier{baseURL: baseURL, httpClient: httpClient}
}

func (c *HTTPClassifier) IsEnabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if !c.IsEnabled() {
		return Result{}, fmt.Errorf("sentiment client is not configured")
	}

	var out Result
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(classifyRequest{Text: text}).
		SetResult(&out).
		Post("/classify")
	if err != nil {
		return Result{}, fmt.Errorf("sentiment request failed: %w", err)
	}
	if httpResp.IsError() {
		return Result{}, fmt.Errorf("sentiment error (%d): %s", httpResp.StatusCode(), httpResp.String())
	}
	return out, nil
}
