package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type Status string

const (
	StatusSuccess          Status = "success"
	StatusInsufficientData Status = "insufficient_data"
)

type Result struct {
	Status   Status `json:"status"`
	Category string `json:"category,omitempty"`
	Label    string `json:"label,omitempty"`
}

// OK reports whether the result carries usable enrichment.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusSuccess && (r.Category != "" || r.Label != "")
}

type Config struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client calls the AI labeling service. Requests are paced client-side so a
// large first sync does not exhaust the upstream quota.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(cfg *Config) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		http.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:    http,
		limiter: rate.NewLimiter(limit, burst),
	}
}

type labelRequest struct {
	ItemName string `json:"item_name"`
}

func (c *Client) Label(ctx context.Context, itemName string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(labelRequest{ItemName: itemName}).
		SetResult(&out).
		Post("/label")
	if err != nil {
		return nil, fmt.Errorf("label %q: %w", itemName, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("label %q: unexpected status %s", itemName, resp.Status())
	}

	switch out.Status {
	case StatusSuccess, StatusInsufficientData:
		return &out, nil
	default:
		return nil, fmt.Errorf("label %q: unknown status %q", itemName, out.Status)
	}
}
