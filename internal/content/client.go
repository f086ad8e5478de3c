// Package content connects the scheduler to the upstream content subsystem.
// The content service produces questions and knowledge points; this package
// polls its item feed and schedules each new item for review. Content bodies
// never cross the boundary, only item identities.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mnemik/mnemik/pkg/types"
)

// ErrUnavailable is returned when the content service cannot be reached,
// either because the request failed or because the circuit breaker is open.
var ErrUnavailable = errors.New("content: service unavailable")

// Item is one schedulable unit announced by the content service.
type Item struct {
	ID     string            `json:"id"`
	Type   types.ContentType `json:"type"`
	UserID string            `json:"user_id"`
}

// Client fetches new items from the content service's feed endpoint.
// Calls run through a circuit breaker so a struggling content service
// cannot pile up requests here: after three consecutive failures the
// breaker opens for 30 seconds and calls fail fast with ErrUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a Client for the content service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "content-service",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// ItemsSince returns items produced at or after the given instant.
func (c *Client) ItemsSince(ctx context.Context, since time.Time) ([]Item, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, since)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, err
	}
	return result.([]Item), nil
}

func (c *Client) fetch(ctx context.Context, since time.Time) ([]Item, error) {
	u := fmt.Sprintf("%s/items?since=%s", c.baseURL, url.QueryEscape(since.UTC().Format(time.RFC3339)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding item feed: %w", err)
	}
	return items, nil
}
