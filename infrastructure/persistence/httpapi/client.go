// Package httpapi implements the persistence ports against the
// platform persistence service. The service is opaque: this client
// only knows its JSON shapes and status codes, never its storage.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"funnel-backend/application/ports"
	pkgerrors "funnel-backend/pkg/errors"
	"funnel-backend/pkg/utils"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client talks to the persistence API over HTTP. All calls run through
// a circuit breaker so a struggling persistence service sheds load
// fast instead of stacking up blocked saves.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var (
	_ ports.SnapshotStore = (*Client)(nil)
	_ ports.MemoStore     = (*Client)(nil)
	_ ports.TodoCounter   = (*Client)(nil)
)

// NewClient creates a persistence API client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "persistence-api",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Load reads the canvas snapshot
func (c *Client) Load(ctx context.Context, canvasID string) (*ports.Snapshot, error) {
	var snap ports.Snapshot
	path := fmt.Sprintf("/canvases/%s/snapshot", canvasID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	if snap.Version > ports.SnapshotVersion {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("snapshot version %d is newer than supported %d", snap.Version, ports.SnapshotVersion))
	}
	if err := utils.ValidateStruct(&snap); err != nil {
		return nil, pkgerrors.Wrap(err, "persistence API returned an invalid snapshot")
	}
	return &snap, nil
}

// Save writes the canvas snapshot
func (c *Client) Save(ctx context.Context, canvasID string, snapshot *ports.Snapshot) error {
	path := fmt.Sprintf("/canvases/%s/snapshot", canvasID)
	return c.doJSON(ctx, http.MethodPut, path, snapshot, nil)
}

// Create persists a memo and returns the server-assigned record
func (c *Client) Create(ctx context.Context, canvasID string, req ports.MemoCreateRequest) (*ports.MemoRecord, error) {
	var rec ports.MemoRecord
	path := fmt.Sprintf("/canvases/%s/memos", canvasID)
	if err := c.doJSON(ctx, http.MethodPost, path, req, &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, pkgerrors.NewValidationError("persistence API returned a memo without an id")
	}
	return &rec, nil
}

// Update applies a partial change to a persisted memo
func (c *Client) Update(ctx context.Context, canvasID, memoID string, patch ports.MemoPatch) error {
	path := fmt.Sprintf("/canvases/%s/memos/%s", canvasID, memoID)
	return c.doJSON(ctx, http.MethodPatch, path, patch, nil)
}

// Delete removes a persisted memo. A 404 is returned as a NotFound
// error; callers treat it as success since absence already holds.
func (c *Client) Delete(ctx context.Context, canvasID, memoID string) error {
	path := fmt.Sprintf("/canvases/%s/memos/%s", canvasID, memoID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Count reports the user's externally-tracked todo count
func (c *Client) Count(ctx context.Context, userID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/users/%s/todos/count", userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return pkgerrors.NewNetworkError("persistence API unavailable", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pkgerrors.NewTimeoutError(method + " " + path)
		}
		return pkgerrors.NewNetworkError("persistence API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(method, path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(err, "failed to decode response body")
		}
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	// Bounded read keeps a misbehaving upstream from ballooning logs
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return pkgerrors.NewNotFoundError(path)
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.NewUnauthorizedError("persistence API rejected credentials")
	case http.StatusConflict:
		return pkgerrors.NewConflictError("persistence API reported a conflict")
	default:
		c.logger.Warn("Persistence API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		return pkgerrors.NewExternalError("persistence-api",
			fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode))
	}
}
