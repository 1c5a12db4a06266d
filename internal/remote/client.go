package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/model"
	"clinicsync/pkg/syncerror"
)

// Config holds remote client settings.
type Config struct {
	BaseURL string

	// RequestTimeout bounds a single data request. Default: 8s.
	RequestTimeout time.Duration

	// ProbeTimeout bounds a Ping. Default: 5s.
	ProbeTimeout time.Duration
}

// Client talks to the remote data service. The wire protocol is a plain
// request/response JSON API; everything beyond "did it answer, and with
// what" is the server's business.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a remote client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 8 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

// envelope is the response shape of the remote service.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Ping implements the connectivity probe contract: a minimal read-only
// call with a short timeout. Any non-success response or transport error
// is an error; the caller treats it as "server unreachable".
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}

// TimeSlots loads the configured time slots for a professional.
func (c *Client) TimeSlots(ctx context.Context, professionalID string) ([]model.TimeSlotConfig, error) {
	var slots []model.TimeSlotConfig
	path := fmt.Sprintf("/api/v1/professionals/%s/slots", url.PathEscape(professionalID))
	if err := c.do(ctx, http.MethodGet, path, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// BlackoutDays loads the blackout days for a professional.
func (c *Client) BlackoutDays(ctx context.Context, professionalID string) ([]model.BlackoutDay, error) {
	var days []model.BlackoutDay
	path := fmt.Sprintf("/api/v1/professionals/%s/blackout-days", url.PathEscape(professionalID))
	if err := c.do(ctx, http.MethodGet, path, nil, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// BookingCounts loads per-slot booking counts for a professional on a
// date. Counts cover non-deleted bookings only.
func (c *Client) BookingCounts(ctx context.Context, professionalID, date string) (model.BookingCounts, error) {
	var counts model.BookingCounts
	path := fmt.Sprintf("/api/v1/professionals/%s/bookings/counts?date=%s",
		url.PathEscape(professionalID), url.QueryEscape(date))
	if err := c.do(ctx, http.MethodGet, path, nil, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// Apply replays one queued mutation against the remote service.
func (c *Client) Apply(ctx context.Context, item model.QueueItem) error {
	path := fmt.Sprintf("/api/v1/sync/%s", url.PathEscape(item.EntityType))
	return c.do(ctx, http.MethodPost, path, item, nil)
}

// do issues one request and classifies failures into the sync error
// taxonomy: transport problems and 5xx answers become connectivity-class
// errors, 400 becomes a ValidationError with the server message preserved
// verbatim, 404 becomes ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("%w: %s %s", syncerror.ErrTimeout, method, path)
		}
		c.logger.Debug("remote request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", syncerror.ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", syncerror.ErrServerUnreachable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server returned status %d", syncerror.ErrServerUnreachable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return syncerror.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return syncerror.NewValidation(errorMessage(data))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("remote returned unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// errorMessage pulls the server-supplied message out of an error body so
// it reaches the caller unchanged.
func errorMessage(data []byte) string {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return ""
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
