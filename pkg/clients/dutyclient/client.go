package dutyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

const defaultTimeout = 15 * time.Second

// Client talks to the duty server's JSON API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("duty server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("duty server returned %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a client for the server at baseURL. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetDuty reads a month's duty. A non-nil query.History also restores that history entry.
func (c *Client) GetDuty(ctx context.Context, query model.DutyQuery) (*model.Duty, error) {
	params := url.Values{}
	if query.Year != 0 {
		params.Set("year", strconv.Itoa(query.Year))
	}
	if query.Month != 0 {
		params.Set("month", strconv.Itoa(query.Month))
	}
	if query.History != nil {
		params.Set("history", strconv.Itoa(*query.History))
	}

	var duty model.Duty
	if err := c.do(ctx, http.MethodGet, "/api/duty", params, nil, &duty); err != nil {
		return nil, err
	}
	return &duty, nil
}

// UpdateDuty sends one history entry to be applied
func (c *Client) UpdateDuty(ctx context.Context, update model.DutyUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/duty", nil, update, nil)
}

// GenerateDuty asks the server to fill a month from the rotation
func (c *Client) GenerateDuty(ctx context.Context, year, month int) (*model.HistoryEntry, error) {
	body := map[string]int{"year": year, "month": month}
	var entry model.HistoryEntry
	if err := c.do(ctx, http.MethodPost, "/api/duty/generate", nil, body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRequests reads a month's request statuses
func (c *Client) ListRequests(ctx context.Context, year, month int) ([]model.RequestStatus, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(year))
	params.Set("month", strconv.Itoa(month))

	var requests []model.RequestStatus
	if err := c.do(ctx, http.MethodGet, "/api/requests", params, nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Duty API call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &StatusError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
