package khabiteq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"khabiteq-backend/model"
)

const (
	negotiationPath = "/negotiations/%s"
	acceptPath      = "/negotiations/%s/accept"
	rejectPath      = "/negotiations/%s/reject"
	counterPath     = "/negotiations/%s/counter"

	maxErrorBody = 4 << 10
)

// APIError is returned when the API answers with success=false or a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("khabiteq api: %s (status %d)", e.Message, e.StatusCode)
}

// ActionRequest is the body of accept/reject/counter calls.
type ActionRequest struct {
	Role        model.Role        `json:"role"`
	Reason      string            `json:"reason,omitempty"`
	CounterType model.CounterType `json:"counterType,omitempty"`
	Amount      *float64          `json:"amount,omitempty"`
	Message     string            `json:"message,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) GetNegotiation(ctx context.Context, negotiationID string) (*model.NegotiationSnapshot, error) {
	var snap model.NegotiationSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(negotiationPath, url.PathEscape(negotiationID)), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) AcceptNegotiation(ctx context.Context, negotiationID string, req ActionRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf(acceptPath, url.PathEscape(negotiationID)), req, nil)
}

func (c *Client) RejectNegotiation(ctx context.Context, negotiationID string, req ActionRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf(rejectPath, url.PathEscape(negotiationID)), req, nil)
}

func (c *Client) CounterNegotiation(ctx context.Context, negotiationID string, req ActionRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf(counterPath, url.PathEscape(negotiationID)), req, nil)
}

// do performs one request and decodes the envelope's data into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("khabiteq request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("khabiteq request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("khabiteq request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env model.Envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{StatusCode: resp.StatusCode, Message: truncate(strings.TrimSpace(string(raw)))}
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if env.Data == nil {
		return errors.New("khabiteq api: response has no data")
	}
	if err := json.Unmarshal(*env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
