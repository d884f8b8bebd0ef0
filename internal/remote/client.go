// Package remote talks to the roster source and the submission sink over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/terra-clan/sponsor-eval/internal/models"
	"github.com/terra-clan/sponsor-eval/internal/roster"
)

// StatusError is returned for a non-2xx response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the remote clients
type Option func(*http.Client)

// WithHTTPClient replaces the transport and timeout with those of client
func WithHTTPClient(client *http.Client) Option {
	return func(c *http.Client) {
		*c = *client
	}
}

// WithTimeout sets the request timeout. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *http.Client) {
		c.Timeout = timeout
	}
}

func newHTTPClient(opts []Option) *http.Client {
	c := &http.Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RosterSource fetches assignment rows with a GET request
type RosterSource struct {
	url        string
	httpClient *http.Client
}

// NewRosterSource creates a roster source for url
func NewRosterSource(url string, opts ...Option) *RosterSource {
	return &RosterSource{url: url, httpClient: newHTTPClient(opts)}
}

// FetchRows implements roster.Source
func (s *RosterSource) FetchRows(ctx context.Context) ([]models.AssignmentRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	body, err := do(s.httpClient, req)
	if err != nil {
		return nil, err
	}

	rows, err := roster.DecodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}
	return rows, nil
}

// SubmissionSink sends one project's ratings with a POST request
type SubmissionSink struct {
	url        string
	httpClient *http.Client
}

// NewSubmissionSink creates a submission sink for url
func NewSubmissionSink(url string, opts ...Option) *SubmissionSink {
	return &SubmissionSink{url: url, httpClient: newHTTPClient(opts)}
}

// Submit posts the payload. Any 2xx response is success; its body is parsed
// as JSON when possible and otherwise ignored.
func (s *SubmissionSink) Submit(ctx context.Context, payload models.SubmissionPayload) (*models.SubmissionReceipt, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	receipt := &models.SubmissionReceipt{StatusCode: resp.StatusCode}
	if err == nil {
		var parsed map[string]any
		if json.Unmarshal(respBody, &parsed) == nil {
			receipt.Body = parsed
		}
	}
	return receipt, nil
}

// do performs a request and returns the body of a 2xx response
func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
