package client

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

	"github.com/gorilla/websocket"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

// ContextHeader carries the browser-context token
const ContextHeader = "X-Form-Context"

// ErrNoContext is returned by session calls made before a context is opened
var ErrNoContext = errors.New("no browser context: call OpenContext first")

// Client is a Go SDK for the sponsor-eval view host. One client drives one
// browser context.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithContextToken resumes an existing browser context
func WithContextToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new sponsor-eval client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		dialer: websocket.DefaultDialer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error envelope returned by the host
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// Token returns the browser-context token, empty before OpenContext
func (c *Client) Token() string {
	return c.token
}

// OpenContext opens a new browser context and binds the client to it
func (c *Client) OpenContext(ctx context.Context) (string, error) {
	var resp models.ContextResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/contexts", nil, &resp, false); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil, false)
}

// Rubric returns the criteria every student is scored on
func (c *Client) Rubric(ctx context.Context) ([]RubricCriterion, error) {
	var criteria []RubricCriterion
	if err := c.call(ctx, http.MethodGet, "/api/v1/rubric", nil, &criteria, false); err != nil {
		return nil, err
	}
	return criteria, nil
}

// RubricCriterion is one rubric dimension
type RubricCriterion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RefreshRoster forces the host to refetch the roster
func (c *Client) RefreshRoster(ctx context.Context) (int, error) {
	var resp models.RefreshResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/roster/refresh", nil, &resp, false); err != nil {
		return 0, err
	}
	return resp.Sponsors, nil
}

// Session returns the current session view
func (c *Client) Session(ctx context.Context) (*models.SessionView, error) {
	var view models.SessionView
	if err := c.call(ctx, http.MethodGet, "/api/v1/session", nil, &view, true); err != nil {
		return nil, err
	}
	return &view, nil
}

// SubmitIdentity submits the sponsor's name and email
func (c *Client) SubmitIdentity(ctx context.Context, name, email string) (*models.SessionView, error) {
	return c.sessionCall(ctx, http.MethodPost, "/identity", models.IdentityRequest{Name: name, Email: email})
}

// SelectProject opens a project for editing
func (c *Client) SelectProject(ctx context.Context, project string) (*models.SessionView, error) {
	return c.sessionCall(ctx, http.MethodPost, "/select", models.SelectProjectRequest{Project: project})
}

// SetScore stages one score in the open project
func (c *Client) SetScore(ctx context.Context, studentIndex, criterionIndex, score int) (*models.DraftView, error) {
	return c.draftCall(ctx, http.MethodPut, "/scores", models.ScoreRequest{
		StudentIndex:   studentIndex,
		CriterionIndex: criterionIndex,
		Score:          score,
	})
}

// SetComment replaces the open project's comment
func (c *Client) SetComment(ctx context.Context, comment string) (*models.DraftView, error) {
	return c.draftCall(ctx, http.MethodPut, "/comment", models.CommentRequest{Comment: comment})
}

// Draft returns the staged state of the open project
func (c *Client) Draft(ctx context.Context) (*models.DraftView, error) {
	return c.draftCall(ctx, http.MethodGet, "/draft", nil)
}

// Submit sends the open project to the submission sink
func (c *Client) Submit(ctx context.Context) (*models.SubmitResponse, error) {
	var resp models.SubmitResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/session/submit", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Back returns to the identity form, keeping drafts
func (c *Client) Back(ctx context.Context) (*models.SessionView, error) {
	return c.sessionCall(ctx, http.MethodPost, "/back", nil)
}

// Reset clears the context's progress
func (c *Client) Reset(ctx context.Context) (*models.SessionView, error) {
	return c.sessionCall(ctx, http.MethodPost, "/reset", nil)
}

func (c *Client) sessionCall(ctx context.Context, method, path string, body interface{}) (*models.SessionView, error) {
	var view models.SessionView
	if err := c.call(ctx, method, "/api/v1/session"+path, body, &view, true); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) draftCall(ctx context.Context, method, path string, body interface{}) (*models.DraftView, error) {
	var draft models.DraftView
	if err := c.call(ctx, method, "/api/v1/session"+path, body, &draft, true); err != nil {
		return nil, err
	}
	return &draft, nil
}

// EventStream is a live feed of session events
type EventStream struct {
	conn *websocket.Conn
}

// Next blocks until the next event arrives
func (s *EventStream) Next() (models.SessionEvent, error) {
	var ev models.SessionEvent
	if err := s.conn.ReadJSON(&ev); err != nil {
		return models.SessionEvent{}, fmt.Errorf("failed to read event: %w", err)
	}
	return ev, nil
}

// Close ends the stream
func (s *EventStream) Close() error {
	return s.conn.Close()
}

// Events subscribes to the context's session events. The first event is
// always of type "connected".
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	if c.token == "" {
		return nil, ErrNoContext
	}

	u, err := url.Parse(c.baseURL + "/api/v1/session/events")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"context": {c.token}}.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event stream: %w", err)
	}
	return &EventStream{conn: conn}, nil
}

// call performs a request and decodes the response envelope into out
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, needsContext bool) error {
	if needsContext && c.token == "" {
		return ErrNoContext
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	status, resp, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		apiErr := &APIError{StatusCode: status}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
			apiErr.Retryable = result.Error.Retryable
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(ContextHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 && !json.Valid(respBody) {
		return resp.StatusCode, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return resp.StatusCode, respBody, nil
}
