package api

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
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "http://localhost:5000"

// Client makes requests to the book collection backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     atomic.Pointer[log.Logger]
}

// Options configures a [Client]. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	// HTTPClient is used as is. When nil, one is built around a [BearerTransport] for Oracle.
	HTTPClient *http.Client
	Oracle     session.Oracle
	Timeout    time.Duration
	// RateLimit is requests per second. Zero or less disables limiting.
	RateLimit float64
	Logger    *log.Logger
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status code is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is returned by typed calls when the backend answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: %s %s returned %d", shared.ErrAPIRequest, e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s %s returned %d: %s", shared.ErrAPIRequest, e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{shared.ErrAPIRequest, shared.ErrNotFound}
	}
	return []error{shared.ErrAPIRequest}
}

// NewClient creates a new backend client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &BearerTransport{Base: http.DefaultTransport, Oracle: opts.Oracle},
			Timeout:   opts.Timeout,
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &Client{baseURL: baseURL, httpClient: client, limiter: limiter}
	c.logger.Store(logger)
	return c
}

// SetLogger replaces the client's logger. Requests already in flight may still log to the old one.
func (c *Client) SetLogger(l *log.Logger) {
	c.logger.Store(l)
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request to the specified path and returns the raw response.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (c *Client) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, path, data)
}

// Me fetches the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.call(ctx, http.MethodGet, "/api/user/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListBooks fetches the collection in server order.
func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.call(ctx, http.MethodGet, "/api/books", nil, &books); err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

// CreateBook sends book without an id and returns the stored record.
func (c *Client) CreateBook(ctx context.Context, book models.Book) (*models.Book, error) {
	book.ID = ""
	var created models.Book
	if err := c.call(ctx, http.MethodPost, "/api/books", book, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateBook replaces the fields of the book with the given id.
func (c *Client) UpdateBook(ctx context.Context, id string, book models.Book) (*models.Book, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: book id", shared.ErrMissingArgument)
	}
	book.ID = ""
	var updated models.Book
	if err := c.call(ctx, http.MethodPut, bookPath(id), book, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteBook removes the book with the given id.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: book id", shared.ErrMissingArgument)
	}
	return c.call(ctx, http.MethodDelete, bookPath(id), nil, nil)
}

func bookPath(id string) string {
	return "/api/books/" + url.PathEscape(id)
}

// call sends payload as JSON and decodes a 2xx response into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := c.do(ctx, method, path, data)
	if err != nil {
		return err
	}

	if !resp.OK() {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s %s response: %v", shared.ErrAPIRequest, method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := c.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := shared.GenerateID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Load().Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Load().Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(resp *APIResponse) string {
	if obj, ok := resp.JSONData.(map[string]any); ok {
		for _, key := range []string{"message", "error"} {
			if msg, ok := obj[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if resp.IsJSON {
		return ""
	}
	msg := strings.TrimSpace(string(resp.Body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// IsAuthError reports whether err came from a missing or unobtainable credential.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrAuthUnavailable) || errors.Is(err, shared.ErrNotAuthenticated)
}
