// Package apiclient talks to the task REST API and normalizes its payloads.
package apiclient

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

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/tavla/internal/domain"
)

// maxResponseBytes bounds decoded response bodies.
const maxResponseBytes = 8 << 20

// ErrMalformedResponse reports a 2xx body that is not the expected JSON shape.
var ErrMalformedResponse = errors.New("malformed response")

// Config describes where the API lives and how its routes are spelled.
type Config struct {
	BaseURL        string
	TasksPath      string
	TaskPath       string
	CategoriesPath string
	Timeout        time.Duration
}

// APIError is a non-2xx response. Message is the server's message/error
// field, or "HTTP <status>" when the body carries neither.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// TaskInput is the create payload.
type TaskInput struct {
	Title       string
	Category    string
	DueDate     string
	Status      domain.Status
	Description string
}

// TaskPatch is an update payload; nil fields are omitted from the request.
type TaskPatch struct {
	Title       *string
	Category    *string
	DueDate     *string
	Status      *domain.Status
	Description *string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *charmLog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is a thin JSON client over the task API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *charmLog.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if cfg.TasksPath == "" {
		cfg.TasksPath = "/tasks"
	}
	if cfg.TaskPath == "" {
		cfg.TaskPath = "/tasks/{id}"
	}
	if cfg.CategoriesPath == "" {
		cfg.CategoriesPath = "/categories"
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: charmLog.New(io.Discard),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// TasksURL returns the list URL, with the category filter when non-empty.
func (c *Client) TasksURL(category string) string {
	u := c.cfg.BaseURL + c.cfg.TasksPath
	if category != "" {
		u += "?category=" + url.QueryEscape(category)
	}
	return u
}

// TaskURL returns the item URL for id.
func (c *Client) TaskURL(id string) string {
	return c.cfg.BaseURL + strings.ReplaceAll(c.cfg.TaskPath, "{id}", url.PathEscape(id))
}

// CategoriesURL returns the category list URL.
func (c *Client) CategoriesURL() string {
	return c.cfg.BaseURL + c.cfg.CategoriesPath
}

// ListTasks fetches tasks, filtered server-side when category is non-empty.
func (c *Client) ListTasks(ctx context.Context, category string) ([]domain.Task, error) {
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.TasksURL(category), nil, &body); err != nil {
		return nil, err
	}
	raws, err := decodeList(body, "items", "tasks")
	if err != nil {
		return nil, err
	}
	objects := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		if obj, ok := raw.(map[string]any); ok {
			objects = append(objects, obj)
		}
	}
	return domain.NormalizeTasks(objects), nil
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.TaskURL(id), nil, &body); err != nil {
		return domain.Task{}, err
	}
	return decodeTask(body)
}

// CreateTask posts a new task and returns the created record when the server echoes one.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (domain.Task, error) {
	payload := map[string]any{
		"title":       in.Title,
		"category":    in.Category,
		"due_date":    in.DueDate,
		"status":      in.Status.Label(),
		"description": in.Description,
	}
	var body json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.TasksURL(""), payload, &body); err != nil {
		return domain.Task{}, err
	}
	if len(body) == 0 {
		return domain.Task{}, nil
	}
	task, err := decodeTask(body)
	if err != nil {
		// Some backends answer with an acknowledgement rather than the task.
		c.logger.Debug("decode create response failed", "err", err)
		return domain.Task{}, nil
	}
	return task, nil
}

// UpdateTask sends the provided fields. Status travels as its display label.
func (c *Client) UpdateTask(ctx context.Context, id string, patch TaskPatch) (domain.Task, error) {
	payload := map[string]any{}
	if patch.Title != nil {
		payload["title"] = *patch.Title
	}
	if patch.Category != nil {
		payload["category"] = *patch.Category
	}
	if patch.DueDate != nil {
		payload["due_date"] = *patch.DueDate
	}
	if patch.Status != nil {
		payload["status"] = patch.Status.Label()
	}
	if patch.Description != nil {
		payload["description"] = *patch.Description
	}
	var body json.RawMessage
	if err := c.do(ctx, http.MethodPut, c.TaskURL(id), payload, &body); err != nil {
		return domain.Task{}, err
	}
	if len(body) == 0 {
		return domain.Task{}, nil
	}
	task, err := decodeTask(body)
	if err != nil {
		c.logger.Debug("decode update response failed", "task_id", id, "err", err)
		return domain.Task{}, nil
	}
	return task, nil
}

// DeleteTask removes one task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.TaskURL(id), nil, nil)
}

// ListCategories fetches the server category list.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.CategoriesURL(), nil, &body); err != nil {
		return nil, err
	}
	raws, err := decodeList(body, "items", "categories")
	if err != nil {
		return nil, err
	}
	return domain.NormalizeCategories(raws), nil
}

// do performs one JSON round trip. out receives the raw body on success.
func (c *Client) do(ctx context.Context, method, target string, payload any, out *json.RawMessage) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", "method", method, "url", target, "err", err)
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api request", "method", method, "url", target, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}
	if out != nil {
		*out = bytes.TrimSpace(raw)
	}
	return nil
}

// errorMessage extracts message/error from an error body.
func errorMessage(status int, raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"message", "error"} {
			switch v := body[key].(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
					return msg
				}
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

// decodeList accepts a bare array or an object wrapping the array under one of keys.
func decodeList(body json.RawMessage, keys ...string) ([]any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var decoded any
	if err := unmarshalNumbers(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	switch v := decoded.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range keys {
			if list, ok := v[key].([]any); ok {
				return list, nil
			}
		}
		return nil, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected list payload %T", ErrMalformedResponse, decoded)
	}
}

// decodeTask accepts a bare task object or one wrapped under item/task.
func decodeTask(body json.RawMessage) (domain.Task, error) {
	var obj map[string]any
	if err := unmarshalNumbers(body, &obj); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for _, key := range []string{"item", "task"} {
		if inner, ok := obj[key].(map[string]any); ok {
			obj = inner
			break
		}
	}
	task, ok := domain.NormalizeTask(obj)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: task without id", ErrMalformedResponse)
	}
	return task, nil
}

// unmarshalNumbers decodes JSON numbers as json.Number so large ids keep every digit.
func unmarshalNumbers(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
