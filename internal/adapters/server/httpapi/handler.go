// Package httpapi provides the REST HTTP adapter for the task API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "OPTIONS,GET,POST,PUT,DELETE"
	corsAllowHeaders = "Content-Type"
)

// Handler serves `/tasks`, `/tasks/{id}`, and `/categories`.
type Handler struct {
	tasks common.TaskService
}

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Message string `json:"message"`
}

// NewHandler constructs one HTTP API adapter over a task service.
func NewHandler(tasks common.TaskService) *Handler {
	return &Handler{tasks: tasks}
}

// ServeHTTP routes one API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h.tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Message: "task service is not configured"})
		return
	}

	path := normalizePath(r.URL.Path)
	switch {
	case path == "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r)
		case http.MethodPost:
			h.handleCreateTask(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case path == "categories":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListCategories(w, r)
	case strings.HasPrefix(path, "tasks/"):
		id, ok := resolveTaskID(path)
		if !ok {
			writeJSON(w, http.StatusNotFound, ErrorBody{Message: "endpoint not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGetTask(w, r, id)
		case http.MethodPut:
			h.handleUpdateTask(w, r, id)
		case http.MethodDelete:
			h.handleDeleteTask(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	default:
		writeJSON(w, http.StatusNotFound, ErrorBody{Message: "endpoint not found"})
	}
}

// handleListTasks serves GET `/tasks[?category=]`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	items, err := h.tasks.ListTasks(r.Context(), category)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if items == nil {
		items = []common.TaskSummary{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleListCategories serves GET `/categories`.
func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.tasks.ListCategories(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, id string) {
	task, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObjectBody(r.Context(), w, r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), common.CreateTaskRequest{
		Title:       fieldString(body["title"]),
		Category:    fieldString(body["category"]),
		Status:      fieldString(body["status"]),
		DueDate:     fieldString(body["due_date"]),
		Description: fieldString(body["description"]),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleUpdateTask serves PUT `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, id string) {
	body, err := decodeObjectBody(r.Context(), w, r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if len(body) == 0 {
		writeErrorFrom(w, domain.ErrEmptyRequestBody)
		return
	}
	task, err := h.tasks.UpdateTask(r.Context(), common.UpdateTaskRequest{
		ID:          id,
		Title:       optionalField(body, "title"),
		Category:    optionalField(body, "category"),
		Status:      optionalField(body, "status"),
		DueDate:     optionalField(body, "due_date"),
		Description: optionalField(body, "description"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.tasks.DeleteTask(r.Context(), id); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.DeleteResult{Message: "Task deleted", ID: id})
}

// resolveTaskID parses `tasks/{id}` and returns `{id}`.
func resolveTaskID(path string) (string, bool) {
	id := strings.TrimSpace(strings.TrimPrefix(path, "tasks/"))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// fieldString renders one decoded JSON value as a string. Null and absent become "".
func fieldString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		if value {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(value)
	}
}

// optionalField returns a pointer for keys present in body, so null clears to "".
func optionalField(body map[string]any, key string) *string {
	raw, ok := body[key]
	if !ok {
		return nil
	}
	value := fieldString(raw)
	return &value
}

func setCORSHeaders(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}

// writeErrorFrom maps adapter errors into `{"message"}` responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidJSON),
		errors.Is(err, common.ErrInvalidRequest),
		domain.IsValidation(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorBody{Message: common.PublicMessage(err)})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Message: "method not allowed"})
}

// writeJSON writes one JSON response body.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"message":%q}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeObjectBody decodes one JSON object body. Non-object payloads are rejected.
func decodeObjectBody(ctx context.Context, w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrEmptyRequestBody
		}
		return nil, fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidJSON, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidJSON)
	}
	body, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.ErrEmptyRequestBody
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return body, nil
	}
}
