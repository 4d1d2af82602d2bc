// Package mcpapi exposes the task service as MCP tools over stateless
// streamable HTTP.
package mcpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const instructions = "tavla tracks tasks on a three-column board (Not Started, In Progress, Done). " +
	"Use tavla.list_tasks to find ids, tavla.update_task with only a status to move a card, " +
	"and due dates in YYYY-MM-DD."

type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// withDefaults fills empty fields and normalizes the endpoint to "/segment".
func (c Config) withDefaults() Config {
	if c.ServerName = strings.TrimSpace(c.ServerName); c.ServerName == "" {
		c.ServerName = "tavla"
	}
	if c.ServerVersion = strings.TrimSpace(c.ServerVersion); c.ServerVersion == "" {
		c.ServerVersion = "dev"
	}
	path := strings.Trim(strings.TrimSpace(c.EndpointPath), "/")
	if path == "" {
		path = "mcp"
	}
	c.EndpointPath = "/" + path
	return c
}

// Handler serves MCP requests for one endpoint path.
type Handler struct {
	streamable http.Handler
}

// NewHandler registers the task tools and wraps them in a stateless transport.
func NewHandler(cfg Config, tasks common.TaskService) (*Handler, error) {
	if tasks == nil {
		return nil, errors.New("task service is required")
	}
	cfg = cfg.withDefaults()

	srv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(instructions),
		mcpserver.WithRecovery(),
	)
	registerTaskReadTools(srv, tasks)
	registerTaskWriteTools(srv, tasks)

	return &Handler{
		streamable: mcpserver.NewStreamableHTTPServer(
			srv,
			mcpserver.WithEndpointPath(cfg.EndpointPath),
			mcpserver.WithStateLess(true),
		),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.streamable == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.streamable.ServeHTTP(w, r)
}

// toolErrorCodes maps adapter sentinels onto the code prefix of a tool error.
var toolErrorCodes = []struct {
	target error
	code   string
}{
	{common.ErrNotFound, "not_found"},
	{common.ErrInvalidRequest, "invalid_request"},
}

// toolResultFromError renders err as "<code>: <message>".
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("internal_error: unknown error")
	}
	for _, entry := range toolErrorCodes {
		if errors.Is(err, entry.target) {
			return mcp.NewToolResultError(entry.code + ": " + common.PublicMessage(err))
		}
	}
	return mcp.NewToolResultError("internal_error: " + err.Error())
}

// invalidRequestToolResult reports arguments that could not be bound.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	msg := "malformed arguments"
	if err != nil {
		msg = err.Error()
	}
	return mcp.NewToolResultError("invalid_request: " + msg)
}
