package mcpapi

import (
	"context"
	"fmt"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

var statusLabels = []string{"Not Started", "In Progress", "Done"}

// registerTaskReadTools registers list/get/category tools.
func registerTaskReadTools(srv *mcpserver.MCPServer, tasks common.TaskService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_tasks",
			mcp.WithDescription("List tasks without descriptions. With a category, rows are ordered by due date."),
			mcp.WithString("category", mcp.Description("Optional category filter")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := tasks.ListTasks(ctx, req.GetString("category", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			if rows == nil {
				rows = []common.TaskSummary{}
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"tasks": rows})
			if err != nil {
				return nil, fmt.Errorf("encode list_tasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.get_task",
			mcp.WithDescription("Return one task including its description."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tasks.GetTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode get_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.list_categories",
			mcp.WithDescription("List the distinct task categories in sorted order."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			categories, err := tasks.ListCategories(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if categories == nil {
				categories = []string{}
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"categories": categories})
			if err != nil {
				return nil, fmt.Errorf("encode list_categories result: %w", err)
			}
			return result, nil
		},
	)
}

// registerTaskWriteTools registers create/update/delete tools.
func registerTaskWriteTools(srv *mcpserver.MCPServer, tasks common.TaskService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.create_task",
			mcp.WithDescription("Create one task. Category defaults to General and status to Not Started."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title, at most 200 characters")),
			mcp.WithString("due_date", mcp.Required(), mcp.Description("Due date as YYYY-MM-DD")),
			mcp.WithString("category", mcp.Description("Task category")),
			mcp.WithString("status", mcp.Description("Task status"), mcp.Enum(statusLabels...)),
			mcp.WithString("description", mcp.Description("Optional HTML description")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Title       string `json:"title"`
				DueDate     string `json:"due_date"`
				Category    string `json:"category"`
				Status      string `json:"status"`
				Description string `json:"description"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := tasks.CreateTask(ctx, common.CreateTaskRequest{
				Title:       args.Title,
				Category:    args.Category,
				Status:      args.Status,
				DueDate:     args.DueDate,
				Description: args.Description,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode create_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.update_task",
			mcp.WithDescription("Partially update one task. Only provided fields change."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Description("Task title")),
			mcp.WithString("due_date", mcp.Description("Due date as YYYY-MM-DD")),
			mcp.WithString("category", mcp.Description("Task category")),
			mcp.WithString("status", mcp.Description("Task status"), mcp.Enum(statusLabels...)),
			mcp.WithString("description", mcp.Description("HTML description")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				TaskID      string  `json:"task_id"`
				Title       *string `json:"title"`
				DueDate     *string `json:"due_date"`
				Category    *string `json:"category"`
				Status      *string `json:"status"`
				Description *string `json:"description"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if args.TaskID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "task_id" not found`), nil
			}
			task, err := tasks.UpdateTask(ctx, common.UpdateTaskRequest{
				ID:          args.TaskID,
				Title:       args.Title,
				Category:    args.Category,
				Status:      args.Status,
				DueDate:     args.DueDate,
				Description: args.Description,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode update_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.delete_task",
			mcp.WithDescription("Delete one task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := tasks.DeleteTask(ctx, taskID); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(common.DeleteResult{Message: "Task deleted", ID: taskID})
			if err != nil {
				return nil, fmt.Errorf("encode delete_task result: %w", err)
			}
			return result, nil
		},
	)
}
