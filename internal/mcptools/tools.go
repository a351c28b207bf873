// Package mcptools exposes the ticket pipeline as MCP tools.
//
// Each tool follows the same pattern:
// - A struct holding the shared orchestrator.Service
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tool failures are reported as error results, never as protocol errors.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/internal/tickets"
)

// GenerateTool handles the generate_ticket MCP tool.
type GenerateTool struct {
	svc *orchestrator.Service
}

// NewGenerateTool creates a GenerateTool backed by svc.
func NewGenerateTool(svc *orchestrator.Service) *GenerateTool {
	return &GenerateTool{svc: svc}
}

// Definition returns the MCP tool definition for generate_ticket.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_ticket",
		mcp.WithDescription(
			"Turn an unstructured feature request into a groomed ticket. Runs the product owner, "+
				"tech lead, security and QA reviews and returns the final ticket as JSON.",
		),
		mcp.WithString("brain_dump",
			mcp.Required(),
			mcp.Description("Free-form description of the feature or request"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Persist the ticket to the ticket store (default: true)"),
		),
	)
}

// Handle processes the generate_ticket tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	brainDump := req.GetString("brain_dump", "")
	if strings.TrimSpace(brainDump) == "" {
		return mcp.NewToolResultError("'brain_dump' is required"), nil
	}
	save := boolArg(req, "save", true)

	result, err := t.svc.Generate(ctx, brainDump, save)
	if err != nil {
		msg := fmt.Sprintf("ticket generation failed: %v", err)
		if stage, ok := orchestrator.FailedStage(err); ok {
			msg = fmt.Sprintf("ticket generation failed at stage %s: %v", stage, err)
		}
		return mcp.NewToolResultError(msg), nil
	}

	data, err := json.MarshalIndent(result.Ticket, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding ticket: %v", err)), nil
	}

	var sb strings.Builder
	sb.Write(data)
	sb.WriteString("\n\nRun: " + result.RunID)
	if result.Slug != "" {
		sb.WriteString("\nSaved as: " + result.Slug)
	}
	for _, v := range result.Violations {
		sb.WriteString("\nRepaired: " + v.String())
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ListTool handles the list_tickets MCP tool.
type ListTool struct {
	svc *orchestrator.Service
}

// NewListTool creates a ListTool backed by svc.
func NewListTool(svc *orchestrator.Service) *ListTool {
	return &ListTool{svc: svc}
}

// Definition returns the MCP tool definition for list_tickets.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tickets",
		mcp.WithDescription("List every saved ticket as a JSON array, sorted by summary."),
	)
}

// Handle processes the list_tickets tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := t.svc.ListTickets()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tickets: %v", err)), nil
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding tickets: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// DeleteTool handles the delete_ticket MCP tool.
type DeleteTool struct {
	svc *orchestrator.Service
}

// NewDeleteTool creates a DeleteTool backed by svc.
func NewDeleteTool(svc *orchestrator.Service) *DeleteTool {
	return &DeleteTool{svc: svc}
}

// Definition returns the MCP tool definition for delete_ticket.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_ticket",
		mcp.WithDescription("Delete a saved ticket by its summary or slug."),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Ticket summary (e.g. 'Login page') or slug (e.g. 'login_page')"),
		),
	)
}

// Handle processes the delete_ticket tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary := req.GetString("summary", "")
	if strings.TrimSpace(summary) == "" {
		return mcp.NewToolResultError("'summary' is required"), nil
	}

	slug, err := t.svc.DeleteTicket(ctx, summary)
	if errors.Is(err, tickets.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no ticket matches %q", summary)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete ticket: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted ticket %s", slug)), nil
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
