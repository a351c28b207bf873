package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
)

// NewServer creates the MCP server with every ticket tool registered.
func NewServer(svc *orchestrator.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sprint-guardian",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	generate := NewGenerateTool(svc)
	s.AddTool(generate.Definition(), generate.Handle)

	list := NewListTool(svc)
	s.AddTool(list.Definition(), list.Handle)

	del := NewDeleteTool(svc)
	s.AddTool(del.Definition(), del.Handle)

	return s
}

// ServeStdio serves s over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `Sprint Guardian turns rough feature requests into groomed backlog tickets.

Use generate_ticket when the user describes a feature and wants a ticket. Pass their words
unchanged as brain_dump. The result has a summary, description, story points, labels and a
priority. A ticket labelled BLOCKED failed security review and must not be scheduled.

Use list_tickets to show saved tickets and delete_ticket to remove one by summary.`
