package tracker

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/coursewatch/kit"
)

// RegisterMCP registers the coursewatch tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListAssignments(srv)
	s.registerSummary(srv)
	s.registerCheckNow(srv)
	s.registerRecentCycles(srv)
	s.registerResetState(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *Service) registerListAssignments(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coursewatch_list_assignments",
		Description: "List the tracked assignments (not attempted, due in the future) with their urgency",
		InputSchema: inputSchema(map[string]any{
			"course": map[string]any{"type": "string", "description": "Only this course code"},
		}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("list_assignments", s.listAssignments), kit.DecodeArgs[listRequest])
}

func (s *Service) registerSummary(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coursewatch_summary",
		Description: "Render the tracked assignments grouped by course, soonest first",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("summary", s.summary), kit.DecodeArgs[struct{}])
}

func (s *Service) registerCheckNow(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coursewatch_check_now",
		Description: "Poll the portal now, notify changes and return the cycle report",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("check_now", s.checkNow), kit.DecodeArgs[struct{}])
}

func (s *Service) registerRecentCycles(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coursewatch_recent_cycles",
		Description: "List the latest poll cycles, newest first",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum cycles to return (default 20)"},
		}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("recent_cycles", s.recentCycles), kit.DecodeArgs[cyclesRequest])
}

func (s *Service) registerResetState(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coursewatch_reset_state",
		Description: "Forget the stored course snapshot and tracked assignments; the next check starts cold",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("reset_state", s.resetState), kit.DecodeArgs[struct{}])
}
