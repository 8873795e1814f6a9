package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPeriodTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"current_period",
			mcp.WithDescription("Current daily, weekly and monthly period ids (UTC+8)"),
		),
		s.handleCurrentPeriod,
	)
}

func (s *Server) handleCurrentPeriod(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.svc.Period()), nil
}
