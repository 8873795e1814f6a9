package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerGameTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"game_state",
			mcp.WithDescription("Lifecycle phase, error and timer of the current game"),
		),
		s.handleGameState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_game",
			mcp.WithDescription("Buy a ticket and start the game in the background; poll game_state for progress"),
		),
		s.handleStartGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"retry_game",
			mcp.WithDescription("Clear an error and return to idle"),
		),
		s.handleRetryGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_guess",
			mcp.WithDescription("Submit a 6-letter guess"),
			mcp.WithString("guess", mcp.Required(), mcp.Description("Six ASCII letters")),
		),
		s.handleSubmitGuess,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"complete_game",
			mcp.WithDescription("Commit the finished game to stats and leaderboards"),
		),
		s.handleCompleteGame,
	)
}

func (s *Server) handleGameState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.State(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(st), nil
}

func (s *Server) handleStartGame(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.StartGame(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(st), nil
}

func (s *Server) handleRetryGame(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Retry(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(st), nil
}

func (s *Server) handleSubmitGuess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	guess := strings.TrimSpace(request.GetString("guess", ""))
	if guess == "" {
		return toolError("invalid_request", "guess is required"), nil
	}
	res, err := s.svc.SubmitGuess(ctx, guess)
	if err != nil {
		return mapDomainError(err), nil
	}
	if !res.Success {
		return toolError("guess_rejected", res.Error), nil
	}
	return toolResult(res), nil
}

func (s *Server) handleCompleteGame(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.CompleteGame(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	if !res.Success {
		return toolError("completion_failed", res.Error), nil
	}
	return toolResult(res), nil
}
