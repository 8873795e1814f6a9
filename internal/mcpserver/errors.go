package mcpserver

import (
	"context"
	"errors"
	"fmt"

	appgame "voble/internal/app/game"
	"voble/internal/game"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, appgame.ErrInvalidRequest):
		return toolError("invalid_request", err.Error())
	case errors.Is(err, appgame.ErrInvalidPhase):
		return toolError("invalid_phase", err.Error())
	case errors.Is(err, game.ErrIllegalTransition):
		return toolError("illegal_transition", err.Error())
	case errors.Is(err, appgame.ErrClosed), errors.Is(err, game.ErrClosed):
		return toolError("unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return toolError("timeout", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}
