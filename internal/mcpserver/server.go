package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"voble/internal/chain"
	"voble/internal/game"
	"voble/internal/period"
	"voble/internal/play"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const stateResourceURI = "game://state"

// Service is what the tools drive; *appgame.Service satisfies it.
type Service interface {
	Player() chain.Address
	Period() period.Periods
	State(ctx context.Context) (game.State, error)
	StartGame(ctx context.Context) (game.State, error)
	Retry(ctx context.Context) (game.State, error)
	SubmitGuess(ctx context.Context, guess string) (play.GuessResult, error)
	CompleteGame(ctx context.Context) (play.CompleteResult, error)
}

type Server struct {
	svc Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc Service, version string) *Server {
	mcpSrv := server.NewMCPServer(
		"voble",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		svc:        svc,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPeriodTools()
	s.registerGameTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			stateResourceURI,
			"game_state",
			mcp.WithResourceDescription("Lifecycle state of the current period's game"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			st, err := s.svc.State(ctx)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(map[string]any{
				"player": s.svc.Player().String(),
				"state":  st,
			})
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      stateResourceURI,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
