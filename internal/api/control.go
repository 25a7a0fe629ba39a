package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/craftops/craftwatch/internal/api/models"
	"github.com/craftops/craftwatch/internal/supervisor"
)

// registerControlRoutes wires the server lifecycle endpoints.
func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "server-start",
		Method:      http.MethodPost,
		Path:        "/api/server/start",
		Summary:     "Start Server",
		Description: "Launch the game server process and begin startup monitoring",
		Tags:        []string{"server"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 412, 500},
	}, func(ctx context.Context, input *struct{}) (*models.ServerActionResponse, error) {
		pid, err := s.options.Supervisor.Start()
		if err != nil {
			var missing *supervisor.MissingArtifactError
			switch {
			case errors.Is(err, supervisor.ErrAlreadyRunning):
				return nil, huma.Error409Conflict("server is already running")
			case errors.As(err, &missing):
				return nil, huma.Error412PreconditionFailed(missing.Error())
			case errors.Is(err, supervisor.ErrProcessNotObserved):
				return nil, huma.Error500InternalServerError("server process did not appear", err)
			default:
				return nil, huma.Error500InternalServerError("failed to start server", err)
			}
		}
		return &models.ServerActionResponse{
			Body: models.ServerActionData{
				Success: true,
				Message: "server started",
				PID:     pid,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "server-stop",
		Method:      http.MethodPost,
		Path:        "/api/server/stop",
		Summary:     "Stop Server",
		Description: "Stop the game server, gracefully via RCON when possible",
		Tags:        []string{"server"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *struct{}) (*models.ServerActionResponse, error) {
		message, err := s.options.Supervisor.Stop()
		if err != nil {
			if errors.Is(err, supervisor.ErrNotRunning) {
				return nil, huma.Error409Conflict("server is not running")
			}
			return nil, huma.Error500InternalServerError("failed to stop server", err)
		}
		return &models.ServerActionResponse{
			Body: models.ServerActionData{
				Success: true,
				Message: message,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "server-restart",
		Method:      http.MethodPost,
		Path:        "/api/server/restart",
		Summary:     "Restart Server",
		Description: "Stop the server if running, then start it again",
		Tags:        []string{"server"},
		Security:    withAuth(),
		Errors:      []int{401, 412, 500},
	}, func(ctx context.Context, input *struct{}) (*models.ServerActionResponse, error) {
		message, err := s.options.Supervisor.Restart()
		if err != nil {
			var missing *supervisor.MissingArtifactError
			if errors.As(err, &missing) {
				return nil, huma.Error412PreconditionFailed(missing.Error())
			}
			return nil, huma.Error500InternalServerError("failed to restart server", err)
		}
		return &models.ServerActionResponse{
			Body: models.ServerActionData{
				Success: true,
				Message: message,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "server-status",
		Method:      http.MethodGet,
		Path:        "/api/server/status",
		Summary:     "Server Status",
		Description: "Cached status snapshot with process, resource and player data",
		Tags:        []string{"server"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.ServerStatusResponse, error) {
		return &models.ServerStatusResponse{
			Body: *s.options.Supervisor.Status(),
		}, nil
	})
}
