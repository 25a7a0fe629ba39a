package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/craftops/craftwatch/internal/api/models"
	"github.com/craftops/craftwatch/internal/rcon"
)

// registerRconRoutes wires the RCON console endpoints.
func (s *Server) registerRconRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "rcon-command",
		Method:      http.MethodPost,
		Path:        "/api/rcon/command",
		Summary:     "Execute Command",
		Description: "Run a console command over RCON and normalize the reply",
		Tags:        []string{"rcon"},
		Security:    withAuth(),
		Errors:      []int{401, 412, 422},
	}, func(ctx context.Context, input *models.RconCommandInput) (*models.RconCommandResponse, error) {
		endpoint, err := s.options.Endpoint()
		if err != nil {
			return nil, huma.Error412PreconditionFailed("RCON is not configured", err)
		}

		result := s.options.Rcon.ExecuteCommand(endpoint, input.Body.Command)
		data := models.RconCommandData{
			Success:  result.Succeeded(),
			Response: result.Response,
			Quirk:    result.Outcome == rcon.OutcomeFalsePositive,
		}
		if result.Err != nil {
			data.Error = result.Err.Error()
		}
		return &models.RconCommandResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rcon-status",
		Method:      http.MethodGet,
		Path:        "/api/rcon/status",
		Summary:     "RCON Status",
		Description: "Report RCON configuration, connectivity and player counts",
		Tags:        []string{"rcon"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.RconStatusResponse, error) {
		data := models.RconStatusData{}

		props := s.options.Properties()
		if props == nil || !props.RconEnabled() {
			return &models.RconStatusResponse{Body: data}, nil
		}
		data.Configured = true

		endpoint, err := s.options.Endpoint()
		if err != nil {
			data.Error = err.Error()
			return &models.RconStatusResponse{Body: data}, nil
		}
		data.Addr = endpoint.Addr()
		data.Connected = s.options.Rcon.GetConnection(endpoint).Connected()

		status, result := s.options.Rcon.GetStatus(endpoint)
		if result.Err != nil {
			data.Error = result.Err.Error()
			return &models.RconStatusResponse{Body: data}, nil
		}
		data.Connected = true
		data.Players = status.Players
		data.MaxPlayers = status.MaxPlayers
		return &models.RconStatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rcon-reconnect",
		Method:      http.MethodPost,
		Path:        "/api/rcon/reconnect",
		Summary:     "Force Reconnect",
		Description: "Drop the pooled RCON session and reconnect immediately",
		Tags:        []string{"rcon"},
		Security:    withAuth(),
		Errors:      []int{401, 412, 502},
	}, func(ctx context.Context, input *struct{}) (*models.MessageResponse, error) {
		endpoint, err := s.options.Endpoint()
		if err != nil {
			return nil, huma.Error412PreconditionFailed("RCON is not configured", err)
		}
		if err := s.options.Rcon.ForceReconnect(endpoint); err != nil {
			return nil, huma.Error502BadGateway("reconnect failed", err)
		}
		return &models.MessageResponse{
			Body: models.MessageData{Message: "reconnected to " + endpoint.Addr()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rcon-disconnect",
		Method:      http.MethodPost,
		Path:        "/api/rcon/disconnect",
		Summary:     "Disconnect",
		Description: "Close every pooled RCON session",
		Tags:        []string{"rcon"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.MessageResponse, error) {
		s.options.Rcon.DisconnectAll()
		return &models.MessageResponse{
			Body: models.MessageData{Message: "all RCON sessions closed"},
		}, nil
	})
}
