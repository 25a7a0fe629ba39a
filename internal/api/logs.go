package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/craftops/craftwatch/internal/events"
	"github.com/craftops/craftwatch/internal/logging"
	"github.com/craftops/craftwatch/internal/logstream"
)

// LogStreamInput selects startup mode for the server log stream.
type LogStreamInput struct {
	Startup bool `query:"startup" doc:"Cap the stream at the startup window and tighten keepalives"`
}

// registerLogRoutes wires the server log and application log SSE
// endpoints.
func (s *Server) registerLogRoutes() {
	// Game server log file, tailed with rotation awareness.
	sse.Register(s.api, huma.Operation{
		OperationID: "server-logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Server Log Stream",
		Description: "Tail the game server log via Server-Sent Events. Sends a recent tail first, then follows the file across rotations.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": logstream.Event{},
	}, func(ctx context.Context, input *LogStreamInput, send sse.Sender) {
		ch := s.options.Streamer.Subscribe(ctx, s.options.ServerLogPath, input.Startup)
		for ev := range ch {
			if err := send.Data(ev); err != nil {
				return
			}
		}
	})

	// Application logs: ring buffer history, then live entries.
	sse.Register(s.api, huma.Operation{
		OperationID: "app-logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/app-logs/stream",
		Summary:     "Application Log Stream",
		Description: "Real-time application log streaming via Server-Sent Events. Sends historical logs first, then streams new entries.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if buffer := logging.Buffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				event := events.LogEntryEvent{
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}

		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.options.Bus, eventCh)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
