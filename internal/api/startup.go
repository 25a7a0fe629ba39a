package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/craftops/craftwatch/internal/events"
)

// registerStartupRoutes wires the startup progress SSE endpoint.
func (s *Server) registerStartupRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "startup-stream",
		Method:      http.MethodGet,
		Path:        "/api/startup/stream",
		Summary:     "Startup Progress Stream",
		Description: "Startup phase transitions and server lifecycle changes via Server-Sent Events. Sends the current phase first.",
		Tags:        []string{"server"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"phase": events.StartupPhaseEvent{},
		"state": events.ServerStateEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Current phase first so late subscribers see where things stand.
		current := events.StartupPhaseEvent{
			Phase:     string(s.options.Monitor.Phase()),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if err := send.Data(current); err != nil {
			return
		}

		eventCh := make(chan any, 32)
		unsubPhase := events.SubscribeToChannel[events.StartupPhaseEvent](s.options.Bus, eventCh)
		defer unsubPhase()
		unsubState := events.SubscribeToChannel[events.ServerStateEvent](s.options.Bus, eventCh)
		defer unsubState()

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
