package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

// wsMessage is a change request sent by a client.
type wsMessage struct {
	Action  string          `json:"action"` // "select" | "deselect" | "filters" | "clear_filters"
	PointID any             `json:"point_id,omitempty"`
	Filters *filtersRequest `json:"filters,omitempty"`
}

type wsEvent struct {
	Type  string              `json:"type"` // "snapshot" | "error"
	Data  *selection.Snapshot `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
}

// WebSocketHandler returns a handler that attaches a connection to a session
// and streams its snapshots. Clients pass ?session=<id> to join an existing
// session; without it a new session is created. Every snapshot, including
// the ones caused by other observers of the same session, is pushed as
// {"type":"snapshot","data":{...}}.
func WebSocketHandler(sessions *selection.Registry) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		var store *selection.Store
		if id := c.Query("session"); id != "" {
			s, err := sessions.Get(id)
			if err != nil {
				_ = writeJSON(wsEvent{Type: "error", Error: err.Error()})
				return
			}
			store = s
		} else {
			store = sessions.Create(context.Background())
		}

		log := slog.Default().With("session_id", store.ID(), "remote_addr", c.RemoteAddr().String())
		log.Info("ws client connected")

		sub, err := store.Subscribe()
		if err != nil {
			_ = writeJSON(wsEvent{Type: "error", Error: err.Error()})
			return
		}
		// Both writers are joined before the deferred c.Close runs.
		done := make(chan struct{})
		var writers sync.WaitGroup
		defer func() {
			close(done)
			sub.Close()
			writers.Wait()
		}()

		// Snapshot pump; ends when the session or the subscription closes.
		writers.Add(1)
		go func() {
			defer writers.Done()
			for snap := range sub.C {
				if err := writeJSON(wsEvent{Type: "snapshot", Data: &snap}); err != nil {
					return
				}
			}
			select {
			case <-done:
				// client side went away first
			default:
				mu.Lock()
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				mu.Unlock()
			}
		}()

		// Keep-alive ping
		writers.Add(1)
		go func() {
			defer writers.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Error: "invalid JSON"})
				continue
			}

			// Resulting snapshots reach the client through the subscription.
			switch m.Action {
			case "select":
				id, ok := domain.NormalizePointID(m.PointID)
				if !ok {
					_ = writeJSON(wsEvent{Type: "error", Error: "point_id is required"})
					continue
				}
				_, err = store.Select(id)
			case "deselect":
				_, err = store.Deselect()
			case "filters":
				if m.Filters == nil {
					_ = writeJSON(wsEvent{Type: "error", Error: "filters are required"})
					continue
				}
				if verr := validate.Struct(m.Filters); verr != nil {
					_ = writeJSON(wsEvent{Type: "error", Error: validationMessage(verr)})
					continue
				}
				_, err = store.SetFilters(m.Filters.filters())
			case "clear_filters":
				_, err = store.ClearFilters()
			default:
				_ = writeJSON(wsEvent{Type: "error", Error: "unknown action: " + m.Action})
				continue
			}
			if err != nil {
				_ = writeJSON(wsEvent{Type: "error", Error: err.Error()})
			}
		}

		log.Info("ws client disconnected")
	}
}
