package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/fieldgeo/internal/adapters/nats"
)

// wsMessage is sent from client to adjust the feed.
type wsMessage struct {
	Action string `json:"action"`  // "subscribe" | "unsubscribe" | "snapshot"
	UserID int64  `json:"user_id"` // agent filter (optional, 0 = all agents)
}

type wsFrame struct {
	Type      string         `json:"type"` // "snapshot" | "position"
	Positions []locationView `json:"positions,omitempty"`
	Position  *locationView  `json:"position,omitempty"`
}

// FleetWebSocketHandler returns a handler that sends the current fleet on
// connect and then relays position events from NATS. Clients send JSON:
// {"action":"subscribe","user_id":7} to follow one agent, {"action":"snapshot"}
// for a fresh fleet listing. Without NATS only snapshots are served.
func FleetWebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	nc := deps.NATS
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote", remoteAddr)
		if id, ok := c.Locals(callerLocal).(int64); ok {
			logger = logger.With("user_id", id)
		}
		logger.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		sendSnapshot := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			fleet := deps.Locations.Fleet(ctx, 0)
			views := make([]locationView, 0, len(fleet))
			for _, p := range fleet {
				views = append(views, toLocationView(p))
			}
			_ = writeJSON(wsFrame{Type: "snapshot", Positions: views})
		}

		relay := func(msg *nats.Msg) {
			event, err := natsadapter.DecodePositionEvent(msg.Data)
			if err != nil {
				return
			}
			view := toLocationView(event.Position())
			_ = writeJSON(wsFrame{Type: "position", Position: &view})
		}

		subscribe := func(subject string) error {
			s, err := nc.Subscribe(subject, relay)
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		sendSnapshot()

		if nc != nil {
			if err := subscribe(natsadapter.PositionSubjectAll); err != nil {
				logger.Error("ws default subscribe failed", "error", err)
				return
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
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
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			if m.Action == "snapshot" {
				sendSnapshot()
				continue
			}
			if nc == nil {
				_ = writeJSON(map[string]string{"error": "live feed unavailable"})
				continue
			}

			subject := natsadapter.PositionSubjectAll
			if m.UserID > 0 {
				subject = natsadapter.PositionSubject(m.UserID)
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				// Following one agent replaces the all-agents feed.
				if subject != natsadapter.PositionSubjectAll {
					if all, ok := subs[natsadapter.PositionSubjectAll]; ok {
						_ = all.Unsubscribe()
						delete(subs, natsadapter.PositionSubjectAll)
					}
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		logger.Info("ws client disconnected")
	}
}
