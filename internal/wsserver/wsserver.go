package wsserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pulsegrid/biometric_replay_server/internal/bridge"
	"github.com/pulsegrid/biometric_replay_server/internal/broker"
	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards connect from arbitrary origins
		return true
	},
}

// Options tunes per-connection behavior.
type Options struct {
	// SendBuffer is the per-client queue capacity (bridge.DefaultSendBuffer if 0).
	SendBuffer int
	// StopOnLastDisconnect stops a running scenario when the last websocket
	// client leaves.
	StopOnLastDisconnect bool
}

// Handler returns the websocket endpoint. Each accepted connection is
// registered as a socket-population receiver with its own send queue and
// write pump; the handler goroutine itself blocks on reads for commands.
func Handler(reg *registry.Registry, b *broker.Broker, logStore *logging.LogStore, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logStore.LogAndStore("error", "WebSocket upgrade failed: %v", err)
			return
		}

		id := uuid.NewString()
		client := bridge.NewClient(id, conn, opts.SendBuffer)
		go client.WritePump()

		// Greet and tell a mid-run joiner what is currently playing before
		// registering, so neither message can interleave with fan-out.
		if err := client.Send(b.Welcome()); err != nil {
			logStore.LogAndStore("warning", "Failed to greet WebSocket client %s: %v", id, err)
		}
		if ev, ok := b.RunningSnapshot(); ok {
			client.Send(ev)
		}

		reg.Register(registry.KindSocket, client)
		logStore.LogAndStore("info", "New WebSocket client connected: %s (%s)", r.RemoteAddr, id)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			b.HandleCommand(raw, id)
		}

		reg.Unregister(registry.KindSocket, id)
		client.Close()
		logStore.LogAndStore("info", "WebSocket client disconnected: %s", id)

		if opts.StopOnLastDisconnect && reg.Count(registry.KindSocket) == 0 {
			if _, running := b.RunningSnapshot(); running {
				logStore.LogAndStore("info", "No WebSocket clients left, stopping orphaned scenario")
				b.StopScenario()
			}
		}
	}
}
