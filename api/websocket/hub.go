// Package websocket bridges the engine's event bus to WebSocket peers.
// Each connection owns one bus subscription; when the bus drops a slow
// subscriber the connection is closed rather than buffered further.
package websocket

import (
	"net/http"

	"cosmossdk.io/log"

	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/metrics"
)

// Hub attaches stream connections to the event bus.
type Hub struct {
	bus    *events.Bus
	logger log.Logger
	stats  *metrics.Collector
}

// NewHub creates a stream hub over the given bus.
func NewHub(bus *events.Bus, logger log.Logger) *Hub {
	return &Hub{
		bus:    bus,
		logger: logger.With("module", "websocket"),
		stats:  metrics.GetCollector(),
	}
}

// Serve upgrades the request and pipes the topic to the peer. For the
// execution-reports topic user scopes delivery; public topics pass "".
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic events.Topic, user string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	channel := string(topic)
	sub := h.bus.Subscribe(topic, user)
	h.stats.RecordWSConnection(channel, 1)
	h.logger.Info("stream subscriber connected", "channel", channel)

	client := newClient(conn, sub, channel)
	go client.writePump()
	go client.readPump()
}
