package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/metrics"
	"github.com/openalpha/hourex/pkg/gbuf"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client pipes one bus subscription to one WebSocket peer. Frames are
// binary-encoded events; the peer sends nothing but close/pong frames.
type Client struct {
	conn    *websocket.Conn
	sub     *events.Subscription
	channel string
	stats   *metrics.Collector
}

func newClient(conn *websocket.Conn, sub *events.Subscription, channel string) *Client {
	return &Client{
		conn:    conn,
		sub:     sub,
		channel: channel,
		stats:   metrics.GetCollector(),
	}
}

// readPump discards peer input and watches for disconnect. Closing the
// subscription makes writePump exit.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards subscription events to the peer until the
// subscription closes (engine dropped a slow consumer) or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.stats.RecordWSConnection(c.channel, -1)
	}()

	for {
		select {
		case ev, ok := <-c.sub.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped by the bus for falling behind.
				c.stats.RecordWSSubscriberLost(c.channel)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := gbuf.Encode(ev.Payload)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
			c.stats.RecordWSMessage(c.channel)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
