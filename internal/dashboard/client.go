package dashboard

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient adapts a websocket connection to the Client interface. Writes are
// serialized and bounded by a deadline so one stalled observer cannot hold
// up a broadcast indefinitely.
type WSClient struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// NewWSClient wraps conn. writeTimeout bounds each send.
func NewWSClient(conn *websocket.Conn, writeTimeout time.Duration) *WSClient {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &WSClient{conn: conn, writeTimeout: writeTimeout}
}

// Send writes one text message within the write deadline.
func (c *WSClient) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// ID returns the peer address.
func (c *WSClient) ID() string {
	return c.conn.RemoteAddr().String()
}
