package collab

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	invitemodel "github.com/lawha-app/lawha/backend/internal/model/invite"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	readTimeout  = 60 * time.Second
)

// Client is one connected editor socket. All writes go through the send
// channel so a single goroutine owns the connection's write side; enqueue
// order is delivery order.
type Client struct {
	conn       *websocket.Conn
	sessionID  string
	projectID  string
	permission invitemodel.Permission

	send     chan outboundMessage
	closing  chan struct{}
	closeOne sync.Once
}

func newClient(conn *websocket.Conn, sessionID, projectID string, permission invitemodel.Permission) *Client {
	return &Client{
		conn:       conn,
		sessionID:  sessionID,
		projectID:  projectID,
		permission: permission,
		send:       make(chan outboundMessage, sendBuffer),
		closing:    make(chan struct{}),
	}
}

// enqueue hands a message to the write pump without blocking the caller.
// A client that cannot drain its buffer has missed state it can never
// recover (a dropped lock.changed would leave a ghost lock rendered
// forever), so overflow closes the connection and the reconnect resyncs
// from the connected payload.
func (c *Client) enqueue(msg outboundMessage) {
	select {
	case <-c.closing:
	case c.send <- msg:
	default:
		log.Printf("[gateway] closing slow client session=%s: send buffer full", c.sessionID)
		c.close()
	}
}

// writePump owns the connection's write side: it drains the send channel
// in FIFO order and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closing:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("[gateway] write failed session=%s: %v", c.sessionID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOne.Do(func() {
		close(c.closing)
		c.conn.Close()
	})
}
