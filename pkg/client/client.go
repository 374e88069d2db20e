// Package client is a typed Go facade over the collaboration gateway:
// one websocket connection, five narrow sub-clients (session, cursor,
// lock, feed, snapshot) so callers depend only on the surface they use.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope is one message received from the gateway.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Options tunes Dial.
type Options struct {
	DisplayName string
	InviteToken string
}

// Client is one gateway connection. Sub-clients share it; all writes are
// serialized through an internal mutex.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// Dial connects to the gateway at baseURL (http:// or ws://) and joins the
// project as userID.
func Dial(ctx context.Context, baseURL, projectID, userID string, opts Options) (*Client, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1)

	query := url.Values{}
	query.Set("userId", userID)
	if opts.DisplayName != "" {
		query.Set("name", opts.DisplayName)
	}
	if opts.InviteToken != "" {
		query.Set("invite", opts.InviteToken)
	}

	endpoint := fmt.Sprintf("%s/ws/%s?%s", wsURL, projectID, query.Encode())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Next blocks until the gateway pushes the next message.
func (c *Client) Next() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// NextOfType reads messages until one of the given type arrives or the
// deadline passes. Other messages are discarded.
func (c *Client) NextOfType(msgType string, timeout time.Duration) (Envelope, error) {
	deadline := time.Now().Add(timeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return Envelope{}, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		env, err := c.Next()
		if err != nil {
			return Envelope{}, err
		}
		if env.Type == msgType {
			return env, nil
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(msgType string, data any) error {
	payload := struct {
		Type      string `json:"type"`
		Data      any    `json:"data,omitempty"`
		Timestamp int64  `json:"timestamp"`
	}{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(payload)
}

// SendRaw sends an arbitrary message type with a raw JSON payload. The
// sub-clients cover the common operations; this is the escape hatch.
func (c *Client) SendRaw(msgType string, data json.RawMessage) error {
	return c.send(msgType, data)
}

// Session returns the presence sub-client.
func (c *Client) Session() *SessionClient { return &SessionClient{c} }

// Cursor returns the cursor sub-client.
func (c *Client) Cursor() *CursorClient { return &CursorClient{c} }

// Lock returns the element-lock sub-client.
func (c *Client) Lock() *LockClient { return &LockClient{c} }

// Feed returns the change-feed sub-client.
func (c *Client) Feed() *FeedClient { return &FeedClient{c} }

// Snapshot returns the snapshot sub-client.
func (c *Client) Snapshot() *SnapshotClient { return &SnapshotClient{c} }

// SessionClient keeps the session alive.
type SessionClient struct{ c *Client }

// Heartbeat refreshes the session's last-seen time.
func (s *SessionClient) Heartbeat() error {
	return s.c.send("heartbeat", nil)
}

// CursorClient streams pointer positions.
type CursorClient struct{ c *Client }

// Update reports the local pointer position.
func (s *CursorClient) Update(x, y float64) error {
	return s.c.send("cursor.update", map[string]float64{"x": x, "y": y})
}

// LockClient acquires and releases element locks.
type LockClient struct{ c *Client }

// Try requests an exclusive lock; the gateway replies with lock.result.
func (s *LockClient) Try(elementID string) error {
	return s.c.send("lock.try", map[string]string{"elementId": elementID})
}

// Release frees a lock this session holds.
func (s *LockClient) Release(elementID string) error {
	return s.c.send("lock.release", map[string]string{"elementId": elementID})
}

// FeedClient reads the activity feed.
type FeedClient struct{ c *Client }

// Tail asks for the most recent events; the gateway replies with feed.tail.
func (s *FeedClient) Tail(limit int) error {
	return s.c.send("feed.tail", map[string]int{"limit": limit})
}

// SnapshotClient saves and restores board versions.
type SnapshotClient struct{ c *Client }

// Create saves a version of the given element set; nil captures the last
// synced canvas state.
func (s *SnapshotClient) Create(elements json.RawMessage) error {
	data := map[string]json.RawMessage{}
	if elements != nil {
		data["elements"] = elements
	}
	return s.c.send("snapshot.create", data)
}

// List asks for version metadata; the gateway replies with snapshot.list.
func (s *SnapshotClient) List() error {
	return s.c.send("snapshot.list", nil)
}

// Restore asks for a version's elements; the gateway replies with
// snapshot.restored or an error message.
func (s *SnapshotClient) Restore(snapshotID string) error {
	return s.c.send("snapshot.restore", map[string]string{"snapshotId": snapshotID})
}

// SyncCanvas pushes the full current element set so autosave has
// something to capture.
func (s *SnapshotClient) SyncCanvas(elements json.RawMessage) error {
	return s.c.send("canvas.sync", map[string]json.RawMessage{"elements": elements})
}
