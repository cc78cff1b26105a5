package bridge

/*
Worker-to-Websocket Hand-off

Replay workers and stream-socket handler threads must never write to a
websocket directly: gorilla connections allow one concurrent writer, and a
slow websocket peer must not throttle playback pacing. Each websocket client
therefore owns a buffered send channel plus a write pump goroutine. Producers
enqueue without blocking; the pump alone touches the connection. Closing one
client's pump never disturbs another client's queue.
*/

import (
	"errors"
	"sync"

	"github.com/pulsegrid/biometric_replay_server/internal/models"
)

// DefaultSendBuffer is the per-client queue capacity. Deep enough that
// playback pacing is never throttled by a momentarily slow consumer.
const DefaultSendBuffer = 256

var (
	// ErrClosed is returned by Send after the client has been closed.
	ErrClosed = errors.New("websocket client closed")
	// ErrQueueFull is returned by Send when the client cannot keep up.
	ErrQueueFull = errors.New("websocket send queue full")
)

// Conn is the subset of *websocket.Conn the pump needs.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one websocket receiver: a connection, its send queue, and the
// pump that drains the queue onto the socket.
type Client struct {
	id        string
	conn      Conn
	send      chan models.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps a websocket connection with a send queue of the given
// capacity (DefaultSendBuffer if <= 0). The caller must start WritePump on
// its own goroutine.
func NewClient(id string, conn Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan models.Event, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection identifier
func (c *Client) ID() string {
	return c.id
}

// Send enqueues an event for delivery without blocking the producer.
// ErrQueueFull marks the client as too slow; the caller should evict it.
func (c *Client) Send(ev models.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// WritePump forwards queued events to the socket until the client is closed
// or a write fails. Run it on a dedicated goroutine per client.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			if err := c.conn.WriteJSON(ev); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Close stops the pump and releases the queue. Safe to call multiple times
// and from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
