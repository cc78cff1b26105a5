package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegrid/biometric_replay_server/internal/models"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []models.Event
	writeErr error
	closed   bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, v.(models.Event))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) writtenEvents() []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Event, len(f.written))
	copy(out, f.written)
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func heartbeat(n int) models.Event {
	return models.Event{EventType: models.EventHeartbeat, EventNumber: models.Int(n)}
}

func TestClient_DeliversFIFO(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("c1", conn, 16)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Send(heartbeat(i)))
	}
	go c.WritePump()

	require.Eventually(t, func() bool {
		return len(conn.writtenEvents()) == 5
	}, time.Second, time.Millisecond)

	for i, ev := range conn.writtenEvents() {
		assert.Equal(t, i, *ev.EventNumber)
	}

	c.Close()
}

func TestClient_SendNeverBlocksWhenQueueFull(t *testing.T) {
	c := NewClient("c1", &fakeConn{}, 2)

	require.NoError(t, c.Send(heartbeat(0)))
	require.NoError(t, c.Send(heartbeat(1)))

	done := make(chan error, 1)
	go func() { done <- c.Send(heartbeat(2)) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full queue")
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c := NewClient("c1", &fakeConn{}, 2)
	c.Close()

	assert.ErrorIs(t, c.Send(heartbeat(0)), ErrClosed)
}

func TestClient_PumpStopsOnWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	c := NewClient("c1", conn, 2)
	require.NoError(t, c.Send(heartbeat(0)))

	go c.WritePump()

	require.Eventually(t, func() bool {
		return errors.Is(c.Send(heartbeat(1)), ErrClosed)
	}, time.Second, time.Millisecond, "a failed write should close the client")
	assert.True(t, conn.isClosed())
}

func TestClient_CloseStopsPumpAndConn(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("c1", conn, 2)
	go c.WritePump()

	c.Close()
	c.Close() // idempotent

	require.Eventually(t, func() bool {
		return conn.isClosed()
	}, time.Second, time.Millisecond)
}

func TestClient_IndependentQueues(t *testing.T) {
	// Closing one client must not affect another client's delivery.
	slow := NewClient("slow", &fakeConn{}, 2)
	fastConn := &fakeConn{}
	fast := NewClient("fast", fastConn, 16)
	go fast.WritePump()

	slow.Close()
	require.NoError(t, fast.Send(heartbeat(0)))

	require.Eventually(t, func() bool {
		return len(fastConn.writtenEvents()) == 1
	}, time.Second, time.Millisecond)

	fast.Close()
}
