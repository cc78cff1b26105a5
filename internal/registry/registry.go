package registry

import (
	"sync"

	"github.com/pulsegrid/biometric_replay_server/internal/models"
)

// Kind identifies which transport population a connection belongs to.
type Kind int

const (
	// KindStream is the newline-delimited TCP transport.
	KindStream Kind = iota
	// KindSocket is the websocket transport.
	KindSocket
)

func (k Kind) String() string {
	if k == KindStream {
		return "stream"
	}
	return "socket"
}

// Conn is a registered receiver. Send must be safe for concurrent use and
// must not block indefinitely; a Send error marks the connection dead.
type Conn interface {
	ID() string
	Send(ev models.Event) error
	Close() error
}

// Registry tracks the two independent populations of live receivers.
// Eviction is lazy: dead connections are detected on send failure during
// fan-out, not proactively polled.
type Registry struct {
	conns map[Kind]map[string]Conn
	mu    sync.RWMutex
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		conns: map[Kind]map[string]Conn{
			KindStream: make(map[string]Conn),
			KindSocket: make(map[string]Conn),
		},
	}
}

// Register adds a connection to its population
func (r *Registry) Register(kind Kind, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[kind][c.ID()] = c
}

// Unregister removes a connection from its population
func (r *Registry) Unregister(kind Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns[kind], id)
}

// Snapshot returns a copy of the current members of one population so the
// caller can iterate without holding the lock across network sends.
func (r *Registry) Snapshot(kind Kind) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Conn, 0, len(r.conns[kind]))
	for _, c := range r.conns[kind] {
		result = append(result, c)
	}
	return result
}

// Count returns the current size of one population
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns[kind])
}
