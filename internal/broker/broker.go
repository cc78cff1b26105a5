package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/models"
	"github.com/pulsegrid/biometric_replay_server/internal/registry"
)

// Controller is the playback control surface the broker drives. Satisfied by
// *player.Player.
type Controller interface {
	Start(name string) error
	Stop() bool
	Current() (string, bool)
}

// Broker fans emitted events out to every registered connection of both
// transports and routes inbound commands to the playback controller. It is
// the single authority translating playback lifecycle into broadcast events.
type Broker struct {
	reg      *registry.Registry
	logStore *logging.LogStore
	welcome  string

	ctrl Controller

	// cmdMu serializes command handling so commands take effect in the order
	// they are received, regardless of origin transport.
	cmdMu sync.Mutex
}

// New creates a broker over the connection registry. The controller is bound
// separately because it publishes through the broker.
func New(reg *registry.Registry, logStore *logging.LogStore, welcome string) *Broker {
	return &Broker{
		reg:      reg,
		logStore: logStore,
		welcome:  welcome,
	}
}

// SetController binds the playback controller. Must be called before any
// command is handled.
func (b *Broker) SetController(ctrl Controller) {
	b.ctrl = ctrl
}

// Publish delivers an event to every currently registered connection of both
// populations. A failed send evicts that connection only; delivery to the
// remaining members continues.
func (b *Broker) Publish(ev models.Event) {
	b.fanOut(registry.KindStream, ev)
	b.fanOut(registry.KindSocket, ev)
}

func (b *Broker) fanOut(kind registry.Kind, ev models.Event) {
	for _, c := range b.reg.Snapshot(kind) {
		if err := c.Send(ev); err != nil {
			b.logStore.LogAndStore("warning", "Failed to send to %s client %s: %v", kind, c.ID(), err)
			b.reg.Unregister(kind, c.ID())
			c.Close()
		}
	}
}

// HandleCommand parses and executes one inbound command. Malformed input is
// logged and discarded; the originating connection stays open either way.
func (b *Broker) HandleCommand(raw []byte, originID string) {
	var cmd models.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		b.logStore.LogAndStore("warning", "Invalid JSON from client %s: %.100s", originID, raw)
		return
	}

	switch cmd.Command {
	case models.CommandStartScenario:
		if cmd.Scenario == "" {
			b.logStore.LogAndStore("warning", "start_scenario from %s missing scenario name", originID)
			return
		}
		if err := b.StartScenario(cmd.Scenario); err != nil {
			b.logStore.LogAndStore("error", "Failed to start scenario %s: %v", cmd.Scenario, err)
		}
	case models.CommandStopScenario:
		b.StopScenario()
	case "":
		// Not a command frame (e.g. a client heartbeat); ignore.
	default:
		b.logStore.LogAndStore("warning", "Unknown command from %s: %s", originID, cmd.Command)
	}
}

// StartScenario starts (or restarts) the named scenario and broadcasts
// scenario_started on success. A load failure is a no-op beyond the error.
func (b *Broker) StartScenario(name string) error {
	b.cmdMu.Lock()
	defer b.cmdMu.Unlock()

	if err := b.ctrl.Start(name); err != nil {
		return err
	}

	b.Publish(models.Event{
		Timestamp: time.Now().UnixMilli(),
		EventType: models.EventScenarioStarted,
		Scenario:  name,
		Message:   fmt.Sprintf("Started %s scenario", name),
	})
	return nil
}

// StopScenario stops the running scenario, if any, and broadcasts
// scenario_stopped after the worker has exited.
func (b *Broker) StopScenario() {
	b.cmdMu.Lock()
	defer b.cmdMu.Unlock()

	if !b.ctrl.Stop() {
		b.logStore.LogAndStore("info", "No scenario currently running")
		return
	}

	b.Publish(models.Event{
		Timestamp: time.Now().UnixMilli(),
		EventType: models.EventScenarioStopped,
		Message:   "Scenario stopped",
	})
}

// Welcome builds the greeting event sent to every new connection. Both
// transports send the identical payload.
func (b *Broker) Welcome() models.Event {
	return models.Event{
		Timestamp: time.Now().UnixMilli(),
		EventType: models.EventWelcome,
		Message:   b.welcome,
	}
}

// RunningSnapshot returns a scenario_started event for the current scenario
// so a client connecting mid-run learns what is playing. ok is false when
// nothing is running.
func (b *Broker) RunningSnapshot() (models.Event, bool) {
	name, running := b.ctrl.Current()
	if !running {
		return models.Event{}, false
	}
	return models.Event{
		Timestamp: time.Now().UnixMilli(),
		EventType: models.EventScenarioStarted,
		Scenario:  name,
		Message:   fmt.Sprintf("Current scenario: %s", name),
	}, true
}

// Status reports the playback and connection state for the API.
func (b *Broker) Status() (scenario string, running bool, streamClients, socketClients int) {
	scenario, running = b.ctrl.Current()
	return scenario, running, b.reg.Count(registry.KindStream), b.reg.Count(registry.KindSocket)
}
