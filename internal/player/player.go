package player

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/models"
	"github.com/pulsegrid/biometric_replay_server/internal/scenario"
)

// Emitter receives the events produced by a replay worker.
type Emitter interface {
	Publish(ev models.Event)
}

// Player replays one named scenario at a time with real-time pacing.
//
// At most one session is active at any instant. Start preempts a running
// session with a synchronous stop-then-join handoff, so events from the old
// and new session never interleave. Cancellation is cooperative: the worker
// observes it at the next interval boundary, bounded by one inter-event wait.
type Player struct {
	store    *scenario.Store
	emitter  Emitter
	logStore *logging.LogStore

	mu      sync.Mutex
	current *session
}

type session struct {
	name       string
	cancel     chan struct{}
	done       chan struct{}
	cancelOnce sync.Once
}

func (s *session) stop() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// New creates a player over the given scenario store
func New(store *scenario.Store, emitter Emitter, logStore *logging.LogStore) *Player {
	return &Player{
		store:    store,
		emitter:  emitter,
		logStore: logStore,
	}
}

// Start loads the named scenario and begins replaying it on a new worker.
// Any running session is stopped and joined first, including a session for
// the same name, which restarts from the beginning. If the scenario cannot
// be loaded the running session is left untouched and no events are emitted.
func (p *Player) Start(name string) error {
	def, err := p.store.Load(name)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		if !p.current.finished() {
			p.logStore.LogAndStore("info", "Stopping scenario %s to start %s", p.current.name, name)
		}
		p.current.stop()
		<-p.current.done
	}

	s := &session{
		name:   name,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.current = s

	go p.run(def, s)
	p.logStore.LogAndStore("info", "Started scenario: %s", name)
	return nil
}

// Stop requests cancellation of the running session and waits for the worker
// to exit. Returns false if nothing was running.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return false
	}
	if p.current.finished() {
		p.current = nil
		return false
	}

	p.logStore.LogAndStore("info", "Stopping scenario: %s", p.current.name)
	p.current.stop()
	<-p.current.done
	p.current = nil
	return true
}

// Current returns the name of the running scenario, if any.
func (p *Player) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.finished() {
		return "", false
	}
	return p.current.name, true
}

// run is the session worker. It sleeps the recorded interval before each
// emission and exits without a completion event when cancelled.
func (p *Player) run(def *scenario.Definition, s *session) {
	defer close(s.done)

	start := time.Now()
	count := 0

	for _, te := range def.Events {
		if te.WaitMs > 0 {
			timer := time.NewTimer(time.Duration(te.WaitMs) * time.Millisecond)
			select {
			case <-s.cancel:
				timer.Stop()
				p.logStore.LogAndStore("info", "Scenario %s stopped during wait", def.Name)
				return
			case <-timer.C:
			}
		} else if cancelled(s.cancel) {
			p.logStore.LogAndStore("info", "Scenario %s stopped early", def.Name)
			return
		}

		p.emitter.Publish(buildEvent(def.Name, te, count, start))
		count++
	}

	total := count
	duration := time.Since(start).Milliseconds()
	p.emitter.Publish(models.Event{
		Timestamp:       time.Now().UnixMilli(),
		EventType:       models.EventScenarioComplete,
		Scenario:        def.Name,
		TotalEvents:     &total,
		TotalDurationMs: &duration,
	})
	p.logStore.LogAndStore("info", "Completed scenario %s with %d events", def.Name, count)
}

func cancelled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func buildEvent(name string, te scenario.TimedEvent, count int, start time.Time) models.Event {
	ev := models.Event{
		Timestamp: time.Now().UnixMilli(),
		EventType: te.Type,
		Scenario:  name,
	}

	switch te.Type {
	case models.EventHeartbeat, models.EventRespiration:
		ev.EventNumber = models.Int(count)
		if te.IntervalMs != nil {
			ev.IntervalMs = models.Int64(*te.IntervalMs)
		} else {
			ev.IntervalMs = models.Int64(te.WaitMs)
		}
		ev.ElapsedMs = models.Int64(time.Since(start).Milliseconds())
	case models.EventSpO2:
		if v, ok := te.Value.(float64); ok {
			ev.SpO2 = models.Int(int(v))
		}
	case models.EventTemperature:
		if v, ok := te.Value.(float64); ok {
			ev.Temperature = models.Float64(v)
		}
	case models.EventECGRhythm:
		if v, ok := te.Value.(string); ok {
			ev.ECGRhythm = v
		}
	case models.EventBloodPressure:
		if v, ok := te.Value.(string); ok {
			if sys, dia, err := parseBloodPressure(v); err == nil {
				ev.Systolic = models.Int(sys)
				ev.Diastolic = models.Int(dia)
			}
		}
	}
	return ev
}

// parseBloodPressure splits a "systolic/diastolic" value like "120/80".
func parseBloodPressure(v string) (int, int, error) {
	sysStr, diaStr, ok := strings.Cut(v, "/")
	if !ok {
		return 0, 0, fmt.Errorf("malformed blood pressure value %q", v)
	}
	sys, err := strconv.Atoi(strings.TrimSpace(sysStr))
	if err != nil {
		return 0, 0, err
	}
	dia, err := strconv.Atoi(strings.TrimSpace(diaStr))
	if err != nil {
		return 0, 0, err
	}
	return sys, dia, nil
}
