package player

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/models"
	"github.com/pulsegrid/biometric_replay_server/internal/scenario"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *captureEmitter) Publish(ev models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureEmitter) snapshot() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureEmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *captureEmitter) completed(name string) bool {
	for _, ev := range c.snapshot() {
		if ev.EventType == models.EventScenarioComplete && ev.Scenario == name {
			return true
		}
	}
	return false
}

func newTestPlayer(t *testing.T, scenarios map[string][]int64) (*Player, *captureEmitter) {
	t.Helper()
	dir := t.TempDir()
	for name, offsets := range scenarios {
		data, err := json.Marshal(offsets)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644))
	}

	logStore := logging.NewLogStore(1000)
	emitter := &captureEmitter{}
	return New(scenario.NewStore(dir, nil, logStore), emitter, logStore), emitter
}

func TestPlayer_ReplaysAllEventsThenCompletes(t *testing.T) {
	p, emitter := newTestPlayer(t, map[string][]int64{
		"demo": {0, 5, 15, 30},
	})

	require.NoError(t, p.Start("demo"))

	require.Eventually(t, func() bool {
		return emitter.completed("demo")
	}, 2*time.Second, 5*time.Millisecond)

	events := emitter.snapshot()
	require.Len(t, events, 4, "3 heartbeats + scenario_complete")

	wantIntervals := []int64{5, 10, 15}
	for i := 0; i < 3; i++ {
		ev := events[i]
		assert.Equal(t, models.EventHeartbeat, ev.EventType)
		assert.Equal(t, "demo", ev.Scenario)
		require.NotNil(t, ev.EventNumber)
		assert.Equal(t, i, *ev.EventNumber)
		require.NotNil(t, ev.IntervalMs)
		assert.Equal(t, wantIntervals[i], *ev.IntervalMs)
	}

	complete := events[3]
	assert.Equal(t, models.EventScenarioComplete, complete.EventType)
	require.NotNil(t, complete.TotalEvents)
	assert.Equal(t, 3, *complete.TotalEvents)
	require.NotNil(t, complete.TotalDurationMs)
}

func TestPlayer_StopCancelsWithoutCompletion(t *testing.T) {
	offsets := []int64{0}
	for i := 1; i <= 100; i++ {
		offsets = append(offsets, int64(i*30))
	}
	p, emitter := newTestPlayer(t, map[string][]int64{"long": offsets})

	require.NoError(t, p.Start("long"))

	require.Eventually(t, func() bool {
		return emitter.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, p.Stop())

	// Stop is synchronous: the worker has exited, so no further events arrive.
	after := emitter.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, emitter.count())
	assert.False(t, emitter.completed("long"), "cancelled run must not emit scenario_complete")

	_, running := p.Current()
	assert.False(t, running)
}

func TestPlayer_StopWhenIdle(t *testing.T) {
	p, _ := newTestPlayer(t, nil)
	assert.False(t, p.Stop())
}

func TestPlayer_StartPreemptsRunningScenario(t *testing.T) {
	long := []int64{0}
	for i := 1; i <= 100; i++ {
		long = append(long, int64(i*25))
	}
	p, emitter := newTestPlayer(t, map[string][]int64{
		"first":  long,
		"second": {0, 5, 10, 15},
	})

	require.NoError(t, p.Start("first"))
	require.Eventually(t, func() bool {
		return emitter.count() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	// Start returns only after the old worker has been joined.
	require.NoError(t, p.Start("second"))
	handoff := emitter.count()

	require.Eventually(t, func() bool {
		return emitter.completed("second")
	}, 2*time.Second, 5*time.Millisecond)

	for _, ev := range emitter.snapshot()[handoff:] {
		assert.NotEqual(t, "first", ev.Scenario, "no events from the old session after the handoff")
	}
	assert.False(t, emitter.completed("first"))

	name, running := p.Current()
	assert.False(t, running)
	assert.Equal(t, "", name)
}

func TestPlayer_RestartSameScenarioStartsOver(t *testing.T) {
	long := []int64{0}
	for i := 1; i <= 100; i++ {
		long = append(long, int64(i*25))
	}
	p, emitter := newTestPlayer(t, map[string][]int64{"demo": long})

	require.NoError(t, p.Start("demo"))
	require.Eventually(t, func() bool {
		return emitter.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Start("demo"))
	handoff := emitter.count()

	require.Eventually(t, func() bool {
		return emitter.count() > handoff
	}, 2*time.Second, 5*time.Millisecond)

	first := emitter.snapshot()[handoff]
	require.NotNil(t, first.EventNumber)
	assert.Equal(t, 0, *first.EventNumber, "restart replays from the beginning")

	p.Stop()
}

func TestPlayer_StartUnknownScenarioKeepsCurrentRunning(t *testing.T) {
	long := []int64{0}
	for i := 1; i <= 100; i++ {
		long = append(long, int64(i*25))
	}
	p, _ := newTestPlayer(t, map[string][]int64{"demo": long})

	require.NoError(t, p.Start("demo"))
	require.Error(t, p.Start("missing"))

	name, running := p.Current()
	assert.True(t, running, "a failed start must not disturb the running session")
	assert.Equal(t, "demo", name)

	p.Stop()
}

func TestPlayer_PacingMatchesRecordedIntervals(t *testing.T) {
	p, emitter := newTestPlayer(t, map[string][]int64{
		"paced": {0, 50, 100, 150},
	})

	start := time.Now()
	require.NoError(t, p.Start("paced"))
	require.Eventually(t, func() bool {
		return emitter.completed("paced")
	}, 2*time.Second, 5*time.Millisecond)
	elapsed := time.Since(start)

	// Sum of recorded intervals is 150ms; allow generous scheduling jitter.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 600*time.Millisecond)
}
