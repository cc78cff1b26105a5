package scenario

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pulsegrid/biometric_replay_server/internal/models"
)

// TimedEvent is one entry of a scenario: an event type plus its offset from
// the start of the sequence. WaitMs is the derived inter-event interval,
// computed once at load time.
type TimedEvent struct {
	Type       string      `json:"type"`
	OffsetMs   int64       `json:"offset_ms"`
	Value      interface{} `json:"value,omitempty"`
	IntervalMs *int64      `json:"interval_ms,omitempty"`

	WaitMs int64 `json:"-"`
}

// Definition is a named, immutable timing sequence ready for replay.
type Definition struct {
	Name   string
	Events []TimedEvent
}

// trackFile is the typed scenario source format: a list of per-signal events.
type trackFile struct {
	Events []TimedEvent `json:"events"`
}

var knownTypes = map[string]bool{
	models.EventHeartbeat:     true,
	models.EventRespiration:   true,
	models.EventSpO2:          true,
	models.EventTemperature:   true,
	models.EventECGRhythm:     true,
	models.EventBloodPressure: true,
}

// Parse builds a Definition from raw scenario JSON. Two formats are accepted:
//
//   - a bare array of non-negative millisecond offsets, replayed as heartbeat
//     events: N offsets yield N-1 events, each fired after the interval
//     between consecutive offsets (the leading offset only seeds the spacing)
//   - an object {"events": [{"type", "offset_ms", "value", "interval_ms"}]},
//     replayed as typed events, each fired at its recorded offset
func Parse(name string, data []byte) (*Definition, error) {
	var offsets []int64
	if err := json.Unmarshal(data, &offsets); err == nil {
		return fromOffsets(name, offsets)
	}

	var tf trackFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %q: %w", name, err)
	}
	return fromTrack(name, tf.Events)
}

func fromOffsets(name string, offsets []int64) (*Definition, error) {
	if len(offsets) < 2 {
		return nil, fmt.Errorf("scenario %q has %d offsets, need at least 2", name, len(offsets))
	}

	prev := offsets[0]
	if prev < 0 {
		return nil, fmt.Errorf("scenario %q has negative offset %d", name, prev)
	}
	events := make([]TimedEvent, 0, len(offsets)-1)
	for _, off := range offsets[1:] {
		if off < prev {
			return nil, fmt.Errorf("scenario %q offsets are not ordered (%d after %d)", name, off, prev)
		}
		wait := off - prev
		events = append(events, TimedEvent{
			Type:       models.EventHeartbeat,
			OffsetMs:   off,
			IntervalMs: models.Int64(wait),
			WaitMs:     wait,
		})
		prev = off
	}
	return &Definition{Name: name, Events: events}, nil
}

func fromTrack(name string, entries []TimedEvent) (*Definition, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("scenario %q contains no events", name)
	}

	events := make([]TimedEvent, len(entries))
	copy(events, entries)
	for _, te := range events {
		if !knownTypes[te.Type] {
			return nil, fmt.Errorf("scenario %q has unknown event type %q", name, te.Type)
		}
		if te.OffsetMs < 0 {
			return nil, fmt.Errorf("scenario %q has negative offset %d", name, te.OffsetMs)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OffsetMs < events[j].OffsetMs
	})

	var prev int64
	for i := range events {
		events[i].WaitMs = events[i].OffsetMs - prev
		prev = events[i].OffsetMs
	}
	return &Definition{Name: name, Events: events}, nil
}
