package models

// Event types carried over both transports.
const (
	EventHeartbeat        = "heartbeat"
	EventRespiration      = "respiration"
	EventSpO2             = "spo2"
	EventTemperature      = "temperature"
	EventECGRhythm        = "ecg_rhythm"
	EventBloodPressure    = "blood_pressure"
	EventWelcome          = "welcome"
	EventScenarioStarted  = "scenario_started"
	EventScenarioStopped  = "scenario_stopped"
	EventScenarioComplete = "scenario_complete"
)

// Commands accepted from any connected client.
const (
	CommandStartScenario = "start_scenario"
	CommandStopScenario  = "stop_scenario"
)

// Event is a single biometric or lifecycle event as it appears on the wire.
// Both transports serialize the same struct: newline-delimited on the stream
// socket, one text frame per event on the websocket. Optional fields use
// pointers so that zero values (event_number 0, interval_ms 0) still serialize.
type Event struct {
	Timestamp int64  `json:"timestamp"`
	EventType string `json:"event_type"`
	Scenario  string `json:"scenario,omitempty"`

	// Discrete events (heartbeat, respiration)
	EventNumber *int   `json:"event_number,omitempty"`
	IntervalMs  *int64 `json:"interval_ms,omitempty"`
	ElapsedMs   *int64 `json:"elapsed_ms,omitempty"`

	// Continuous measurements
	SpO2        *int     `json:"spo2,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	ECGRhythm   string   `json:"ecg_rhythm,omitempty"`
	Systolic    *int     `json:"systolic,omitempty"`
	Diastolic   *int     `json:"diastolic,omitempty"`

	// Lifecycle events (welcome, scenario_started/stopped/complete)
	Message         string `json:"message,omitempty"`
	TotalEvents     *int   `json:"total_events,omitempty"`
	TotalDurationMs *int64 `json:"total_duration_ms,omitempty"`
}

// IsLifecycle reports whether the event is a control/lifecycle event rather
// than a biometric measurement.
func (e Event) IsLifecycle() bool {
	switch e.EventType {
	case EventWelcome, EventScenarioStarted, EventScenarioStopped, EventScenarioComplete:
		return true
	}
	return false
}

// Command represents an inbound control command from a client. Commands are
// routed identically regardless of which transport they arrive on.
type Command struct {
	Command  string `json:"command"`
	Scenario string `json:"scenario,omitempty"`
}

// Pointer helpers for building events with optional fields.

func Int(v int) *int             { return &v }
func Int64(v int64) *int64       { return &v }
func Float64(v float64) *float64 { return &v }
