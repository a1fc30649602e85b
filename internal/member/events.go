package member

// EventType names the lifecycle transitions a member can report.
type EventType string

const (
	EventWarningOpened        EventType = "warning_opened"
	EventDriftBackground      EventType = "drift_background"
	EventDriftRecurring       EventType = "drift_recurring"
	EventDriftColdReset       EventType = "drift_cold_reset"
	EventFalseAlarmTimeout    EventType = "false_alarm_timeout"
	EventFalseAlarmComparison EventType = "false_alarm_comparison"
)

// Event is one lifecycle transition, timestamped by instance count so runs
// are deterministic and replayable.
type Event struct {
	Type      EventType `json:"type"`
	MemberID  int       `json:"member_id"`
	Instances int64     `json:"instances"`
	Error     float64   `json:"error"`
	HistoryID int64     `json:"history_id,omitempty"`
	Group     string    `json:"group,omitempty"`
}

// Emitter receives lifecycle events; typically fanned out to the journal,
// metrics, and the log. A nil emitter is allowed.
type Emitter func(Event)
