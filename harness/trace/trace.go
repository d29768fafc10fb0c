// Package trace records cluster lifecycle events (node started, launch failed,
// node stopped) for post-mortem inspection and the status API.
// This package has no dependencies on harness/process or harness/cluster; it
// stores pure data types.
package trace

import (
	"sync"
	"time"
)

// EventKind names a lifecycle transition observed by the orchestrator.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventLaunchFailed EventKind = "launch_failed"
	EventStopped      EventKind = "stopped"
	EventStopFailed   EventKind = "stop_failed"
	EventWorkDirReset EventKind = "workdir_reset"
)

// Event is one lifecycle record.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    EventKind `json:"kind"`
	RoleID  int       `json:"role_id"`
	Address string    `json:"address"`
	PID     int       `json:"pid,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Log collects events in arrival order. Safe for concurrent use; a nil *Log
// discards everything.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{events: make([]Event, 0)}
}

// Record appends e, stamping Time when unset.
func (l *Log) Record(e Event) {
	if l == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
