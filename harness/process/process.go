// Package process supervises external worker processes (data servers and
// benchmark clients). A Supervisor starts a process through a Transport,
// reaps it from a dedicated goroutine, and stops it with a SIGTERM → SIGKILL
// escalation.
//
// Thread-safety: Supervisor and ManagedProcess are safe for concurrent use.
// Wait never blocks other processes; Stop may run concurrently with Wait.
package process

import (
	"sync"
	"time"

	"github.com/maesker/Master-Thesis/harness"
)

// ManagedProcess is one OS process owned by the Supervisor that launched it.
// Status transitions only on start, exit, and signal.
type ManagedProcess struct {
	ID         string
	Role       harness.NodeRole
	Executable string
	Args       []string

	done chan struct{}

	mu       sync.Mutex
	pid      int
	status   harness.ProcessStatus
	exitCode int
	err      error
	started  time.Time
	ended    time.Time
	stopping bool
}

// ExitResult is the outcome of a process that reached a terminal status.
type ExitResult struct {
	ProcessID string
	Role      harness.NodeRole
	Status    harness.ProcessStatus
	ExitCode  int   // -1 when Status is Failed
	Err       error // reason for Failed, nil otherwise
	StartedAt time.Time
	EndedAt   time.Time
}

// Success reports a clean zero exit.
func (r ExitResult) Success() bool {
	return r.Status == harness.StatusExited && r.ExitCode == 0
}

// Duration is the wall time between launch and exit.
func (r ExitResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// PID returns the OS process id, or 0 before launch.
func (p *ManagedProcess) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// Status returns the current lifecycle status.
func (p *ManagedProcess) Status() harness.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Done is closed once the process reaches a terminal status.
func (p *ManagedProcess) Done() <-chan struct{} {
	return p.done
}

// Result returns the exit result; ok is false while the process is still alive.
func (p *ManagedProcess) Result() (res ExitResult, ok bool) {
	select {
	case <-p.done:
	default:
		return ExitResult{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resultLocked(), true
}

func (p *ManagedProcess) resultLocked() ExitResult {
	return ExitResult{
		ProcessID: p.ID,
		Role:      p.Role,
		Status:    p.status,
		ExitCode:  p.exitCode,
		Err:       p.err,
		StartedAt: p.started,
		EndedAt:   p.ended,
	}
}
