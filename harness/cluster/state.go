package cluster

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/process"
)

// State maps role id → the data server running for it. At most one process
// per role id. Mutated only by the Orchestrator that owns it; readers may
// call Get, IDs, Len and Snapshot concurrently.
type State struct {
	mu    sync.RWMutex
	procs map[int]*process.ManagedProcess
	sinks map[int]io.Closer
}

// NodeStatus is a point-in-time view of one cluster member.
type NodeStatus struct {
	ID        int                   `json:"id"`
	Address   string                `json:"address"`
	ProcessID string                `json:"process_id"`
	PID       int                   `json:"pid"`
	Status    harness.ProcessStatus `json:"status"`
	ExitCode  *int                  `json:"exit_code,omitempty"`
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		procs: make(map[int]*process.ManagedProcess),
		sinks: make(map[int]io.Closer),
	}
}

// Len returns the number of tracked roles.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.procs)
}

// Get returns the process for role id.
func (s *State) Get(id int) (*process.ManagedProcess, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.procs[id]
	return p, ok
}

// Has reports whether role id is tracked.
func (s *State) Has(id int) bool {
	_, ok := s.Get(id)
	return ok
}

// IDs returns the tracked role ids in ascending order.
func (s *State) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Snapshot returns the status of every member, sorted by role id.
func (s *State) Snapshot() []NodeStatus {
	out := make([]NodeStatus, 0, s.Len())
	for _, id := range s.IDs() {
		p, ok := s.Get(id)
		if !ok {
			continue
		}
		ns := NodeStatus{
			ID:        id,
			Address:   p.Role.Address,
			ProcessID: p.ID,
			PID:       p.PID(),
			Status:    p.Status(),
		}
		if res, done := p.Result(); done && res.Status == harness.StatusExited {
			code := res.ExitCode
			ns.ExitCode = &code
		}
		out = append(out, ns)
	}
	return out
}

func (s *State) put(id int, p *process.ManagedProcess, sink io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.procs[id]; exists {
		return fmt.Errorf("role ds%d already has a running process", id)
	}
	s.procs[id] = p
	if sink != nil {
		s.sinks[id] = sink
	}
	return nil
}

// remove drops role id and closes its output sink.
func (s *State) remove(id int) {
	s.mu.Lock()
	sink := s.sinks[id]
	delete(s.procs, id)
	delete(s.sinks, id)
	s.mu.Unlock()
	if sink != nil {
		_ = sink.Close()
	}
}
