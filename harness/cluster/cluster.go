// Package cluster starts and tears down a netraid cluster: one data-server
// process per configured role, launched concurrently through a process
// supervisor.
//
// A cluster start is a barrier over all launch attempts. Failed roles are
// reported together in a *harness.PartialClusterFailure while the roles that
// did start keep running; the caller decides whether to roll back with
// StopCluster.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/process"
	"github.com/maesker/Master-Thesis/harness/trace"
)

// DefaultGracePeriod is used when Config.GracePeriod is zero.
const DefaultGracePeriod = 5 * time.Second

// Launcher is the subset of *process.Supervisor the orchestrator drives.
type Launcher interface {
	Start(ctx context.Context, role harness.NodeRole, executable string, args []string, sink io.Writer) (*process.ManagedProcess, error)
	Wait(ctx context.Context, p *process.ManagedProcess) (process.ExitResult, error)
	Stop(ctx context.Context, p *process.ManagedProcess, grace time.Duration) error
	Reap(p *process.ManagedProcess) error
	ResetWorkDirs(ctx context.Context, role harness.NodeRole, paths []string) error
}

// Config describes how a data server is launched for a role.
// Args and WorkDirs may contain the placeholders {id} and {address}.
type Config struct {
	Executable  string
	Args        []string      // nil = ["{id}"]
	WorkDirs    []string      // emptied by ResetWorkDirs
	LogDir      string        // per-role output files; empty = forward to logrus
	GracePeriod time.Duration // SIGTERM → SIGKILL delay on stop
}

// Orchestrator fans supervisor calls out across the cluster's roles.
type Orchestrator struct {
	cfg      Config
	launcher Launcher
	events   *trace.Log
}

// NewOrchestrator creates an Orchestrator. events may be nil.
func NewOrchestrator(cfg Config, launcher Launcher, events *trace.Log) *Orchestrator {
	if cfg.Args == nil {
		cfg.Args = []string{"{id}"}
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Orchestrator{cfg: cfg, launcher: launcher, events: events}
}

// Events returns the lifecycle log (may be nil).
func (o *Orchestrator) Events() *trace.Log {
	return o.events
}

// StartCluster launches one data server per role concurrently and waits for
// every attempt to resolve. The returned State holds all successes even when
// the error is a *harness.PartialClusterFailure.
func (o *Orchestrator) StartCluster(ctx context.Context, roles map[int]harness.NodeRole) (*State, error) {
	st := NewState()
	failed := make(map[int]error)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for id, role := range roles {
		if role.ID != id {
			failed[id] = fmt.Errorf("role keyed as ds%d carries id %d", id, role.ID)
			continue
		}
		wg.Add(1)
		go func(role harness.NodeRole) {
			defer wg.Done()
			if _, err := o.StartNode(ctx, st, role); err != nil {
				mu.Lock()
				failed[role.ID] = err
				mu.Unlock()
			}
		}(role)
	}
	wg.Wait()

	logrus.Infof("cluster: %d/%d data servers running", st.Len(), len(roles))
	if len(failed) > 0 {
		return st, &harness.PartialClusterFailure{Failed: failed}
	}
	return st, nil
}

// StartNode launches the data server for a single role and adds it to st.
// A role id already present in st is refused without launching anything.
func (o *Orchestrator) StartNode(ctx context.Context, st *State, role harness.NodeRole) (*process.ManagedProcess, error) {
	if st.Has(role.ID) {
		return nil, fmt.Errorf("role ds%d already has a running process", role.ID)
	}
	sink, err := o.openSink(role)
	if err != nil {
		o.record(trace.Event{Kind: trace.EventLaunchFailed, RoleID: role.ID, Address: role.Address, Detail: err.Error()})
		return nil, fmt.Errorf("opening output for ds%d: %w", role.ID, err)
	}

	p, err := o.launcher.Start(ctx, role, o.cfg.Executable, expandAll(o.cfg.Args, role), sink)
	if err != nil {
		_ = sink.Close()
		o.record(trace.Event{Kind: trace.EventLaunchFailed, RoleID: role.ID, Address: role.Address, Detail: err.Error()})
		return nil, err
	}
	if err := st.put(role.ID, p, sink); err != nil {
		// Lost a race with a concurrent StartNode for the same id.
		_ = o.launcher.Stop(ctx, p, o.cfg.GracePeriod)
		_ = o.launcher.Reap(p)
		_ = sink.Close()
		return nil, err
	}
	o.record(trace.Event{Kind: trace.EventStarted, RoleID: role.ID, Address: role.Address, PID: p.PID()})
	logrus.WithFields(logrus.Fields{"role": role.ID, "address": role.Address, "pid": p.PID()}).Info("data server started")
	return p, nil
}

// StopCluster stops every process in st, best-effort and concurrently.
// Per-node failures (harness.ErrProcessNotFound included) are logged and
// joined into the returned error; they never abort the remaining teardown.
// Every entry is removed from st.
func (o *Orchestrator) StopCluster(ctx context.Context, st *State) error {
	ids := st.IDs()
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		p, ok := st.Get(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i, id int, p *process.ManagedProcess) {
			defer wg.Done()
			errs[i] = o.stopNode(ctx, st, id, p)
		}(i, id, p)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (o *Orchestrator) stopNode(ctx context.Context, st *State, id int, p *process.ManagedProcess) error {
	log := logrus.WithFields(logrus.Fields{"role": id, "pid": p.PID()})
	err := o.launcher.Stop(ctx, p, o.cfg.GracePeriod)
	if err != nil {
		if errors.Is(err, harness.ErrProcessNotFound) {
			log.Warnf("stop: %v", err)
		} else {
			log.Errorf("stop: %v", err)
		}
		o.record(trace.Event{Kind: trace.EventStopFailed, RoleID: id, Address: p.Role.Address, PID: p.PID(), Detail: err.Error()})
		err = fmt.Errorf("ds%d: %w", id, err)
	} else {
		res, _ := p.Result()
		o.record(trace.Event{Kind: trace.EventStopped, RoleID: id, Address: p.Role.Address, PID: p.PID(),
			Detail: fmt.Sprintf("%s code=%d", res.Status, res.ExitCode)})
		log.Infof("data server stopped (%s)", res.Status)
	}

	if rerr := o.launcher.Reap(p); rerr != nil && !errors.Is(rerr, harness.ErrProcessNotFound) {
		// Still alive after a failed kill: keep it tracked.
		return errors.Join(err, fmt.Errorf("ds%d: %w", id, rerr))
	}
	st.remove(id)
	return err
}

// Wait blocks until every process in st has exited, or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, st *State) (map[int]process.ExitResult, error) {
	results := make(map[int]process.ExitResult)
	for _, id := range st.IDs() {
		p, ok := st.Get(id)
		if !ok {
			continue
		}
		res, err := o.launcher.Wait(ctx, p)
		if err != nil {
			return results, err
		}
		results[id] = res
	}
	return results, nil
}

// ResetWorkDirs empties the configured work directories for every role,
// concurrently. Call it deliberately before StartCluster.
func (o *Orchestrator) ResetWorkDirs(ctx context.Context, roles map[int]harness.NodeRole) error {
	if len(o.cfg.WorkDirs) == 0 {
		return nil
	}
	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	for _, role := range roles {
		wg.Add(1)
		go func(role harness.NodeRole) {
			defer wg.Done()
			dirs := expandAll(o.cfg.WorkDirs, role)
			if err := o.launcher.ResetWorkDirs(ctx, role, dirs); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			o.record(trace.Event{Kind: trace.EventWorkDirReset, RoleID: role.ID, Address: role.Address,
				Detail: strings.Join(dirs, ",")})
		}(role)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (o *Orchestrator) openSink(role harness.NodeRole) (io.WriteCloser, error) {
	if o.cfg.LogDir == "" {
		return logrus.WithFields(logrus.Fields{"role": role.ID, "address": role.Address}).
			WriterLevel(logrus.InfoLevel), nil
	}
	if err := os.MkdirAll(o.cfg.LogDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(o.cfg.LogDir, fmt.Sprintf("ds%d.log", role.ID))
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (o *Orchestrator) record(e trace.Event) {
	o.events.Record(e)
}

func expandAll(templates []string, role harness.NodeRole) []string {
	r := strings.NewReplacer("{id}", strconv.Itoa(role.ID), "{address}", role.Address)
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = r.Replace(t)
	}
	return out
}
