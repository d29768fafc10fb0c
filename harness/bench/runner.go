// Package bench drives a file-system benchmark against a live cluster: it
// splits a total file count over N client processes, launches them through a
// process supervisor and collects their combined output into one result file.
//
// # Result artifact
//
// Each run writes <results_dir>/<YYYYMMDD-HHMMSS>-<N>-clients-<F>-files. Line 1
// holds the revision of the system under test; everything after it is the raw
// interleaved stdout/stderr of the clients. A YAML sidecar with the same name
// plus ".yaml" records per-client exit status and wall times. Neither file is
// ever removed, whatever the outcome of the run.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/process"
)

const (
	DefaultResultsDir    = "/opt/fakeClientResults"
	DefaultFileCountFlag = "-n"
	DefaultGracePeriod   = 5 * time.Second
)

// Launcher is the subset of *process.Supervisor the runner drives.
type Launcher interface {
	Start(ctx context.Context, role harness.NodeRole, executable string, args []string, sink io.Writer) (*process.ManagedProcess, error)
	Wait(ctx context.Context, p *process.ManagedProcess) (process.ExitResult, error)
	Stop(ctx context.Context, p *process.ManagedProcess, grace time.Duration) error
	Reap(p *process.ManagedProcess) error
}

// Config describes the client binary and where results go.
type Config struct {
	Client          string             // client executable, e.g. fakeClient
	Launcher        []string           // optional prefix, e.g. [mpirun.openmpi -np 1]
	FileCountFlag   string             // default "-n"
	OpFlags         map[Op]string      // default DefaultOpFlags()
	ResultsDir      string             // default DefaultResultsDir
	Targets         []harness.NodeRole // clients are placed round-robin; empty = localhost
	AcceptExitCodes []int              // default [0]
	GracePeriod     time.Duration      // used when the run is cancelled
	Clock           func() time.Time   // default time.Now
}

// RunStatus is the aggregated outcome of a benchmark run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ClientResult is the outcome of one client instance.
type ClientResult struct {
	Rank      int
	Role      harness.NodeRole
	Files     int
	ProcessID string
	PID       int // 0 if the launch failed
	Status    harness.ProcessStatus
	ExitCode  int
	Err       error
	Duration  time.Duration
	Accepted  bool
}

// Run is one benchmark execution and its result artifact.
type Run struct {
	ID             string
	Timestamp      time.Time
	ClientCount    int
	TotalFileCount int
	FilesPerClient int
	Partition      []int
	Ops            []Op
	Revision       string
	ResultPath     string
	MetadataPath   string
	Status         RunStatus
	Clients        []ClientResult
}

// ClientFailureError names the clients whose exit status was not accepted.
// The result artifact at ResultPath keeps their output.
type ClientFailureError struct {
	Ranks      []int
	Total      int
	ResultPath string
}

func (e *ClientFailureError) Error() string {
	ranks := make([]string, len(e.Ranks))
	for i, r := range e.Ranks {
		ranks[i] = strconv.Itoa(r)
	}
	return fmt.Sprintf("%d of %d clients failed (ranks %s); output kept in %s",
		len(e.Ranks), e.Total, strings.Join(ranks, ","), e.ResultPath)
}

// Runner executes benchmark runs. A Runner may be reused; concurrent runs
// each get their own result file.
type Runner struct {
	cfg      Config
	launcher Launcher
	revision RevisionSource
}

// NewRunner creates a Runner. rev may be nil, in which case every run
// records UnknownRevision.
func NewRunner(cfg Config, launcher Launcher, rev RevisionSource) *Runner {
	if cfg.FileCountFlag == "" {
		cfg.FileCountFlag = DefaultFileCountFlag
	}
	if cfg.OpFlags == nil {
		cfg.OpFlags = DefaultOpFlags()
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = DefaultResultsDir
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = []harness.NodeRole{{ID: 0, Address: harness.LocalAddress}}
	}
	if len(cfg.AcceptExitCodes) == 0 {
		cfg.AcceptExitCodes = []int{0}
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Runner{cfg: cfg, launcher: launcher, revision: rev}
}

// Run launches clientCount clients sharing totalFileCount files and waits for
// all of them. Parameter errors wrap harness.ErrInvalidParameter and happen
// before anything is written. Once the result file exists the returned Run is
// non-nil, even alongside an error; a failed client yields *ClientFailureError.
// Cancelling ctx stops in-flight clients within the grace period.
func (r *Runner) Run(ctx context.Context, totalFileCount, clientCount int, ops []Op) (*Run, error) {
	counts, err := Partition(totalFileCount, clientCount)
	if err != nil {
		return nil, err
	}
	if err := r.validateOps(ops); err != nil {
		return nil, err
	}
	if r.cfg.Client == "" {
		return nil, fmt.Errorf("%w: no client executable configured", harness.ErrInvalidParameter)
	}

	ts := r.cfg.Clock()
	f, id, err := createResult(r.cfg.ResultsDir, ResultFileName(ts, clientCount, totalFileCount))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	run := &Run{
		ID:             id,
		Timestamp:      ts,
		ClientCount:    clientCount,
		TotalFileCount: totalFileCount,
		FilesPerClient: totalFileCount / clientCount,
		Partition:      counts,
		Ops:            canonical(opSet(ops)),
		ResultPath:     f.Name(),
		MetadataPath:   f.Name() + MetadataSuffix,
		Status:         RunRunning,
	}
	log := logrus.WithField("run", run.ID)

	run.Revision = r.lookupRevision(ctx, log)
	if _, err := fmt.Fprintln(f, run.Revision); err != nil {
		return run, fmt.Errorf("writing revision line: %w", err)
	}

	sink := &lockedWriter{w: f}
	run.Clients = r.execute(ctx, run, sink, log)

	failed := run.FailedRanks()
	run.Status = RunSucceeded
	var runErr error
	if len(failed) > 0 {
		run.Status = RunFailed
		runErr = &ClientFailureError{Ranks: failed, Total: clientCount, ResultPath: run.ResultPath}
	}
	if ctx.Err() != nil {
		run.Status = RunFailed
		runErr = errors.Join(fmt.Errorf("benchmark %s cancelled: %w", run.ID, ctx.Err()), runErr)
	}

	if err := WriteMetadata(run.Metadata(), run.MetadataPath); err != nil {
		log.Warnf("metadata: %v", err)
	}
	if runErr != nil {
		log.Errorf("benchmark failed: %v", runErr)
	} else {
		log.Infof("benchmark finished: %d clients, %d files", clientCount, totalFileCount)
	}
	return run, runErr
}

func (r *Runner) validateOps(ops []Op) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: no operations selected", harness.ErrInvalidParameter)
	}
	for _, op := range ops {
		if !op.valid() {
			return fmt.Errorf("%w: unknown operation %q", harness.ErrInvalidParameter, op)
		}
		if r.cfg.OpFlags[op] == "" {
			return fmt.Errorf("%w: no client flag configured for %q", harness.ErrInvalidParameter, op)
		}
	}
	return nil
}

func (r *Runner) lookupRevision(ctx context.Context, log *logrus.Entry) string {
	if r.revision == nil {
		log.Warn("no revision source configured, recording unknown")
		return UnknownRevision
	}
	rev, err := r.revision.Revision(ctx)
	if err != nil {
		log.Warnf("revision lookup failed, recording unknown: %v", err)
		return UnknownRevision
	}
	return rev
}

// execute launches every client, then waits for all of them.
func (r *Runner) execute(ctx context.Context, run *Run, sink io.Writer, log *logrus.Entry) []ClientResult {
	results := make([]ClientResult, len(run.Partition))
	procs := make([]*process.ManagedProcess, len(run.Partition))

	for rank, files := range run.Partition {
		role := r.cfg.Targets[rank%len(r.cfg.Targets)]
		results[rank] = ClientResult{Rank: rank, Role: role, Files: files, Status: harness.StatusFailed, ExitCode: -1}
		exe, args := r.command(files, run.Ops)
		p, err := r.launcher.Start(ctx, role, exe, args, sink)
		if err != nil {
			results[rank].Err = err
			log.WithField("rank", rank).Errorf("client launch failed: %v", err)
			continue
		}
		procs[rank] = p
		results[rank].ProcessID = p.ID
		results[rank].PID = p.PID()
		log.WithFields(logrus.Fields{"rank": rank, "role": role.ID, "pid": p.PID()}).
			Debugf("client started with %d files", files)
	}

	var wg sync.WaitGroup
	for rank, p := range procs {
		if p == nil {
			continue
		}
		wg.Add(1)
		go func(rank int, p *process.ManagedProcess) {
			defer wg.Done()
			res := r.await(ctx, p, log.WithField("rank", rank))
			c := &results[rank]
			c.Status = res.Status
			c.ExitCode = res.ExitCode
			c.Err = res.Err
			c.Duration = res.Duration()
			c.Accepted = res.Status == harness.StatusExited && r.accepted(res.ExitCode)
		}(rank, p)
	}
	wg.Wait()
	return results
}

// await waits for p, stopping it if ctx ends first, and reaps it.
func (r *Runner) await(ctx context.Context, p *process.ManagedProcess, log *logrus.Entry) process.ExitResult {
	res, err := r.launcher.Wait(ctx, p)
	if err != nil {
		log.Warnf("stopping client: %v", err)
		if serr := r.launcher.Stop(context.Background(), p, r.cfg.GracePeriod); serr != nil {
			log.Errorf("stop: %v", serr)
		}
		res, _ = p.Result()
	}
	if err := r.launcher.Reap(p); err != nil {
		log.Debugf("reap: %v", err)
	}
	return res
}

func (r *Runner) command(files int, ops []Op) (string, []string) {
	clientArgs := []string{r.cfg.FileCountFlag, strconv.Itoa(files)}
	for _, op := range ops {
		clientArgs = append(clientArgs, r.cfg.OpFlags[op])
	}
	if len(r.cfg.Launcher) == 0 {
		return r.cfg.Client, clientArgs
	}
	args := append([]string(nil), r.cfg.Launcher[1:]...)
	args = append(args, r.cfg.Client)
	return r.cfg.Launcher[0], append(args, clientArgs...)
}

func (r *Runner) accepted(code int) bool {
	for _, c := range r.cfg.AcceptExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// FailedRanks returns the ranks whose result was not accepted, ascending.
func (run *Run) FailedRanks() []int {
	var out []int
	for _, c := range run.Clients {
		if !c.Accepted {
			out = append(out, c.Rank)
		}
	}
	sort.Ints(out)
	return out
}

func opSet(ops []Op) map[Op]bool {
	set := make(map[Op]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// lockedWriter serializes writes from concurrent client output copiers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
