package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maesker/Master-Thesis/harness"
)

// DefaultWaitDelay bounds how long a process that has exited may keep its
// output pipe open through a daemonized child before the pipe is closed.
const DefaultWaitDelay = 2 * time.Second

// Supervisor starts, waits for, and stops external processes.
// Each ManagedProcess stays registered until Reap is called.
type Supervisor struct {
	transport Transport
	waitDelay time.Duration

	mu    sync.Mutex
	procs map[string]*ManagedProcess
}

// NewSupervisor creates a Supervisor launching through t (nil = LocalTransport).
func NewSupervisor(t Transport) *Supervisor {
	if t == nil {
		t = LocalTransport{}
	}
	return &Supervisor{
		transport: t,
		waitDelay: DefaultWaitDelay,
		procs:     make(map[string]*ManagedProcess),
	}
}

// SetWaitDelay changes the wait delay applied to later launches (<= 0 restores the default).
func (s *Supervisor) SetWaitDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultWaitDelay
	}
	s.waitDelay = d
}

// Transport returns the transport used for launches.
func (s *Supervisor) Transport() Transport {
	return s.transport
}

// Start launches executable with args on role's host. stdout and stderr are
// both written to sink (nil discards). The returned process is Running;
// a launch the OS refuses comes back as *harness.LaunchError and is not retried.
func (s *Supervisor) Start(ctx context.Context, role harness.NodeRole, executable string, args []string, sink io.Writer) (*ManagedProcess, error) {
	p := &ManagedProcess{
		ID:         uuid.NewString(),
		Role:       role,
		Executable: executable,
		Args:       append([]string(nil), args...),
		done:       make(chan struct{}),
		status:     harness.StatusStarting,
	}
	if err := ctx.Err(); err != nil {
		return nil, &harness.LaunchError{Role: role, Executable: executable, Err: err}
	}

	cmd := s.transport.Command(role, executable, args)
	cmd.Stdout = sink
	cmd.Stderr = sink
	cmd.WaitDelay = s.waitDelay
	isolate(cmd)

	p.started = time.Now()
	if err := cmd.Start(); err != nil {
		p.status = harness.StatusFailed
		p.exitCode = -1
		p.err = err
		p.ended = time.Now()
		close(p.done)
		logrus.WithFields(logrus.Fields{"role": role.ID, "executable": executable}).
			Errorf("launch failed: %v", err)
		return nil, &harness.LaunchError{Role: role, Executable: executable, Err: err}
	}

	p.mu.Lock()
	p.pid = cmd.Process.Pid
	p.status = harness.StatusRunning
	p.mu.Unlock()

	s.mu.Lock()
	s.procs[p.ID] = p
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"role": role.ID, "pid": p.pid, "transport": s.transport.Name()}).
		Debugf("started %s %s", executable, strings.Join(args, " "))

	go s.reap(cmd, p)
	return p, nil
}

// reap waits for the OS process and records the terminal status.
func (s *Supervisor) reap(cmd *exec.Cmd, p *ManagedProcess) {
	err := cmd.Wait()

	p.mu.Lock()
	p.ended = time.Now()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.status = harness.StatusExited
		p.exitCode = 0
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		p.status = harness.StatusExited
		p.exitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.ExitCode() >= 0:
		// Exited, but a detached child held the output open.
		p.status = harness.StatusExited
		p.exitCode = cmd.ProcessState.ExitCode()
	default:
		// Terminated by a signal or the wait itself failed.
		p.status = harness.StatusFailed
		p.exitCode = -1
		p.err = err
	}
	res := p.resultLocked()
	p.mu.Unlock()
	close(p.done)

	logrus.WithFields(logrus.Fields{"role": res.Role.ID, "pid": cmd.Process.Pid}).
		Debugf("%s %s (code=%d)", p.Executable, res.Status, res.ExitCode)
}

// Wait blocks until p is Exited or Failed. Cancelling ctx abandons the wait
// and leaves the process untouched.
func (s *Supervisor) Wait(ctx context.Context, p *ManagedProcess) (ExitResult, error) {
	select {
	case <-p.done:
		res, _ := p.Result()
		return res, nil
	default:
	}
	select {
	case <-p.done:
		res, _ := p.Result()
		return res, nil
	case <-ctx.Done():
		return ExitResult{}, ctx.Err()
	}
}

// Stop sends SIGTERM to the process group and SIGKILL if it is still alive
// after grace. Stopping an exited process is a no-op; stopping a reaped one
// returns harness.ErrProcessNotFound. A second concurrent Stop sends nothing
// and waits for the first to finish.
func (s *Supervisor) Stop(ctx context.Context, p *ManagedProcess, grace time.Duration) error {
	if !s.registered(p) {
		return fmt.Errorf("stop %s (%s): %w", p.ID, p.Role, harness.ErrProcessNotFound)
	}

	p.mu.Lock()
	if p.status.Terminal() || p.stopping {
		p.mu.Unlock()
		return s.awaitDone(ctx, p)
	}
	p.stopping = true
	pid := p.pid
	p.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"role": p.Role.ID, "pid": pid})
	if err := terminate(pid); err != nil {
		log.Warnf("SIGTERM failed: %v", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
		log.Warnf("still running after %v grace period, killing", grace)
	case <-ctx.Done():
		log.Warnf("stop cancelled, killing: %v", ctx.Err())
	}
	if err := kill(pid); err != nil {
		log.Errorf("SIGKILL failed: %v", err)
		return fmt.Errorf("killing pid %d: %w", pid, err)
	}
	<-p.done
	return nil
}

func (s *Supervisor) awaitDone(ctx context.Context, p *ManagedProcess) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reap releases an exited process. Later Stop calls on it return
// harness.ErrProcessNotFound.
func (s *Supervisor) Reap(p *ManagedProcess) error {
	select {
	case <-p.done:
	default:
		return fmt.Errorf("reap %s (%s): process still %s", p.ID, p.Role, p.Status())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.procs[p.ID]; !ok {
		return fmt.Errorf("reap %s (%s): %w", p.ID, p.Role, harness.ErrProcessNotFound)
	}
	delete(s.procs, p.ID)
	return nil
}

// Processes returns the processes that have not been reaped.
func (s *Supervisor) Processes() []*ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ManagedProcess, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p)
	}
	return out
}

func (s *Supervisor) registered(p *ManagedProcess) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[p.ID]
	return ok
}

// ResetWorkDirs empties every directory in paths on role's host, creating
// missing ones. Remote hosts get mkdir -p and find(1) through the transport.
func (s *Supervisor) ResetWorkDirs(ctx context.Context, role harness.NodeRole, paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if path == "" || path == "/" {
			errs = append(errs, fmt.Errorf("refusing to reset %q on %s", path, role))
			continue
		}
		if r, ok := s.transport.(dirResetter); ok {
			if err := r.resetDir(path); err != nil {
				errs = append(errs, fmt.Errorf("reset %s on %s: %w", path, role, err))
			}
			continue
		}
		cmd := s.transport.Command(role, "sh", []string{"-c", resetScript(path)})
		out, err := cmd.CombinedOutput()
		if err != nil {
			errs = append(errs, fmt.Errorf("reset %s on %s: %w: %s", path, role, err, strings.TrimSpace(string(out))))
		}
	}
	return errors.Join(errs...)
}

func resetScript(path string) string {
	q := shellQuote(path)
	return "mkdir -p -- " + q + " && find " + q + " -mindepth 1 -delete"
}
