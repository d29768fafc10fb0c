package harness

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConfigParse is returned when a node configuration source is malformed or unreadable.
	ErrConfigParse = errors.New("config parse error")
	// ErrProcessNotFound is returned when acting on a process that was already reaped.
	ErrProcessNotFound = errors.New("process not found")
	// ErrInvalidParameter is returned for out-of-range benchmark parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// DuplicateRoleError reports one role id mapped to two different addresses.
type DuplicateRoleError struct {
	ID     int
	First  string
	Second string
}

func (e *DuplicateRoleError) Error() string {
	return fmt.Sprintf("duplicate role ds%d: %q conflicts with %q", e.ID, e.First, e.Second)
}

// LaunchError reports that the OS refused to start an executable.
type LaunchError struct {
	Role       NodeRole
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s on %s: %v", e.Executable, e.Role, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// PartialClusterFailure names every role that could not be started.
// Roles that did start are left running.
type PartialClusterFailure struct {
	Failed map[int]error
}

// FailedIDs returns the failed role ids in ascending order.
func (e *PartialClusterFailure) FailedIDs() []int {
	ids := make([]int, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *PartialClusterFailure) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, id := range e.FailedIDs() {
		parts = append(parts, fmt.Sprintf("ds%d: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("%d role(s) failed to start: %s", len(e.Failed), strings.Join(parts, "; "))
}

func (e *PartialClusterFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.FailedIDs() {
		errs = append(errs, e.Failed[id])
	}
	return errs
}
