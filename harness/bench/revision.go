package bench

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// UnknownRevision is written when the revision cannot be determined.
const UnknownRevision = "unknown"

// RevisionSource identifies the build of the system under test.
type RevisionSource interface {
	Revision(ctx context.Context) (string, error)
}

// GitRevision reports HEAD of the checkout in Dir.
type GitRevision struct {
	Dir    string
	Binary string // default "git"
}

func (g GitRevision) Revision(ctx context.Context) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	out, err := exec.CommandContext(ctx, bin, "-C", g.Dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse in %s: %w", g.Dir, err)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", fmt.Errorf("git rev-parse in %s: empty output", g.Dir)
	}
	return rev, nil
}

// StaticRevision is a fixed revision string.
type StaticRevision string

func (s StaticRevision) Revision(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("static revision is empty")
	}
	return string(s), nil
}
