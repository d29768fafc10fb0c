package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/maesker/Master-Thesis/harness"
)

// Transport turns (role, executable, args) into a command that runs the
// executable on the role's host. Implementations must not start the command.
type Transport interface {
	Command(role harness.NodeRole, executable string, args []string) *exec.Cmd
	Name() string
}

// dirResetter is implemented by transports that can empty directories without
// spawning a helper process.
type dirResetter interface {
	resetDir(path string) error
}

// LocalTransport runs every executable on this host, whatever the role address.
type LocalTransport struct {
	// Dir is the working directory of launched processes (empty = inherit).
	Dir string
}

func (t LocalTransport) Name() string { return "local" }

func (t LocalTransport) Command(_ harness.NodeRole, executable string, args []string) *exec.Cmd {
	cmd := exec.Command(executable, args...)
	cmd.Dir = t.Dir
	return cmd
}

func (t LocalTransport) resetDir(path string) error {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// SSHTransport runs executables on the role's host through an ssh client binary.
// The remote command line is built from individually quoted arguments.
type SSHTransport struct {
	User    string   // remote login; empty uses the ssh default
	Binary  string   // ssh client, default "ssh"
	Options []string // extra client options, e.g. ["-tt"] to tie the remote process to the session
}

func (t SSHTransport) Name() string { return "ssh" }

func (t SSHTransport) Command(role harness.NodeRole, executable string, args []string) *exec.Cmd {
	return exec.Command(t.binary(), t.Args(role, executable, args)...)
}

// Args returns the ssh client argument list for running executable on role.
func (t SSHTransport) Args(role harness.NodeRole, executable string, args []string) []string {
	target := role.Address
	if t.User != "" {
		target = t.User + "@" + role.Address
	}
	remote := make([]string, 0, len(args)+1)
	remote = append(remote, shellQuote(executable))
	for _, a := range args {
		remote = append(remote, shellQuote(a))
	}
	out := []string{"-o", "BatchMode=yes"}
	out = append(out, t.Options...)
	out = append(out, target, "--", strings.Join(remote, " "))
	return out
}

func (t SSHTransport) binary() string {
	if t.Binary == "" {
		return "ssh"
	}
	return t.Binary
}

// shellQuote wraps s in single quotes for the remote POSIX shell.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?[]{}()<>|&;#~!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// NewTransport returns the transport named kind ("local" or "ssh").
func NewTransport(kind, user, binary string, options []string) (Transport, error) {
	switch kind {
	case "", "local":
		return LocalTransport{}, nil
	case "ssh":
		return SSHTransport{User: user, Binary: binary, Options: options}, nil
	}
	return nil, fmt.Errorf("unknown transport %q; valid: local, ssh", kind)
}
