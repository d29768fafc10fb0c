package bench

import (
	"fmt"
	"strings"

	"github.com/maesker/Master-Thesis/harness"
)

// Op is one file-operation phase a benchmark client performs.
type Op string

const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpStat   Op = "stat"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// AllOps lists every phase in the order clients run them.
var AllOps = []Op{OpCreate, OpRead, OpStat, OpUpdate, OpDelete}

// DefaultOpFlags maps each phase to the fakeClient command-line token.
func DefaultOpFlags() map[Op]string {
	return map[Op]string{
		OpCreate: "-c",
		OpRead:   "-r",
		OpStat:   "-s",
		OpUpdate: "-u",
		OpDelete: "-d",
	}
}

// ParseOps normalizes names into a deduplicated set in AllOps order.
// "all" expands to every phase.
func ParseOps(names []string) ([]Op, error) {
	seen := make(map[Op]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			for _, op := range AllOps {
				seen[op] = true
			}
			continue
		}
		op := Op(name)
		if !op.valid() {
			return nil, fmt.Errorf("%w: unknown operation %q (want one of %s)", harness.ErrInvalidParameter, name, joinOps(AllOps))
		}
		seen[op] = true
	}
	return canonical(seen), nil
}

func (o Op) valid() bool {
	for _, op := range AllOps {
		if o == op {
			return true
		}
	}
	return false
}

func canonical(set map[Op]bool) []Op {
	out := make([]Op, 0, len(set))
	for _, op := range AllOps {
		if set[op] {
			out = append(out, op)
		}
	}
	return out
}

func joinOps(ops []Op) string {
	s := make([]string, len(ops))
	for i, op := range ops {
		s[i] = string(op)
	}
	return strings.Join(s, ",")
}
