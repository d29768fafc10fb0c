// Package nodeconf resolves the node-role mapping of a netraid cluster from an
// INI configuration source such as conf/mds.conf:
//
//	[default]
//	ds0 = 192.168.56.101
//	ds1 = 192.168.56.102
//
// Keys of the form ds<N> become NodeRole{N, address}; every other key is ignored.
package nodeconf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/maesker/Master-Thesis/harness"
)

const (
	DefaultSection = "default"
	DefaultPrefix  = "ds"
)

// Config selects where roles live inside the source.
// Zero-valued fields fall back to DefaultSection and DefaultPrefix.
type Config struct {
	Section string
	Prefix  string
}

// Resolver turns configuration sources into role mappings. It holds no state
// beyond its Config and is safe for concurrent use.
type Resolver struct {
	section string
	keyRE   *regexp.Regexp
}

// NewResolver builds a Resolver for the given Config.
func NewResolver(cfg Config) *Resolver {
	section := cfg.Section
	if section == "" {
		section = DefaultSection
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Resolver{
		section: section,
		keyRE:   regexp.MustCompile(`^` + regexp.QuoteMeta(strings.ToLower(prefix)) + `([0-9]+)$`),
	}
}

// Resolve parses source and returns role id → NodeRole.
// Key names are matched case-insensitively; unmatched keys are skipped.
func (r *Resolver) Resolve(source io.Reader) (map[int]harness.NodeRole, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("%w: reading source: %v", harness.ErrConfigParse, err)
	}
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", harness.ErrConfigParse, err)
	}
	sec, err := f.GetSection(r.section)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", harness.ErrConfigParse, err)
	}

	roles := make(map[int]harness.NodeRole)
	for _, key := range sec.Keys() {
		id, ok := r.roleID(key.Name())
		if !ok {
			logrus.Debugf("nodeconf: ignoring key %q in section [%s]", key.Name(), r.section)
			continue
		}
		values := key.ValueWithShadows()
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: key %q has an empty address", harness.ErrConfigParse, key.Name())
		}
		for _, value := range values {
			addr := strings.TrimSpace(value)
			if addr == "" {
				return nil, fmt.Errorf("%w: key %q has an empty address", harness.ErrConfigParse, key.Name())
			}
			if prev, exists := roles[id]; exists {
				if prev.Address != addr {
					return nil, &harness.DuplicateRoleError{ID: id, First: prev.Address, Second: addr}
				}
				continue
			}
			roles[id] = harness.NodeRole{ID: id, Address: addr}
		}
	}
	return roles, nil
}

// ResolveFile reads and resolves the INI file at path.
func (r *Resolver) ResolveFile(path string) (map[int]harness.NodeRole, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", harness.ErrConfigParse, err)
	}
	return r.Resolve(bytes.NewReader(data))
}

func (r *Resolver) roleID(key string) (int, bool) {
	m := r.keyRE.FindStringSubmatch(strings.ToLower(key))
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Resolve is a convenience wrapper using the default section and prefix.
func Resolve(source io.Reader) (map[int]harness.NodeRole, error) {
	return NewResolver(Config{}).Resolve(source)
}
