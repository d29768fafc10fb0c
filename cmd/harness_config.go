package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/bench"
	"github.com/maesker/Master-Thesis/harness/cluster"
	"github.com/maesker/Master-Thesis/harness/nodeconf"
	"github.com/maesker/Master-Thesis/harness/process"
)

// HarnessConfig represents the full harness.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type HarnessConfig struct {
	NodeConfig string             `yaml:"node_config"` // INI file with [default] dsN = address
	Section    string             `yaml:"section"`
	Roles      []harness.NodeRole `yaml:"roles"` // inline roles, merged with node_config
	Transport  TransportConfig    `yaml:"transport"`
	DataServer DataServerConfig   `yaml:"data_server"`
	Benchmark  BenchmarkConfig    `yaml:"benchmark"`
	StatusAddr string             `yaml:"status_addr"`
}

type TransportConfig struct {
	Kind      string   `yaml:"kind"` // local | ssh
	User      string   `yaml:"user"`
	SSHBinary string   `yaml:"ssh_binary"`
	Options   []string `yaml:"options"`
}

type DataServerConfig struct {
	Executable  string        `yaml:"executable"`
	Args        []string      `yaml:"args"`      // {id} and {address} are substituted
	WorkDirs    []string      `yaml:"work_dirs"` // emptied by setup --reset
	LogDir      string        `yaml:"log_dir"`
	GracePeriod time.Duration `yaml:"grace_period"`
}

type BenchmarkConfig struct {
	Client          string            `yaml:"client"`
	Launcher        []string          `yaml:"launcher"`
	FileCountFlag   string            `yaml:"file_count_flag"`
	OpFlags         map[string]string `yaml:"op_flags"`
	ResultsDir      string            `yaml:"results_dir"`
	RevisionDir     string            `yaml:"revision_dir"` // git checkout of the system under test
	Revision        string            `yaml:"revision"`     // fixed revision, wins over revision_dir
	Clients         int               `yaml:"clients"`
	Files           int               `yaml:"files"`
	Ops             []string          `yaml:"ops"`
	AcceptExitCodes []int             `yaml:"accept_exit_codes"`
	GracePeriod     time.Duration     `yaml:"grace_period"`
}

// defaultHarnessConfig mirrors the layout of a netraid checkout under /opt/netraid.
func defaultHarnessConfig() *HarnessConfig {
	return &HarnessConfig{
		NodeConfig: "conf/mds.conf",
		Section:    nodeconf.DefaultSection,
		Transport:  TransportConfig{Kind: "local"},
		DataServer: DataServerConfig{
			Executable:  "./dataServer",
			Args:        []string{"{id}"},
			GracePeriod: cluster.DefaultGracePeriod,
		},
		Benchmark: BenchmarkConfig{
			Client:          "fakeClient",
			FileCountFlag:   bench.DefaultFileCountFlag,
			ResultsDir:      bench.DefaultResultsDir,
			Clients:         1,
			Files:           20000,
			Ops:             []string{"all"},
			AcceptExitCodes: []int{0},
			GracePeriod:     bench.DefaultGracePeriod,
		},
	}
}

// loadHarnessConfig reads path over the defaults. An empty path returns the
// defaults. Uses strict field checking so typos fail loudly.
func loadHarnessConfig(path string) (*HarnessConfig, error) {
	cfg := defaultHarnessConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading harness config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing harness config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveRoles merges the node config file with inline roles. The same id
// with two different addresses is a *harness.DuplicateRoleError.
func (c *HarnessConfig) resolveRoles() (map[int]harness.NodeRole, error) {
	roles := make(map[int]harness.NodeRole)
	if c.NodeConfig != "" {
		fromFile, err := nodeconf.NewResolver(nodeconf.Config{Section: c.Section}).ResolveFile(c.NodeConfig)
		if err != nil {
			return nil, err
		}
		roles = fromFile
	}
	for _, r := range c.Roles {
		if r.ID < 0 || r.Address == "" {
			return nil, fmt.Errorf("%w: inline role %+v needs id >= 0 and an address", harness.ErrConfigParse, r)
		}
		if prev, ok := roles[r.ID]; ok && prev.Address != r.Address {
			return nil, &harness.DuplicateRoleError{ID: r.ID, First: prev.Address, Second: r.Address}
		}
		roles[r.ID] = r
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: no roles configured", harness.ErrConfigParse)
	}
	return roles, nil
}

func (c *HarnessConfig) transport() (process.Transport, error) {
	return process.NewTransport(c.Transport.Kind, c.Transport.User, c.Transport.SSHBinary, c.Transport.Options)
}

func (c *HarnessConfig) clusterConfig() cluster.Config {
	return cluster.Config{
		Executable:  c.DataServer.Executable,
		Args:        c.DataServer.Args,
		WorkDirs:    c.DataServer.WorkDirs,
		LogDir:      c.DataServer.LogDir,
		GracePeriod: c.DataServer.GracePeriod,
	}
}

// benchConfig builds the runner config; targets may be nil for local clients.
func (c *HarnessConfig) benchConfig(targets []harness.NodeRole) (bench.Config, error) {
	var opFlags map[bench.Op]string
	if len(c.Benchmark.OpFlags) > 0 {
		opFlags = bench.DefaultOpFlags()
		for name, flag := range c.Benchmark.OpFlags {
			ops, err := bench.ParseOps([]string{name})
			if err != nil || len(ops) != 1 {
				return bench.Config{}, fmt.Errorf("benchmark.op_flags: %q is not a single operation", name)
			}
			opFlags[ops[0]] = flag
		}
	}
	return bench.Config{
		Client:          c.Benchmark.Client,
		Launcher:        c.Benchmark.Launcher,
		FileCountFlag:   c.Benchmark.FileCountFlag,
		OpFlags:         opFlags,
		ResultsDir:      c.Benchmark.ResultsDir,
		Targets:         targets,
		AcceptExitCodes: c.Benchmark.AcceptExitCodes,
		GracePeriod:     c.Benchmark.GracePeriod,
	}, nil
}

func (c *HarnessConfig) revisionSource() bench.RevisionSource {
	switch {
	case c.Benchmark.Revision != "":
		return bench.StaticRevision(c.Benchmark.Revision)
	case c.Benchmark.RevisionDir != "":
		return bench.GitRevision{Dir: c.Benchmark.RevisionDir}
	}
	return nil
}
