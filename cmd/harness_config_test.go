package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/bench"
	"github.com/maesker/Master-Thesis/harness/process"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadHarnessConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := loadHarnessConfig("")

	require.NoError(t, err)
	assert.Equal(t, "conf/mds.conf", cfg.NodeConfig)
	assert.Equal(t, []string{"{id}"}, cfg.DataServer.Args)
	assert.Equal(t, bench.DefaultResultsDir, cfg.Benchmark.ResultsDir)
	assert.Equal(t, 20000, cfg.Benchmark.Files)
}

func TestLoadHarnessConfig_OverridesDefaults(t *testing.T) {
	// GIVEN a file setting a subset of keys
	path := writeFile(t, t.TempDir(), "harness.yaml", `
node_config: /opt/netraid/conf/mds.conf
transport:
  kind: ssh
  user: netraid
data_server:
  executable: /opt/netraid/build/dataServer
  grace_period: 2s
benchmark:
  clients: 4
  accept_exit_codes: [0, 1]
`)

	// WHEN loaded
	cfg, err := loadHarnessConfig(path)

	// THEN set keys win and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "/opt/netraid/conf/mds.conf", cfg.NodeConfig)
	assert.Equal(t, "ssh", cfg.Transport.Kind)
	assert.Equal(t, 2*time.Second, cfg.DataServer.GracePeriod)
	assert.Equal(t, []string{"{id}"}, cfg.DataServer.Args)
	assert.Equal(t, 4, cfg.Benchmark.Clients)
	assert.Equal(t, []int{0, 1}, cfg.Benchmark.AcceptExitCodes)
	assert.Equal(t, "fakeClient", cfg.Benchmark.Client)
}

func TestLoadHarnessConfig_UnknownKeyRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "harness.yaml", "data_server:\n  executabel: ./dataServer\n")

	_, err := loadHarnessConfig(path)

	assert.Error(t, err, "typos must not be silently ignored")
}

func TestLoadHarnessConfig_MissingFile(t *testing.T) {
	_, err := loadHarnessConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestResolveRoles_MergesFileAndInline(t *testing.T) {
	dir := t.TempDir()
	ini := writeFile(t, dir, "mds.conf", "[default]\nds0 = 192.168.56.101\nds1 = 192.168.56.102\n")
	cfg := defaultHarnessConfig()
	cfg.NodeConfig = ini
	cfg.Roles = []harness.NodeRole{
		{ID: 1, Address: "192.168.56.102"},
		{ID: 5, Address: "localhost"},
	}

	roles, err := cfg.resolveRoles()

	require.NoError(t, err)
	assert.Equal(t, map[int]harness.NodeRole{
		0: {ID: 0, Address: "192.168.56.101"},
		1: {ID: 1, Address: "192.168.56.102"},
		5: {ID: 5, Address: "localhost"},
	}, roles)
}

func TestResolveRoles_Errors(t *testing.T) {
	dir := t.TempDir()
	ini := writeFile(t, dir, "mds.conf", "[default]\nds0 = 192.168.56.101\n")

	tests := []struct {
		name   string
		mutate func(*HarnessConfig)
		check  func(t *testing.T, err error)
	}{
		{
			name: "inline conflicts with file",
			mutate: func(c *HarnessConfig) {
				c.NodeConfig = ini
				c.Roles = []harness.NodeRole{{ID: 0, Address: "10.0.0.9"}}
			},
			check: func(t *testing.T, err error) {
				var dup *harness.DuplicateRoleError
				assert.True(t, errors.As(err, &dup), "got %v", err)
			},
		},
		{
			name:   "no roles at all",
			mutate: func(c *HarnessConfig) { c.NodeConfig = "" },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, harness.ErrConfigParse) },
		},
		{
			name:   "missing node config",
			mutate: func(c *HarnessConfig) { c.NodeConfig = filepath.Join(dir, "absent.conf") },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, harness.ErrConfigParse) },
		},
		{
			name: "inline role without address",
			mutate: func(c *HarnessConfig) {
				c.NodeConfig = ""
				c.Roles = []harness.NodeRole{{ID: 2}}
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, harness.ErrConfigParse) },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultHarnessConfig()
			tc.mutate(cfg)
			_, err := cfg.resolveRoles()
			tc.check(t, err)
		})
	}
}

func TestBenchConfig_OpFlagOverrides(t *testing.T) {
	cfg := defaultHarnessConfig()
	cfg.Benchmark.OpFlags = map[string]string{"update": "--utime"}

	bc, err := cfg.benchConfig(nil)

	require.NoError(t, err)
	assert.Equal(t, "--utime", bc.OpFlags[bench.OpUpdate])
	assert.Equal(t, "-c", bc.OpFlags[bench.OpCreate])

	cfg.Benchmark.OpFlags = map[string]string{"all": "-x"}
	_, err = cfg.benchConfig(nil)
	assert.Error(t, err)
}

func TestRevisionSource(t *testing.T) {
	cfg := defaultHarnessConfig()
	assert.Nil(t, cfg.revisionSource())

	cfg.Benchmark.RevisionDir = "/opt/netraid"
	assert.Equal(t, bench.GitRevision{Dir: "/opt/netraid"}, cfg.revisionSource())

	cfg.Benchmark.Revision = "v1.2"
	assert.Equal(t, bench.StaticRevision("v1.2"), cfg.revisionSource())
}

func TestTransport(t *testing.T) {
	cfg := defaultHarnessConfig()
	tr, err := cfg.transport()
	require.NoError(t, err)
	assert.IsType(t, process.LocalTransport{}, tr)

	cfg.Transport = TransportConfig{Kind: "rpyc"}
	_, err = cfg.transport()
	assert.Error(t, err)
}

func TestShippedHarnessConfig_Loads(t *testing.T) {
	path := "../configs/harness.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("configs/harness.yaml not found")
	}

	cfg, err := loadHarnessConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "ssh", cfg.Transport.Kind)
	assert.Equal(t, []int{0, 1}, cfg.Benchmark.AcceptExitCodes)
	assert.Equal(t, 10*time.Second, cfg.Benchmark.GracePeriod)
	_, err = bench.ParseOps(cfg.Benchmark.Ops)
	assert.NoError(t, err)
}

func TestShippedNodeConfig_Resolves(t *testing.T) {
	path := "../conf/mds.conf"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("conf/mds.conf not found")
	}
	cfg := defaultHarnessConfig()
	cfg.NodeConfig = path

	roles, err := cfg.resolveRoles()

	require.NoError(t, err)
	assert.Len(t, roles, 4)
	assert.Equal(t, "192.168.56.101", roles[0].Address)
}
