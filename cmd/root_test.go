package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/internal/testutil"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.FatalLevel)
	}
	os.Exit(m.Run())
}

// execute runs the root command with args and returns its stdout.
// Persistent flags keep their values between runs, so each run resets them first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	base := []string{"--log=fatal", "--config=", "--node-config=", "--section="}
	rootCmd.SetArgs(append(base, args...))
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseNodeID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"12", 12, false},
		{"-1", 0, true},
		{"ds3", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseNodeID(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, harness.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNodeIDArgs(t *testing.T) {
	assert.NoError(t, nodeIDArgs(rootCmd, nil))
	assert.NoError(t, nodeIDArgs(rootCmd, []string{"3"}))
	assert.Error(t, nodeIDArgs(rootCmd, []string{"start"}))
	assert.Error(t, nodeIDArgs(rootCmd, []string{"1", "2"}))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("plain")))
	assert.Equal(t, 7, exitCode(fmt.Errorf("wrapped: %w", &exitCodeError{code: 7, err: errors.New("ds0 exited")})))
	assert.Equal(t, 1, exitCode(&exitCodeError{code: 0, err: errors.New("zero is not a failure code")}))
}

func TestRolesCommand_PrintsSortedRoles(t *testing.T) {
	// GIVEN an INI node config with roles out of order
	dir := t.TempDir()
	ini := writeFile(t, dir, "mds.conf", "[default]\nds2 = 10.0.0.3\nds0 = 10.0.0.1\ndsX = bad\nds1 = 10.0.0.2\n")

	// WHEN the roles command runs
	out, err := execute(t, "roles", "--node-config", ini)

	// THEN each role is printed once, by id
	require.NoError(t, err)
	assert.Equal(t, "ds0\t10.0.0.1\nds1\t10.0.0.2\nds2\t10.0.0.3\n", out)
}

func TestBareNodeID_PropagatesExitCode(t *testing.T) {
	// GIVEN a data server that exits with its id plus 40
	testutil.RequireShell(t)
	dir := t.TempDir()
	exe := testutil.WriteScript(t, dir, "dataServer", "exit $((40 + $1))\n")
	cfgPath := writeFile(t, dir, "harness.yaml", fmt.Sprintf("node_config: \"\"\ndata_server:\n  executable: %s\n", exe))

	// WHEN the bare id form is used
	_, err := execute(t, "--config", cfgPath, "3")

	// THEN the child's exit code becomes ours
	require.Error(t, err)
	assert.Equal(t, 43, exitCode(err))
}

func TestBenchCommand_WritesResult(t *testing.T) {
	testutil.RequireShell(t)
	dir := t.TempDir()
	client := testutil.WriteScript(t, dir, "fakeClient", `echo "fakeClient $*"`)
	results := filepath.Join(dir, "results")

	out, err := execute(t, "bench", "--client", client, "--clients", "2", "--files", "5",
		"--ops", "create,delete", "--results-dir", results, "--revision", "r42")

	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, results, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "-2-clients-5-files"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "r42", lines[0])
	assert.ElementsMatch(t, []string{"fakeClient -n 2 -c -d", "fakeClient -n 3 -c -d"}, lines[1:])
}
