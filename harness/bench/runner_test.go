package bench

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/process"
	"github.com/maesker/Master-Thesis/internal/testutil"
)

var fixedTime = time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// fakeClient writes a client script with the given body into a temp dir.
func fakeClient(t *testing.T, body string) string {
	t.Helper()
	testutil.RequireShell(t)
	return testutil.WriteScript(t, t.TempDir(), "fakeClient", body)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRun_SingleClientFullWorkload(t *testing.T) {
	// GIVEN a client that echoes its arguments
	client := fakeClient(t, `echo "fakeClient $*"`)
	resultsDir := filepath.Join(t.TempDir(), "results")
	r := NewRunner(Config{Client: client, ResultsDir: resultsDir, Clock: fixedClock},
		process.NewSupervisor(nil), StaticRevision("4f2a9c1"))

	// WHEN 20000 files are run on one client with every operation
	run, err := r.Run(context.Background(), 20000, 1, AllOps)

	// THEN one result file starts with the revision followed by the client output
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.Status)
	assert.Equal(t, 20000, run.FilesPerClient)
	assert.Equal(t, []int{20000}, run.Partition)
	assert.Equal(t, "20240307-090501-1-clients-20000-files", run.ID)
	assert.Equal(t, filepath.Join(resultsDir, run.ID), run.ResultPath)

	lines := readLines(t, run.ResultPath)
	assert.Equal(t, []string{"4f2a9c1", "fakeClient -n 20000 -c -r -s -u -d"}, lines)

	entries, err := os.ReadDir(resultsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "result file and its metadata sidecar")
}

func TestRun_ClientsShareWorkAndOutput(t *testing.T) {
	client := fakeClient(t, `echo "client files=$2"`)
	r := NewRunner(Config{Client: client, ResultsDir: t.TempDir(), Clock: fixedClock},
		process.NewSupervisor(nil), StaticRevision("rev"))

	run, err := r.Run(context.Background(), 10, 3, []Op{OpCreate})

	require.NoError(t, err)
	require.Len(t, run.Clients, 3)
	assert.Equal(t, []int{3, 3, 4}, run.Partition)
	lines := readLines(t, run.ResultPath)
	assert.Equal(t, "rev", lines[0])
	assert.ElementsMatch(t, []string{"client files=3", "client files=3", "client files=4"}, lines[1:])
	for _, c := range run.Clients {
		assert.True(t, c.Accepted)
		assert.Equal(t, harness.StatusExited, c.Status)
		assert.NotZero(t, c.PID)
	}
}

func TestRun_ClientFailure_KeepsOutput(t *testing.T) {
	// GIVEN a client that fails when handed 4 files
	client := fakeClient(t, `echo "partial output for $2"
[ "$2" = "4" ] && exit 3
exit 0
`)
	r := NewRunner(Config{Client: client, ResultsDir: t.TempDir(), Clock: fixedClock},
		process.NewSupervisor(nil), StaticRevision("rev"))

	// WHEN the last of three clients gets the remainder and fails
	run, err := r.Run(context.Background(), 10, 3, AllOps)

	// THEN the run is Failed, names rank 2, and every line of output survives
	var cfe *ClientFailureError
	require.True(t, errors.As(err, &cfe), "got %v", err)
	assert.Equal(t, []int{2}, cfe.Ranks)
	assert.Equal(t, run.ResultPath, cfe.ResultPath)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, 3, run.Clients[2].ExitCode)

	content, readErr := os.ReadFile(run.ResultPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(content), "partial output for 4")
	assert.Equal(t, 2, strings.Count(string(content), "partial output for 3"))

	meta, metaErr := LoadMetadata(run.MetadataPath)
	require.NoError(t, metaErr)
	assert.Equal(t, RunFailed, meta.Status)
	assert.Len(t, meta.Clients, 3)
	assert.Equal(t, 3, meta.WallTimeSec.Count)
}

func TestRun_AcceptExitCodes(t *testing.T) {
	// fakeClient exits 1 after its delete pass.
	client := fakeClient(t, "exit 1\n")
	r := NewRunner(Config{Client: client, ResultsDir: t.TempDir(), Clock: fixedClock, AcceptExitCodes: []int{0, 1}},
		process.NewSupervisor(nil), StaticRevision("rev"))

	run, err := r.Run(context.Background(), 5, 2, AllOps)

	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.Status)
}

func TestRun_LaunchFailure_RecordsRevisionAndFails(t *testing.T) {
	r := NewRunner(Config{Client: filepath.Join(t.TempDir(), "missing"), ResultsDir: t.TempDir(), Clock: fixedClock},
		process.NewSupervisor(nil), StaticRevision("rev"))

	run, err := r.Run(context.Background(), 4, 2, AllOps)

	var cfe *ClientFailureError
	require.True(t, errors.As(err, &cfe), "got %v", err)
	assert.Equal(t, []int{0, 1}, cfe.Ranks)
	var launchErr *harness.LaunchError
	assert.True(t, errors.As(run.Clients[0].Err, &launchErr))
	assert.Equal(t, []string{"rev"}, readLines(t, run.ResultPath))
}

func TestRun_InvalidParameters_WriteNothing(t *testing.T) {
	tests := []struct {
		name           string
		total, clients int
		ops            []Op
	}{
		{"zero clients", 100, 0, AllOps},
		{"zero files", 0, 1, AllOps},
		{"no ops", 100, 1, nil},
		{"unknown op", 100, 1, []Op{"rename"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resultsDir := filepath.Join(t.TempDir(), "results")
			r := NewRunner(Config{Client: "/bin/true", ResultsDir: resultsDir}, process.NewSupervisor(nil), nil)

			run, err := r.Run(context.Background(), tc.total, tc.clients, tc.ops)

			assert.Nil(t, run)
			assert.ErrorIs(t, err, harness.ErrInvalidParameter)
			_, statErr := os.Stat(resultsDir)
			assert.True(t, os.IsNotExist(statErr), "results dir must not be created")
		})
	}
}

func TestRun_SameSecondSameParams_DistinctFiles(t *testing.T) {
	client := fakeClient(t, "exit 0\n")
	r := NewRunner(Config{Client: client, ResultsDir: t.TempDir(), Clock: fixedClock},
		process.NewSupervisor(nil), StaticRevision("rev"))

	first, err := r.Run(context.Background(), 5, 1, AllOps)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), 5, 1, AllOps)
	require.NoError(t, err)

	assert.NotEqual(t, first.ResultPath, second.ResultPath)
	assert.Equal(t, first.ID+"-1", second.ID)
}

func TestRun_RevisionLookupFails_RecordsUnknown(t *testing.T) {
	client := fakeClient(t, "exit 0\n")
	gitStub := testutil.WriteScript(t, t.TempDir(), "git", "exit 128\n")
	r := NewRunner(Config{Client: client, ResultsDir: t.TempDir(), Clock: fixedClock},
		process.NewSupervisor(nil), GitRevision{Dir: t.TempDir(), Binary: gitStub})

	run, err := r.Run(context.Background(), 1, 1, []Op{OpCreate})

	require.NoError(t, err)
	assert.Equal(t, UnknownRevision, run.Revision)
	assert.Equal(t, UnknownRevision, readLines(t, run.ResultPath)[0])
}

func TestGitRevision_RunsRevParse(t *testing.T) {
	testutil.RequireShell(t)
	gitStub := testutil.WriteScript(t, t.TempDir(), "git", `[ "$1 $3 $4" = "-C rev-parse HEAD" ] || exit 2
echo "  9b1d0c7e  "
`)

	rev, err := GitRevision{Dir: "/srv/netraid", Binary: gitStub}.Revision(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "9b1d0c7e", rev)
}

func TestStaticRevision_Empty(t *testing.T) {
	_, err := StaticRevision("").Revision(context.Background())

	assert.Error(t, err)
}

func TestRun_LauncherPrefixAndRoundRobin(t *testing.T) {
	// GIVEN a launcher wrapper and two target roles
	client := fakeClient(t, `echo "client $*"`)
	launcher := testutil.WriteScript(t, t.TempDir(), "mpirun", `shift 2
exec "$@"
`)
	targets := []harness.NodeRole{{ID: 0, Address: "localhost"}, {ID: 1, Address: "localhost"}}
	r := NewRunner(Config{
		Client:     client,
		Launcher:   []string{launcher, "-np", "1"},
		ResultsDir: t.TempDir(),
		Targets:    targets,
		Clock:      fixedClock,
	}, process.NewSupervisor(nil), StaticRevision("rev"))

	// WHEN four clients are run
	run, err := r.Run(context.Background(), 8, 4, []Op{OpStat})

	// THEN the launcher passes the client command through and roles alternate
	require.NoError(t, err)
	lines := readLines(t, run.ResultPath)
	assert.Equal(t, 4, strings.Count(strings.Join(lines[1:], "\n"), "client -n 2 -s"))
	for i, c := range run.Clients {
		assert.Equal(t, i%2, c.Role.ID)
	}
}

func TestRun_Cancelled_StopsClients(t *testing.T) {
	client := fakeClient(t, `echo started
exec sleep 30
`)
	r := NewRunner(Config{Client: client, ResultsDir: t.TempDir(), Clock: fixedClock, GracePeriod: time.Second},
		process.NewSupervisor(nil), StaticRevision("rev"))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	run, err := r.Run(ctx, 4, 2, AllOps)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, run)
	assert.Equal(t, RunFailed, run.Status)
	assert.Less(t, time.Since(start), 10*time.Second)
	for _, c := range run.Clients {
		assert.True(t, c.Status.Terminal())
	}
}
