package cmd

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/bench"
	"github.com/maesker/Master-Thesis/harness/process"
)

var (
	benchClients    int      // Number of parallel clients
	benchFiles      int      // Total number of files across all clients
	benchOps        []string // Operation phases
	benchResultsDir string   // Directory for result artifacts
	benchClient     string   // Client executable
	benchRevision   string   // Fixed revision for line 1
	benchDistribute bool     // Place clients on the configured roles
)

// benchCmd runs one fakeClient benchmark and records its result artifact.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a fakeClient benchmark against the cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyBenchFlags(cmd, cfg)

		ops, err := bench.ParseOps(cfg.Benchmark.Ops)
		if err != nil {
			return err
		}

		var targets []harness.NodeRole
		transport := process.Transport(process.LocalTransport{})
		if benchDistribute {
			roles, err := cfg.resolveRoles()
			if err != nil {
				return err
			}
			targets = sortedRoles(roles)
			if transport, err = cfg.transport(); err != nil {
				return err
			}
		}
		runnerCfg, err := cfg.benchConfig(targets)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		runner := bench.NewRunner(runnerCfg, process.NewSupervisor(transport), cfg.revisionSource())
		run, err := runner.Run(ctx, cfg.Benchmark.Files, cfg.Benchmark.Clients, ops)
		if run != nil {
			logrus.Infof("revision %s, %d files per client, status %s", run.Revision, run.FilesPerClient, run.Status)
			fmt.Fprintln(cmd.OutOrStdout(), run.ResultPath)
		}
		return err
	},
}

func applyBenchFlags(cmd *cobra.Command, cfg *HarnessConfig) {
	// Flags override file values only when explicitly set.
	if cmd.Flags().Changed("clients") {
		cfg.Benchmark.Clients = benchClients
	}
	if cmd.Flags().Changed("files") {
		cfg.Benchmark.Files = benchFiles
	}
	if cmd.Flags().Changed("ops") {
		cfg.Benchmark.Ops = benchOps
	}
	if cmd.Flags().Changed("results-dir") {
		cfg.Benchmark.ResultsDir = benchResultsDir
	}
	if cmd.Flags().Changed("client") {
		cfg.Benchmark.Client = benchClient
	}
	if cmd.Flags().Changed("revision") {
		cfg.Benchmark.Revision = benchRevision
	}
}

func sortedRoles(roles map[int]harness.NodeRole) []harness.NodeRole {
	out := make([]harness.NodeRole, 0, len(roles))
	for _, r := range roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func init() {
	benchCmd.Flags().IntVar(&benchClients, "clients", 1, "Number of parallel client processes")
	benchCmd.Flags().IntVar(&benchFiles, "files", 20000, "Total number of files across all clients")
	benchCmd.Flags().StringSliceVar(&benchOps, "ops", []string{"all"}, "Operations: create,read,stat,update,delete or all")
	benchCmd.Flags().StringVar(&benchResultsDir, "results-dir", bench.DefaultResultsDir, "Directory for result artifacts")
	benchCmd.Flags().StringVar(&benchClient, "client", "fakeClient", "Client executable")
	benchCmd.Flags().StringVar(&benchRevision, "revision", "", "Revision recorded on line 1 (default: git HEAD of benchmark.revision_dir)")
	benchCmd.Flags().BoolVar(&benchDistribute, "distribute", false, "Place clients round-robin on the configured roles")

	rootCmd.AddCommand(benchCmd)
}
