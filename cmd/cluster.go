package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/cluster"
	"github.com/maesker/Master-Thesis/harness/process"
	"github.com/maesker/Master-Thesis/harness/statusapi"
	"github.com/maesker/Master-Thesis/harness/trace"
)

var (
	statusAddr   string // Listen address of the status API
	clusterReset bool   // cluster: empty work dirs before starting
	setupReset   bool   // setup: same, on by default
	keepPartial  bool   // Keep started nodes running when others fail
)

// clusterCmd starts one data server per configured role and keeps them
// running until interrupted or until every node has exited.
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Start the full cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCluster(cmd, clusterReset)
	},
}

// setupCmd resolves the node config, resets work directories and starts the cluster.
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Resolve the node config, reset work dirs and start the cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCluster(cmd, setupReset)
	},
}

func runCluster(cmd *cobra.Command, reset bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("status-addr") {
		cfg.StatusAddr = statusAddr
	}
	roles, err := cfg.resolveRoles()
	if err != nil {
		return err
	}
	transport, err := cfg.transport()
	if err != nil {
		return err
	}
	logrus.Infof("resolved %d roles, launching via %s", len(roles), transport.Name())

	events := trace.NewLog()
	orch := cluster.NewOrchestrator(cfg.clusterConfig(), process.NewSupervisor(transport), events)

	ctx, stop := signalContext()
	defer stop()

	if reset {
		if err := orch.ResetWorkDirs(ctx, roles); err != nil {
			return fmt.Errorf("resetting work dirs: %w", err)
		}
	}

	st, err := orch.StartCluster(ctx, roles)
	var partial *harness.PartialClusterFailure
	switch {
	case errors.As(err, &partial) && keepPartial:
		logrus.Errorf("continuing without %v: %v", partial.FailedIDs(), err)
	case err != nil:
		if stopErr := orch.StopCluster(context.Background(), st); stopErr != nil {
			logrus.Errorf("rollback: %v", stopErr)
		}
		return err
	}

	if cfg.StatusAddr != "" {
		srv := statusapi.New(st, events)
		go func() {
			if err := srv.ListenAndServe(cfg.StatusAddr); err != nil {
				logrus.Errorf("status API: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	results, waitErr := orch.Wait(ctx, st)
	if waitErr != nil {
		logrus.Info("shutting down cluster")
		return orch.StopCluster(context.Background(), st)
	}
	logrus.Warnf("all %d data servers exited", len(results))
	stopErr := orch.StopCluster(context.Background(), st)
	if err := exitFailure(results); err != nil {
		return errors.Join(err, stopErr)
	}
	return stopErr
}

// exitFailure reports the lowest-id data server that did not exit cleanly.
// A nonzero exit code becomes the harness exit code.
func exitFailure(results map[int]process.ExitResult) error {
	ids := make([]int, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		res := results[id]
		if res.Success() {
			continue
		}
		err := fmt.Errorf("data server ds%d %s (code=%d)", id, res.Status, res.ExitCode)
		if res.ExitCode > 0 {
			return &exitCodeError{code: res.ExitCode, err: err}
		}
		return err
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{clusterCmd, setupCmd} {
		c.Flags().StringVar(&statusAddr, "status-addr", "", "Serve the status API on this address (e.g. :8080)")
		c.Flags().BoolVar(&keepPartial, "keep-partial", false, "Keep started nodes running when some roles fail to launch")
	}
	clusterCmd.Flags().BoolVar(&clusterReset, "reset", false, "Empty the data server work dirs before starting")
	setupCmd.Flags().BoolVar(&setupReset, "reset", true, "Empty the data server work dirs before starting")

	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(setupCmd)
}
