package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maesker/Master-Thesis/harness"
	"github.com/maesker/Master-Thesis/harness/cluster"
	"github.com/maesker/Master-Thesis/harness/process"
)

// nodeCmd runs the data server for one role on this host in the foreground.
var nodeCmd = &cobra.Command{
	Use:   "node <id>",
	Short: "Start one data server locally with the given role id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseNodeID(args[0])
		if err != nil {
			return err
		}
		return runNode(cmd, id)
	},
}

// runNode starts role id locally and waits for it. A nonzero exit of the data
// server becomes the exit code of this process.
func runNode(cmd *cobra.Command, id int) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	role := localRole(cfg, id)

	orch := cluster.NewOrchestrator(cfg.clusterConfig(), process.NewSupervisor(process.LocalTransport{}), nil)
	ctx, stop := signalContext()
	defer stop()

	st := cluster.NewState()
	p, err := orch.StartNode(ctx, st, role)
	if err != nil {
		return err
	}

	res, waitErr := orch.Wait(ctx, st)
	if waitErr != nil {
		logrus.Infof("interrupted, stopping ds%d", id)
	}
	if err := orch.StopCluster(context.Background(), st); err != nil {
		return err
	}
	if waitErr != nil {
		return nil
	}

	r := res[id]
	switch {
	case r.Status == harness.StatusExited && r.ExitCode != 0:
		return &exitCodeError{code: r.ExitCode, err: fmt.Errorf("ds%d (pid %d) exited with code %d", id, p.PID(), r.ExitCode)}
	case r.Status == harness.StatusFailed:
		return fmt.Errorf("ds%d (pid %d) failed: %v", id, p.PID(), r.Err)
	}
	logrus.Infof("ds%d exited cleanly", id)
	return nil
}

// localRole returns the configured role for id, or a localhost role when the
// node config does not name it. Config errors are logged, not fatal: node mode
// only needs the id.
func localRole(cfg *HarnessConfig, id int) harness.NodeRole {
	roles, err := cfg.resolveRoles()
	if err != nil {
		logrus.Debugf("node config unavailable, running ds%d as localhost: %v", id, err)
		return harness.NodeRole{ID: id, Address: harness.LocalAddress}
	}
	if r, ok := roles[id]; ok {
		return r
	}
	logrus.Warnf("ds%d is not in the node config, running as localhost", id)
	return harness.NodeRole{ID: id, Address: harness.LocalAddress}
}

func init() {
	rootCmd.AddCommand(nodeCmd)
}
