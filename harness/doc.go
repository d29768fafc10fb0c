// Package harness provides the core types shared by the netraid cluster
// supervisor and benchmark harness.
//
// # Reading Guide
//
// Start with these files:
//   - role.go: NodeRole, the identity of a cluster member
//   - status.go: ProcessStatus, the lifecycle of a supervised process
//   - errors.go: the error taxonomy returned by every sub-package
//
// # Architecture
//
// The harness package defines data types only; behaviour lives in
// sub-packages, leaves first:
//   - harness/nodeconf/: resolve role id → address from an INI node config
//   - harness/process/: start, wait for and stop one external process
//   - harness/cluster/: start and tear down one data server per role
//   - harness/bench/: partition a workload across clients and collect results
//   - harness/trace/: lifecycle event recording
//   - harness/statusapi/: read-only HTTP view of a running cluster
//
// The data server and the load-generating client are opaque executables;
// nothing in this module speaks their wire protocol.
package harness
