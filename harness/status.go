package harness

// ProcessStatus is the lifecycle state of a supervised process.
//
//	Starting → Running → Exited(code)
//	Starting → Failed(reason)            (launch refused by the OS)
//	Running  → Failed(reason)            (killed by a signal, wait error)
type ProcessStatus string

const (
	StatusStarting ProcessStatus = "starting"
	StatusRunning  ProcessStatus = "running"
	StatusExited   ProcessStatus = "exited"
	StatusFailed   ProcessStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s ProcessStatus) Terminal() bool {
	return s == StatusExited || s == StatusFailed
}
