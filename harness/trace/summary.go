package trace

// Summary aggregates a Log.
type Summary struct {
	Started      int         `json:"started"`
	LaunchFailed int         `json:"launch_failed"`
	Stopped      int         `json:"stopped"`
	StopFailed   int         `json:"stop_failed"`
	Roles        int         `json:"roles"`    // distinct role ids seen
	PerRole      map[int]int `json:"per_role"` // role id → event count
}

// Summarize computes aggregate counts. Safe for nil or empty logs.
func Summarize(l *Log) *Summary {
	s := &Summary{PerRole: make(map[int]int)}
	for _, e := range l.Events() {
		s.PerRole[e.RoleID]++
		switch e.Kind {
		case EventStarted:
			s.Started++
		case EventLaunchFailed:
			s.LaunchFailed++
		case EventStopped:
			s.Stopped++
		case EventStopFailed:
			s.StopFailed++
		}
	}
	s.Roles = len(s.PerRole)
	return s
}
