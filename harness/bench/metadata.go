package bench

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// MetadataSuffix is appended to the result path for the run's sidecar file.
const MetadataSuffix = ".yaml"

// Distribution summarizes client wall times in seconds.
type Distribution struct {
	Mean  float64 `yaml:"mean"`
	P50   float64 `yaml:"p50"`
	P95   float64 `yaml:"p95"`
	P99   float64 `yaml:"p99"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Count int     `yaml:"count"`
}

// NewDistribution summarizes per-client wall times given in seconds.
// A run where no client was launched yields the zero Distribution.
func NewDistribution(wallSec []float64) Distribution {
	n := len(wallSec)
	if n == 0 {
		return Distribution{}
	}
	asc := append([]float64(nil), wallSec...)
	sort.Float64s(asc)

	var total float64
	for _, sec := range asc {
		total += sec
	}
	return Distribution{
		Mean:  total / float64(n),
		P50:   percentile(asc, 0.50),
		P95:   percentile(asc, 0.95),
		P99:   percentile(asc, 0.99),
		Min:   asc[0],
		Max:   asc[n-1],
		Count: n,
	}
}

// percentile returns the q-quantile (0..1) of ascending wall times,
// interpolating between the two neighbouring clients.
func percentile(asc []float64, q float64) float64 {
	pos := q * float64(len(asc)-1)
	i := int(pos)
	if i >= len(asc)-1 {
		return asc[len(asc)-1]
	}
	return asc[i] + (pos-float64(i))*(asc[i+1]-asc[i])
}

// Metadata is the YAML sidecar written next to a result artifact.
type Metadata struct {
	ID             string           `yaml:"id"`
	Timestamp      time.Time        `yaml:"timestamp"`
	Revision       string           `yaml:"revision"`
	Status         RunStatus        `yaml:"status"`
	ClientCount    int              `yaml:"client_count"`
	TotalFileCount int              `yaml:"total_file_count"`
	FilesPerClient int              `yaml:"files_per_client"`
	Ops            []Op             `yaml:"ops"`
	ResultPath     string           `yaml:"result_path"`
	WallTimeSec    Distribution     `yaml:"wall_time_sec"`
	Clients        []ClientMetadata `yaml:"clients"`
}

// ClientMetadata is one client's line in the sidecar.
type ClientMetadata struct {
	Rank        int     `yaml:"rank"`
	Role        string  `yaml:"role"`
	Files       int     `yaml:"files"`
	PID         int     `yaml:"pid,omitempty"`
	Status      string  `yaml:"status"`
	ExitCode    int     `yaml:"exit_code"`
	Error       string  `yaml:"error,omitempty"`
	DurationSec float64 `yaml:"duration_sec"`
}

// Metadata builds the sidecar content for r.
func (r *Run) Metadata() Metadata {
	m := Metadata{
		ID:             r.ID,
		Timestamp:      r.Timestamp,
		Revision:       r.Revision,
		Status:         r.Status,
		ClientCount:    r.ClientCount,
		TotalFileCount: r.TotalFileCount,
		FilesPerClient: r.FilesPerClient,
		Ops:            r.Ops,
		ResultPath:     r.ResultPath,
		Clients:        make([]ClientMetadata, 0, len(r.Clients)),
	}
	var durations []float64
	for _, c := range r.Clients {
		cm := ClientMetadata{
			Rank:        c.Rank,
			Role:        c.Role.String(),
			Files:       c.Files,
			PID:         c.PID,
			Status:      string(c.Status),
			ExitCode:    c.ExitCode,
			DurationSec: c.Duration.Seconds(),
		}
		if c.Err != nil {
			cm.Error = c.Err.Error()
		}
		if c.PID != 0 {
			durations = append(durations, c.Duration.Seconds())
		}
		m.Clients = append(m.Clients, cm)
	}
	m.WallTimeSec = NewDistribution(durations)
	return m
}

// WriteMetadata writes m as YAML to path.
func WriteMetadata(m Metadata, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling run metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads a sidecar written by WriteMetadata.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run metadata: %w", err)
	}
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing run metadata: %w", err)
	}
	return &m, nil
}
