package bench

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maesker/Master-Thesis/harness"
)

func TestPartition_NoFilesLost(t *testing.T) {
	for total := 1; total <= 60; total++ {
		for clients := 1; clients <= 13; clients++ {
			counts, err := Partition(total, clients)
			require.NoError(t, err)
			require.Len(t, counts, clients)

			sum := 0
			for i, c := range counts {
				sum += c
				if i < clients-1 {
					assert.Equal(t, total/clients, c, "total=%d clients=%d rank=%d", total, clients, i)
				}
			}
			assert.Equal(t, total, sum, "total=%d clients=%d", total, clients)
		}
	}
}

func TestPartition_LastClientTakesRemainder(t *testing.T) {
	tests := []struct {
		total, clients int
		want           []int
	}{
		{20000, 1, []int{20000}},
		{10, 3, []int{3, 3, 4}},
		{9, 3, []int{3, 3, 3}},
		{2, 4, []int{0, 0, 0, 2}},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d/%d", tc.total, tc.clients), func(t *testing.T) {
			got, err := Partition(tc.total, tc.clients)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPartition_InvalidParameters(t *testing.T) {
	tests := []struct {
		name           string
		total, clients int
	}{
		{"zero clients", 100, 0},
		{"negative clients", 100, -2},
		{"zero files", 0, 4},
		{"negative files", -1, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Partition(tc.total, tc.clients)
			assert.ErrorIs(t, err, harness.ErrInvalidParameter)
		})
	}
}

func TestResultFileName(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)

	assert.Equal(t, "20240307-090501-4-clients-20000-files", ResultFileName(ts, 4, 20000))
	assert.NotEqual(t, ResultFileName(ts, 4, 20000), ResultFileName(ts, 2, 20000),
		"differing client counts in the same second")
	assert.NotEqual(t, ResultFileName(ts, 4, 20000), ResultFileName(ts, 4, 10000),
		"differing file counts in the same second")
	assert.Less(t, ResultFileName(ts, 4, 20000), ResultFileName(ts.Add(time.Second), 4, 20000),
		"names sort in time order")
}

func TestCreateResult_CollisionAddsSuffix(t *testing.T) {
	dir := t.TempDir()

	var ids []string
	for i := 0; i < 3; i++ {
		f, id, err := createResult(dir, "20240307-090501-1-clients-5-files")
		require.NoError(t, err)
		require.NoError(t, f.Close())
		ids = append(ids, id)
	}

	assert.Equal(t, []string{
		"20240307-090501-1-clients-5-files",
		"20240307-090501-1-clients-5-files-1",
		"20240307-090501-1-clients-5-files-2",
	}, ids)
}

func TestParseOps(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []Op
		wantErr bool
	}{
		{"canonical order", []string{"delete", "create", "stat"}, []Op{OpCreate, OpStat, OpDelete}, false},
		{"dedup and case", []string{"READ", "read", " Update "}, []Op{OpRead, OpUpdate}, false},
		{"all", []string{"all"}, AllOps, false},
		{"unknown", []string{"create", "rename"}, nil, true},
		{"empty", nil, []Op{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOps(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, harness.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewDistribution(t *testing.T) {
	d := NewDistribution([]float64{4, 1, 3, 2, 5})

	assert.Equal(t, 5, d.Count)
	assert.Equal(t, 3.0, d.Mean)
	assert.Equal(t, 3.0, d.P50)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.InDelta(t, 4.8, d.P95, 1e-9)

	assert.Equal(t, Distribution{}, NewDistribution(nil))
	assert.Equal(t, 7.0, NewDistribution([]float64{7}).P99)
}
