package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RecordAndSnapshot(t *testing.T) {
	m := NewMemory()

	m.Record("student_connected", 1)
	m.Record("student_connected", 0)
	m.Record("time_to_seat", 1250)

	assert.Equal(t, 2, m.Count("student_connected"))
	assert.Equal(t, 1.0, m.Sum("student_connected"))
	assert.Equal(t, []float64{1250}, m.Values("time_to_seat"))
	assert.Zero(t, m.Count("never_recorded"))

	snap := m.Snapshot()
	assert.Len(t, snap, 2)

	// Snapshot is a copy, not a view.
	snap["student_connected"][0] = 99
	assert.Equal(t, []float64{1, 0}, m.Values("student_connected"))
}

func TestMemory_ConcurrentWriters(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record("concurrent", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, m.Count("concurrent"))
}

func TestPrometheus_RegistersOncePerName(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.Record("time to seat", 100)
	p.Record("time to seat", 200)
	p.Record("student_connected", 1)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)

	byName := map[string]uint64{}
	for _, fam := range families {
		byName[fam.GetName()] = fam.GetMetric()[0].GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(2), byName["classload_time_to_seat"])
	assert.Equal(t, uint64(1), byName["classload_student_connected"])
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	rec := Multi{a, b, Discard{}}

	rec.Record("x", 5)

	assert.Equal(t, []float64{5}, a.Values("x"))
	assert.Equal(t, []float64{5}, b.Values("x"))
}
