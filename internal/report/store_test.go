package report

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "report.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string) RunRecord {
	started := time.Now().Add(-5 * time.Minute).UTC().Truncate(time.Second)
	return RunRecord{
		ID:              id,
		StartedAt:       started,
		FinishedAt:      started.Add(4 * time.Minute),
		Rooms:           2,
		StudentsPerRoom: 30,
		QuizCount:       3,
		TeachersOK:      2,
		StudentsOK:      58,
		StudentsFailed:  2,
	}
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1")
	metrics := map[string][]float64{
		"time_to_seat":      {120, 340, 95},
		"student_connected": {1, 1, 1},
	}
	require.NoError(t, store.SaveRun(ctx, run, metrics))

	got, err := store.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Rooms, got.Rooms)
	assert.Equal(t, run.StudentsOK, got.StudentsOK)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	sums, err := store.Metrics(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, sums, 2)

	// Ordered by name.
	assert.Equal(t, "student_connected", sums[0].Name)
	assert.Equal(t, 3, sums[0].Count)
	assert.Equal(t, float64(3), sums[0].Sum)

	assert.Equal(t, "time_to_seat", sums[1].Name)
	assert.Equal(t, float64(95), sums[1].Min)
	assert.Equal(t, float64(340), sums[1].Max)
	assert.Equal(t, float64(555), sums[1].Sum)
}

func TestStore_UnknownRun(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_ConcurrentSaves(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run := sampleRun(string(rune('a' + i)))
			assert.NoError(t, store.SaveRun(ctx, run, map[string][]float64{"m": {float64(i)}}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		_, err := store.Run(ctx, string(rune('a'+i)))
		assert.NoError(t, err)
	}
}

func TestStore_ClosedStoreRejectsWrites(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	err := store.SaveRun(context.Background(), sampleRun("run-x"), nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
