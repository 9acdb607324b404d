package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/floodfreq/internal/assembler"
	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "u1", "series")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "u1", map[string][]byte{"series": []byte("a"), "splits": []byte("b")}))
			require.NoError(t, store.Put(ctx, "u1", map[string][]byte{"series": []byte("c")}))
			require.NoError(t, store.Put(ctx, "u2", map[string][]byte{"series": []byte("z")}))

			got, err := store.Get(ctx, "u1", "series")
			require.NoError(t, err)
			assert.Equal(t, []byte("c"), got)

			require.NoError(t, store.Delete(ctx, "u1", "series", "missing"))
			_, err = store.Get(ctx, "u1", "series")
			assert.ErrorIs(t, err, ErrNotFound)

			got, err = store.Get(ctx, "u2", "series")
			require.NoError(t, err)
			assert.Equal(t, []byte("z"), got, "sessions are isolated")

			n, err := store.Purge(ctx, time.Now().Add(time.Hour))
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)
			_, err = store.Get(ctx, "u1", "splits")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// clockedStores returns the stores with their write time read from clock
func clockedStores(t *testing.T, clock *time.Time) map[string]Store {
	t.Helper()

	memory := NewMemoryStore()
	memory.now = func() time.Time { return *clock }

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	sqlite.now = func() time.Time { return *clock }

	return map[string]Store{"memory": memory, "sqlite": sqlite}
}

func TestPurgeKeepsRecentFields(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for name, store := range clockedStores(t, &clock) {
		t.Run(name, func(t *testing.T) {
			clock = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, store.Put(ctx, "old", map[string][]byte{"options": {1}}))
			clock = clock.Add(8 * 24 * time.Hour)
			require.NoError(t, store.Put(ctx, "new", map[string][]byte{"options": {2}}))

			n, err := store.Purge(ctx, clock.Add(-7*24*time.Hour))
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			_, err = store.Get(ctx, "new", "options")
			assert.NoError(t, err)
			_, err = store.Get(ctx, "old", "options")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPurgeExpiresWholeSessions(t *testing.T) {
	ctx := context.Background()
	week := 7 * 24 * time.Hour
	day := 24 * time.Hour
	var clock time.Time

	for name, store := range clockedStores(t, &clock) {
		t.Run(name, func(t *testing.T) {
			clock = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
			sess := Open(store, "active")

			opts := ffa.DefaultOptions()
			opts.SignificanceLevel = 0.1
			series := ffa.Series{Data: []float64{1, 2, 3}, Years: []int{2000, 2001, 2002}}
			require.NoError(t, sess.Write(ctx, map[string]any{FieldOptions: opts, FieldSeries: series}))

			clock = clock.Add(6 * day)
			require.NoError(t, sess.Write(ctx, map[string]any{string(StageTrend): []int{1, 2, 5}}))

			clock = clock.Add(2 * day)
			n, err := store.Purge(ctx, clock.Add(-week))
			require.NoError(t, err)
			assert.Zero(t, n, "a session written to within the lifetime keeps every field")

			var stored ffa.Series
			found, err := sess.Read(ctx, FieldSeries, &stored)
			require.NoError(t, err)
			assert.True(t, found)

			got, err := sess.Options(ctx, ffa.DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, 0.1, got.SignificanceLevel)

			clock = clock.Add(week)
			n, err = store.Purge(ctx, clock.Add(-week))
			require.NoError(t, err)
			assert.EqualValues(t, 3, n)

			found, err = sess.Cached(ctx, StageTrend, &[]int{})
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSessionValues(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := Open(store, "abc")

			series := ffa.Series{Data: []float64{120.5, 98, 143.25}, Years: []int{1990, 1991, 1992}}
			slope := 0.25
			records := []assembler.Record[ffa.EstimationResult]{
				{Start: 1990, End: 1991, Result: &ffa.EstimationResult{Distribution: "GEV", Method: ffa.MethodMLE, Params: map[string]float64{"location": 100}}},
				{Start: 1992, End: 1992, Error: "procedure fit_maximum_likelihood failed"},
			}
			test := ffa.TestResult{Reject: true, Statistic: 2.1, Slope: &slope}

			require.NoError(t, s.Write(ctx, map[string]any{
				FieldSeries:               series,
				FieldSplits:               []int{1992},
				string(StageEstimation):   records,
				string(StageChangePoints): test,
			}))

			var gotSeries ffa.Series
			found, err := s.Read(ctx, FieldSeries, &gotSeries)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, series, gotSeries)

			var gotRecords []assembler.Record[ffa.EstimationResult]
			found, err = s.Cached(ctx, StageEstimation, &gotRecords)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, records, gotRecords)

			var gotTest ffa.TestResult
			_, err = s.Cached(ctx, StageChangePoints, &gotTest)
			require.NoError(t, err)
			require.NotNil(t, gotTest.Slope)
			assert.Equal(t, 0.25, *gotTest.Slope)

			var missing []int
			found, err = s.Read(ctx, FieldStructures, &missing)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestEnterInvalidatesLaterStages(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		stage     Stage
		repeat    bool
		survivors []Stage
	}{
		{StageDataset, false, []Stage{StageDataset}},
		{StageDataset, true, nil},
		{StageTrend, false, []Stage{StageDataset, StageChangePoints, StageTrend}},
		{StageEstimation, true, []Stage{StageDataset, StageChangePoints, StageTrend, StageApproach, StageDistribution}},
		{StageReport, false, Stages},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			s := Open(NewMemoryStore(), "uid")
			all := map[string]any{FieldSplits: []int{1985}}
			for _, st := range Stages {
				all[string(st)] = true
			}
			require.NoError(t, s.Write(ctx, all))

			require.NoError(t, s.Enter(ctx, tt.stage, tt.repeat))

			var kept []Stage
			for _, st := range Stages {
				var v bool
				found, err := s.Cached(ctx, st, &v)
				require.NoError(t, err)
				if found {
					kept = append(kept, st)
				}
			}
			assert.Equal(t, tt.survivors, kept)

			var splits []int
			found, err := s.Read(ctx, FieldSplits, &splits)
			require.NoError(t, err)
			assert.True(t, found, "inputs are not stage results")
		})
	}

	assert.Error(t, Open(NewMemoryStore(), "uid").Enter(ctx, Stage("report"), false))
}

func TestOptionsCreatedOnFirstUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	defaults := ffa.DefaultOptions()
	opts, err := Open(store, "u").Options(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, opts)

	changed := defaults
	changed.SignificanceLevel = 0.1
	require.NoError(t, Open(store, "u").Write(ctx, map[string]any{FieldOptions: changed}))

	opts, err = Open(store, "u").Options(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, 0.1, opts.SignificanceLevel)
}
