package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/rangelab/rangeshift/internal/geo"
	"github.com/rangelab/rangeshift/internal/model"
	"github.com/rangelab/rangeshift/internal/store"
)

const testFrame = "EPSG:32611"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func squareRange(t *testing.T, pop string, minX, minY, maxX, maxY float64) model.RangePolygon {
	t.Helper()
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	})
	require.NoError(t, poly.Push(ring))
	require.NoError(t, mp.Push(poly))

	data, err := geo.EncodeGeom(mp)
	require.NoError(t, err)
	return model.RangePolygon{
		Population: pop,
		Frame:      testFrame,
		Area:       (maxX - minX) * (maxY - minY),
		Geom:       data,
	}
}

func telemetry(animal, homePop string, hour int, x, y float64) model.Location {
	return model.Location{
		AnimalID:       animal,
		HomePopulation: homePop,
		AgeClass:       "adult",
		Sex:            "F",
		RecordedAt:     time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hour) * time.Hour),
		X:              x,
		Y:              y,
	}
}

func seedRanges(t *testing.T, st store.Store) {
	t.Helper()
	require.NoError(t, st.ReplaceRanges(context.Background(), []model.RangePolygon{
		squareRange(t, "Alpha", 0, 0, 10, 10),
		squareRange(t, "Beta", 20, 0, 30, 10),
	}))
}

func TestRunClassifiesAndSummarizes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedRanges(t, st)

	// S1 crosses from its home range through open country into Beta's
	// range. S2 never leaves home. Insertion order is shuffled to prove
	// the pass sorts per individual.
	_, err := st.SaveLocations(ctx, []model.Location{
		telemetry("S1", "Alpha", 48, 25, 5),
		telemetry("S2", "Alpha", 0, 2, 2),
		telemetry("S1", "Alpha", 0, 5, 5),
		telemetry("S2", "Alpha", 24, 3, 3),
		telemetry("S1", "Alpha", 24, 15, 5),
	})
	require.NoError(t, err)

	res, err := New(st, testFrame, 2).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Run.Individuals)
	assert.Equal(t, 5, res.Run.Locations)
	assert.NotEmpty(t, res.Run.ID)
	assert.False(t, res.Run.FinishedAt.Before(res.Run.StartedAt))

	require.Len(t, res.Summaries, 2)
	s1 := res.Summaries[0]
	assert.Equal(t, "S1", s1.AnimalID)
	assert.True(t, s1.HomeKnown)
	assert.Equal(t, 2, s1.Populations)
	assert.True(t, s1.InTransit)
	assert.Equal(t, 3, s1.PopulationsAndTransit)
	assert.Equal(t, "Alpha;Beta", s1.PopulationsVisited)
	assert.Equal(t, 2, s1.TotalSwitches)
	assert.Equal(t, 1, s1.HomeToTransit)
	assert.Equal(t, 1, s1.TransitToOther)
	assert.InDelta(t, 2.0, s1.TrackedDays, 1e-9)

	s2 := res.Summaries[1]
	assert.Equal(t, "S2", s2.AnimalID)
	assert.Equal(t, 0, s2.TotalSwitches)
	assert.False(t, s2.InTransit)
	assert.Equal(t, "Alpha", s2.PopulationsVisited)

	// Labels are persisted in time order per individual.
	fixes, err := st.ListClassifiedByAnimal(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, fixes, 3)
	assert.Equal(t, model.StateHome, fixes[0].State)
	assert.Equal(t, model.StateTransit, fixes[1].State)
	assert.Equal(t, model.StateOther, fixes[2].State)
	assert.Equal(t, model.TransitionUndefined, fixes[0].Transition)
	assert.Equal(t, model.HomeToTransit, fixes[1].Transition)
	assert.Equal(t, model.TransitToOther, fixes[2].Transition)
	assert.Equal(t, "Beta", fixes[2].Population)

	run, err := st.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, res.Run.ID, run.ID)
}

func TestRunIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedRanges(t, st)

	_, err := st.SaveLocations(ctx, []model.Location{
		telemetry("S1", "Alpha", 0, 5, 5),
		telemetry("S1", "Alpha", 24, 15, 5),
	})
	require.NoError(t, err)

	p := New(st, testFrame, 1)
	first, err := p.Run(ctx)
	require.NoError(t, err)
	second, err := p.Run(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, first.Summaries, second.Summaries)

	// A re-run replaces rather than appends.
	c, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Classified)
	assert.Equal(t, 1, c.Summaries)
}

func TestRunUnknownHomePopulation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedRanges(t, st)

	// Gamma has no polygon, so S3 can never be home even while standing
	// inside Alpha's range.
	_, err := st.SaveLocations(ctx, []model.Location{
		telemetry("S3", "Gamma", 0, 5, 5),
		telemetry("S3", "Gamma", 24, 50, 50),
	})
	require.NoError(t, err)

	res, err := New(st, testFrame, 1).Run(ctx)
	require.NoError(t, err)

	require.Len(t, res.Summaries, 1)
	assert.False(t, res.Summaries[0].HomeKnown)

	fixes, err := st.ListClassifiedByAnimal(ctx, "S3")
	require.NoError(t, err)
	require.Len(t, fixes, 2)
	assert.Equal(t, model.StateOther, fixes[0].State)
	assert.Equal(t, "Alpha", fixes[0].Population)
	assert.Equal(t, model.StateTransit, fixes[1].State)
}

func TestRunNoRanges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.SaveLocations(ctx, []model.Location{telemetry("S1", "Alpha", 0, 5, 5)})
	require.NoError(t, err)

	_, err = New(st, testFrame, 1).Run(ctx)
	require.Error(t, err)
	assert.True(t, eris.Is(err, geo.ErrEmptyRangeSet))
}

func TestRunNoLocations(t *testing.T) {
	st := newTestStore(t)
	seedRanges(t, st)

	_, err := New(st, testFrame, 1).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no locations")
}

func TestRunFrameMismatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedRanges(t, st)

	_, err := st.SaveLocations(ctx, []model.Location{telemetry("S1", "Alpha", 0, 5, 5)})
	require.NoError(t, err)

	_, err = New(st, "EPSG:4326", 1).Run(ctx)
	require.Error(t, err)
	assert.True(t, eris.Is(err, geo.ErrFrameMismatch))
}
