package track

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/rangeshift/internal/model"
)

func classifiedFix(animal string, state model.StateLabel, pop string, at time.Time) model.ClassifiedLocation {
	return model.ClassifiedLocation{
		Location: model.Location{
			AnimalID:       animal,
			HomePopulation: "Alpha",
			RecordedAt:     at,
		},
		State:      state,
		Population: pop,
	}
}

func hours(n int) time.Time {
	return time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		states   []model.StateLabel
		expected []model.TransitionLabel
	}{
		{
			name:     "home transit other",
			states:   []model.StateLabel{model.StateHome, model.StateTransit, model.StateOther},
			expected: []model.TransitionLabel{model.TransitionUndefined, model.HomeToTransit, model.TransitToOther},
		},
		{
			name:     "single fix",
			states:   []model.StateLabel{model.StateHome},
			expected: []model.TransitionLabel{model.TransitionUndefined},
		},
		{
			name:   "ten fixes at home",
			states: repeatState(model.StateHome, 10),
			expected: append([]model.TransitionLabel{model.TransitionUndefined},
				repeatTransition(model.TransitionNoChange, 9)...),
		},
		{
			name:     "empty sequence",
			states:   nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := make([]model.ClassifiedLocation, len(tt.states))
			for i, s := range tt.states {
				seq[i] = classifiedFix("S1", s, "", hours(i))
			}

			require.NoError(t, Derive(seq))

			got := make([]model.TransitionLabel, len(seq))
			for i := range seq {
				got[i] = seq[i].Transition
			}
			if tt.expected == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func repeatState(s model.StateLabel, n int) []model.StateLabel {
	out := make([]model.StateLabel, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func repeatTransition(tr model.TransitionLabel, n int) []model.TransitionLabel {
	out := make([]model.TransitionLabel, n)
	for i := range out {
		out[i] = tr
	}
	return out
}

func TestDeriveRejectsUnsorted(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(2)),
		classifiedFix("S1", model.StateTransit, "", hours(1)),
	}
	err := Derive(seq)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnsortedSequence))
}

func TestDeriveRejectsInvalidState(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateLabel("migrating"), "", hours(0)),
	}
	err := Derive(seq)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidStateLabel))
}

func TestDeriveRejectsMixedIndividuals(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(0)),
		classifiedFix("S2", model.StateHome, "Alpha", hours(1)),
	}
	err := Derive(seq)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMixedIndividuals))
}

func TestDeriveEqualTimestampsAllowed(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(1)),
		classifiedFix("S1", model.StateHome, "Alpha", hours(1)),
	}
	require.NoError(t, Derive(seq))
	assert.Equal(t, model.TransitionNoChange, seq[1].Transition)
}

func TestSummarizeScenario(t *testing.T) {
	// home → transit → other over two days.
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(0)),
		classifiedFix("S1", model.StateTransit, "", hours(24)),
		classifiedFix("S1", model.StateOther, "Beta", hours(48)),
	}
	require.NoError(t, Derive(seq))

	s, err := Summarize("S1", seq, true)
	require.NoError(t, err)

	assert.Equal(t, "S1", s.AnimalID)
	assert.Equal(t, "Alpha", s.HomePopulation)
	assert.True(t, s.HomeKnown)
	assert.Equal(t, 2, s.Populations)
	assert.True(t, s.InTransit)
	assert.Equal(t, 3, s.PopulationsAndTransit)
	assert.Equal(t, "Alpha;Beta", s.PopulationsVisited)
	assert.Equal(t, 2, s.TotalSwitches)
	assert.Equal(t, 1, s.HomeToTransit)
	assert.Equal(t, 1, s.TransitToOther)
	assert.Equal(t, 0, s.HomeToOther+s.OtherToHome+s.OtherToTransit+s.TransitToHome)
	assert.InDelta(t, 2.0, s.TrackedDays, 1e-9)
	assert.InDelta(t, 2.0/(2.0/365.25), s.SwitchesPerYear, 1e-9)
}

func TestSummarizeInvariants(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(0)),
		classifiedFix("S1", model.StateOther, "Beta", hours(1)),
		classifiedFix("S1", model.StateHome, "Alpha", hours(2)),
		classifiedFix("S1", model.StateTransit, "", hours(3)),
		classifiedFix("S1", model.StateTransit, "", hours(4)),
		classifiedFix("S1", model.StateHome, "Alpha", hours(5)),
	}
	require.NoError(t, Derive(seq))

	s, err := Summarize("S1", seq, true)
	require.NoError(t, err)

	sum := 0
	for _, l := range model.SwitchLabels {
		sum += s.SwitchCount(l)
	}
	assert.Equal(t, s.TotalSwitches, sum)

	expected := s.Populations
	if s.InTransit {
		expected++
	}
	assert.Equal(t, expected, s.PopulationsAndTransit)
}

func TestSummarizeSinglePoint(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(0)),
	}
	require.NoError(t, Derive(seq))

	s, err := Summarize("S1", seq, true)
	require.NoError(t, err)

	assert.Equal(t, 0, s.TotalSwitches)
	assert.Equal(t, 1, s.Populations)
	assert.False(t, s.InTransit)
	assert.Zero(t, s.TrackedDays)
	assert.Zero(t, s.SwitchesPerYear)
}

func TestSummarizeAllHomeNoSwitches(t *testing.T) {
	seq := make([]model.ClassifiedLocation, 10)
	for i := range seq {
		seq[i] = classifiedFix("S1", model.StateHome, "Alpha", hours(i))
	}
	require.NoError(t, Derive(seq))

	s, err := Summarize("S1", seq, true)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalSwitches)
	assert.Zero(t, s.SwitchesPerYear)
}

func TestSummarizeEmpty(t *testing.T) {
	s, err := Summarize("S9", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "S9", s.AnimalID)
	assert.False(t, s.HomeKnown)
	assert.Zero(t, s.Populations)
}

func TestSummarizeRejectsInvalidState(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateLabel("bogus"), "", hours(0)),
	}
	_, err := Summarize("S1", seq, true)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidStateLabel))
}

func TestSortByTime(t *testing.T) {
	seq := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateOther, "Beta", hours(5)),
		classifiedFix("S1", model.StateHome, "Alpha", hours(1)),
		classifiedFix("S1", model.StateTransit, "", hours(3)),
	}
	SortByTime(seq)
	assert.Equal(t, model.StateHome, seq[0].State)
	assert.Equal(t, model.StateTransit, seq[1].State)
	assert.Equal(t, model.StateOther, seq[2].State)
	require.NoError(t, Derive(seq))
}

func TestDeriveOrderSensitivity(t *testing.T) {
	// Same fixes, different order, different transitions.
	sorted := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateHome, "Alpha", hours(0)),
		classifiedFix("S1", model.StateTransit, "", hours(1)),
		classifiedFix("S1", model.StateOther, "Beta", hours(2)),
	}
	require.NoError(t, Derive(sorted))

	reordered := []model.ClassifiedLocation{
		classifiedFix("S1", model.StateTransit, "", hours(0)),
		classifiedFix("S1", model.StateHome, "Alpha", hours(1)),
		classifiedFix("S1", model.StateOther, "Beta", hours(2)),
	}
	require.NoError(t, Derive(reordered))

	assert.NotEqual(t, sorted[1].Transition, reordered[1].Transition)
	assert.Equal(t, model.TransitToHome, reordered[1].Transition)
	assert.Equal(t, model.HomeToOther, reordered[2].Transition)
}
