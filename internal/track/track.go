// Package track derives state transitions and per-individual summaries
// from classified, time-ordered fix sequences.
package track

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rangelab/rangeshift/internal/model"
)

// Sentinel errors. Callers match them with eris.Is.
var (
	// ErrUnsortedSequence means a fix sequence was not in ascending
	// timestamp order. Transition derivation is order-dependent, so an
	// unsorted input is rejected rather than silently mis-derived.
	ErrUnsortedSequence = eris.New("track: sequence not sorted by timestamp")

	// ErrInvalidStateLabel means a fix carried a state outside
	// {home, other, transit}. This indicates a classifier integration
	// bug, not bad data.
	ErrInvalidStateLabel = eris.New("track: invalid state label")

	// ErrMixedIndividuals means a sequence contained fixes from more
	// than one individual.
	ErrMixedIndividuals = eris.New("track: sequence spans multiple individuals")
)

const daysPerYear = 365.25

// Derive fills in the transition label of every fix in seq, in place.
// seq must belong to one individual and be sorted by timestamp ascending.
// The first fix always gets the undefined marker; every later fix gets
// no-change when its state matches its predecessor, otherwise the
// directed prev→cur switch label.
func Derive(seq []model.ClassifiedLocation) error {
	if err := checkSequence(seq); err != nil {
		return err
	}

	for i := range seq {
		if i == 0 {
			seq[i].Transition = model.TransitionUndefined
			continue
		}
		seq[i].Transition = model.TransitionBetween(seq[i-1].State, seq[i].State)
	}
	return nil
}

// Summarize builds the per-individual summary record over a derived
// sequence. homeKnown reports whether the individual's home population
// has a range polygon in the active set.
func Summarize(animalID string, seq []model.ClassifiedLocation, homeKnown bool) (*model.Summary, error) {
	if err := checkSequence(seq); err != nil {
		return nil, eris.Wrapf(err, "individual %s", animalID)
	}

	s := &model.Summary{AnimalID: animalID, HomeKnown: homeKnown}
	if len(seq) == 0 {
		return s, nil
	}

	s.HomePopulation = seq[0].HomePopulation
	s.FirstFix = seq[0].RecordedAt
	s.LastFix = seq[len(seq)-1].RecordedAt
	s.TrackedDays = s.LastFix.Sub(s.FirstFix).Hours() / 24

	visited := make(map[string]bool)
	for i, fix := range seq {
		if fix.State == model.StateTransit {
			s.InTransit = true
		} else if fix.Population != "" {
			visited[fix.Population] = true
		}

		if i > 0 && fix.Transition.IsSwitch() {
			s.TotalSwitches++
			s.AddSwitch(fix.Transition)
		}
	}

	names := make([]string, 0, len(visited))
	for name := range visited {
		names = append(names, name)
	}
	sort.Strings(names)

	s.Populations = len(visited)
	s.PopulationsAndTransit = s.Populations
	if s.InTransit {
		s.PopulationsAndTransit++
	}
	s.PopulationsVisited = strings.Join(names, ";")

	if s.TrackedDays > 0 {
		s.SwitchesPerYear = float64(s.TotalSwitches) / (s.TrackedDays / daysPerYear)
	}

	return s, nil
}

// checkSequence enforces the tracker preconditions: one individual,
// ascending timestamps, valid state labels.
func checkSequence(seq []model.ClassifiedLocation) error {
	for i := range seq {
		if !seq[i].State.Valid() {
			return eris.Wrapf(ErrInvalidStateLabel, "fix %d (animal %s) has state %q",
				i, seq[i].AnimalID, seq[i].State)
		}
		if i == 0 {
			continue
		}
		if seq[i].AnimalID != seq[0].AnimalID {
			return eris.Wrapf(ErrMixedIndividuals, "fix %d belongs to %s, sequence starts with %s",
				i, seq[i].AnimalID, seq[0].AnimalID)
		}
		if seq[i].RecordedAt.Before(seq[i-1].RecordedAt) {
			return eris.Wrapf(ErrUnsortedSequence, "fix %d (animal %s) at %s precedes fix %d at %s",
				i, seq[i].AnimalID, seq[i].RecordedAt, i-1, seq[i-1].RecordedAt)
		}
	}
	return nil
}

// SortByTime orders a sequence by timestamp ascending. Ties keep input
// order so repeated runs stay deterministic.
func SortByTime(seq []model.ClassifiedLocation) {
	sort.SliceStable(seq, func(i, j int) bool {
		return seq[i].RecordedAt.Before(seq[j].RecordedAt)
	})
}
