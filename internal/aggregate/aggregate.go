// Package aggregate builds grouped state and transition tables over the
// classified dataset.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rangelab/rangeshift/internal/model"
)

// Covariate selects the grouping key for a report.
type Covariate string

// Supported grouping covariates.
const (
	ByAge        Covariate = "age"
	BySex        Covariate = "sex"
	ByAgeSex     Covariate = "age-sex"
	ByPopulation Covariate = "population"
)

// GroupStats holds the per-group reduction: point counts and percentages
// per state label, and transition counts and percentages per transition
// label. Undefined markers count toward Points but are excluded from the
// transition percentage denominator.
type GroupStats struct {
	Group              string                            `json:"group"`
	Points             int                               `json:"points"`
	StateCounts        map[model.StateLabel]int          `json:"state_counts"`
	StatePercents      map[model.StateLabel]float64      `json:"state_percents"`
	TransitionCounts   map[model.TransitionLabel]int     `json:"transition_counts"`
	TransitionPercents map[model.TransitionLabel]float64 `json:"transition_percents"`
}

// keyFunc returns the grouping key extractor for a covariate.
func keyFunc(c Covariate) (func(model.ClassifiedLocation) string, error) {
	switch c {
	case ByAge:
		return func(f model.ClassifiedLocation) string { return f.AgeClass }, nil
	case BySex:
		return func(f model.ClassifiedLocation) string { return f.Sex }, nil
	case ByAgeSex:
		return func(f model.ClassifiedLocation) string { return f.AgeClass + "/" + f.Sex }, nil
	case ByPopulation:
		return func(f model.ClassifiedLocation) string { return f.HomePopulation }, nil
	}
	return nil, eris.Errorf("aggregate: unknown covariate %q", c)
}

// Covariates lists the supported grouping covariates.
func Covariates() []Covariate {
	return []Covariate{ByAge, BySex, ByAgeSex, ByPopulation}
}

// Group reduces classified fixes into per-group stats for the chosen
// covariate. Percentages are computed against each group's own totals,
// never the global ones. Groups are returned in key order.
func Group(fixes []model.ClassifiedLocation, c Covariate) ([]GroupStats, error) {
	key, err := keyFunc(c)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*GroupStats)
	for _, fix := range fixes {
		k := key(fix)
		g, ok := byKey[k]
		if !ok {
			g = &GroupStats{
				Group:              k,
				StateCounts:        make(map[model.StateLabel]int),
				StatePercents:      make(map[model.StateLabel]float64),
				TransitionCounts:   make(map[model.TransitionLabel]int),
				TransitionPercents: make(map[model.TransitionLabel]float64),
			}
			byKey[k] = g
		}
		g.Points++
		g.StateCounts[fix.State]++
		g.TransitionCounts[fix.Transition]++
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		g := byKey[k]
		for state, n := range g.StateCounts {
			g.StatePercents[state] = 100 * float64(n) / float64(g.Points)
		}
		defined := g.Points - g.TransitionCounts[model.TransitionUndefined]
		if defined > 0 {
			for tr, n := range g.TransitionCounts {
				if tr == model.TransitionUndefined {
					continue
				}
				g.TransitionPercents[tr] = 100 * float64(n) / float64(defined)
			}
		}
		out = append(out, *g)
	}
	return out, nil
}
