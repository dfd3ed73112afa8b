// Package model defines the typed records shared across the rangeshift pipeline.
package model

import (
	"time"
)

// StateLabel classifies a single GPS fix relative to the loaded range set.
type StateLabel string

// State labels. Exactly one applies to every classified fix.
const (
	StateHome    StateLabel = "home"    // inside the individual's own population range
	StateOther   StateLabel = "other"   // inside some other population's range
	StateTransit StateLabel = "transit" // inside no known range
)

// Valid reports whether s is one of the three defined state labels.
func (s StateLabel) Valid() bool {
	switch s {
	case StateHome, StateOther, StateTransit:
		return true
	}
	return false
}

// TransitionLabel describes the state change between two temporally
// adjacent fixes of the same individual.
type TransitionLabel string

// Transition labels. The first fix of every individual carries
// TransitionUndefined; fixes whose state matches their predecessor carry
// TransitionNoChange; the remaining six cover every directed state switch.
const (
	TransitionUndefined TransitionLabel = "undefined"
	TransitionNoChange  TransitionLabel = "no-change"

	HomeToOther    TransitionLabel = "home-to-other"
	HomeToTransit  TransitionLabel = "home-to-transit"
	OtherToHome    TransitionLabel = "other-to-home"
	OtherToTransit TransitionLabel = "other-to-transit"
	TransitToHome  TransitionLabel = "transit-to-home"
	TransitToOther TransitionLabel = "transit-to-other"
)

// SwitchLabels lists the six directed transitions in a stable order.
var SwitchLabels = []TransitionLabel{
	HomeToOther, HomeToTransit,
	OtherToHome, OtherToTransit,
	TransitToHome, TransitToOther,
}

// IsSwitch reports whether t is one of the six directed state switches.
func (t TransitionLabel) IsSwitch() bool {
	switch t {
	case HomeToOther, HomeToTransit, OtherToHome, OtherToTransit, TransitToHome, TransitToOther:
		return true
	}
	return false
}

// TransitionBetween returns the transition label for a prev→cur state pair.
func TransitionBetween(prev, cur StateLabel) TransitionLabel {
	if prev == cur {
		return TransitionNoChange
	}
	return TransitionLabel(string(prev) + "-to-" + string(cur))
}

// Location is a single ingested GPS fix. Coordinates are planar (easting/
// northing) in the projected frame recorded on the dataset; all fixes in
// one classification pass share that frame.
type Location struct {
	ID             int64     `json:"id"`
	AnimalID       string    `json:"animal_id"`
	HomePopulation string    `json:"home_population"`
	AgeClass       string    `json:"age_class"`
	Sex            string    `json:"sex"`
	RecordedAt     time.Time `json:"recorded_at"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
}

// ClassifiedLocation is a Location with its derived state and transition
// labels. Population is the containing range's population name, empty for
// transit fixes.
type ClassifiedLocation struct {
	Location
	State      StateLabel      `json:"state"`
	Population string          `json:"population,omitempty"`
	Transition TransitionLabel `json:"transition"`
}

// RangePolygon is a persisted population range: EWKB geometry plus the
// projected frame it is expressed in and its planar area (used as the
// overlap tie-break).
type RangePolygon struct {
	Population string  `json:"population"`
	Frame      string  `json:"frame"`
	Area       float64 `json:"area"`
	Geom       []byte  `json:"-"`
}

// Summary is the per-individual rollup over a classified, time-ordered
// fix sequence.
type Summary struct {
	AnimalID              string    `json:"animal_id"`
	HomePopulation        string    `json:"home_population"`
	HomeKnown             bool      `json:"home_known"` // home population has a range polygon
	Populations           int       `json:"populations"`
	InTransit             bool      `json:"in_transit"`
	PopulationsAndTransit int       `json:"populations_and_transit"`
	PopulationsVisited    string    `json:"populations_visited"` // semicolon-joined
	FirstFix              time.Time `json:"first_fix"`
	LastFix               time.Time `json:"last_fix"`
	TrackedDays           float64   `json:"tracked_days"`
	TotalSwitches         int       `json:"total_switches"`
	HomeToOther           int       `json:"home_to_other"`
	HomeToTransit         int       `json:"home_to_transit"`
	OtherToHome           int       `json:"other_to_home"`
	OtherToTransit        int       `json:"other_to_transit"`
	TransitToHome         int       `json:"transit_to_home"`
	TransitToOther        int       `json:"transit_to_other"`
	SwitchesPerYear       float64   `json:"switches_per_year"`
}

// SwitchCount returns the summary's count for one directed transition.
func (s *Summary) SwitchCount(t TransitionLabel) int {
	switch t {
	case HomeToOther:
		return s.HomeToOther
	case HomeToTransit:
		return s.HomeToTransit
	case OtherToHome:
		return s.OtherToHome
	case OtherToTransit:
		return s.OtherToTransit
	case TransitToHome:
		return s.TransitToHome
	case TransitToOther:
		return s.TransitToOther
	}
	return 0
}

// AddSwitch increments the summary's count for one directed transition.
func (s *Summary) AddSwitch(t TransitionLabel) {
	switch t {
	case HomeToOther:
		s.HomeToOther++
	case HomeToTransit:
		s.HomeToTransit++
	case OtherToHome:
		s.OtherToHome++
	case OtherToTransit:
		s.OtherToTransit++
	case TransitToHome:
		s.TransitToHome++
	case TransitToOther:
		s.TransitToOther++
	}
}

// Run records one classification pass over the dataset.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Individuals int       `json:"individuals"`
	Locations   int       `json:"locations"`
}
