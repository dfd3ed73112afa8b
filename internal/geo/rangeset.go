// Package geo classifies GPS fixes against a set of population range
// polygons. A fix is "home" inside its own population's range, "other"
// inside any other population's range, and "transit" inside none.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"

	"github.com/rangelab/rangeshift/internal/model"
)

// Range is one population's delineated range polygon.
type Range struct {
	Population string
	Geom       *geom.MultiPolygon
	Area       float64 // planar area in frame units squared
}

// RangeSet is an immutable collection of non-overlapping range polygons
// in a single projected coordinate frame. It is safe to share across
// goroutines once built.
type RangeSet struct {
	frame  string
	ranges []Range
	byPop  map[string]int
}

// NewRangeSet builds a RangeSet from loaded ranges. Population names must
// be unique within the set.
func NewRangeSet(frame string, ranges []Range) (*RangeSet, error) {
	rs := &RangeSet{
		frame:  frame,
		ranges: ranges,
		byPop:  make(map[string]int, len(ranges)),
	}
	for i, r := range ranges {
		if _, dup := rs.byPop[r.Population]; dup {
			return nil, eris.Wrapf(ErrDuplicatePopulation, "population %q", r.Population)
		}
		rs.byPop[r.Population] = i
	}
	return rs, nil
}

// Frame returns the coordinate frame code the ranges are expressed in.
func (rs *RangeSet) Frame() string { return rs.frame }

// Len returns the number of ranges in the set.
func (rs *RangeSet) Len() int { return len(rs.ranges) }

// Ranges returns the ranges in load order.
func (rs *RangeSet) Ranges() []Range { return rs.ranges }

// HasPopulation reports whether the set holds a range for the named
// population. Individuals whose home population is absent can never be
// classified "home".
func (rs *RangeSet) HasPopulation(name string) bool {
	_, ok := rs.byPop[name]
	return ok
}

// Classify assigns the state label for a single fix and returns the
// containing population name ("" for transit). Boundary points count as
// contained. If overlapping ranges both contain the fix, the smallest
// range wins; the model treats overlap as a data defect, so it is logged.
func (rs *RangeSet) Classify(loc model.Location) (model.StateLabel, string) {
	best := -1
	matches := 0
	for i := range rs.ranges {
		if !containsPoint(rs.ranges[i].Geom, geom.Coord{loc.X, loc.Y}) {
			continue
		}
		matches++
		if best < 0 || rs.ranges[i].Area < rs.ranges[best].Area {
			best = i
		}
	}
	if best < 0 {
		return model.StateTransit, ""
	}
	if matches > 1 {
		zap.L().Warn("geo: fix contained by overlapping ranges, smallest wins",
			zap.String("animal_id", loc.AnimalID),
			zap.Int("matches", matches),
			zap.String("population", rs.ranges[best].Population),
		)
	}
	pop := rs.ranges[best].Population
	if pop == loc.HomePopulation {
		return model.StateHome, pop
	}
	return model.StateOther, pop
}

// ClassifyAll labels every fix in locs, which must be expressed in frame.
// The output preserves input order and leaves transition labels unset.
func (rs *RangeSet) ClassifyAll(frame string, locs []model.Location) ([]model.ClassifiedLocation, error) {
	if rs.Len() == 0 {
		return nil, ErrEmptyRangeSet
	}
	if frame != rs.frame {
		return nil, eris.Wrapf(ErrFrameMismatch, "fixes in %q, ranges in %q", frame, rs.frame)
	}

	out := make([]model.ClassifiedLocation, len(locs))
	for i, loc := range locs {
		state, pop := rs.Classify(loc)
		out[i] = model.ClassifiedLocation{
			Location:   loc,
			State:      state,
			Population: pop,
		}
	}
	return out, nil
}

// containsPoint tests inclusive point-in-polygon containment against a
// multipolygon. A point inside a hole is outside; a point on any ring
// edge, hole edges included, is inside.
func containsPoint(mp *geom.MultiPolygon, c geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}

		switch xy.LocatePointInRing(geom.XY, c, poly.LinearRing(0).FlatCoords()) {
		case location.Exterior:
			continue
		case location.Boundary:
			return true
		}

		inHole := false
		for j := 1; j < poly.NumLinearRings(); j++ {
			if xy.LocatePointInRing(geom.XY, c, poly.LinearRing(j).FlatCoords()) == location.Interior {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// ringArea returns the unsigned shoelace area of a closed XY ring.
func ringArea(flat []float64) float64 {
	return math.Abs(signedRingArea(flat))
}

// signedRingArea is positive for counter-clockwise rings.
func signedRingArea(flat []float64) float64 {
	n := len(flat) / 2
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		x1, y1 := flat[2*i], flat[2*i+1]
		j := (i + 1) % n
		x2, y2 := flat[2*j], flat[2*j+1]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}

// multiPolygonArea returns the planar area of mp, holes subtracted.
func multiPolygonArea(mp *geom.MultiPolygon) float64 {
	var area float64
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			a := ringArea(poly.LinearRing(j).FlatCoords())
			if j == 0 {
				area += a
			} else {
				area -= a
			}
		}
	}
	return area
}
