package geo

import "github.com/rotisserie/eris"

// Sentinel errors surfaced by the classifier. Callers match them with
// eris.Is.
var (
	// ErrFrameMismatch means the fixes and the range set are not expressed
	// in the same projected coordinate frame. Classifying across frames
	// would silently produce wrong labels, so this is always fatal.
	ErrFrameMismatch = eris.New("geo: coordinate frame mismatch")

	// ErrDuplicatePopulation means two range polygons carry the same
	// population name. The model requires one range per population.
	ErrDuplicatePopulation = eris.New("geo: duplicate population in range set")

	// ErrEmptyRangeSet means classification was requested before any
	// range polygons were loaded.
	ErrEmptyRangeSet = eris.New("geo: empty range set")
)
