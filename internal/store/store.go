// Package store persists telemetry, ranges, classification output, and
// summaries behind a backend-neutral interface.
package store

import (
	"context"

	"github.com/rangelab/rangeshift/internal/model"
)

// Counts reports table sizes for the status command.
type Counts struct {
	Locations  int `json:"locations"`
	Ranges     int `json:"ranges"`
	Classified int `json:"classified"`
	Summaries  int `json:"summaries"`
}

// Store defines the persistence interface for the classification
// pipeline. Both backends (sqlite, postgres) implement it.
type Store interface {
	// Telemetry
	SaveLocations(ctx context.Context, locs []model.Location) (int, error)
	ListLocations(ctx context.Context) ([]model.Location, error)

	// Ranges
	ReplaceRanges(ctx context.Context, ranges []model.RangePolygon) error
	ListRanges(ctx context.Context) ([]model.RangePolygon, error)

	// Classification output. Replace semantics: a re-run supersedes the
	// previous labels wholesale so results stay idempotent.
	ReplaceClassified(ctx context.Context, runID string, fixes []model.ClassifiedLocation) error
	ListClassified(ctx context.Context) ([]model.ClassifiedLocation, error)
	ListClassifiedByAnimal(ctx context.Context, animalID string) ([]model.ClassifiedLocation, error)

	// Summaries
	ReplaceSummaries(ctx context.Context, summaries []model.Summary) error
	ListSummaries(ctx context.Context) ([]model.Summary, error)

	// Runs
	RecordRun(ctx context.Context, run model.Run) error
	LastRun(ctx context.Context) (*model.Run, error)

	// Status
	Counts(ctx context.Context) (Counts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
