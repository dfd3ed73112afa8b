// Package pipeline runs the end-to-end classification pass: build the
// range set, classify every fix, derive transitions, summarize, persist.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rangelab/rangeshift/internal/geo"
	"github.com/rangelab/rangeshift/internal/model"
	"github.com/rangelab/rangeshift/internal/store"
	"github.com/rangelab/rangeshift/internal/track"
)

// Pipeline classifies the stored telemetry against the stored range set.
type Pipeline struct {
	store       store.Store
	locFrame    string
	concurrency int
	log         *zap.Logger
}

// Result is the output of one classification pass.
type Result struct {
	Run       model.Run
	Summaries []model.Summary
}

// New builds a pipeline. locFrame is the coordinate frame code the stored
// telemetry is expressed in; it must match the loaded range set.
func New(st store.Store, locFrame string, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pipeline{
		store:       st,
		locFrame:    locFrame,
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run executes the pass. Individuals are processed independently in
// parallel; the range set is shared read-only.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()

	rs, err := p.loadRangeSet(ctx)
	if err != nil {
		return nil, err
	}

	locs, err := p.store.ListLocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list locations")
	}
	if len(locs) == 0 {
		return nil, eris.New("pipeline: no locations imported")
	}

	byAnimal := make(map[string][]model.Location)
	for _, loc := range locs {
		byAnimal[loc.AnimalID] = append(byAnimal[loc.AnimalID], loc)
	}
	animals := make([]string, 0, len(byAnimal))
	for id := range byAnimal {
		animals = append(animals, id)
	}
	sort.Strings(animals)

	classified := make([][]model.ClassifiedLocation, len(animals))
	summaries := make([]model.Summary, len(animals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, animalID := range animals {
		g.Go(func() error {
			seq, sum, err := p.processIndividual(gctx, rs, animalID, byAnimal[animalID])
			if err != nil {
				return err
			}
			classified[i] = seq
			summaries[i] = *sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.ClassifiedLocation
	for _, seq := range classified {
		all = append(all, seq...)
	}

	run := model.Run{
		ID:          uuid.New().String(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Individuals: len(animals),
		Locations:   len(all),
	}

	if err := p.store.ReplaceClassified(ctx, run.ID, all); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist classified")
	}
	if err := p.store.ReplaceSummaries(ctx, summaries); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist summaries")
	}
	if err := p.store.RecordRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: record run")
	}

	p.log.Info("classification pass complete",
		zap.String("run_id", run.ID),
		zap.Int("individuals", run.Individuals),
		zap.Int("locations", run.Locations),
	)
	return &Result{Run: run, Summaries: summaries}, nil
}

// processIndividual sorts, classifies, derives, and summarizes one
// individual's fixes.
func (p *Pipeline) processIndividual(_ context.Context, rs *geo.RangeSet, animalID string, locs []model.Location) ([]model.ClassifiedLocation, *model.Summary, error) {
	sort.SliceStable(locs, func(a, b int) bool {
		return locs[a].RecordedAt.Before(locs[b].RecordedAt)
	})

	homeKnown := rs.HasPopulation(locs[0].HomePopulation)
	if !homeKnown {
		p.log.Warn("home population has no range polygon, individual can never be home",
			zap.String("animal_id", animalID),
			zap.String("home_population", locs[0].HomePopulation),
		)
	}

	seq, err := rs.ClassifyAll(p.locFrame, locs)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: classify %s", animalID)
	}
	if err := track.Derive(seq); err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: derive transitions for %s", animalID)
	}
	sum, err := track.Summarize(animalID, seq, homeKnown)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: summarize %s", animalID)
	}
	return seq, sum, nil
}

// loadRangeSet rebuilds the in-memory range set from persisted EWKB.
func (p *Pipeline) loadRangeSet(ctx context.Context) (*geo.RangeSet, error) {
	records, err := p.store.ListRanges(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list ranges")
	}
	if len(records) == 0 {
		return nil, eris.Wrap(geo.ErrEmptyRangeSet, "pipeline: load ranges")
	}

	frame := records[0].Frame
	ranges := make([]geo.Range, 0, len(records))
	for _, rec := range records {
		if rec.Frame != frame {
			return nil, eris.Wrapf(geo.ErrFrameMismatch, "range %q in %q, expected %q",
				rec.Population, rec.Frame, frame)
		}
		mp, err := geo.DecodeGeom(rec.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: decode range %q", rec.Population)
		}
		ranges = append(ranges, geo.Range{Population: rec.Population, Geom: mp, Area: rec.Area})
	}
	return geo.NewRangeSet(frame, ranges)
}
