package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rangelab/rangeshift/internal/db"
	"github.com/rangelab/rangeshift/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests use this with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS locations (
	id              BIGSERIAL PRIMARY KEY,
	animal_id       TEXT NOT NULL,
	home_population TEXT NOT NULL,
	age_class       TEXT NOT NULL DEFAULT '',
	sex             TEXT NOT NULL DEFAULT '',
	recorded_at     TIMESTAMPTZ NOT NULL,
	x               DOUBLE PRECISION NOT NULL,
	y               DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS ranges (
	population TEXT PRIMARY KEY,
	frame      TEXT NOT NULL,
	area       DOUBLE PRECISION NOT NULL,
	geom       BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS classified (
	location_id     BIGINT PRIMARY KEY,
	run_id          TEXT NOT NULL,
	animal_id       TEXT NOT NULL,
	home_population TEXT NOT NULL,
	age_class       TEXT NOT NULL DEFAULT '',
	sex             TEXT NOT NULL DEFAULT '',
	recorded_at     TIMESTAMPTZ NOT NULL,
	x               DOUBLE PRECISION NOT NULL,
	y               DOUBLE PRECISION NOT NULL,
	state           TEXT NOT NULL,
	population      TEXT NOT NULL DEFAULT '',
	transition      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	animal_id               TEXT PRIMARY KEY,
	home_population         TEXT NOT NULL,
	home_known              BOOLEAN NOT NULL,
	populations             INT NOT NULL,
	in_transit              BOOLEAN NOT NULL,
	populations_and_transit INT NOT NULL,
	populations_visited     TEXT NOT NULL,
	first_fix               TIMESTAMPTZ NOT NULL,
	last_fix                TIMESTAMPTZ NOT NULL,
	tracked_days            DOUBLE PRECISION NOT NULL,
	total_switches          INT NOT NULL,
	home_to_other           INT NOT NULL,
	home_to_transit         INT NOT NULL,
	other_to_home           INT NOT NULL,
	other_to_transit        INT NOT NULL,
	transit_to_home         INT NOT NULL,
	transit_to_other        INT NOT NULL,
	switches_per_year       DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	individuals INT NOT NULL,
	locations   INT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locations_animal ON locations(animal_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_classified_animal ON classified(animal_id, recorded_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var locationColumns = []string{"animal_id", "home_population", "age_class", "sex", "recorded_at", "x", "y"}

func (s *PostgresStore) SaveLocations(ctx context.Context, locs []model.Location) (int, error) {
	rows := make([][]any, len(locs))
	for i, loc := range locs {
		rows[i] = []any{loc.AnimalID, loc.HomePopulation, loc.AgeClass, loc.Sex,
			loc.RecordedAt.UTC(), loc.X, loc.Y}
	}
	n, err := db.CopyFrom(ctx, s.pool, "locations", locationColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy locations")
	}
	return int(n), nil
}

func (s *PostgresStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, animal_id, home_population, age_class, sex, recorded_at, x, y
		 FROM locations ORDER BY animal_id, recorded_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	defer rows.Close()

	var locs []model.Location
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.AnimalID, &loc.HomePopulation,
			&loc.AgeClass, &loc.Sex, &loc.RecordedAt, &loc.X, &loc.Y); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		locs = append(locs, loc)
	}
	return locs, eris.Wrap(rows.Err(), "postgres: iterate locations")
}

func (s *PostgresStore) ReplaceRanges(ctx context.Context, ranges []model.RangePolygon) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM ranges`); err != nil {
		return eris.Wrap(err, "postgres: clear ranges")
	}
	for _, r := range ranges {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO ranges (population, frame, area, geom) VALUES ($1, $2, $3, $4)`,
			r.Population, r.Frame, r.Area, r.Geom,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert range %s", r.Population)
		}
	}
	return nil
}

func (s *PostgresStore) ListRanges(ctx context.Context) ([]model.RangePolygon, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT population, frame, area, geom FROM ranges ORDER BY population`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ranges")
	}
	defer rows.Close()

	var ranges []model.RangePolygon
	for rows.Next() {
		var r model.RangePolygon
		if err := rows.Scan(&r.Population, &r.Frame, &r.Area, &r.Geom); err != nil {
			return nil, eris.Wrap(err, "postgres: scan range")
		}
		ranges = append(ranges, r)
	}
	return ranges, eris.Wrap(rows.Err(), "postgres: iterate ranges")
}

func (s *PostgresStore) ReplaceClassified(ctx context.Context, runID string, fixes []model.ClassifiedLocation) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM classified`); err != nil {
		return eris.Wrap(err, "postgres: clear classified")
	}

	columns := []string{"location_id", "run_id", "animal_id", "home_population", "age_class", "sex",
		"recorded_at", "x", "y", "state", "population", "transition"}
	rows := make([][]any, len(fixes))
	for i, fix := range fixes {
		rows[i] = []any{fix.ID, runID, fix.AnimalID, fix.HomePopulation, fix.AgeClass, fix.Sex,
			fix.RecordedAt.UTC(), fix.X, fix.Y, string(fix.State), fix.Population, string(fix.Transition)}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "classified", columns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy classified")
	}
	return nil
}

const pgClassifiedColumns = `location_id, animal_id, home_population, age_class, sex,
	recorded_at, x, y, state, population, transition`

func (s *PostgresStore) ListClassified(ctx context.Context) ([]model.ClassifiedLocation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgClassifiedColumns+` FROM classified ORDER BY animal_id, recorded_at, location_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list classified")
	}
	return scanPgClassified(rows)
}

func (s *PostgresStore) ListClassifiedByAnimal(ctx context.Context, animalID string) ([]model.ClassifiedLocation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgClassifiedColumns+` FROM classified WHERE animal_id = $1 ORDER BY recorded_at, location_id`,
		animalID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list classified for %s", animalID)
	}
	return scanPgClassified(rows)
}

func scanPgClassified(rows pgx.Rows) ([]model.ClassifiedLocation, error) {
	defer rows.Close()

	var fixes []model.ClassifiedLocation
	for rows.Next() {
		var fix model.ClassifiedLocation
		var state, transition string
		if err := rows.Scan(&fix.ID, &fix.AnimalID, &fix.HomePopulation,
			&fix.AgeClass, &fix.Sex, &fix.RecordedAt, &fix.X, &fix.Y,
			&state, &fix.Population, &transition); err != nil {
			return nil, eris.Wrap(err, "postgres: scan classified")
		}
		fix.State = model.StateLabel(state)
		fix.Transition = model.TransitionLabel(transition)
		fixes = append(fixes, fix)
	}
	return fixes, eris.Wrap(rows.Err(), "postgres: iterate classified")
}

func (s *PostgresStore) ReplaceSummaries(ctx context.Context, summaries []model.Summary) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM summaries`); err != nil {
		return eris.Wrap(err, "postgres: clear summaries")
	}
	for _, sum := range summaries {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO summaries (animal_id, home_population, home_known, populations, in_transit,
			                        populations_and_transit, populations_visited, first_fix, last_fix,
			                        tracked_days, total_switches, home_to_other, home_to_transit,
			                        other_to_home, other_to_transit, transit_to_home, transit_to_other,
			                        switches_per_year)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			sum.AnimalID, sum.HomePopulation, sum.HomeKnown, sum.Populations, sum.InTransit,
			sum.PopulationsAndTransit, sum.PopulationsVisited, sum.FirstFix.UTC(), sum.LastFix.UTC(),
			sum.TrackedDays, sum.TotalSwitches, sum.HomeToOther, sum.HomeToTransit,
			sum.OtherToHome, sum.OtherToTransit, sum.TransitToHome, sum.TransitToOther,
			sum.SwitchesPerYear,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert summary for %s", sum.AnimalID)
		}
	}
	return nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context) ([]model.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT animal_id, home_population, home_known, populations, in_transit,
		        populations_and_transit, populations_visited, first_fix, last_fix,
		        tracked_days, total_switches, home_to_other, home_to_transit,
		        other_to_home, other_to_transit, transit_to_home, transit_to_other,
		        switches_per_year
		 FROM summaries ORDER BY animal_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list summaries")
	}
	defer rows.Close()

	var summaries []model.Summary
	for rows.Next() {
		var sum model.Summary
		if err := rows.Scan(&sum.AnimalID, &sum.HomePopulation, &sum.HomeKnown,
			&sum.Populations, &sum.InTransit, &sum.PopulationsAndTransit,
			&sum.PopulationsVisited, &sum.FirstFix, &sum.LastFix,
			&sum.TrackedDays, &sum.TotalSwitches, &sum.HomeToOther, &sum.HomeToTransit,
			&sum.OtherToHome, &sum.OtherToTransit, &sum.TransitToHome, &sum.TransitToOther,
			&sum.SwitchesPerYear); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary")
		}
		summaries = append(summaries, sum)
	}
	return summaries, eris.Wrap(rows.Err(), "postgres: iterate summaries")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at, finished_at, individuals, locations) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Individuals, run.Locations)
	return eris.Wrap(err, "postgres: record run")
}

func (s *PostgresStore) LastRun(ctx context.Context) (*model.Run, error) {
	var run model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, started_at, finished_at, individuals, locations
		 FROM runs ORDER BY finished_at DESC LIMIT 1`).
		Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Individuals, &run.Locations)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: last run")
	}
	return &run, nil
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dest  *int
	}{
		{"locations", &c.Locations},
		{"ranges", &c.Ranges},
		{"classified", &c.Classified},
		{"summaries", &c.Summaries},
	} {
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dest); err != nil {
			return c, eris.Wrapf(err, "postgres: count %s", q.table)
		}
	}
	return c, nil
}
