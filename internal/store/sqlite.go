package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rangelab/rangeshift/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS locations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	animal_id       TEXT NOT NULL,
	home_population TEXT NOT NULL,
	age_class       TEXT NOT NULL DEFAULT '',
	sex             TEXT NOT NULL DEFAULT '',
	recorded_at     DATETIME NOT NULL,
	x               REAL NOT NULL,
	y               REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS ranges (
	population TEXT PRIMARY KEY,
	frame      TEXT NOT NULL,
	area       REAL NOT NULL,
	geom       BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS classified (
	location_id     INTEGER PRIMARY KEY,
	run_id          TEXT NOT NULL,
	animal_id       TEXT NOT NULL,
	home_population TEXT NOT NULL,
	age_class       TEXT NOT NULL DEFAULT '',
	sex             TEXT NOT NULL DEFAULT '',
	recorded_at     DATETIME NOT NULL,
	x               REAL NOT NULL,
	y               REAL NOT NULL,
	state           TEXT NOT NULL,
	population      TEXT NOT NULL DEFAULT '',
	transition      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	animal_id               TEXT PRIMARY KEY,
	home_population         TEXT NOT NULL,
	home_known              INTEGER NOT NULL,
	populations             INTEGER NOT NULL,
	in_transit              INTEGER NOT NULL,
	populations_and_transit INTEGER NOT NULL,
	populations_visited     TEXT NOT NULL,
	first_fix               DATETIME NOT NULL,
	last_fix                DATETIME NOT NULL,
	tracked_days            REAL NOT NULL,
	total_switches          INTEGER NOT NULL,
	home_to_other           INTEGER NOT NULL,
	home_to_transit         INTEGER NOT NULL,
	other_to_home           INTEGER NOT NULL,
	other_to_transit        INTEGER NOT NULL,
	transit_to_home         INTEGER NOT NULL,
	transit_to_other        INTEGER NOT NULL,
	switches_per_year       REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	individuals INTEGER NOT NULL,
	locations   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locations_animal ON locations(animal_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_classified_animal ON classified(animal_id, recorded_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveLocations(ctx context.Context, locs []model.Location) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO locations (animal_id, home_population, age_class, sex, recorded_at, x, y)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert location")
	}
	defer stmt.Close() //nolint:errcheck

	for _, loc := range locs {
		if _, err := stmt.ExecContext(ctx,
			loc.AnimalID, loc.HomePopulation, loc.AgeClass, loc.Sex,
			loc.RecordedAt.UTC(), loc.X, loc.Y,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert location for %s", loc.AnimalID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit locations")
	}
	return len(locs), nil
}

func (s *SQLiteStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, animal_id, home_population, age_class, sex, recorded_at, x, y
		 FROM locations ORDER BY animal_id, recorded_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	defer rows.Close() //nolint:errcheck

	var locs []model.Location
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.AnimalID, &loc.HomePopulation,
			&loc.AgeClass, &loc.Sex, &loc.RecordedAt, &loc.X, &loc.Y); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		locs = append(locs, loc)
	}
	return locs, eris.Wrap(rows.Err(), "sqlite: iterate locations")
}

func (s *SQLiteStore) ReplaceRanges(ctx context.Context, ranges []model.RangePolygon) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM ranges`); err != nil {
		return eris.Wrap(err, "sqlite: clear ranges")
	}
	for _, r := range ranges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ranges (population, frame, area, geom) VALUES (?, ?, ?, ?)`,
			r.Population, r.Frame, r.Area, r.Geom,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert range %s", r.Population)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit ranges")
}

func (s *SQLiteStore) ListRanges(ctx context.Context) ([]model.RangePolygon, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT population, frame, area, geom FROM ranges ORDER BY population`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ranges")
	}
	defer rows.Close() //nolint:errcheck

	var ranges []model.RangePolygon
	for rows.Next() {
		var r model.RangePolygon
		if err := rows.Scan(&r.Population, &r.Frame, &r.Area, &r.Geom); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan range")
		}
		ranges = append(ranges, r)
	}
	return ranges, eris.Wrap(rows.Err(), "sqlite: iterate ranges")
}

func (s *SQLiteStore) ReplaceClassified(ctx context.Context, runID string, fixes []model.ClassifiedLocation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM classified`); err != nil {
		return eris.Wrap(err, "sqlite: clear classified")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO classified (location_id, run_id, animal_id, home_population, age_class, sex,
		                         recorded_at, x, y, state, population, transition)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert classified")
	}
	defer stmt.Close() //nolint:errcheck

	for _, fix := range fixes {
		if _, err := stmt.ExecContext(ctx,
			fix.ID, runID, fix.AnimalID, fix.HomePopulation, fix.AgeClass, fix.Sex,
			fix.RecordedAt.UTC(), fix.X, fix.Y,
			string(fix.State), fix.Population, string(fix.Transition),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert classified fix %d", fix.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit classified")
}

const classifiedColumns = `location_id, animal_id, home_population, age_class, sex,
	recorded_at, x, y, state, population, transition`

func (s *SQLiteStore) ListClassified(ctx context.Context) ([]model.ClassifiedLocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+classifiedColumns+` FROM classified ORDER BY animal_id, recorded_at, location_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list classified")
	}
	return scanClassified(rows)
}

func (s *SQLiteStore) ListClassifiedByAnimal(ctx context.Context, animalID string) ([]model.ClassifiedLocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+classifiedColumns+` FROM classified WHERE animal_id = ? ORDER BY recorded_at, location_id`,
		animalID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list classified for %s", animalID)
	}
	return scanClassified(rows)
}

func scanClassified(rows *sql.Rows) ([]model.ClassifiedLocation, error) {
	defer rows.Close() //nolint:errcheck

	var fixes []model.ClassifiedLocation
	for rows.Next() {
		var fix model.ClassifiedLocation
		var state, transition string
		if err := rows.Scan(&fix.ID, &fix.AnimalID, &fix.HomePopulation,
			&fix.AgeClass, &fix.Sex, &fix.RecordedAt, &fix.X, &fix.Y,
			&state, &fix.Population, &transition); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classified")
		}
		fix.State = model.StateLabel(state)
		fix.Transition = model.TransitionLabel(transition)
		fixes = append(fixes, fix)
	}
	return fixes, eris.Wrap(rows.Err(), "sqlite: iterate classified")
}

func (s *SQLiteStore) ReplaceSummaries(ctx context.Context, summaries []model.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries`); err != nil {
		return eris.Wrap(err, "sqlite: clear summaries")
	}
	for _, sum := range summaries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summaries (animal_id, home_population, home_known, populations, in_transit,
			                        populations_and_transit, populations_visited, first_fix, last_fix,
			                        tracked_days, total_switches, home_to_other, home_to_transit,
			                        other_to_home, other_to_transit, transit_to_home, transit_to_other,
			                        switches_per_year)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.AnimalID, sum.HomePopulation, sum.HomeKnown, sum.Populations, sum.InTransit,
			sum.PopulationsAndTransit, sum.PopulationsVisited, sum.FirstFix.UTC(), sum.LastFix.UTC(),
			sum.TrackedDays, sum.TotalSwitches, sum.HomeToOther, sum.HomeToTransit,
			sum.OtherToHome, sum.OtherToTransit, sum.TransitToHome, sum.TransitToOther,
			sum.SwitchesPerYear,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert summary for %s", sum.AnimalID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit summaries")
}

func (s *SQLiteStore) ListSummaries(ctx context.Context) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT animal_id, home_population, home_known, populations, in_transit,
		        populations_and_transit, populations_visited, first_fix, last_fix,
		        tracked_days, total_switches, home_to_other, home_to_transit,
		        other_to_home, other_to_transit, transit_to_home, transit_to_other,
		        switches_per_year
		 FROM summaries ORDER BY animal_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list summaries")
	}
	defer rows.Close() //nolint:errcheck

	var summaries []model.Summary
	for rows.Next() {
		var sum model.Summary
		if err := rows.Scan(&sum.AnimalID, &sum.HomePopulation, &sum.HomeKnown,
			&sum.Populations, &sum.InTransit, &sum.PopulationsAndTransit,
			&sum.PopulationsVisited, &sum.FirstFix, &sum.LastFix,
			&sum.TrackedDays, &sum.TotalSwitches, &sum.HomeToOther, &sum.HomeToTransit,
			&sum.OtherToHome, &sum.OtherToTransit, &sum.TransitToHome, &sum.TransitToOther,
			&sum.SwitchesPerYear); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary")
		}
		summaries = append(summaries, sum)
	}
	return summaries, eris.Wrap(rows.Err(), "sqlite: iterate summaries")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, individuals, locations) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Individuals, run.Locations)
	return eris.Wrap(err, "sqlite: record run")
}

func (s *SQLiteStore) LastRun(ctx context.Context) (*model.Run, error) {
	var run model.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, individuals, locations
		 FROM runs ORDER BY finished_at DESC LIMIT 1`).
		Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Individuals, &run.Locations)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last run")
	}
	return &run, nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
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
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dest); err != nil {
			return c, eris.Wrapf(err, "sqlite: count %s", q.table)
		}
	}
	return c, nil
}
