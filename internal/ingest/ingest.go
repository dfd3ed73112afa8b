// Package ingest parses telemetry exports (CSV, XLSX) into typed location
// records and applies the population-name correction table.
package ingest

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/rangelab/rangeshift/internal/model"
)

// Columns maps the logical location fields to source column headers.
type Columns struct {
	AnimalID   string `yaml:"animal_id" mapstructure:"animal_id"`
	Population string `yaml:"population" mapstructure:"population"`
	AgeClass   string `yaml:"age_class" mapstructure:"age_class"`
	Sex        string `yaml:"sex" mapstructure:"sex"`
	Timestamp  string `yaml:"timestamp" mapstructure:"timestamp"`
	X          string `yaml:"x" mapstructure:"x"`
	Y          string `yaml:"y" mapstructure:"y"`
}

// DefaultColumns matches the usual collar-export headers.
func DefaultColumns() Columns {
	return Columns{
		AnimalID:   "animal_id",
		Population: "population",
		AgeClass:   "age_class",
		Sex:        "sex",
		Timestamp:  "timestamp",
		X:          "utm_e",
		Y:          "utm_n",
	}
}

// Options configures telemetry parsing.
type Options struct {
	Columns         Columns
	TimestampLayout string // defaults to "2006-01-02 15:04:05"
	Fixer           *NameFixer
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.TimestampLayout == "" {
		opts.TimestampLayout = "2006-01-02 15:04:05"
	}
	if opts.Columns == (Columns{}) {
		opts.Columns = DefaultColumns()
	}
	if opts.Fixer == nil {
		opts.Fixer = NewNameFixer(nil)
	}
	return opts
}

// ReadCSV parses telemetry rows from a CSV stream. The first row must be
// a header containing the configured column names.
func ReadCSV(r io.Reader, opts Options) ([]model.Location, error) {
	o := opts.withDefaults()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read CSV header")
	}
	idx, err := headerIndex(header, o.Columns)
	if err != nil {
		return nil, err
	}

	var locs []model.Location
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read CSV line %d", line+1)
		}
		line++

		loc, err := parseRow(record, idx, o)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: CSV line %d", line)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// ReadXLSX parses telemetry rows from the first sheet of an XLSX file.
func ReadXLSX(path string, opts Options) ([]model.Location, error) {
	o := opts.withDefaults()

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open XLSX %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var idx map[string]int
	var locs []model.Location
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)
		if i == 0 {
			idx, err = headerIndex(cells, o.Columns)
			if err != nil {
				return nil, err
			}
			continue
		}
		loc, err := parseRow(cells, idx, o)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: XLSX row %d", i+1)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// headerIndex resolves the configured columns against a header row.
func headerIndex(header []string, cols Columns) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	required := map[string]string{
		"animal_id":  cols.AnimalID,
		"population": cols.Population,
		"timestamp":  cols.Timestamp,
		"x":          cols.X,
		"y":          cols.Y,
	}
	optional := map[string]string{
		"age_class": cols.AgeClass,
		"sex":       cols.Sex,
	}

	idx := make(map[string]int, len(required)+len(optional))
	for field, col := range required {
		i, ok := byName[strings.ToLower(col)]
		if !ok {
			return nil, eris.Errorf("ingest: required column %q (%s) not found in header", col, field)
		}
		idx[field] = i
	}
	for field, col := range optional {
		if i, ok := byName[strings.ToLower(col)]; ok {
			idx[field] = i
		}
	}
	return idx, nil
}

// parseRow converts one source row into a Location.
func parseRow(record []string, idx map[string]int, o Options) (model.Location, error) {
	get := func(field string) string {
		i, ok := idx[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var loc model.Location
	loc.AnimalID = get("animal_id")
	if loc.AnimalID == "" {
		return loc, eris.New("ingest: empty animal_id")
	}
	loc.HomePopulation = o.Fixer.Fix(get("population"))
	loc.AgeClass = get("age_class")
	loc.Sex = get("sex")

	ts, err := time.Parse(o.TimestampLayout, get("timestamp"))
	if err != nil {
		return loc, eris.Wrapf(err, "parse timestamp %q", get("timestamp"))
	}
	loc.RecordedAt = ts

	loc.X, err = strconv.ParseFloat(get("x"), 64)
	if err != nil {
		return loc, eris.Wrapf(err, "parse x %q", get("x"))
	}
	loc.Y, err = strconv.ParseFloat(get("y"), 64)
	if err != nil {
		return loc, eris.Wrapf(err, "parse y %q", get("y"))
	}
	return loc, nil
}

// rowToStrings flattens an XLSX row to trimmed cell strings.
func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = strings.TrimSpace(cell.String())
	}
	return out
}
