// Package export writes labeled points, summaries, and grouped report
// tables to CSV and XLSX.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/rangelab/rangeshift/internal/aggregate"
	"github.com/rangelab/rangeshift/internal/model"
)

const timeLayout = time.RFC3339

var summaryHeader = []string{
	"animal_id", "home_population", "home_known", "populations", "in_transit",
	"populations_and_transit", "populations_visited", "first_fix", "last_fix",
	"tracked_days", "total_switches", "home_to_other", "home_to_transit",
	"other_to_home", "other_to_transit", "transit_to_home", "transit_to_other",
	"switches_per_year",
}

func summaryRow(s model.Summary) []string {
	return []string{
		s.AnimalID, s.HomePopulation, strconv.FormatBool(s.HomeKnown),
		strconv.Itoa(s.Populations), strconv.FormatBool(s.InTransit),
		strconv.Itoa(s.PopulationsAndTransit), s.PopulationsVisited,
		s.FirstFix.Format(timeLayout), s.LastFix.Format(timeLayout),
		formatFloat(s.TrackedDays), strconv.Itoa(s.TotalSwitches),
		strconv.Itoa(s.HomeToOther), strconv.Itoa(s.HomeToTransit),
		strconv.Itoa(s.OtherToHome), strconv.Itoa(s.OtherToTransit),
		strconv.Itoa(s.TransitToHome), strconv.Itoa(s.TransitToOther),
		formatFloat(s.SwitchesPerYear),
	}
}

var pointHeader = []string{
	"animal_id", "home_population", "age_class", "sex", "recorded_at",
	"x", "y", "state", "population", "transition",
}

func pointRow(f model.ClassifiedLocation) []string {
	return []string{
		f.AnimalID, f.HomePopulation, f.AgeClass, f.Sex,
		f.RecordedAt.Format(timeLayout),
		formatFloat(f.X), formatFloat(f.Y),
		string(f.State), f.Population, string(f.Transition),
	}
}

// SummariesCSV writes per-individual summary records as CSV.
func SummariesCSV(w io.Writer, summaries []model.Summary) error {
	rows := make([][]string, 0, len(summaries)+1)
	rows = append(rows, summaryHeader)
	for _, s := range summaries {
		rows = append(rows, summaryRow(s))
	}
	return writeCSV(w, rows)
}

// PointsCSV writes labeled fixes as CSV.
func PointsCSV(w io.Writer, fixes []model.ClassifiedLocation) error {
	rows := make([][]string, 0, len(fixes)+1)
	rows = append(rows, pointHeader)
	for _, f := range fixes {
		rows = append(rows, pointRow(f))
	}
	return writeCSV(w, rows)
}

// Workbook writes an XLSX workbook with labeled points and summaries.
// Either slice may be empty; its sheet is still created with a header so
// the workbook shape is stable.
func Workbook(path string, fixes []model.ClassifiedLocation, summaries []model.Summary) error {
	f := xlsx.NewFile()

	points, err := f.AddSheet("Points")
	if err != nil {
		return eris.Wrap(err, "export: add points sheet")
	}
	writeSheetRow(points, pointHeader)
	for _, fix := range fixes {
		writeSheetRow(points, pointRow(fix))
	}

	sums, err := f.AddSheet("Summaries")
	if err != nil {
		return eris.Wrap(err, "export: add summaries sheet")
	}
	writeSheetRow(sums, summaryHeader)
	for _, s := range summaries {
		writeSheetRow(sums, summaryRow(s))
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

var reportHeader = buildReportHeader()

func buildReportHeader() []string {
	h := []string{"group", "points"}
	for _, s := range []model.StateLabel{model.StateHome, model.StateOther, model.StateTransit} {
		h = append(h, string(s)+"_count", string(s)+"_pct")
	}
	h = append(h, "no_change_count")
	for _, t := range model.SwitchLabels {
		h = append(h, string(t)+"_count", string(t)+"_pct")
	}
	return h
}

func reportRow(g aggregate.GroupStats) []string {
	row := []string{g.Group, strconv.Itoa(g.Points)}
	for _, s := range []model.StateLabel{model.StateHome, model.StateOther, model.StateTransit} {
		row = append(row, strconv.Itoa(g.StateCounts[s]), formatFloat(g.StatePercents[s]))
	}
	row = append(row, strconv.Itoa(g.TransitionCounts[model.TransitionNoChange]))
	for _, t := range model.SwitchLabels {
		row = append(row, strconv.Itoa(g.TransitionCounts[t]), formatFloat(g.TransitionPercents[t]))
	}
	return row
}

// ReportCSV writes a grouped report table as CSV.
func ReportCSV(w io.Writer, groups []aggregate.GroupStats) error {
	rows := make([][]string, 0, len(groups)+1)
	rows = append(rows, reportHeader)
	for _, g := range groups {
		rows = append(rows, reportRow(g))
	}
	return writeCSV(w, rows)
}

// ReportXLSX writes a grouped report table as a single-sheet workbook.
func ReportXLSX(path, sheetName string, groups []aggregate.GroupStats) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", sheetName)
	}
	writeSheetRow(sheet, reportHeader)
	for _, g := range groups {
		writeSheetRow(sheet, reportRow(g))
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func writeSheetRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
