package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/rangelab/rangeshift/internal/aggregate"
	"github.com/rangelab/rangeshift/internal/model"
)

func testSummary() model.Summary {
	return model.Summary{
		AnimalID:              "S1",
		HomePopulation:        "Alpha",
		HomeKnown:             true,
		Populations:           2,
		InTransit:             true,
		PopulationsAndTransit: 3,
		PopulationsVisited:    "Alpha;Beta",
		FirstFix:              time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		LastFix:               time.Date(2021, 6, 3, 0, 0, 0, 0, time.UTC),
		TrackedDays:           2,
		TotalSwitches:         2,
		HomeToTransit:         1,
		TransitToOther:        1,
		SwitchesPerYear:       365.25,
	}
}

func testFix() model.ClassifiedLocation {
	return model.ClassifiedLocation{
		Location: model.Location{
			AnimalID:       "S1",
			HomePopulation: "Alpha",
			AgeClass:       "adult",
			Sex:            "F",
			RecordedAt:     time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
			X:              512345.5,
			Y:              3765432,
		},
		State:      model.StateHome,
		Population: "Alpha",
		Transition: model.TransitionUndefined,
	}
}

func TestSummariesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SummariesCSV(&buf, []model.Summary{testSummary()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(summaryHeader, ","), lines[0])

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, len(summaryHeader))
	assert.Equal(t, "S1", fields[0])
	assert.Equal(t, "true", fields[2])
	assert.Equal(t, "Alpha;Beta", fields[6])
	assert.Equal(t, "2021-06-01T00:00:00Z", fields[7])
	assert.Equal(t, "365.25", fields[17])
}

func TestPointsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PointsCSV(&buf, []model.ClassifiedLocation{testFix()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(pointHeader, ","), lines[0])

	fields := strings.Split(lines[1], ",")
	assert.Equal(t, "512345.5", fields[5])
	assert.Equal(t, "home", fields[7])
	assert.Equal(t, "undefined", fields[9])
}

func TestReportCSV(t *testing.T) {
	groups := []aggregate.GroupStats{
		{
			Group:  "Alpha",
			Points: 4,
			StateCounts: map[model.StateLabel]int{
				model.StateHome:    3,
				model.StateTransit: 1,
			},
			StatePercents: map[model.StateLabel]float64{
				model.StateHome:    75,
				model.StateTransit: 25,
			},
			TransitionCounts: map[model.TransitionLabel]int{
				model.TransitionUndefined: 1,
				model.TransitionNoChange:  2,
				model.HomeToTransit:       1,
			},
			TransitionPercents: map[model.TransitionLabel]float64{
				model.TransitionNoChange: 200.0 / 3.0,
				model.HomeToTransit:      100.0 / 3.0,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ReportCSV(&buf, groups))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(reportHeader, ","), lines[0])

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, len(reportHeader))
	assert.Equal(t, "Alpha", fields[0])
	assert.Equal(t, "4", fields[1])
	assert.Equal(t, "3", fields[2])  // home count
	assert.Equal(t, "75", fields[3]) // home pct
	assert.Equal(t, "2", fields[8])  // no-change count
}

func TestReportHeaderShape(t *testing.T) {
	// group, points, 3 states x2, no_change_count, 6 switches x2.
	assert.Len(t, reportHeader, 2+6+1+12)
	assert.Equal(t, "group", reportHeader[0])
	assert.Equal(t, "home_count", reportHeader[2])
	assert.Equal(t, "no_change_count", reportHeader[8])
}

func TestWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, Workbook(path, []model.ClassifiedLocation{testFix()}, []model.Summary{testSummary()}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	points, ok := f.Sheet["Points"]
	require.True(t, ok)
	require.Len(t, points.Rows, 2)
	assert.Equal(t, "animal_id", points.Rows[0].Cells[0].String())
	assert.Equal(t, "S1", points.Rows[1].Cells[0].String())
	assert.Equal(t, "home", points.Rows[1].Cells[7].String())

	sums, ok := f.Sheet["Summaries"]
	require.True(t, ok)
	require.Len(t, sums.Rows, 2)
	assert.Equal(t, "Alpha;Beta", sums.Rows[1].Cells[6].String())
}

func TestWorkbookEmptyStillHasHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, Workbook(path, nil, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheet["Points"].Rows, 1)
	require.Len(t, f.Sheet["Summaries"].Rows, 1)
}

func TestReportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	groups := []aggregate.GroupStats{
		{Group: "adult/F", Points: 2,
			StateCounts:   map[model.StateLabel]int{model.StateHome: 2},
			StatePercents: map[model.StateLabel]float64{model.StateHome: 100}},
	}
	require.NoError(t, ReportXLSX(path, "By age-sex", groups))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["By age-sex"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "adult/F", sheet.Rows[1].Cells[0].String())
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "2", formatFloat(2))
	assert.Equal(t, "2.5", formatFloat(2.5))
	assert.Equal(t, "0", formatFloat(0))
}
