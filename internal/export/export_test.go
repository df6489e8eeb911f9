package export

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lox/vocmax/internal/simulate"
	"github.com/lox/vocmax/internal/summary"
)

func sampleRecords() []simulate.Record {
	tz := time.FixedZone("", -7*3600)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, tz)
	return []simulate.Record{
		{Time: start, GHI: 0, TempAir: -3.5, WindSpeed: 1.2, POA: 0, AOI: 120, TrackerTheta: math.NaN(), TempCell: -3.5, Voc: 0, Valid: true},
		{Time: start.Add(time.Hour), GHI: 512.5, TempAir: 2.25, WindSpeed: 3, POA: 601.12, AOI: 35.5, TrackerTheta: math.NaN(), TempCell: 14.125, Voc: 49.8123, Valid: true},
		{Time: start.Add(2 * time.Hour), GHI: math.NaN(), TempAir: 4, WindSpeed: 2, POA: math.NaN(), AOI: math.NaN(), TrackerTheta: math.NaN(), TempCell: math.NaN(), Voc: math.NaN(), Valid: false},
	}
}

func sampleSummary() *summary.Summary {
	return &summary.Summary{
		Entries: []summary.Entry{
			{Key: summary.KeyP995, Voltage: 49.2, StringDesignVoltage: 1500, SafetyFactor: 0.023, StringLength: 29, CellTemperature: 1.5, POAIrradiance: 920, Conditions: "P99.5 Voc", Note: "recommended"},
			{Key: summary.KeyP100, Voltage: 49.81, StringDesignVoltage: 1500, SafetyFactor: 0.023, StringLength: 29, CellTemperature: 14.1, POAIrradiance: 601},
		},
		Diagnostics: summary.Diagnostics{MaxVoc: 49.81, P995: 49.2, MeanYearlyMinTemp: -3.5, Excluded: 1},
		VocHistogram: &summary.Histogram{
			Edges:        []float64{0, 25, 50},
			Counts:       []int{1, 1},
			HoursPerYear: []float64{1, 1},
		},
		SafetyFactor: summary.SafetyFactorBreakdown{WeatherData: 0.003, Additional: 0.020, Total: 0.023},
	}
}

func TestSeriesCSVRoundTrip(t *testing.T) {
	recs := sampleRecords()

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, recs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(SeriesHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2019-01-01T00:00:00-07:00,"), lines[1])
	assert.True(t, strings.HasSuffix(lines[3], ",,,,,,false"), "NaN should be written empty: %s", lines[3])

	got, err := ReadSeriesCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(recs))

	assert.True(t, got[1].Time.Equal(recs[1].Time))
	assert.InDelta(t, 49.8123, got[1].Voc, 1e-9)
	assert.InDelta(t, 14.125, got[1].TempCell, 1e-9)
	assert.True(t, math.IsNaN(got[1].TrackerTheta))
	assert.True(t, got[0].Valid)
	assert.False(t, got[2].Valid)
	assert.True(t, math.IsNaN(got[2].Voc))
}

func TestReadSeriesCSVBadHeader(t *testing.T) {
	_, err := ReadSeriesCSV(strings.NewReader("a,b,c,d,e,f,g,h,i,j\n"))
	assert.Error(t, err)

	_, err = ReadSeriesCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestSummaryText(t *testing.T) {
	var buf bytes.Buffer
	inputs := []Field{{"module", "Example 72-cell"}, {"latitude", "37.876"}}
	require.NoError(t, SummaryText(&buf, inputs, sampleSummary()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "module,Example 72-cell\nlatitude,37.876\n"))
	assert.Contains(t, out, "max_voc,49.810")
	assert.Contains(t, out, "recommended_safety_factor,2.3%")
	assert.Contains(t, out, "\n\n"+strings.Join(SummaryHeader, ","))
	assert.Contains(t, out, summary.KeyP995+",49.20,1500,2.3%,29,1.5,920,P99.5 Voc,recommended")
	assert.Contains(t, out, summary.KeyP100+",49.81")
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, []Field{{"module", "Example"}}, sampleSummary(), sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetHistogram, SheetSeries}, f.GetSheetList())

	v, err := f.GetCellValue(SheetSummary, "A1")
	require.NoError(t, err)
	assert.Equal(t, "module", v)

	// inputs, blank row, header, entries
	v, err = f.GetCellValue(SheetSummary, "A4")
	require.NoError(t, err)
	assert.Equal(t, summary.KeyP995, v)

	rows, err := f.GetRows(SheetHistogram)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = f.GetRows(SheetSeries)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, SeriesHeader, rows[0])
	assert.Equal(t, "2019-01-01 01:00:00 -07:00", rows[2][0])
}

func TestWriteWorkbookWithoutSeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, nil, sampleSummary(), nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, SheetHistogram}, f.GetSheetList())
}
