// Package export writes simulation results as CSV, plain text and XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/lox/vocmax/internal/simulate"
)

// SeriesHeader is the column order of a series CSV.
var SeriesHeader = []string{
	"time", "ghi", "temp_air", "wind_speed", "effective_irradiance",
	"aoi", "tracker_theta", "temp_cell", "v_oc", "valid",
}

// WriteSeriesCSV writes one row per timestep. NaN values are written empty.
func WriteSeriesCSV(w io.Writer, records []simulate.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesHeader); err != nil {
		return err
	}
	row := make([]string, len(SeriesHeader))
	for _, r := range records {
		row[0] = r.Time.Format(time.RFC3339)
		row[1] = formatFloat(r.GHI, 1)
		row[2] = formatFloat(r.TempAir, 2)
		row[3] = formatFloat(r.WindSpeed, 2)
		row[4] = formatFloat(r.POA, 2)
		row[5] = formatFloat(r.AOI, 2)
		row[6] = formatFloat(r.TrackerTheta, 2)
		row[7] = formatFloat(r.TempCell, 3)
		row[8] = formatFloat(r.Voc, 4)
		row[9] = strconv.FormatBool(r.Valid)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeriesCSV parses the output of WriteSeriesCSV.
func ReadSeriesCSV(r io.Reader) ([]simulate.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(SeriesHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range SeriesHeader {
		if header[i] != h {
			return nil, fmt.Errorf("column %d: got %q, want %q", i+1, header[i], h)
		}
	}

	var out []simulate.Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: time: %w", line, err)
		}
		valid, err := strconv.ParseBool(row[9])
		if err != nil {
			return nil, fmt.Errorf("line %d: valid: %w", line, err)
		}
		out = append(out, simulate.Record{
			Time:         t,
			GHI:          parseFloat(row[1]),
			TempAir:      parseFloat(row[2]),
			WindSpeed:    parseFloat(row[3]),
			POA:          parseFloat(row[4]),
			AOI:          parseFloat(row[5]),
			TrackerTheta: parseFloat(row[6]),
			TempCell:     parseFloat(row[7]),
			Voc:          parseFloat(row[8]),
			Valid:        valid,
		})
	}
	return out, nil
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
