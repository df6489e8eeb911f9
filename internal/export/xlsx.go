package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/lox/vocmax/internal/simulate"
	"github.com/lox/vocmax/internal/summary"
)

const (
	SheetSummary   = "Summary"
	SheetHistogram = "Voc Histogram"
	SheetSeries    = "Series"
)

// WriteWorkbook writes an XLSX workbook with the summary table, the Voc
// histogram and, when records is non-empty, the full series.
func WriteWorkbook(w io.Writer, inputs []Field, sum *summary.Summary, records []simulate.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := writeSummarySheet(f, header, inputs, sum); err != nil {
		return err
	}
	if err := writeHistogramSheet(f, header, sum.VocHistogram); err != nil {
		return err
	}
	if len(records) > 0 {
		if err := writeSeriesSheet(f, header, records); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, header int, inputs []Field, sum *summary.Summary) error {
	row := 1
	for _, in := range inputs {
		if err := setRow(f, SheetSummary, row, []any{in.Name, in.Value}); err != nil {
			return err
		}
		row++
	}
	row++

	if err := setRow(f, SheetSummary, row, toAny(SummaryHeader)); err != nil {
		return err
	}
	if err := styleRow(f, SheetSummary, row, len(SummaryHeader), header); err != nil {
		return err
	}
	row++
	for _, e := range sum.Entries {
		vals := []any{e.Key, e.Voltage, e.StringDesignVoltage, e.SafetyFactor, e.StringLength,
			e.CellTemperature, e.POAIrradiance, e.Conditions, e.Note}
		if err := setRow(f, SheetSummary, row, vals); err != nil {
			return err
		}
		row++
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 22); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "I", "I", 60)
}

func writeHistogramSheet(f *excelize.File, header int, h *summary.Histogram) error {
	if _, err := f.NewSheet(SheetHistogram); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	cols := []string{"voc_low", "voc_high", "count", "hours_per_year"}
	if err := setRow(f, SheetHistogram, 1, toAny(cols)); err != nil {
		return err
	}
	if err := styleRow(f, SheetHistogram, 1, len(cols), header); err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	for i, c := range h.Counts {
		if err := setRow(f, SheetHistogram, i+2, []any{h.Edges[i], h.Edges[i+1], c, h.HoursPerYear[i]}); err != nil {
			return err
		}
	}
	return nil
}

func writeSeriesSheet(f *excelize.File, header int, records []simulate.Record) error {
	if _, err := f.NewSheet(SheetSeries); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetSeries)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, 1, 26); err != nil {
		return err
	}
	if err := sw.SetRow("A1", toAny(SeriesHeader), excelize.RowOpts{StyleID: header}); err != nil {
		return err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := []any{
			r.Time.Format("2006-01-02 15:04:05 -07:00"),
			cellFloat(r.GHI), cellFloat(r.TempAir), cellFloat(r.WindSpeed), cellFloat(r.POA),
			cellFloat(r.AOI), cellFloat(r.TrackerTheta), cellFloat(r.TempCell), cellFloat(r.Voc),
			r.Valid,
		}
		if err := sw.SetRow(cell, vals); err != nil {
			return fmt.Errorf("series row %d: %w", i+2, err)
		}
	}
	return sw.Flush()
}

func setRow(f *excelize.File, sheet string, row int, vals []any) error {
	for i, v := range vals {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if fv, ok := v.(float64); ok {
			v = cellFloat(fv)
		}
		if v == nil {
			continue
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, n, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(n, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

// cellFloat maps non-finite values to empty cells.
func cellFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
