package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lox/vocmax/internal/summary"
)

// Field is one named input echoed at the top of a summary.
type Field struct {
	Name  string
	Value string
}

// SummaryHeader is the column order of the summary table.
var SummaryHeader = []string{
	"key", "max_module_voltage", "string_design_voltage", "safety_factor",
	"string_length", "cell_temperature", "poa_irradiance", "conditions", "note",
}

// SummaryText writes the inputs as name,value lines, a blank line, then the
// summary table, all as CSV.
func SummaryText(w io.Writer, inputs []Field, sum *summary.Summary) error {
	cw := csv.NewWriter(w)
	for _, f := range inputs {
		if err := cw.Write([]string{f.Name, f.Value}); err != nil {
			return err
		}
	}
	d := sum.Diagnostics
	for _, f := range []Field{
		{"max_voc", fmt.Sprintf("%.3f", d.MaxVoc)},
		{"p99_5_voc", fmt.Sprintf("%.3f", d.P995)},
		{"mean_yearly_min_temp", fmt.Sprintf("%.2f", d.MeanYearlyMinTemp)},
		{"excluded_timesteps", strconv.Itoa(d.Excluded)},
		{"recommended_safety_factor", fmt.Sprintf("%.1f%%", 100*sum.SafetyFactor.Total)},
	} {
		if err := cw.Write([]string{f.Name, f.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, row := range SummaryRows(sum) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryRows formats the entries for display.
func SummaryRows(sum *summary.Summary) [][]string {
	rows := make([][]string, 0, len(sum.Entries))
	for _, e := range sum.Entries {
		rows = append(rows, []string{
			e.Key,
			fmt.Sprintf("%.2f", e.Voltage),
			fmt.Sprintf("%.0f", e.StringDesignVoltage),
			fmt.Sprintf("%.1f%%", 100*e.SafetyFactor),
			strconv.Itoa(e.StringLength),
			fmt.Sprintf("%.1f", e.CellTemperature),
			fmt.Sprintf("%.0f", e.POAIrradiance),
			e.Conditions,
			e.Note,
		})
	}
	return rows
}
