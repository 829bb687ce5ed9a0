// Package export writes VoI reports to files for downstream analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/voi/core/model"
)

// WriteJSON writes the full report to w as indented JSON.
func WriteJSON(w io.Writer, rep *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// outcomeHeader returns the column names of the posterior table for a
// district of n buildings.
func outcomeHeader(n int) []string {
	h := []string{"index"}
	for i := 0; i < n; i++ {
		h = append(h, fmt.Sprintf("efficiency_%d", i))
	}
	for i := 0; i < n; i++ {
		h = append(h, fmt.Sprintf("battery_kwh_%d", i))
	}
	for i := 0; i < n; i++ {
		h = append(h, fmt.Sprintf("solar_kwp_%d", i))
	}
	return append(h, "cost", "prior_design_cost", "regret", "converged", "evaluations")
}

// outcomeRow returns the values of one posterior problem in header order.
func outcomeRow(i int, o model.PosteriorOutcome) []any {
	row := []any{i}
	for _, v := range o.Revealed {
		row = append(row, v)
	}
	for _, v := range o.Result.Design {
		row = append(row, v)
	}
	return append(row,
		o.Result.Cost,
		o.PriorDesignCost,
		o.PriorDesignCost-o.Result.Cost,
		o.Result.Converged,
		o.Result.Evaluations,
	)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes one row per posterior problem.
func WriteCSV(w io.Writer, rep *model.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(outcomeHeader(rep.Buildings)); err != nil {
		return err
	}
	for i, o := range rep.Posterior {
		vals := outcomeRow(i, o)
		rec := make([]string, len(vals))
		for j, v := range vals {
			rec[j] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'f', 2, 64)
	}
	return strings.Join(parts, ", ")
}
