package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/kilianp07/voi/core/model"
)

const (
	summarySheet   = "Summary"
	posteriorSheet = "Posterior"
)

// WriteXLSX saves the report as a workbook with a summary sheet and one row
// per posterior problem.
func WriteXLSX(path string, rep *model.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	est := rep.Estimate
	rows := [][]any{
		{"run_id", rep.RunID},
		{"buildings", rep.Buildings},
		{"prior_design", joinFloats(rep.PriorDesign)},
		{"prior_cost", est.PriorCost},
		{"preposterior_cost", est.PreposteriorCost},
		{"prior_design_mean_posterior_cost", est.PriorDesignMean},
		{"voi_direct", est.VoIDirect},
		{"voi_regret", est.VoIRegret},
		{"std_error", est.StdError},
		{"regret_std_error", est.RegretStdError},
		{"samples", est.Samples},
		{"median", rep.Summary.Median},
		{"p5", rep.Summary.P5},
		{"p95", rep.Summary.P95},
		{"warnings", len(rep.Warnings)},
	}
	if rep.Validation != nil {
		rows = append(rows, []any{"validation_mean_abs_error_percent", rep.Validation.MeanAbsErrPercent})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(posteriorSheet); err != nil {
		return err
	}
	header := outcomeHeader(rep.Buildings)
	table := make([][]any, 0, len(rep.Posterior)+1)
	hrow := make([]any, len(header))
	for i, h := range header {
		hrow[i] = h
	}
	table = append(table, hrow)
	for i, o := range rep.Posterior {
		table = append(table, outcomeRow(i, o))
	}
	if err := writeRows(f, posteriorSheet, table); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
