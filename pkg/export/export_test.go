package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kilianp07/voi/core/model"
)

func sampleReport() *model.Report {
	return &model.Report{
		RunID:       "run-1",
		Buildings:   1,
		State:       "reported",
		PriorDesign: model.DesignVector{1320, 480},
		Prior:       model.OptimizationResult{Design: model.DesignVector{1320, 480}, Cost: 1050, Converged: true},
		Posterior: []model.PosteriorOutcome{
			{Revealed: model.UncertaintyVector{0.8}, Result: model.OptimizationResult{Design: model.DesignVector{1320, 500}, Cost: 1040, Converged: true, Evaluations: 300}, PriorDesignCost: 1045},
			{Revealed: model.UncertaintyVector{0.9}, Result: model.OptimizationResult{Design: model.DesignVector{1360, 500}, Cost: 1030, Converged: false, Evaluations: 500}, PriorDesignCost: 1032.5},
		},
		Estimate:   model.VoIEstimate{PriorCost: 1050, PreposteriorCost: 1035, PriorDesignMean: 1038.75, VoIDirect: 15, VoIRegret: 3.75, StdError: 5, Samples: 2},
		Summary:    model.CostSummary{Median: 1030, P5: 1030, P95: 1040, Min: 1030, Max: 1040},
		Validation: &model.ValidationReport{Prior: model.ValidationPoint{Problem: "prior", SurrogateCost: 1050, SurrogateStd: 1.5, GroundTruth: 1049, ErrorPercent: 0.095}, MeanAbsErrPercent: 0.095},
		Warnings:   []model.BoundaryWarning{{Problem: "posterior[1]", Dimension: 0, Value: 1360, Bound: 1360, Upper: true}},
		FinishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))
	var got model.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 15.0, got.Estimate.VoIDirect)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport()))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"index", "efficiency_0", "battery_kwh_0", "solar_kwp_0", "cost", "prior_design_cost", "regret", "converged", "evaluations"}, recs[0])
	assert.Equal(t, []string{"1", "0.9", "1360", "500", "1030", "1032.5", "2.5", "false", "500"}, recs[2])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{summarySheet, posteriorSheet}, f.GetSheetList())
	v, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "15", v)
	rows, err := f.GetRows(posteriorSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "regret", rows[0][6])
	assert.Equal(t, "5", rows[1][6])
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "<title>VoI report run-1</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "Surrogate validation")
	assert.Contains(t, out, "1050.00 ± 1.50")
	assert.Contains(t, out, "posterior[1]: design[0]=1360 at upper bound 1360")
}

func TestWriteMarkdown_NoValidation(t *testing.T) {
	rep := sampleReport()
	rep.Validation = nil
	rep.Warnings = nil
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, rep))
	assert.NotContains(t, buf.String(), "Surrogate validation")
	assert.NotContains(t, buf.String(), "Warnings")
	assert.Contains(t, buf.String(), "| VoI (direct) | 15.00 ± 5.00 |")
}
