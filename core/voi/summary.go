package voi

import (
	"github.com/montanaflynn/stats"

	"github.com/kilianp07/voi/core/model"
)

// Summarize describes the spread of the posterior optimal costs.
func Summarize(outcomes []model.PosteriorOutcome) model.CostSummary {
	if len(outcomes) == 0 {
		return model.CostSummary{}
	}
	data := make(stats.Float64Data, len(outcomes))
	for i, o := range outcomes {
		data[i] = o.Result.Cost
	}
	var s model.CostSummary
	// errors only occur on empty input or out-of-range percentiles
	s.Median, _ = data.Median()
	s.P5, _ = stats.PercentileNearestRank(data, 5)
	s.P95, _ = stats.PercentileNearestRank(data, 95)
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	return s
}
