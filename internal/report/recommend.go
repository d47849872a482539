package report

import (
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
)

// Recommendation thresholds.
const (
	marginalBenefit    = 10 * time.Second
	lowAccuracyPct     = 70.0
	highAccuracyPct    = 90.0
	lowEfficiencyPct   = 5.0
	highEfficiencyPct  = 20.0
	lowActivityMoves   = 10
	wastedPreloadRatio = 0.5
)

// Recommend returns rule-based tuning advice for a run. It always returns at
// least one line.
func Recommend(s Summary, mode models.Mode) []string {
	var out []string

	if mode.Sim == models.ModePredictive {
		switch {
		case s.NetBenefit < 0:
			out = append(out, "Net time benefit is negative: review the prediction model before relying on preloads")
		case s.NetBenefit < marginalBenefit:
			out = append(out, "Preloading shows marginal benefit: consider tuning the confidence threshold")
		}
		if s.SettledPredicts > 0 {
			switch {
			case s.AccuracyPercent < lowAccuracyPct:
				out = append(out, "Prediction accuracy is below 70%: movement patterns may be too irregular for the current granularity")
			case s.AccuracyPercent > highAccuracyPct:
				out = append(out, "Prediction accuracy is above 90%: the model is ready for more complex scenarios")
			}
		}
		if s.Preloads > 0 && float64(s.PreloadsWasted)/float64(s.Preloads) > wastedPreloadRatio {
			out = append(out, "Most preloads were never used: raise the confidence threshold to cut wasted energy")
		}
	}

	if s.EnergyBaselineWh > 0 {
		switch {
		case s.EfficiencyPct < lowEfficiencyPct:
			out = append(out, "Energy savings are below 5%: check the sleep and shutdown thresholds")
		case s.EfficiencyPct > highEfficiencyPct:
			out = append(out, "Energy savings exceed 20%: sleep and shutdown are working well")
		}
	}

	if s.Moves < lowActivityMoves {
		out = append(out, "Low activity: run the auto driver longer for representative metrics")
	}

	if len(out) == 0 {
		out = append(out, "System is performing well across all metrics")
	}
	return out
}
