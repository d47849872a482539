package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Comparison contrasts a predictive run with a traditional run of the same scenario.
type Comparison struct {
	Predictive  Summary `json:"predictive"`
	Traditional Summary `json:"traditional"`
}

// WaitReduction is how much less time actors spent waiting for equipment.
func (c Comparison) WaitReduction() time.Duration {
	return c.Traditional.TimeLost - c.Predictive.TimeLost
}

// EnergyDeltaWh is predictive minus traditional consumption; negative means
// the predictive run used less energy.
func (c Comparison) EnergyDeltaWh() float64 {
	return c.Predictive.EnergyConsumedWh - c.Traditional.EnergyConsumedWh
}

// RenderComparison writes a side-by-side KPI table.
func RenderComparison(w io.Writer, c Comparison) error {
	var b strings.Builder
	p, t := c.Predictive, c.Traditional
	row := func(name, pv, tv string) {
		fmt.Fprintf(&b, "%-20s %14s %14s\n", name, pv, tv)
	}
	row("", "PREDICTIVE", "TRADITIONAL")
	row("moves", fmt.Sprint(p.Moves), fmt.Sprint(t.Moves))
	row("examinations", fmt.Sprint(p.Examinations), fmt.Sprint(t.Examinations))
	row("time saved", seconds(p.TimeSaved), seconds(t.TimeSaved))
	row("time lost", seconds(p.TimeLost), seconds(t.TimeLost))
	row("energy consumed", kwh(p.EnergyConsumedWh), kwh(t.EnergyConsumedWh))
	row("energy wasted", kwh(p.EnergyWastedWh), kwh(t.EnergyWastedWh))
	row("cold starts", fmt.Sprint(p.ColdStarts), fmt.Sprint(t.ColdStarts))
	row("preloads used", fmt.Sprint(p.PreloadsUsed), fmt.Sprint(t.PreloadsUsed))
	row("accuracy", fmt.Sprintf("%.1f%%", p.AccuracyPercent), "-")
	fmt.Fprintf(&b, "\nwait reduction: %s, energy delta: %+.3f kWh\n", seconds(c.WaitReduction()), c.EnergyDeltaWh()/1000)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing comparison: %w", err)
	}
	return nil
}

func kwh(wh float64) string {
	return fmt.Sprintf("%.3f kWh", wh/1000)
}
