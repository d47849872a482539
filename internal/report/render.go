package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Render writes the report as plain text.
func Render(w io.Writer, r Report) error {
	var b strings.Builder
	s := r.Summary
	sim, drive := r.Mode.Tags()

	fmt.Fprintf(&b, "HOSPITAL SIMULATION REPORT\n")
	fmt.Fprintf(&b, "Run: %s [%s] [%s]\n", r.RunID, sim, drive)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format(time.DateTime))
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	b.WriteString("PERFORMANCE SUMMARY\n")
	fmt.Fprintf(&b, "- Simulated time:      %s\n", s.Elapsed)
	fmt.Fprintf(&b, "- Moves:               %d (%d rejected)\n", s.Moves, s.RejectedMoves)
	fmt.Fprintf(&b, "- Examinations:        %d\n", s.Examinations)
	fmt.Fprintf(&b, "- Prediction accuracy: %.1f%% (%d settled of %d)\n", s.AccuracyPercent, s.SettledPredicts, s.Predictions)
	fmt.Fprintf(&b, "- Time saved:          %s\n", seconds(s.TimeSaved))
	fmt.Fprintf(&b, "- Time lost:           %s\n", seconds(s.TimeLost))
	fmt.Fprintf(&b, "- Net benefit:         %s\n", seconds(s.NetBenefit))
	fmt.Fprintf(&b, "- Energy consumed:     %.3f kWh\n", s.EnergyConsumedWh/1000)
	fmt.Fprintf(&b, "- Energy saved:        %.3f kWh (%.1f%% of always-on)\n", s.EnergySavedWh/1000, s.EfficiencyPct)
	fmt.Fprintf(&b, "- Energy wasted:       %.3f kWh\n", s.EnergyWastedWh/1000)
	fmt.Fprintf(&b, "- Activations:         %d cold, %d wake, %d preloaded\n", s.ColdStarts, s.Wakes, s.PreloadsUsed)
	fmt.Fprintf(&b, "- Preloads:            %d issued, %d wasted\n", s.Preloads, s.PreloadsWasted)
	fmt.Fprintf(&b, "- Shutdowns:           %d\n\n", s.Shutdowns)

	a := r.Analysis
	b.WriteString("MOVEMENT ANALYSIS\n")
	fmt.Fprintf(&b, "- Total: %d (positive %d, negative %d, neutral %d)\n", a.Total, a.Positive, a.Negative, a.Neutral)
	fmt.Fprintf(&b, "- Average effect: %s (best %s, worst %s)\n", seconds(a.AvgEffect), seconds(a.Best), seconds(a.Worst))
	for _, t := range a.Transitions {
		fmt.Fprintf(&b, "  %-16s -> %-16s x%-3d avg %s\n", t.From, t.To, t.Count, seconds(t.AvgEffect))
	}
	for _, as := range a.ByActorType {
		fmt.Fprintf(&b, "  %-8s moves %-4d avg %s\n", as.Type, as.Moves, seconds(as.AvgEffect))
	}

	b.WriteString("\nRECOMMENDATIONS\n")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	if r.Narrative != "" {
		b.WriteString("\nANALYST NOTES\n")
		b.WriteString(strings.TrimSpace(r.Narrative))
		b.WriteByte('\n')
	}

	if len(r.Movements) > 0 {
		b.WriteString("\nMOVEMENT LOG\n")
		for i, m := range r.Movements {
			fmt.Fprintf(&b, "%3d. [%s] %s %s: %s -> %s (effect %s)\n",
				i+1, m.At, m.ActorType, m.ActorID, orDash(m.From), m.To, seconds(m.NetEffect()))
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// seconds formats a duration as signed seconds with one decimal.
func seconds(d time.Duration) string {
	return fmt.Sprintf("%+.1fs", d.Seconds())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
