// Package report summarizes a finished or running simulation: KPIs, movement
// analysis, rule-based recommendations and an optional narrative.
package report

import (
	"sort"
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
)

// Summary holds the headline figures of a run.
type Summary struct {
	Elapsed          time.Duration `json:"elapsed"`
	Moves            int           `json:"moves"`
	RejectedMoves    int           `json:"rejected_moves"`
	Examinations     int           `json:"examinations"`
	Predictions      int           `json:"predictions"`
	SettledPredicts  int           `json:"settled_predictions"`
	AccuracyPercent  float64       `json:"accuracy_percent"`
	TimeSaved        time.Duration `json:"time_saved"`
	TimeLost         time.Duration `json:"time_lost"`
	NetBenefit       time.Duration `json:"net_benefit"`
	AvgPerMove       time.Duration `json:"avg_per_move"`
	EnergyConsumedWh float64       `json:"energy_consumed_wh"`
	EnergyBaselineWh float64       `json:"energy_baseline_wh"`
	EnergySavedWh    float64       `json:"energy_saved_wh"`
	EnergyWastedWh   float64       `json:"energy_wasted_wh"`
	EfficiencyPct    float64       `json:"energy_efficiency_percent"`
	ColdStarts       int           `json:"cold_starts"`
	Wakes            int           `json:"wakes"`
	Preloads         int           `json:"preloads"`
	PreloadsUsed     int           `json:"preloads_used"`
	PreloadsWasted   int           `json:"preloads_wasted"`
	Shutdowns        int           `json:"shutdowns"`
}

// Summarize derives a Summary from run totals and prediction statistics.
func Summarize(t models.Totals, stats prediction.Stats) Summary {
	s := Summary{
		Elapsed:          t.Elapsed,
		Moves:            t.Moves,
		RejectedMoves:    t.RejectedMoves,
		Examinations:     t.Examinations,
		Predictions:      stats.Predictions,
		SettledPredicts:  stats.Hits + stats.Misses,
		AccuracyPercent:  t.Accuracy * 100,
		TimeSaved:        t.TimeSaved,
		TimeLost:         t.TimeLost,
		NetBenefit:       t.TimeSaved - t.TimeLost,
		EnergyConsumedWh: t.EnergyConsumedWh,
		EnergyBaselineWh: t.EnergyBaselineWh,
		EnergySavedWh:    t.EnergySavedWh,
		EnergyWastedWh:   t.EnergyWastedWh,
		ColdStarts:       t.ColdStarts,
		Wakes:            t.Wakes,
		Preloads:         t.Preloads,
		PreloadsUsed:     t.PreloadsUsed,
		PreloadsWasted:   t.PreloadsWasted,
		Shutdowns:        t.Shutdowns,
	}
	if t.Moves > 0 {
		s.AvgPerMove = s.NetBenefit / time.Duration(t.Moves)
	}
	if t.EnergyBaselineWh > 0 {
		s.EfficiencyPct = t.EnergySavedWh / t.EnergyBaselineWh * 100
	}
	return s
}

// TransitionStat aggregates movements along one room-to-room edge.
type TransitionStat struct {
	From      string        `json:"from"`
	To        string        `json:"to"`
	Count     int           `json:"count"`
	NetEffect time.Duration `json:"net_effect"`
	AvgEffect time.Duration `json:"avg_effect"`
}

// ActorStat aggregates movements of one actor type.
type ActorStat struct {
	Type      models.ActorType `json:"type"`
	Moves     int              `json:"moves"`
	NetEffect time.Duration    `json:"net_effect"`
	AvgEffect time.Duration    `json:"avg_effect"`
}

// Analysis breaks the movement log down by outcome, edge and actor type.
type Analysis struct {
	Total       int              `json:"total"`
	Positive    int              `json:"positive"`
	Negative    int              `json:"negative"`
	Neutral     int              `json:"neutral"`
	AvgEffect   time.Duration    `json:"avg_effect"`
	Best        time.Duration    `json:"best"`
	Worst       time.Duration    `json:"worst"`
	Transitions []TransitionStat `json:"transitions"`
	ByActorType []ActorStat      `json:"by_actor_type"`
}

// Analyze computes the movement analysis. Transitions are sorted by count
// descending then by edge; actor types follow ValidActorTypes order.
func Analyze(moves []models.MovementRecord) Analysis {
	var a Analysis
	if len(moves) == 0 {
		return a
	}
	a.Total = len(moves)

	edges := make(map[[2]string]*TransitionStat)
	actors := make(map[models.ActorType]*ActorStat)
	var sum time.Duration
	for i, m := range moves {
		net := m.NetEffect()
		sum += net
		switch {
		case net > 0:
			a.Positive++
		case net < 0:
			a.Negative++
		default:
			a.Neutral++
		}
		if i == 0 || net > a.Best {
			a.Best = net
		}
		if i == 0 || net < a.Worst {
			a.Worst = net
		}

		k := [2]string{m.From, m.To}
		e, ok := edges[k]
		if !ok {
			e = &TransitionStat{From: m.From, To: m.To}
			edges[k] = e
		}
		e.Count++
		e.NetEffect += net

		as, ok := actors[m.ActorType]
		if !ok {
			as = &ActorStat{Type: m.ActorType}
			actors[m.ActorType] = as
		}
		as.Moves++
		as.NetEffect += net
	}
	a.AvgEffect = sum / time.Duration(a.Total)

	for _, e := range edges {
		e.AvgEffect = e.NetEffect / time.Duration(e.Count)
		a.Transitions = append(a.Transitions, *e)
	}
	sort.Slice(a.Transitions, func(i, j int) bool {
		x, y := a.Transitions[i], a.Transitions[j]
		if x.Count != y.Count {
			return x.Count > y.Count
		}
		if x.From != y.From {
			return x.From < y.From
		}
		return x.To < y.To
	})
	for _, t := range models.ValidActorTypes {
		if as, ok := actors[t]; ok {
			as.AvgEffect = as.NetEffect / time.Duration(as.Moves)
			a.ByActorType = append(a.ByActorType, *as)
		}
	}
	return a
}

// Report is the full analysis of one run.
type Report struct {
	RunID           string                  `json:"run_id"`
	Mode            models.Mode             `json:"mode"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Summary         Summary                 `json:"summary"`
	Analysis        Analysis                `json:"analysis"`
	Recommendations []string                `json:"recommendations"`
	Movements       []models.MovementRecord `json:"movements"`
	Narrative       string                  `json:"narrative,omitempty"`
}

// Build assembles a report from a snapshot, its movement log and engine stats.
func Build(snap models.Snapshot, moves []models.MovementRecord, stats prediction.Stats) Report {
	sum := Summarize(snap.Totals, stats)
	return Report{
		RunID:           snap.RunID,
		Mode:            snap.Mode,
		GeneratedAt:     time.Now().UTC(),
		Summary:         sum,
		Analysis:        Analyze(moves),
		Recommendations: Recommend(sum, snap.Mode),
		Movements:       moves,
	}
}
