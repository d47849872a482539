// Package prediction learns room-to-room movement frequencies online and
// decides when a predicted destination is worth pre-activating.
package prediction

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ajitpratap0/wardsim/internal/models"
)

const (
	// DefaultThreshold is the minimum confidence at which a preload is issued.
	DefaultThreshold = 0.5

	// DefaultRecentSize is how many recent predictions are retained for display.
	DefaultRecentSize = 50
)

// Granularity selects how observations are grouped into models.
type Granularity string

const (
	// GranularityType shares one model among all actors of a type.
	GranularityType Granularity = "type"
	// GranularityActor keeps one model per actor.
	GranularityActor Granularity = "actor"
)

// IsValid returns true if the granularity is recognized.
func (g Granularity) IsValid() bool {
	return g == GranularityType || g == GranularityActor
}

// Key returns the model key for an actor under granularity g.
func Key(g Granularity, actorID string, t models.ActorType) string {
	if g == GranularityActor {
		return "actor:" + actorID
	}
	return "type:" + string(t)
}

// Prediction is a best-guess next room for a key leaving a room.
type Prediction struct {
	Key        string  `json:"key"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
	Total      int     `json:"total"`
}

// Outcome is the result of checking a tracked prediction against the actual move.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeHit
	OutcomeMiss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	default:
		return "none"
	}
}

// Stats summarizes the engine's activity.
type Stats struct {
	Observations int     `json:"observations"`
	Keys         int     `json:"keys"`
	Predictions  int     `json:"predictions"`
	Hits         int     `json:"hits"`
	Misses       int     `json:"misses"`
	Accuracy     float64 `json:"accuracy"`
}

// Edge is one learned transition count, used for export and display.
type Edge struct {
	Key   string `json:"key"`
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Options configures an Engine.
type Options struct {
	Threshold   float64
	Granularity Granularity
	RecentSize  int
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		Threshold:   DefaultThreshold,
		Granularity: GranularityType,
		RecentSize:  DefaultRecentSize,
	}
}

type candidate struct {
	count    int
	lastSeen uint64
}

// Engine is a frequency model over (key, from) → to. It is owned by one
// simulation and mutated only from its tick; concurrent readers use Snapshot.
type Engine struct {
	opts   Options
	logger *slog.Logger

	table map[string]map[string]map[string]*candidate
	seq   uint64

	pending     map[string]Prediction
	predictions int
	hits        int
	misses      int
	recent      []Prediction
}

// NewEngine creates an empty engine.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if !opts.Granularity.IsValid() {
		opts.Granularity = GranularityType
	}
	if opts.RecentSize <= 0 {
		opts.RecentSize = DefaultRecentSize
	}
	return &Engine{
		opts:    opts,
		logger:  logger,
		table:   make(map[string]map[string]map[string]*candidate),
		pending: make(map[string]Prediction),
	}
}

// Granularity returns the configured key granularity.
func (e *Engine) Granularity() Granularity { return e.opts.Granularity }

// Threshold returns the configured preload confidence threshold.
func (e *Engine) Threshold() float64 { return e.opts.Threshold }

// Observe records that key moved from → to, and settles any prediction tracked
// for actorID that was made from the same room.
func (e *Engine) Observe(actorID, key, from, to string) Outcome {
	e.seq++
	byFrom, ok := e.table[key]
	if !ok {
		byFrom = make(map[string]map[string]*candidate)
		e.table[key] = byFrom
	}
	byTo, ok := byFrom[from]
	if !ok {
		byTo = make(map[string]*candidate)
		byFrom[from] = byTo
	}
	c, ok := byTo[to]
	if !ok {
		c = &candidate{}
		byTo[to] = c
	}
	c.count++
	c.lastSeen = e.seq

	p, tracked := e.pending[actorID]
	if !tracked {
		return OutcomeNone
	}
	delete(e.pending, actorID)
	if p.From != from {
		return OutcomeNone
	}
	if p.To == to {
		e.hits++
		return OutcomeHit
	}
	e.misses++
	e.logger.Debug("prediction missed", "actor", actorID, "predicted", p.To, "actual", to)
	return OutcomeMiss
}

// Predict returns the most frequently observed destination from a room.
// Ties go to the most recently observed candidate. ok is false when the key has
// no history from that room.
func (e *Engine) Predict(key, from string) (Prediction, bool) {
	byTo := e.table[key][from]
	if len(byTo) == 0 {
		return Prediction{}, false
	}
	var (
		best     string
		bestC    *candidate
		totalCnt int
	)
	for to, c := range byTo {
		totalCnt += c.count
		if bestC == nil || c.count > bestC.count || (c.count == bestC.count && c.lastSeen > bestC.lastSeen) {
			best, bestC = to, c
		}
	}
	return Prediction{
		Key:        key,
		From:       from,
		To:         best,
		Confidence: float64(bestC.count) / float64(totalCnt),
		Count:      bestC.count,
		Total:      totalCnt,
	}, true
}

// ShouldPreload reports whether confidence clears the preload threshold.
func (e *Engine) ShouldPreload(confidence float64) bool {
	return confidence >= e.opts.Threshold
}

// Track registers p as the outstanding prediction for actorID. The next
// observed move of that actor decides whether it was a hit.
func (e *Engine) Track(actorID string, p Prediction) {
	e.pending[actorID] = p
	e.predictions++
	e.recent = append(e.recent, p)
	if over := len(e.recent) - e.opts.RecentSize; over > 0 {
		e.recent = append(e.recent[:0], e.recent[over:]...)
	}
}

// Pending returns the outstanding prediction for actorID.
func (e *Engine) Pending(actorID string) (Prediction, bool) {
	p, ok := e.pending[actorID]
	return p, ok
}

// Forget drops the outstanding prediction for an actor leaving the simulation.
func (e *Engine) Forget(actorID string) {
	delete(e.pending, actorID)
}

// Accuracy returns hits / (hits + misses), or 0 before any prediction settles.
func (e *Engine) Accuracy() float64 {
	if n := e.hits + e.misses; n > 0 {
		return float64(e.hits) / float64(n)
	}
	return 0
}

// ResetAccuracy clears hit/miss counters and outstanding predictions but keeps
// learned counts.
func (e *Engine) ResetAccuracy() {
	e.hits, e.misses, e.predictions = 0, 0, 0
	e.pending = make(map[string]Prediction)
	e.recent = nil
}

// Stats returns a summary of the engine.
func (e *Engine) Stats() Stats {
	return Stats{
		Observations: int(e.seq),
		Keys:         len(e.table),
		Predictions:  e.predictions,
		Hits:         e.hits,
		Misses:       e.misses,
		Accuracy:     e.Accuracy(),
	}
}

// Recent returns a copy of the most recent tracked predictions, oldest first.
func (e *Engine) Recent() []Prediction {
	out := make([]Prediction, len(e.recent))
	copy(out, e.recent)
	return out
}

// Snapshot returns every learned count as a sorted slice, safe to hand to readers.
func (e *Engine) Snapshot() []Edge {
	var edges []Edge
	for key, byFrom := range e.table {
		for from, byTo := range byFrom {
			for to, c := range byTo {
				edges = append(edges, Edge{Key: key, From: from, To: to, Count: c.count})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return edges
}

// String implements fmt.Stringer for log output.
func (p Prediction) String() string {
	return fmt.Sprintf("%s %s→%s (%.2f, %d/%d)", p.Key, p.From, p.To, p.Confidence, p.Count, p.Total)
}
