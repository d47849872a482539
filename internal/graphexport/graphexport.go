// Package graphexport writes the learned room-transition graph of a run to Neo4j.
package graphexport

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
)

const (
	roomsCypher = `UNWIND $rooms AS r
MERGE (n:Room {id: r.id, run: $run})
SET n.type = r.type, n.label = r.label, n.x = r.x, n.y = r.y, n.equipment = r.equipment`

	edgesCypher = `UNWIND $edges AS e
MATCH (a:Room {id: e.from, run: $run}), (b:Room {id: e.to, run: $run})
MERGE (a)-[t:TRANSITION {key: e.key}]->(b)
SET t.count = e.count, t.probability = e.probability`
)

// Options holds connection settings.
type Options struct {
	URI      string
	Username string
	Password string
	Database string
}

// Result reports what was written.
type Result struct {
	Rooms int `json:"rooms"`
	Edges int `json:"edges"`
}

// Exporter writes transition graphs through a Neo4j driver.
type Exporter struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewExporter connects to Neo4j and verifies connectivity.
func NewExporter(ctx context.Context, opts Options, logger *slog.Logger) (*Exporter, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", opts.URI, err)
	}
	return &Exporter{driver: driver, database: opts.Database, logger: logger}, nil
}

// Export merges one Room node per room and one TRANSITION relationship per
// learned edge, scoped to runID.
func (e *Exporter) Export(ctx context.Context, runID string, rooms []models.RoomView, edges []prediction.Edge) (Result, error) {
	roomRows, edgeRows := BuildRows(rooms, edges)

	if _, err := neo4j.ExecuteQuery(ctx, e.driver, roomsCypher,
		map[string]any{"run": runID, "rooms": roomRows},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.database),
	); err != nil {
		return Result{}, fmt.Errorf("writing rooms: %w", err)
	}
	if len(edgeRows) > 0 {
		if _, err := neo4j.ExecuteQuery(ctx, e.driver, edgesCypher,
			map[string]any{"run": runID, "edges": edgeRows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(e.database),
		); err != nil {
			return Result{}, fmt.Errorf("writing transitions: %w", err)
		}
	}

	res := Result{Rooms: len(roomRows), Edges: len(edgeRows)}
	e.logger.Info("transition graph exported", "run_id", runID, "rooms", res.Rooms, "edges", res.Edges)
	return res, nil
}

// Close releases the driver.
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// BuildRows converts rooms and learned edges to query parameters. Each edge's
// probability is its count over the total count leaving the same room under
// the same key. Edges to or from unknown rooms are skipped.
func BuildRows(rooms []models.RoomView, edges []prediction.Edge) ([]map[string]any, []map[string]any) {
	known := make(map[string]bool, len(rooms))
	roomRows := make([]map[string]any, 0, len(rooms))
	for _, r := range rooms {
		known[r.ID] = true
		names := make([]string, 0, len(r.Equipment))
		for _, eq := range r.Equipment {
			names = append(names, eq.Name)
		}
		sort.Strings(names)
		roomRows = append(roomRows, map[string]any{
			"id":        r.ID,
			"type":      string(r.Type),
			"label":     r.Label,
			"x":         int64(r.Position.X),
			"y":         int64(r.Position.Y),
			"equipment": names,
		})
	}

	totals := make(map[[2]string]int)
	for _, ed := range edges {
		totals[[2]string{ed.Key, ed.From}] += ed.Count
	}
	var edgeRows []map[string]any
	for _, ed := range edges {
		if !known[ed.From] || !known[ed.To] {
			continue
		}
		edgeRows = append(edgeRows, map[string]any{
			"key":         ed.Key,
			"from":        ed.From,
			"to":          ed.To,
			"count":       int64(ed.Count),
			"probability": float64(ed.Count) / float64(totals[[2]string{ed.Key, ed.From}]),
		})
	}
	return roomRows, edgeRows
}
