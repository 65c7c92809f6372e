// Package neo4j stores snapshot histories as a graph:
// (:Diagram)-[:HAS_SNAPSHOT]->(:Snapshot)-[:DETECTED]->(:Pattern).
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
)

const unboundedLimit = 1 << 30

// Store implements snapshot.Repository using Neo4j.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and creates the uniqueness constraint on snapshot ids.
func New(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	s := &Store{driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"CREATE CONSTRAINT snapshot_id IF NOT EXISTS FOR (s:Snapshot) REQUIRE s.id IS UNIQUE", nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("create snapshot constraint: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, id diagram.Identity, snap *snapshot.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	detected := make([]map[string]any, 0, len(snap.Patterns))
	for _, p := range snap.Patterns {
		detected = append(detected, map[string]any{"id": p.ID, "category": p.Category, "quality": p.Quality})
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MERGE (d:Diagram {identity: $identity}) "+
				"ON CREATE SET d.session_id = $session, d.diagram_type = $type, d.next_seq = 0 "+
				"SET d.next_seq = d.next_seq + 1 "+
				"CREATE (d)-[:HAS_SNAPSHOT]->(s:Snapshot {id: $id, seq: d.next_seq, created_at: $createdAt, "+
				"total: $total, fingerprint: $fingerprint, payload: $payload}) "+
				"WITH s UNWIND $patterns AS p "+
				"MERGE (pt:Pattern {id: p.id}) ON CREATE SET pt.category = p.category "+
				"CREATE (s)-[:DETECTED {quality: p.quality}]->(pt)",
			map[string]any{
				"identity":    id.String(),
				"session":     id.SessionID,
				"type":        string(id.DiagramType),
				"id":          snap.ID,
				"createdAt":   snap.CreatedAt.UnixMilli(),
				"total":       snap.Total,
				"fingerprint": snap.Fingerprint,
				"payload":     string(payload),
				"patterns":    detected,
			})
		return nil, err
	})
	if err != nil {
		return snapshot.Unavailable("append", err)
	}
	return nil
}

func (s *Store) ReadRecent(ctx context.Context, id diagram.Identity, n int) ([]snapshot.Snapshot, error) {
	if n <= 0 {
		n = unboundedLimit
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (:Diagram {identity: $identity})-[:HAS_SNAPSHOT]->(s:Snapshot) "+
				"RETURN s.payload AS payload ORDER BY s.seq DESC LIMIT $limit",
			map[string]any{"identity": id.String(), "limit": n})
		if err != nil {
			return nil, err
		}
		var payloads []any
		for records.Next(ctx) {
			p, _ := records.Record().Get("payload")
			payloads = append(payloads, p)
		}
		return payloads, records.Err()
	})
	if err != nil {
		return nil, snapshot.Unavailable("read_recent", err)
	}

	payloads, _ := result.([]any)
	out := make([]snapshot.Snapshot, len(payloads))
	for i, p := range payloads {
		snap, err := decodePayload(p)
		if err != nil {
			return nil, snapshot.Unavailable("read_recent", err)
		}
		out[len(payloads)-1-i] = *snap
	}
	return out, nil
}

// PatternAdoption counts, per pattern id, the identities whose latest
// snapshot detected it.
func (s *Store) PatternAdoption(ctx context.Context) (map[string]int, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (d:Diagram)-[:HAS_SNAPSHOT]->(s:Snapshot) WHERE s.seq = d.next_seq "+
				"MATCH (s)-[:DETECTED]->(p:Pattern) "+
				"RETURN p.id AS id, count(DISTINCT d) AS diagrams", nil)
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int)
		for records.Next(ctx) {
			rec := records.Record()
			id, _ := rec.Get("id")
			n, _ := rec.Get("diagrams")
			if sid, ok := id.(string); ok {
				if c, ok := n.(int64); ok {
					counts[sid] = int(c)
				}
			}
		}
		return counts, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query pattern adoption: %w", err)
	}
	return result.(map[string]int), nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

func decodePayload(v any) (*snapshot.Snapshot, error) {
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("snapshot payload has type %T, want string", v)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal([]byte(str), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot payload: %w", err)
	}
	return &snap, nil
}

var _ snapshot.Repository = (*Store)(nil)
