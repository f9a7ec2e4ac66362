package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"segment_server/core/domain"
	"segment_server/core/port/out"
)

// MigrationAdapter stores migrations as (:Customer)-[:MIGRATED]->(:Segment)
// edges and keeps one current (:Customer)-[:IN_SEGMENT]->(:Segment) edge.
type MigrationAdapter struct {
	driver neo4j.DriverWithContext
	dbName string
}

var (
	_ out.MigrationHistory = (*MigrationAdapter)(nil)
	_ out.MigrationReader  = (*MigrationAdapter)(nil)
)

func NewMigrationAdapter(driver neo4j.DriverWithContext, dbName string) *MigrationAdapter {
	return &MigrationAdapter{driver: driver, dbName: dbName}
}

// EnsureConstraints creates the uniqueness constraints the MERGEs rely on.
func (a *MigrationAdapter) EnsureConstraints(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT customer_id_unique IF NOT EXISTS FOR (c:Customer) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT segment_id_unique IF NOT EXISTS FOR (s:Segment) REQUIRE s.id IS UNIQUE`,
	}
	for _, query := range queries {
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("ensure constraint: %w", err)
		}
	}
	return nil
}

const saveMigrationQuery = `
	MERGE (c:Customer {id: $customerID})
	MERGE (from:Segment {id: $from})
	MERGE (to:Segment {id: $to})
	CREATE (c)-[:MIGRATED {
		from: $from,
		reason: $reason,
		confidence: $confidence,
		occurred_at: $occurredAt
	}]->(to)
	WITH c, to
	OPTIONAL MATCH (c)-[current:IN_SEGMENT]->(:Segment)
	DELETE current
	WITH c, to
	MERGE (c)-[:IN_SEGMENT]->(to)
`

func (a *MigrationAdapter) SaveMigration(ctx context.Context, m domain.SegmentMigration) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: a.dbName,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, saveMigrationQuery, migrationParams(m))
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("save migration for %s: %w", m.CustomerID, err)
	}
	return nil
}

func migrationParams(m domain.SegmentMigration) map[string]any {
	occurred := m.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return map[string]any{
		"customerID": m.CustomerID,
		"from":       m.FromSegment,
		"to":         m.ToSegment,
		"reason":     m.Reason,
		"confidence": m.Confidence,
		"occurredAt": occurred.UTC().UnixMilli(),
	}
}

const customerMigrationsQuery = `
	MATCH (:Customer {id: $customerID})-[m:MIGRATED]->(to:Segment)
	RETURN m.from AS from, to.id AS to, m.reason AS reason,
		m.confidence AS confidence, m.occurred_at AS occurred_at
	ORDER BY m.occurred_at DESC
	LIMIT $limit
`

func (a *MigrationAdapter) CustomerMigrations(ctx context.Context, customerID string, limit int) ([]domain.SegmentMigration, error) {
	if limit <= 0 {
		limit = 20
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: a.dbName,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, customerMigrationsQuery, map[string]any{
			"customerID": customerID,
			"limit":      limit,
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		migrations := make([]domain.SegmentMigration, 0, len(records))
		for _, rec := range records {
			migrations = append(migrations, recordToMigration(customerID, rec))
		}
		return migrations, nil
	})
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", customerID, err)
	}
	return result.([]domain.SegmentMigration), nil
}

func recordToMigration(customerID string, rec *neo4j.Record) domain.SegmentMigration {
	m := domain.SegmentMigration{CustomerID: customerID}
	if v, ok := rec.Get("from"); ok {
		m.FromSegment, _ = v.(string)
	}
	if v, ok := rec.Get("to"); ok {
		m.ToSegment, _ = v.(string)
	}
	if v, ok := rec.Get("reason"); ok {
		m.Reason, _ = v.(string)
	}
	if v, ok := rec.Get("confidence"); ok {
		m.Confidence, _ = v.(float64)
	}
	if v, ok := rec.Get("occurred_at"); ok {
		if ms, ok := v.(int64); ok {
			m.OccurredAt = time.UnixMilli(ms).UTC()
		}
	}
	return m
}
