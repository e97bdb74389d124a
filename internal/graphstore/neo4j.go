package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ttrpg-ingest/internal/models"
)

// Neo4jExporter mirrors a GraphSnapshot into Neo4j via idempotent MERGE
// statements keyed by node_id (nodes) and (source_id,target_id,edge_type)
// (edges), per spec §4.7 step 9. Grounded on the neo4j-go-driver/v5
// session.ExecuteWrite pattern the pack references (WessleyAI-wessley-mvp
// go.mod); failures here log a warning and never fail Pass E.
type Neo4jExporter struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jExporter dials uri with basic auth. Callers should treat a
// construction error as "export unavailable" and continue without it.
func NewNeo4jExporter(ctx context.Context, uri, user, password string) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: neo4j connectivity: %w", err)
	}
	return &Neo4jExporter{driver: driver}, nil
}

// Close releases the driver's connection pool.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Export MERGEs every node and edge in the snapshot. It stops at the
// first failed statement and returns that error; the caller (Pass E)
// treats any error here as warning-only.
func (e *Neo4jExporter) Export(ctx context.Context, snapshot models.GraphSnapshot) error {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, n := range snapshot.Nodes {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, `
				MERGE (n:GraphNode {node_id: $node_id})
				SET n.node_type = $node_type, n.title = $title
			`, map[string]any{
				"node_id":   n.NodeID,
				"node_type": string(n.NodeType),
				"title":     n.Title,
			})
		})
		if err != nil {
			return fmt.Errorf("graphstore: merge node %s: %w", n.NodeID, err)
		}
	}

	for _, edge := range snapshot.Edges {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, `
				MATCH (a:GraphNode {node_id: $source_id})
				MATCH (b:GraphNode {node_id: $target_id})
				MERGE (a)-[r:RELATES {edge_type: $edge_type}]->(b)
				SET r.weight = $weight
			`, map[string]any{
				"source_id": edge.SourceID,
				"target_id": edge.TargetID,
				"edge_type": string(edge.EdgeType),
				"weight":    edge.Weight,
			})
		})
		if err != nil {
			return fmt.Errorf("graphstore: merge edge %s->%s: %w", edge.SourceID, edge.TargetID, err)
		}
	}

	return nil
}
