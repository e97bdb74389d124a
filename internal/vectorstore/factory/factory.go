// Package factory selects and constructs the configured vector-store
// backend. It is kept separate from internal/vectorstore itself so the
// backend packages (which import internal/vectorstore for the Store
// interface and Document type) don't form an import cycle with the
// selector that imports all of them.
package factory

import (
	"context"
	"fmt"

	"ttrpg-ingest/internal/vectorstore"
	"ttrpg-ingest/internal/vectorstore/cassandrastore"
	"ttrpg-ingest/internal/vectorstore/memstore"
	"ttrpg-ingest/internal/vectorstore/qdrantstore"
)

// New constructs the configured Store implementation. Unrecognised
// backend names are a fatal construction error, per spec §4.12.
func New(ctx context.Context, name string, cfg vectorstore.Config) (vectorstore.Store, error) {
	switch name {
	case "memory":
		return memstore.NewMemoryStore().WithEnv(cfg.Environment), nil
	case "astra", "astra_vector":
		collection := cfg.QdrantCollection
		if collection == "" {
			collection = qdrantstore.CollectionName(cfg.Environment)
		}
		return qdrantstore.New(cfg.QdrantAddr, collection, cfg.RequireCreds, cfg.Simulate, cfg.ScanLimit)
	case "cassandra":
		return cassandrastore.New(ctx, cassandrastore.Config{
			ContactPoints: cfg.CassandraContactPoints,
			Port:          cfg.CassandraPort,
			Keyspace:      cfg.CassandraKeyspace,
			Table:         cfg.CassandraTable,
			Username:      cfg.CassandraUsername,
			Password:      cfg.CassandraPassword,
			Consistency:   cfg.CassandraConsistency,
			ScanLimit:     cfg.CassandraScanLimit,
		})
	default:
		return nil, fmt.Errorf("vectorstore/factory: unrecognised backend %q", name)
	}
}
