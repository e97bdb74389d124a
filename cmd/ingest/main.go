// Command ingest is the CLI entry point for the six-pass ingestion
// pipeline: it parses configuration, runs preflight checks, wires the
// dictionary store, embedder, and vector-store backend, then fans the
// upload directory out across the batch driver.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ttrpg-ingest/internal/chunker"
	"ttrpg-ingest/internal/config"
	"ttrpg-ingest/internal/dictionary"
	"ttrpg-ingest/internal/embedding"
	"ttrpg-ingest/internal/graphstore"
	"ttrpg-ingest/internal/llmseed"
	"ttrpg-ingest/internal/logging"
	"ttrpg-ingest/internal/pipeline"
	"ttrpg-ingest/internal/preflight"
	"ttrpg-ingest/internal/vectorstore"
	"ttrpg-ingest/internal/vectorstore/factory"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := context.Background()
	log := logging.New("bootstrap")

	if cfg.SkipPreflight {
		log.Warnf("--skip-preflight set: external tool checks skipped (debugging only)")
	} else {
		results := preflight.Check(ctx)
		if !preflight.AllAvailable(results) {
			fmt.Fprintln(os.Stderr, preflight.RemediationGuidance(results))
			return 2
		}
		if cfg.VerifyDeps {
			return 0
		}
	}

	store, err := factory.New(ctx, cfg.VectorStoreBackend, vectorstore.Config{
		Environment:            cfg.Env,
		QdrantCollection:       fmt.Sprintf("ttrpg_chunks_%s", cfg.Env),
		RequireCreds:           cfg.AstraRequireCreds,
		Simulate:               cfg.AstraSimulate,
		Insecure:               cfg.AstraInsecure,
		ScanLimit:              cfg.CassandraScanLimit,
		CassandraContactPoints: cfg.CassandraContactPoints,
		CassandraPort:          cfg.CassandraPort,
		CassandraKeyspace:      cfg.CassandraKeyspace,
		CassandraTable:         cfg.CassandraTable,
		CassandraUsername:      cfg.CassandraUsername,
		CassandraPassword:      cfg.CassandraPassword,
		CassandraConsistency:   cfg.CassandraConsistency,
		CassandraScanLimit:     cfg.CassandraScanLimit,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Warnf("ensure schema failed, continuing: %v", err)
	}

	if cfg.ResetDB {
		deleted, err := store.DeleteAll(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("reset-db: %w", err))
			return 1
		}
		log.Infof("reset-db complete for environment %s (%d documents removed)", cfg.Env, deleted)
		if cfg.UploadDir == "" {
			return 0
		}
	}

	var dict *dictionary.Store
	if cfg.PostgresConnStr != "" {
		d, err := dictionary.New(ctx, cfg.PostgresConnStr)
		if err != nil {
			log.Warnf("dictionary store unavailable, continuing without it: %v", err)
		} else {
			dict = d
			defer dict.Close()
			if err := dict.Initialize(ctx); err != nil {
				log.Warnf("dictionary initialize failed: %v", err)
			}
		}
	}

	var seeder llmseed.Seeder
	var embedder embedding.Embedder
	if cfg.OllamaHost != "" {
		seeder = llmseed.NewOllamaSeeder(cfg.OllamaHost, cfg.OllamaModel)
		if e, err := embedding.NewOllamaEmbedder(cfg.OllamaHost, cfg.OllamaModel, cfg.ModelDim); err != nil {
			log.Warnf("ollama embedder unavailable, continuing without embeddings: %v", err)
		} else {
			embedder = embedding.NewReducing(e, cfg.ModelDim, cfg.EmbedDimReduction)
		}
	} else if cfg.OpenAIAPIKey != "" {
		embedder = embedding.NewHTTPEmbedder("https://api.openai.com/v1", cfg.OpenAIAPIKey, "text-embedding-3-small", cfg.ModelDim)
	}

	var neo4jExp *graphstore.Neo4jExporter
	if cfg.GraphBackend == "neo4j" && cfg.Neo4jURI != "" {
		exp, err := graphstore.NewNeo4jExporter(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			log.Warnf("neo4j export unavailable, continuing with file-only graph artifacts: %v", err)
		} else {
			neo4jExp = exp
			defer neo4jExp.Close(ctx)
		}
	}

	if cfg.UploadDir == "" {
		return 0
	}

	orch := pipeline.NewOrchestrator(cfg.UploadDir)
	orch.Dict = dict
	orch.Seeder = seeder
	orch.Embedder = embedder
	orch.Store = store
	orch.Neo4j = neo4jExp

	runID := fmt.Sprintf("%d", time.Now().Unix())
	summary, err := pipeline.RunBatch(ctx, orch, pipeline.BatchOptions{
		Env:            cfg.Env,
		Threads:        cfg.Threads,
		UploadDir:      cfg.UploadDir,
		RunID:          runID,
		Resume:         cfg.Resume,
		ForceDictInit:  cfg.ForceDictInit,
		BarrierTimeout: pipeline.DefaultBarrierTimeout,
		SourceOptions: pipeline.Options{
			ChunkConfig: chunker.Config{
				MaxChars: cfg.ChunkMaxChars,
				HardCap:  cfg.ChunkHardCap,
				MinChars: cfg.ChunkMinChars,
				Overlap:  cfg.ChunkOverlap,
				SplitBy:  cfg.SplitBy,
			},
			ModelDim:           cfg.ModelDim,
			AbortOnDimMismatch: cfg.AbortOnIncompatibleVector,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if summary.SummaryStats.Failed > 0 {
		fmt.Fprint(os.Stderr, pipeline.FailureTable(summary))
	}

	return pipeline.ExitCode(summary)
}
