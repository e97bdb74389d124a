// Package config parses the CLI surface and the recognised environment
// variables described in spec §6, plus the validation rule that rejects
// SSL_NO_VERIFY outside the dev environment. It optionally loads a .env
// file first via github.com/joho/godotenv, the way several pack repos
// (nss-ark-gocognigo, NISHADDEVENDRA-chatbot-backend) do it: never
// required, only a convenience before flags/env are read.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the fully resolved CLI + environment configuration for one
// batch-driver invocation.
type Config struct {
	Env            string
	Threads        int
	UploadDir      string
	ResetDB        bool
	Resume         bool
	ForceDictInit  bool
	CleanupDays    int
	NoCleanup      bool
	NoLogfile      bool
	SkipPreflight  bool
	VerifyDeps     bool

	VectorStoreBackend string
	AstraRequireCreds  bool
	AstraSimulate      bool
	AstraInsecure      bool

	CassandraContactPoints []string
	CassandraPort          int
	CassandraKeyspace      string
	CassandraTable         string
	CassandraUsername      string
	CassandraPassword      string
	CassandraConsistency   string
	CassandraScanLimit     int

	ChunkMaxChars int
	ChunkHardCap  int
	ChunkMinChars int
	ChunkOverlap  int
	SplitBy       string

	ModelDim                 int
	EmbedDimReduction        string
	AbortOnIncompatibleVector bool

	GraphBackend string
	Neo4jURI     string
	Neo4jUser    string
	Neo4jPass    string

	OpenAIAPIKey string
	SSLNoVerify  bool

	PostgresConnStr string
	OllamaHost      string
	OllamaModel     string
}

// Parse loads an optional .env file, parses CLI flags, overlays the
// environment-variable table, and validates the result.
func Parse(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	cfg := &Config{}

	fs.StringVar(&cfg.Env, "env", "dev", "environment: dev, test, or prod")
	fs.IntVar(&cfg.Threads, "threads", 4, "number of concurrent workers")
	fs.StringVar(&cfg.UploadDir, "upload-dir", "", "directory of PDF files to ingest")
	fs.BoolVar(&cfg.ResetDB, "reset-db", false, "destructive: reset vector store collections")
	fs.BoolVar(&cfg.Resume, "resume", false, "resume from existing manifests")
	fs.BoolVar(&cfg.ForceDictInit, "force-dict-init", false, "re-run Pass A even if marked complete")
	fs.IntVar(&cfg.CleanupDays, "cleanup-days", 7, "age in days after which stale artifacts are purged")
	fs.BoolVar(&cfg.NoCleanup, "no-cleanup", false, "disable artifact age-based cleanup")
	fs.BoolVar(&cfg.NoLogfile, "no-logfile", false, "disable the run's log file")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", false, "skip external-tool preflight checks (debugging only)")
	fs.BoolVar(&cfg.VerifyDeps, "verify-deps", false, "run preflight checks only and exit")

	var resetConfirm string
	fs.StringVar(&resetConfirm, "confirm", "", "typed confirmation required for --reset-db in prod")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(resetConfirm); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.VectorStoreBackend = envOr("VECTOR_STORE_BACKEND", "memory")
	c.AstraRequireCreds = envBool("ASTRA_REQUIRE_CREDS", false)
	c.AstraSimulate = envBool("ASTRA_SIMULATE", false)
	c.AstraInsecure = envBool("ASTRA_INSECURE", false)

	c.CassandraContactPoints = splitNonEmpty(envOr("CASSANDRA_CONTACT_POINTS", ""), ",")
	c.CassandraPort = envInt("CASSANDRA_PORT", 9042)
	c.CassandraKeyspace = envOr("CASSANDRA_KEYSPACE", "")
	c.CassandraTable = envOr("CASSANDRA_TABLE", "chunks")
	c.CassandraUsername = envOr("CASSANDRA_USERNAME", "")
	c.CassandraPassword = envOr("CASSANDRA_PASSWORD", "")
	c.CassandraConsistency = envOr("CASSANDRA_CONSISTENCY", "QUORUM")
	c.CassandraScanLimit = envInt("CASSANDRA_VECTOR_SCAN_LIMIT", 2000)

	c.ChunkMaxChars = envInt("CHUNK_MAX_CHARS", 500)
	c.ChunkHardCap = envInt("CHUNK_HARD_CAP", 600)
	c.ChunkMinChars = envInt("CHUNK_MIN_CHARS", 120)
	c.ChunkOverlap = envInt("CHUNK_OVERLAP", 60)
	c.SplitBy = envOr("SPLIT_BY", "word")

	c.ModelDim = envInt("MODEL_DIM", 1024)
	c.EmbedDimReduction = envOr("EMBED_DIM_REDUCTION", "truncate")
	c.AbortOnIncompatibleVector = envBool("ABORT_ON_INCOMPATIBLE_VECTOR", true)

	c.GraphBackend = envOr("GRAPH_BACKEND", "files")
	c.Neo4jURI = envOr("NEO4J_URI", "")
	c.Neo4jUser = envOr("NEO4J_USER", "")
	c.Neo4jPass = envOr("NEO4J_PASSWORD", "")

	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", "")
	c.SSLNoVerify = envBool("SSL_NO_VERIFY", false)

	c.PostgresConnStr = envOr("DATABASE_URL", "")
	c.OllamaHost = envOr("OLLAMA_HOST", "")
	c.OllamaModel = envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text")
}

// validate enforces the cross-field rules spec §6 describes: SSL_NO_VERIFY
// is rejected outside dev, and a prod --reset-db requires the typed
// confirmation phrase.
func (c *Config) validate(resetConfirm string) error {
	if c.SSLNoVerify && c.Env != "dev" {
		return fmt.Errorf("config: SSL_NO_VERIFY is only permitted in the dev environment (env=%s)", c.Env)
	}
	if c.ResetDB && c.Env == "prod" && resetConfirm != "DELETE_ALL_PROD_DATA" {
		return fmt.Errorf("config: --reset-db in prod requires --confirm=DELETE_ALL_PROD_DATA")
	}
	switch c.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("config: unrecognised --env %q", c.Env)
	}
	if c.UploadDir == "" && !c.ResetDB && !c.VerifyDeps {
		return fmt.Errorf("config: --upload-dir is required unless only --reset-db or --verify-deps is given")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
