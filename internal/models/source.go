// Package models holds the data types shared across every pass of the
// ingestion pipeline: sources, jobs, manifests, chunks at each stage, the
// document graph, and the per-source/per-batch result shapes.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Environment selects which database collections/tables a pipeline run
// targets. "test" is deliberately treated identically to "dev" by the
// guardrail thresholds (see internal/guardrail).
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

// SourceInfo captures the immutable identity of an input PDF: its size,
// modification time, and content hash. A Source is identified by the
// combination of filename, size, and mtime.
type SourceInfo struct {
	Size   int64  `json:"size"`
	MTime  int64  `json:"mtime"`
	SHA256 string `json:"sha256"`
}

// Source describes one input PDF on disk.
type Source struct {
	Path     string
	Filename string
	Info     SourceInfo
}

// LoadSource stats a PDF file and computes its stable 12-character hash
// identifier from filename + size + mtime, matching the data model in
// spec.md §3. The SHA-256 content hash is computed separately because it
// requires reading the whole file; callers that only need the identity
// hash should use HashID without forcing a full read.
func LoadSource(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("models: stat source %s: %w", path, err)
	}

	return &Source{
		Path:     path,
		Filename: filepath.Base(path),
		Info: SourceInfo{
			Size:  fi.Size(),
			MTime: fi.ModTime().Unix(),
		},
	}, nil
}

// HashID returns the stable 12-character identifier derived from
// filename + size + mtime, used as part of the job ID.
func (s *Source) HashID() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", s.Filename, s.Info.Size, s.Info.MTime)))
	return hex.EncodeToString(sum[:])[:12]
}

// ContentHash computes the SHA-256 of the file's bytes and stores it on
// SourceInfo. Pass A calls this once per job.
func (s *Source) ContentHash() (string, error) {
	if s.Info.SHA256 != "" {
		return s.Info.SHA256, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("models: read source %s: %w", s.Path, err)
	}
	sum := sha256.Sum256(data)
	s.Info.SHA256 = hex.EncodeToString(sum[:])
	return s.Info.SHA256, nil
}
