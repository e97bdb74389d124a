// Package atomicfile writes JSON and JSON-lines artifacts atomically:
// encode to a sibling temp file with a unique suffix, fsync, then rename
// over the target. Every pass in internal/pipeline persists its output
// this way so a crash mid-write never leaves a partially-written
// manifest or chunk file behind.
package atomicfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteJSON atomically writes v, marshaled as indented JSON, to path.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("atomicfile: marshal %s: %w", path, err)
	}
	return writeAtomic(path, data)
}

// WriteJSONLines atomically writes one JSON-encoded object per line.
func WriteJSONLines(path string, items []interface{}) error {
	var data []byte
	for i, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("atomicfile: marshal line %d of %s: %w", i, path, err)
		}
		data = append(data, line...)
		data = append(data, '\n')
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a sibling temp file with a unique suffix,
// fsyncs it, then renames it over path. Retries the rename once on a
// transient failure before giving up, matching the retry behavior the
// spec's artifact utilities describe.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("atomicfile: write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("atomicfile: fsync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: close temp for %s: %w", path, err)
	}

	var renameErr error
	for attempt := 0; attempt < 2; attempt++ {
		renameErr = os.Rename(tmpPath, path)
		if renameErr == nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("atomicfile: rename temp onto %s: %w", path, renameErr)
}

// ReadJSON reads and unmarshals the JSON document at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("atomicfile: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("atomicfile: unmarshal %s: %w", path, err)
	}
	return nil
}

// SHA256File computes the hex-encoded SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("atomicfile: read %s for checksum: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Exists reports whether path names a regular file with non-zero size.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir() && fi.Size() > 0
}

// ReadLines reads path and splits it into non-empty lines, the
// companion reader for WriteJSONLines.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("atomicfile: read %s: %w", path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// UnmarshalJSONLine decodes one JSON-lines row into v.
func UnmarshalJSONLine(line string, v interface{}) error {
	return json.Unmarshal([]byte(line), v)
}
