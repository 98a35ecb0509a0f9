package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// BM25Backend names a BM25Index implementation.
type BM25Backend string

const (
	// BM25BackendSQLite uses SQLite FTS5, with WAL mode for concurrent
	// multi-process access. This is docsearch's default.
	BM25BackendSQLite BM25Backend = "sqlite"

	// BM25BackendBleve uses Bleve v2's scorch segment store. Bleve holds
	// an exclusive lock on its index directory, so this backend only
	// supports a single process accessing a tenant's index at a time.
	BM25BackendBleve BM25Backend = "bleve"
)

// NewBM25IndexWithBackend opens a BM25Index using the backend named by
// backend ("sqlite" or "bleve"; "" defaults to sqlite). basePath is
// extended with the backend's file/directory convention (.db for
// SQLite, .bleve for Bleve); an empty basePath opens an in-memory index.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch BM25Backend(backend) {
	case BM25BackendSQLite, "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBM25Index(path, config)

	case BM25BackendBleve:
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)

	default:
		return nil, fmt.Errorf("unknown bm25 backend %q (valid: sqlite, bleve)", backend)
	}
}

// GetBM25IndexPath returns the base data-dir path a BM25 index of the
// given backend will be stored under, before the backend's extension is
// appended by NewBM25IndexWithBackend.
func GetBM25IndexPath(dataDir string) string {
	return filepath.Join(dataDir, "bm25")
}

// DetectBM25Backend inspects dataDir for an existing index of either
// backend, so an App opened against a pre-existing data directory picks
// up whichever backend last wrote there instead of needing it repeated
// in config.
func DetectBM25Backend(dataDir string) BM25Backend {
	base := GetBM25IndexPath(dataDir)
	if fileExists(base + ".db") {
		return BM25BackendSQLite
	}
	if dirExists(base + ".bleve") {
		return BM25BackendBleve
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
