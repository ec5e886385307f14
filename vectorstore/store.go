// Package vectorstore is the per-case vector store adapter of spec §4.6: it
// owns one SQLite database per case (vec0 dense vectors plus sparse token
// junction tables), a separate shared database for cross-case reference
// collections, and enforces that no query or write can cross a case
// boundary. Persistence idioms (connection pragmas, vec0 registration,
// serialized float32 vectors) are grounded in the teacher's store package.
package vectorstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Config controls the store's on-disk layout and vector dimensionality.
type Config struct {
	StorageDir        string
	EmbeddingDim      int
	SharedCollections []string // names usable without a case prefix
}

func (c Config) withDefaults() Config {
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = 1536
	}
	return c
}

// Store caches one *sql.DB per case plus one shared *sql.DB, all lazily
// opened and guarded by a mutex (spec §4.6: "adapter ... maintains one
// connection per active case").
type Store struct {
	cfg Config

	mu      sync.Mutex
	caseDBs map[string]*sql.DB
	shared  *sql.DB
}

var caseNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// sanitizeCaseName maps a CaseName to a safe filesystem/collection token.
func sanitizeCaseName(caseName string) string {
	s := strings.TrimSpace(caseName)
	s = caseNamePattern.ReplaceAllString(s, "_")
	if s == "" {
		s = "case"
	}
	return strings.ToLower(s)
}

// New constructs a Store. It does not open any database until a case is
// first touched (EnsureCollections, UpsertChunks, Search, ...).
func New(cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		cfg:     cfg,
		caseDBs: make(map[string]*sql.DB),
	}
}

// Close closes every open connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, db := range s.caseDBs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.shared != nil {
		if err := s.shared.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) casePath(caseName string) string {
	return filepath.Join(s.cfg.StorageDir, "cases", sanitizeCaseName(caseName)+".db")
}

func (s *Store) sharedPath() string {
	return filepath.Join(s.cfg.StorageDir, "shared.db")
}

func openSQLite(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("vectorstore: creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("vectorstore: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: pinging %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// dbForCase returns the cached (or newly opened+migrated) connection for a
// case, without validating the case name belongs to the caller.
func (s *Store) dbForCase(caseName string) (*sql.DB, error) {
	key := sanitizeCaseName(caseName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.caseDBs[key]; ok {
		return db, nil
	}
	db, err := openSQLite(s.casePath(caseName))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(caseSchemaSQL(s.cfg.EmbeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: creating case schema: %w", err)
	}
	s.caseDBs[key] = db
	return db, nil
}

// dbForShared returns the shared-collections connection.
func (s *Store) dbForShared() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shared != nil {
		return s.shared, nil
	}
	db, err := openSQLite(s.sharedPath())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sharedSchemaSQL(s.cfg.EmbeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: creating shared schema: %w", err)
	}
	s.shared = db
	return db, nil
}
