// Package sqlite keeps a flat L2 index in a SQLite file so a session can be
// reopened after a restart. Each row holds a vector and its chunk, which keeps
// the two in lockstep by construction.
package sqlite

import (
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"notebookrag/internal/domain"
	"notebookrag/internal/vectorstore"
)

//go:embed schema.sql
var schema string

// Storage is a SQLite-backed flat index.
type Storage struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	dimension int
	size      int
}

// NewOpener returns an Opener that stores each session in dir/<name>.db.
func NewOpener(dir string) vectorstore.Opener {
	return func(name string, dimension int) (domain.VectorIndex, error) {
		s, err := Open(filepath.Join(dir, name+".db"), dimension)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open opens or creates the index file at path. Reopening an index created
// with another dimension fails with domain.ErrDimensionMismatch.
func Open(path string, dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, domain.ConfigError("invalid dimension %d", dimension)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index db: %w", err)
	}
	s := &Storage{db: db, path: path, dimension: dimension}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var stored string
	err := s.db.QueryRow(`SELECT value FROM index_meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec(`INSERT INTO index_meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(s.dimension)); err != nil {
			return fmt.Errorf("store dimension: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read dimension: %w", err)
	default:
		d, err := strconv.Atoi(stored)
		if err != nil {
			return fmt.Errorf("corrupt dimension %q: %w", stored, err)
		}
		if d != s.dimension {
			return fmt.Errorf("reopen %s: %w", s.path, &domain.DimensionError{Want: d, Got: s.dimension})
		}
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&s.size); err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (s *Storage) Path() string { return s.path }

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Add inserts the batch in one transaction.
func (s *Storage) Add(vectors []domain.Vector, chunks []domain.Chunk) error {
	if err := vectorstore.ValidateBatch(s.dimension, vectors, chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO entries (ordinal, chunk_id, text, page, source, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range vectors {
		c := chunks[i]
		if _, err := stmt.Exec(s.size+i, c.ChunkID, c.Text, c.Metadata.Page, c.Metadata.Source, vectorToBlob(vectors[i])); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.size += len(vectors)
	return nil
}

func (s *Storage) Search(query domain.Vector, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateQuery(s.dimension, query, topK); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ordinal, chunk_id, text, page, source, vector FROM entries ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var (
		entries   []domain.SearchResult
		distances []float64
	)
	for rows.Next() {
		var (
			r    domain.SearchResult
			blob []byte
		)
		if err := rows.Scan(&r.Ordinal, &r.Chunk.ChunkID, &r.Chunk.Text, &r.Chunk.Metadata.Page, &r.Chunk.Metadata.Source, &blob); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		v, err := blobToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", r.Ordinal, err)
		}
		r.Distance = vectorstore.L2(v, query)
		entries = append(entries, r)
		distances = append(distances, r.Distance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	idxs := vectorstore.Rank(distances, topK)
	results := make([]domain.SearchResult, 0, len(idxs))
	for _, j := range idxs {
		results = append(results, entries[j])
	}
	return results, nil
}

func (s *Storage) Close() error { return s.db.Close() }

func vectorToBlob(v domain.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func blobToVector(blob []byte) (domain.Vector, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(blob))
	}
	v := make(domain.Vector, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
