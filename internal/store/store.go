package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"
)

// Store represents the SQLite-based embedding cache
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "watchtrail.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	embeddingsTable := `
	CREATE TABLE IF NOT EXISTS embeddings (
		text_hash TEXT NOT NULL,
		model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		vector BLOB NOT NULL,
		date_created DATETIME,
		PRIMARY KEY (text_hash, model)
	);`

	if _, err := s.db.Exec(embeddingsTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// PutEmbeddings stores vectors for texts under model in one transaction
func (s *Store) PutEmbeddings(model string, texts []string, vectors [][]float64) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO embeddings
	(text_hash, model, dimensions, vector, date_created)
	VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, text := range texts {
		if _, err := stmt.Exec(HashText(text), model, len(vectors[i]), serializeEmbedding(vectors[i]), now); err != nil {
			return fmt.Errorf("failed to cache embedding %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetEmbeddings looks up cached vectors for texts under model.
// The result is aligned with texts; misses are nil.
func (s *Store) GetEmbeddings(model string, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	stmt, err := s.db.Prepare("SELECT vector FROM embeddings WHERE text_hash = ? AND model = ?")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare lookup: %w", err)
	}
	defer stmt.Close()

	for i, text := range texts {
		var blob []byte
		err := stmt.QueryRow(HashText(text), model).Scan(&blob)
		if err == sql.ErrNoRows {
			continue // Cache miss
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vector, err := deserializeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

// CacheStats represents cache statistics
type CacheStats struct {
	EmbeddingCount int
	ModelCount     int
	CacheSize      int64
	LastUpdated    time.Time
}

// GetCacheStats returns statistics about the cache
func (s *Store) GetCacheStats() (*CacheStats, error) {
	stats := &CacheStats{}

	queries := map[string]*int{
		"SELECT COUNT(*) FROM embeddings":              &stats.EmbeddingCount,
		"SELECT COUNT(DISTINCT model) FROM embeddings": &stats.ModelCount,
	}

	for query, target := range queries {
		err := s.db.QueryRow(query).Scan(target)
		if err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	// Get cache size (file size)
	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.CacheSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// ClearCache removes all cached data
func (s *Store) ClearCache() error {
	if _, err := s.db.Exec("DELETE FROM embeddings"); err != nil {
		return fmt.Errorf("failed to clear embeddings table: %w", err)
	}

	// Vacuum to reclaim space
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}

// CleanupOldCache removes embeddings older than maxAge
func (s *Store) CleanupOldCache(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec("DELETE FROM embeddings WHERE date_created < ?", time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to clean old embeddings: %w", err)
	}
	return res.RowsAffected()
}

// HashText returns the hex BLAKE3 digest used as the cache key for text
func HashText(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// serializeEmbedding packs a vector as little-endian float64s
func serializeEmbedding(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func deserializeEmbedding(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("corrupt embedding blob of %d bytes", len(buf))
	}
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return v, nil
}
