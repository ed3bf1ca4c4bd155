package gamma

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// ArtifactCache remembers downloaded generation artifacts keyed by a
// request fingerprint, so re-running a pipeline with unchanged inputs
// skips the API round trip. The index lives in a sqlite database next to
// the cached files.
type ArtifactCache struct {
	db  *sql.DB
	dir string
}

// OpenArtifactCache opens (or creates) the cache rooted at dir.
func OpenArtifactCache(dir string) (*ArtifactCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "artifacts.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			fingerprint TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create artifacts table: %w", err)
	}
	return &ArtifactCache{db: db, dir: dir}, nil
}

// Close releases the cache database.
func (c *ArtifactCache) Close() error {
	return c.db.Close()
}

// Dir returns the cache's root directory.
func (c *ArtifactCache) Dir() string {
	return c.dir
}

// Fingerprint derives a stable cache key from any JSON-encodable request
// payload.
func Fingerprint(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint payload: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Lookup returns the cached file path for a fingerprint. A stale entry
// whose file has been removed is evicted and reported as a miss.
func (c *ArtifactCache) Lookup(fingerprint string) (string, bool) {
	var filePath string
	err := c.db.QueryRow(
		`SELECT file_path FROM artifacts WHERE fingerprint = ?`, fingerprint,
	).Scan(&filePath)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(filePath); err != nil {
		c.db.Exec(`DELETE FROM artifacts WHERE fingerprint = ?`, fingerprint)
		return "", false
	}
	return filePath, true
}

// Store copies srcPath into the cache directory and records it under the
// fingerprint, returning the cached path.
func (c *ArtifactCache) Store(fingerprint, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	cached := filepath.Join(c.dir, fingerprint+filepath.Ext(srcPath))
	if err := os.WriteFile(cached, data, 0600); err != nil {
		return "", fmt.Errorf("write cached artifact: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO artifacts (fingerprint, file_path, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET file_path = excluded.file_path, created_at = excluded.created_at`,
		fingerprint, cached, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("record cached artifact: %w", err)
	}
	return cached, nil
}
