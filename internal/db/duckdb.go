// Package db opens DuckDB connections for data preparation.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	// DataDir holds the duckdb/ directory. Empty opens an in-memory database.
	DataDir string
	DBName  string
	// Extensions are installed and loaded after opening, e.g. "spatial".
	Extensions []string
}

// Open returns a DuckDB connection. Extensions that fail to load are skipped
// and reported in the returned list.
func Open(cfg Config) (*sql.DB, []string, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "bikemap"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("opening duckdb: %w", err)
	}

	var skipped []string
	for _, ext := range cfg.Extensions {
		if _, err := conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			skipped = append(skipped, ext)
		}
	}
	return conn, skipped, nil
}
