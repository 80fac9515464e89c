package db

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2" // load duckdb driver
)

type Options struct {
	Threads     int
	MemoryLimit string
}

// ConnectDuckDB opens and returns a connection to DuckDB. An empty filePath
// opens an in-memory database shared by every connection of the pool.
func ConnectDuckDB(filePath string, opts Options) (*sql.DB, error) {
	db, err := sql.Open("duckdb", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to DuckDB: %w", err)
	}

	if opts.Threads > 0 {
		if _, err = db.Exec(fmt.Sprintf("SET threads = %d", opts.Threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set DuckDB threads: %w", err)
		}
	}
	if opts.MemoryLimit != "" {
		if _, err = db.Exec(fmt.Sprintf("SET memory_limit = '%s'", opts.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set DuckDB memory limit: %w", err)
		}
	}
	return db, nil
}
