package index

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 2

func initSchema(db *sql.DB) error {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// the index is rebuilt from the workspace, so older layouts are dropped
	if version != 0 {
		if err := dropTables(tx); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}

	if err := createTables(tx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return tx.Commit()
}

func createTables(tx *sql.Tx) error {
	queries := []string{
		// One row per indexed ledger file.
		// - mod_time: unix nanoseconds of the file when it was indexed
		`CREATE TABLE IF NOT EXISTS files (
            path TEXT PRIMARY KEY,
            mod_time INTEGER NOT NULL
        )`,

		// Declarations found in a file: accounts (open) and commodities.
		// Rows go away with their file.
		// - folded: name lower-cased with full Unicode case mapping, for search
		`CREATE TABLE IF NOT EXISTS symbols (
            path TEXT NOT NULL,
            name TEXT NOT NULL,
            folded TEXT NOT NULL,
            kind TEXT NOT NULL,
            line INTEGER NOT NULL,
            character INTEGER NOT NULL,
            end_line INTEGER NOT NULL,
            end_character INTEGER NOT NULL,
            FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
        )`,

		`CREATE INDEX IF NOT EXISTS idx_symbols_name
            ON symbols(name, kind)`,

		`CREATE INDEX IF NOT EXISTS idx_symbols_path
            ON symbols(path)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	return nil
}

func dropTables(tx *sql.Tx) error {
	for _, table := range []string{"symbols", "files"} {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}
