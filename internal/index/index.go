// Package index keeps a sqlite index of the account and commodity
// declarations of every ledger file in the workspace, including files that
// are not open in the editor.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ledgerls/internal/ledger"
	"ledgerls/internal/position"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/singleflight"
)

var log = commonlog.GetLogger("ledgerls.index")

type Index struct {
	db     *sql.DB
	flight singleflight.Group
}

// Open opens (or creates) the index database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
        PRAGMA foreign_keys = ON;
        PRAGMA journal_mode = WAL;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Index{db: db}, nil
}

func (ix *Index) WithTx(fn func(*sql.Tx) error) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	return nil
}

// UpdateFile replaces everything known about path.
func (ix *Index) UpdateFile(path string, modTime time.Time, symbols []Symbol) error {
	return ix.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
            INSERT INTO files (path, mod_time) VALUES (?, ?)
            ON CONFLICT(path) DO UPDATE SET mod_time = excluded.mod_time
        `, path, modTime.UnixNano()); err != nil {
			return fmt.Errorf("failed to upsert file: %w", err)
		}

		if _, err := tx.Exec("DELETE FROM symbols WHERE path = ?", path); err != nil {
			return fmt.Errorf("failed to delete symbols: %w", err)
		}

		stmt, err := tx.Prepare(`
            INSERT INTO symbols (path, name, folded, kind, line, character, end_line, end_character)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        `)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range symbols {
			r := s.Range
			if _, err := stmt.Exec(path, s.Name, strings.ToLower(s.Name), s.Kind, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character); err != nil {
				return fmt.Errorf("failed to insert symbol %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

// IndexFile parses the file at path and stores its declarations unless the
// index already holds this modification time. It reports whether the file
// was (re)indexed. Concurrent calls for one path share a single run.
func (ix *Index) IndexFile(ctx context.Context, path string) (bool, error) {
	v, err, _ := ix.flight.Do(path, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		info, err := os.Stat(path)
		if err != nil {
			return false, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		known, err := ix.ModTime(path)
		if err == nil && known.Equal(info.ModTime()) {
			return false, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", path, err)
		}
		text := string(data)
		symbols := Extract(path, position.NewLineIndex(text), ledger.Parse(text))

		if err := ix.UpdateFile(path, info.ModTime(), symbols); err != nil {
			return false, err
		}
		log.Debugf("indexed %s: %d symbols", path, len(symbols))
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// DeleteFile forgets path and its symbols.
func (ix *Index) DeleteFile(path string) error {
	return ix.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM symbols WHERE path = ?", path); err != nil {
			return fmt.Errorf("failed to delete symbols: %w", err)
		}

		result, err := tx.Exec("DELETE FROM files WHERE path = ?", path)
		if err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}

		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ModTime returns the modification time recorded for path.
func (ix *Index) ModTime(path string) (time.Time, error) {
	var nanos int64
	err := ix.db.QueryRow("SELECT mod_time FROM files WHERE path = ?", path).Scan(&nanos)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query file: %w", err)
	}
	return time.Unix(0, nanos), nil
}

func (ix *Index) Files() ([]string, error) {
	rows, err := ix.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file records: %w", err)
	}
	return paths, nil
}

// Prune removes every file for which keep returns false and reports how
// many were removed.
func (ix *Index) Prune(keep func(path string) bool) (int, error) {
	paths, err := ix.Files()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		if keep(p) {
			continue
		}
		if err := ix.DeleteFile(p); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Lookup returns the declarations of name with the given kind.
func (ix *Index) Lookup(name, kind string) ([]Symbol, error) {
	rows, err := ix.db.Query(`
        SELECT path, name, kind, line, character, end_line, end_character
        FROM symbols
        WHERE name = ? AND kind = ?
        ORDER BY path, line
    `, name, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	return scanSymbols(rows)
}

// Search returns up to limit declarations whose name contains query,
// ignoring case. sqlite's lower() maps ASCII only, so names are matched
// against the folded column.
func (ix *Index) Search(query string, limit int) ([]Symbol, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := ix.db.Query(`
        SELECT path, name, kind, line, character, end_line, end_character
        FROM symbols
        WHERE folded LIKE ? ESCAPE '\'
        ORDER BY name, path
        LIMIT ?
    `, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}
	defer rows.Close()

	return scanSymbols(rows)
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

func scanSymbols(rows *sql.Rows) ([]Symbol, error) {
	var symbols []Symbol
	for rows.Next() {
		var s Symbol
		var sl, sc, el, ec protocol.UInteger
		if err := rows.Scan(&s.Path, &s.Name, &s.Kind, &sl, &sc, &el, &ec); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		s.Range = protocol.Range{
			Start: protocol.Position{Line: sl, Character: sc},
			End:   protocol.Position{Line: el, Character: ec},
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
