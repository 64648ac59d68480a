// Package cache persists built MBOX indexes in SQLite so reopening an
// unchanged file skips the full scan.
//
// Each MBOX file gets its own database, named by the SHA-256 of its absolute
// path. A cached index is only used when the file's size and modification
// time, the index options fingerprint and the schema version all match what
// was recorded when it was saved.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/wesm/mboxbrowser/internal/fileutil"
	"github.com/wesm/mboxbrowser/internal/model"
)

// SchemaVersion is bumped whenever the table layout or the meaning of an
// indexed field changes. Databases written with another version are ignored.
const SchemaVersion = 1

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	seq             INTEGER PRIMARY KEY,
	byte_offset     INTEGER NOT NULL,
	byte_length     INTEGER NOT NULL,
	date            TEXT NOT NULL,
	from_name       TEXT NOT NULL,
	from_address    TEXT NOT NULL,
	to_json         TEXT NOT NULL,
	cc_json         TEXT NOT NULL,
	subject         TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	has_attachments INTEGER NOT NULL,
	labels_json     TEXT NOT NULL
);
`

// Key identifies one version of an MBOX file.
type Key struct {
	Path    string // absolute
	Size    int64
	ModTime time.Time

	// Options fingerprints the index options the entries were built with.
	Options string
}

// KeyFor stats path and returns its cache key for entries built with the
// options fingerprinted as options.
func KeyFor(path, options string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, fmt.Errorf("resolve path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return Key{}, err
	}
	return Key{Path: abs, Size: st.Size(), ModTime: st.ModTime(), Options: options}, nil
}

// Cache is a directory of per-file index databases.
type Cache struct {
	dir string
}

// Open returns a cache rooted at dir, creating the directory if needed.
func Open(dir string) (*Cache, error) {
	if err := fileutil.SecureMkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// DBPath returns the database file used for the MBOX file at absPath.
func (c *Cache) DBPath(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".db")
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Load returns the cached entries for k in file order. ok is false on a
// miss: no database yet, a stale key, different index options or another
// schema version.
func (c *Cache) Load(ctx context.Context, k Key) (entries []model.IndexEntry, ok bool, err error) {
	dbPath := c.DBPath(k.Path)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, false, err
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		if isSQLiteError(err, "no such table") {
			return nil, false, nil
		}
		return nil, false, err
	}
	if meta["schema_version"] != strconv.Itoa(SchemaVersion) ||
		meta["path"] != k.Path ||
		meta["size"] != strconv.FormatInt(k.Size, 10) ||
		meta["mtime"] != strconv.FormatInt(k.ModTime.UnixNano(), 10) ||
		meta["options"] != k.Options {
		return nil, false, nil
	}

	n, err := strconv.Atoi(meta["count"])
	if err != nil {
		return nil, false, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT seq, byte_offset, byte_length, date, from_name, from_address,
		       to_json, cc_json, subject, message_id, has_attachments, labels_json
		FROM entries ORDER BY seq`)
	if err != nil {
		return nil, false, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries = make([]model.IndexEntry, 0, n)
	for rows.Next() {
		var (
			e                          model.IndexEntry
			date, toJSON, ccJSON, lbls string
		)
		if err := rows.Scan(&e.Sequence, &e.Offset, &e.Length, &date,
			&e.From.Name, &e.From.Address, &toJSON, &ccJSON,
			&e.Subject, &e.MessageID, &e.HasAttachments, &lbls); err != nil {
			return nil, false, fmt.Errorf("scan entry: %w", err)
		}
		if e.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return nil, false, fmt.Errorf("entry %d date: %w", e.Sequence, err)
		}
		e.Date = e.Date.UTC()
		if err := json.Unmarshal([]byte(toJSON), &e.To); err != nil {
			return nil, false, fmt.Errorf("entry %d to: %w", e.Sequence, err)
		}
		if err := json.Unmarshal([]byte(ccJSON), &e.Cc); err != nil {
			return nil, false, fmt.Errorf("entry %d cc: %w", e.Sequence, err)
		}
		if err := json.Unmarshal([]byte(lbls), &e.Labels); err != nil {
			return nil, false, fmt.Errorf("entry %d labels: %w", e.Sequence, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate entries: %w", err)
	}
	if len(entries) != n {
		return nil, false, nil
	}
	return entries, true, nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Save replaces the cached index for k with entries (in file order).
func (c *Cache) Save(ctx context.Context, k Key, entries []model.IndexEntry) error {
	db, err := openDB(c.DBPath(k.Path))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM meta`); err != nil {
			return fmt.Errorf("clear meta: %w", err)
		}

		meta := [][2]string{
			{"schema_version", strconv.Itoa(SchemaVersion)},
			{"path", k.Path},
			{"size", strconv.FormatInt(k.Size, 10)},
			{"mtime", strconv.FormatInt(k.ModTime.UnixNano(), 10)},
			{"options", k.Options},
			{"count", strconv.Itoa(len(entries))},
		}
		for _, kv := range meta {
			if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
				return fmt.Errorf("insert meta %s: %w", kv[0], err)
			}
		}

		const valuesPerRow = 12
		return insertInChunks(ctx, tx, len(entries), valuesPerRow,
			`INSERT INTO entries (seq, byte_offset, byte_length, date, from_name, from_address,
				to_json, cc_json, subject, message_id, has_attachments, labels_json) VALUES `,
			func(start, end int) ([]string, []interface{}, error) {
				values := make([]string, 0, end-start)
				args := make([]interface{}, 0, (end-start)*valuesPerRow)
				for i := start; i < end; i++ {
					e := entries[i]
					to, err := json.Marshal(e.To)
					if err != nil {
						return nil, nil, err
					}
					cc, err := json.Marshal(e.Cc)
					if err != nil {
						return nil, nil, err
					}
					lbls, err := json.Marshal(e.Labels)
					if err != nil {
						return nil, nil, err
					}
					values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
					args = append(args, e.Sequence, e.Offset, e.Length, e.Date.UTC().Format(time.RFC3339Nano),
						e.From.Name, e.From.Address, string(to), string(cc),
						e.Subject, e.MessageID, e.HasAttachments, string(lbls))
				}
				return values, args, nil
			})
	})
}

// withTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// insertInChunks executes a multi-value INSERT in chunks to stay within SQLite's
// parameter limit (999). valuesPerRow is how many parameters each VALUES tuple
// carries; valueBuilder produces the tuples and args for rows [start, end).
func insertInChunks(ctx context.Context, tx *sql.Tx, totalRows int, valuesPerRow int, queryPrefix string, valueBuilder func(start, end int) ([]string, []interface{}, error)) error {
	const maxParams = 900
	chunkSize := maxParams / valuesPerRow
	if chunkSize < 1 {
		chunkSize = 1
	}

	for i := 0; i < totalRows; i += chunkSize {
		end := min(i+chunkSize, totalRows)
		values, args, err := valueBuilder(i, end)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryPrefix+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Handles both value (sqlite3.Error) and pointer (*sqlite3.Error) forms.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return strings.Contains(sqliteErrPtr.Error(), substr)
	}
	return false
}
