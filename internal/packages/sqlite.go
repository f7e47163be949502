package packages

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

//go:embed schema.sql
var schemaSQL string

// blobVersion is bumped whenever the encoded Archive layout changes. Rows
// written with another version are treated as misses.
const blobVersion = 1

type blob struct {
	Version int      `msgpack:"v"`
	Archive *Archive `msgpack:"archive"`
}

// SQLiteCache stores extracted archives in a SQLite database, one row per
// package.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the database at path, enables WAL mode
// and applies the embedded schema.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply package cache schema: %w", err)
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

func (c *SQLiteCache) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (c *SQLiteCache) Load(spec source.PackageSpec) (*Archive, bool, error) {
	var data []byte
	err := c.withTx(func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT archive FROM packages WHERE spec = ?`, spec.String()).Scan(&data)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var b blob
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", spec, err)
	}
	if b.Version != blobVersion || b.Archive == nil {
		return nil, false, nil
	}
	return b.Archive, true, nil
}

func (c *SQLiteCache) Store(spec source.PackageSpec, archive *Archive) error {
	data, err := msgpack.Marshal(&blob{Version: blobVersion, Archive: archive})
	if err != nil {
		return fmt.Errorf("encode %s: %w", spec, err)
	}
	return c.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
            INSERT INTO packages (spec, namespace, name, version, fetched_at, archive)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(spec) DO UPDATE SET fetched_at = excluded.fetched_at, archive = excluded.archive
        `, spec.String(), spec.Namespace, spec.Name, spec.Version, c.now().Unix(), data)
		return err
	})
}

// Delete drops the cached archive of spec.
func (c *SQLiteCache) Delete(spec source.PackageSpec) error {
	return c.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM packages WHERE spec = ?`, spec.String())
		return err
	})
}

// Specs lists the cached packages.
func (c *SQLiteCache) Specs() ([]source.PackageSpec, error) {
	rows, err := c.db.Query(`SELECT namespace, name, version FROM packages ORDER BY namespace, name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []source.PackageSpec
	for rows.Next() {
		var s source.PackageSpec
		if err := rows.Scan(&s.Namespace, &s.Name, &s.Version); err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, rows.Err()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
