package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const sqliteFile = "corpus.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	position INTEGER PRIMARY KEY,
	id       TEXT NOT NULL UNIQUE,
	text     TEXT NOT NULL,
	vector   BLOB NOT NULL
);
`

// sqliteCodec stores a corpus in one SQLite database per group. A persist
// rewrites both tables inside a single transaction; WAL journaling makes the
// commit the atomic step.
type sqliteCodec struct{}

func (sqliteCodec) name() string   { return BackendSQLite }
func (sqliteCodec) marker() string { return sqliteFile }

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return db, nil
}

func (sqliteCodec) write(ctx context.Context, dir string, c *Corpus) (err error) {
	db, err := openSQLite(filepath.Join(dir, sqliteFile))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM meta"); err != nil {
		return fmt.Errorf("clear meta: %w", err)
	}

	meta := map[string]string{
		"name":       c.Name,
		"dimension":  strconv.Itoa(c.Dimension),
		"model":      c.Model,
		"documents":  strconv.Itoa(c.Len()),
		"created_at": c.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": c.UpdatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (position, id, text, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, d := range c.Documents() {
		if _, err := stmt.ExecContext(ctx, i, d.ID, d.Text, encodeVector(d.Vector)); err != nil {
			return fmt.Errorf("insert document %q: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func (sqliteCodec) read(ctx context.Context, dir, name string) (c *Corpus, err error) {
	db, err := openSQLite(filepath.Join(dir, sqliteFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return nil, fmt.Errorf("integrity check failed: %s", integrity)
	}

	meta := make(map[string]string)
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil {
		return nil, fmt.Errorf("invalid dimension %q", meta["dimension"])
	}
	count, err := strconv.Atoi(meta["documents"])
	if err != nil {
		return nil, fmt.Errorf("invalid document count %q", meta["documents"])
	}

	c = NewCorpus(name)
	c.Model = meta["model"]
	if t, err := time.Parse(time.RFC3339Nano, meta["created_at"]); err == nil {
		c.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["updated_at"]); err == nil {
		c.UpdatedAt = t
	}

	docs, err := db.QueryContext(ctx, "SELECT id, text, vector FROM documents ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	defer func() { _ = docs.Close() }()

	for docs.Next() {
		var (
			id, text string
			blob     []byte
		)
		if err := docs.Scan(&id, &text, &blob); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", id, err)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("document %q has %d dimensions, expected %d", id, len(vec), dim)
		}
		c.Put(&Document{ID: id, Text: text, Vector: vec})
	}
	if err := docs.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	if c.Len() != count {
		return nil, fmt.Errorf("meta lists %d documents, found %d", count, c.Len())
	}
	return c, nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
