package cdn

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	_ "modernc.org/sqlite"
)

// Entry is the ledger record of the last successful upload of a key.
type Entry struct {
	Target     string
	Key        string
	SHA256     string
	Size       int64
	UploadedAt string
}

// Ledger remembers which bodies were uploaded to which keys, so unchanged
// files can be skipped on the next run.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the SQLite ledger at path, ensuring its
// directory exists.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Upload workers record concurrently; one connection serializes them.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	l := &Ledger{db: db}
	if err := l.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) ensureSchema() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS uploads (
    target TEXT NOT NULL,
    key TEXT NOT NULL,
    sha256 TEXT NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL,
    PRIMARY KEY (target, key)
);
`)
	return err
}

// Lookup returns the recorded digest for key. ok is false when the key has
// never been uploaded to target.
func (l *Ledger) Lookup(target, key string) (sum string, ok bool, err error) {
	err = l.db.QueryRow(`SELECT sha256 FROM uploads WHERE target = ? AND key = ?`, target, key).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sum, true, nil
}

// Record upserts the digest of a successful upload.
func (l *Ledger) Record(target, key, sum string, size int64) error {
	_, err := l.db.Exec(`INSERT OR REPLACE INTO uploads (target, key, sha256, size, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		target, key, sum, size, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Reset forgets every key recorded for target.
func (l *Ledger) Reset(target string) error {
	_, err := l.db.Exec(`DELETE FROM uploads WHERE target = ?`, target)
	return err
}

// List returns the entries for target ordered by key.
func (l *Ledger) List(target string) ([]Entry, error) {
	rows, err := l.db.Query(`SELECT target, key, sha256, size, uploaded_at FROM uploads WHERE target = ? ORDER BY key`, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Target, &e.Key, &e.SHA256, &e.Size, &e.UploadedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FormatEntries renders ledger entries as a table with a totals line.
func FormatEntries(entries []Entry) string {
	var total int64
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Key", "Size", "SHA-256", "Uploaded"})
	for _, e := range entries {
		total += e.Size
		tw.AppendRow(table.Row{e.Key, humanize.Bytes(uint64(e.Size)), text.Trim(e.SHA256, 12), e.UploadedAt})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return fmt.Sprintf("%s\n%d files, %s", tw.Render(), len(entries), humanize.Bytes(uint64(total)))
}
