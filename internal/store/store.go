package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/intelligrit/durian-map/internal/model"
)

// Supported database drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// Store persists the local orchard snapshot.
type Store struct {
	DB      *sql.DB
	DataDir string
	Driver  string
}

// New opens (or creates) a DuckDB snapshot in the given data directory.
func New(dataDir string) (*Store, error) {
	return Open(dataDir, DriverDuckDB)
}

// Open opens (or creates) a snapshot database using driver.
func Open(dataDir, driver string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "", DriverDuckDB:
		driver = DriverDuckDB
		db, err = sql.Open("duckdb", filepath.Join(dataDir, "durian-map.duckdb"))
	case DriverSQLite:
		db, err = openSQLite(filepath.Join(dataDir, "durian-map.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}

	s := &Store{DB: db, DataDir: dataDir, Driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orchards (
			id BIGINT PRIMARY KEY,
			position INTEGER NOT NULL,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			status TEXT NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// WriteOrchards replaces the snapshot with list, preserving its order, and
// records syncedAt.
func (s *Store) WriteOrchards(ctx context.Context, list []model.Orchard, syncedAt time.Time) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM orchards"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO orchards (id, position, owner_id, name, address, lat, lng, status, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range list {
		body, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encoding orchard %d: %w", o.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, o.ID, i, o.OwnerID, o.Name, o.Address, o.Lat, o.Lng, o.Status.String(), string(body)); err != nil {
			return fmt.Errorf("inserting orchard %d: %w", o.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO meta (key, value) VALUES ('synced_at', ?)", syncedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	return tx.Commit()
}

// List returns the snapshot in the order it was written.
func (s *Store) List(ctx context.Context) ([]model.Orchard, error) {
	return s.query(ctx, "SELECT body FROM orchards ORDER BY position")
}

// ListByOwner returns the orchards owned by ownerID.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]model.Orchard, error) {
	return s.query(ctx, "SELECT body FROM orchards WHERE owner_id = ? ORDER BY position", ownerID)
}

// Get returns one orchard, or nil if the snapshot does not contain id.
func (s *Store) Get(ctx context.Context, id int64) (*model.Orchard, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, "SELECT body FROM orchards WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o model.Orchard
	if err := json.Unmarshal([]byte(body), &o); err != nil {
		return nil, fmt.Errorf("decoding orchard %d: %w", id, err)
	}
	return &o, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.Orchard, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Orchard{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var o model.Orchard
		if err := json.Unmarshal([]byte(body), &o); err != nil {
			return nil, fmt.Errorf("decoding orchard: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// OrchardCount returns the number of orchards in the snapshot.
func (s *Store) OrchardCount() int {
	var n int
	s.DB.QueryRow("SELECT COUNT(*) FROM orchards").Scan(&n)
	return n
}

// CountByStatus returns orchard counts per durian status.
func (s *Store) CountByStatus() map[model.DurianStatus]int {
	m := make(map[model.DurianStatus]int)
	rows, err := s.DB.Query("SELECT status, COUNT(*) FROM orchards GROUP BY status")
	if err != nil {
		return m
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var cnt int
		rows.Scan(&name, &cnt)
		if st, err := model.ParseDurianStatus(name); err == nil {
			m[st] = cnt
		}
	}
	return m
}

// CountByType returns how many orchards offer each service type.
func (s *Store) CountByType(ctx context.Context) (map[model.OrchardType]int, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[model.OrchardType]int)
	for _, o := range list {
		for _, t := range o.Types {
			m[t]++
		}
	}
	return m, nil
}

// SyncedAt returns when the snapshot was last written, or the zero time.
func (s *Store) SyncedAt() time.Time {
	var v sql.NullString
	s.DB.QueryRow("SELECT value FROM meta WHERE key = 'synced_at'").Scan(&v)
	t, _ := time.Parse(time.RFC3339, v.String)
	return t
}
