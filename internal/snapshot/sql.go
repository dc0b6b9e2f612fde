package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

const defaultPostgresDSN = "postgres://localhost/enisi?sslmode=disable"

type dialect struct {
	name     string
	driver   string
	blobType string
}

var (
	sqliteDialect   = dialect{name: "sqlite", driver: "sqlite", blobType: "BLOB"}
	postgresDialect = dialect{name: "postgres", driver: "pgx", blobType: "BYTEA"}
)

func (d dialect) bind(n int) string {
	if d.name == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d dialect) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.bind(i + 1)
	}
	return strings.Join(parts, ", ")
}

// SQLStore keeps records in one table on sqlite or postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (creating if needed) the sqlite file at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = "enisi.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between ranks.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

// NewPostgresStore connects through pgx registered as a database/sql driver.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	ddl := `CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		step BIGINT NOT NULL,
		proc_rank INTEGER NOT NULL,
		compartment TEXT NOT NULL,
		separator TEXT NOT NULL,
		payload ` + d.blobType + ` NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (run_id, step, proc_rank, compartment)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Driver() string { return s.dialect.name }

func (s *SQLStore) Save(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	r = stamp(r)
	if r.Payload == nil {
		r.Payload = []byte{}
	}
	q := `INSERT INTO snapshots (run_id, step, proc_rank, compartment, separator, payload, created_at)
		VALUES (` + s.dialect.placeholders(7) + `)
		ON CONFLICT DO NOTHING`
	res, err := s.db.ExecContext(ctx, q,
		r.RunID, int64(r.Step), r.Rank, r.Compartment, r.Separator, r.Payload, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", r.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, r.Key())
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, runID string) ([]Record, error) {
	q := `SELECT run_id, step, proc_rank, compartment, separator, payload, created_at
		FROM snapshots WHERE run_id = ` + s.dialect.bind(1) + `
		ORDER BY step, proc_rank, compartment`
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		var (
			r       Record
			step    int64
			created int64
		)
		if err := rows.Scan(&r.RunID, &step, &r.Rank, &r.Compartment, &r.Separator, &r.Payload, &created); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.Step = uint64(step)
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
