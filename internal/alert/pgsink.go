package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
)

var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PGSink archives alerts to a Postgres table as one JSONB row per alert.
// The table is created on Start if it does not exist.
type PGSink struct {
	dsn   string
	table string
	db    *sql.DB
}

// NewPGSinkFromEnv builds a PGSink from PG_DSN / PG_ALERT_TABLE.
func NewPGSinkFromEnv() *PGSink {
	return &PGSink{
		dsn:   envOr("PG_DSN", "postgres://localhost/medguard?sslmode=disable"),
		table: envOr("PG_ALERT_TABLE", "alerts"),
	}
}

func NewPGSink(dsn, table string) *PGSink {
	return &PGSink{dsn: dsn, table: table}
}

func validateTableName(name string) error {
	if !validTableName.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.table); err != nil {
		return err
	}
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		class TEXT NOT NULL,
		severity TEXT NOT NULL,
		body JSONB NOT NULL
	)`, s.table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return fmt.Errorf("create alerts table: %w", err)
	}
	s.db = db
	return nil
}

func (s *PGSink) Enqueue(a Alert) error {
	if s.db == nil {
		return fmt.Errorf("pg sink not started")
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to serialize alert: %w", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (id, ts, class, severity, body) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		s.table)
	if _, err := s.db.Exec(query, a.ID, a.TS, string(a.Class), string(a.Severity), body); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PGSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PGSink) Name() string { return "postgres" }

// setDB is a test hook.
func (s *PGSink) setDB(db *sql.DB) { s.db = db }
