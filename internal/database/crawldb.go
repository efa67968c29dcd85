package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/nao1215/crawlgraph/internal/store"
)

// FileName is the name of the SQLite database file inside the data dir.
const FileName = "crawlgraph.db"

// CrawlDB provides SQL storage for every crawlgraph component.
// It implements store.Store.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dialect holds the driver-specific statements.
	dialect dialect

	// dbPath is the path to the SQLite database file, empty for PostgreSQL.
	dbPath string
}

var _ store.Store = (*CrawlDB)(nil)

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SQLite CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer. A single connection also makes
	// task claims exclusive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	cdb := New(db, DriverSQLite)
	cdb.dbPath = dbPath
	if err := cdb.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cdb, nil
}

// OpenPostgres connects to the PostgreSQL database described by dsn and
// creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*CrawlDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cdb := New(db, DriverPostgres)
	if err := cdb.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cdb, nil
}

// Connect opens the store selected by driver. For SQLite, target is the
// data directory; for PostgreSQL it is the DSN.
func Connect(ctx context.Context, driver Driver, target string) (*CrawlDB, error) {
	switch driver {
	case DriverSQLite:
		return Open(target, DefaultOptions())
	case DriverPostgres:
		return OpenPostgres(ctx, target)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// New wraps an already opened database. The schema is not created;
// call Migrate for that.
func New(db *sql.DB, driver Driver) *CrawlDB {
	return &CrawlDB{
		db:      db,
		dialect: dialectFor(driver),
	}
}

// Path returns the SQLite database file, or an empty string for PostgreSQL.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Driver returns the driver the database was opened with.
func (cdb *CrawlDB) Driver() Driver {
	return cdb.dialect.driver
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Migrate creates the schema if it doesn't exist.
func (cdb *CrawlDB) Migrate(ctx context.Context) error {
	for _, stmt := range cdb.dialect.schema() {
		if _, err := cdb.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// exec runs a statement written with "?" placeholders.
func (cdb *CrawlDB) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, cdb.dialect.rebind(query), args...)
}

func (cdb *CrawlDB) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, cdb.dialect.rebind(query), args...)
}

func (cdb *CrawlDB) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, cdb.dialect.rebind(query), args...)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing when fn succeeds.
func (cdb *CrawlDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timestampFormats are the layouts accepted when reading timestamps back.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05.999999999-07:00",
}

// formatTimestamp is the layout used when writing timestamps.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
