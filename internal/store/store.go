package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverCGo  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// DefaultDriver is used when no driver is configured.
const DefaultDriver = DriverCGo

// Mode selects how a store is opened.
type Mode int

const (
	// ModeReadOnly opens with mode=ro and PRAGMA query_only.
	ModeReadOnly Mode = iota
	// ModeReadWrite opens an existing file for writing; never creates one.
	ModeReadWrite
)

func (m Mode) String() string {
	if m == ModeReadWrite {
		return "read-write"
	}
	return "read-only"
}

var (
	// ErrNotFound is returned when the store file does not exist.
	ErrNotFound = errors.New("store file not found")

	// ErrEmpty is returned when the store file is zero bytes.
	ErrEmpty = errors.New("store file is empty")

	// ErrReadOnly is returned when a write is attempted on a source store.
	ErrReadOnly = errors.New("store is read-only")
)

// Store is an open media-library database.
type Store struct {
	db   *sql.DB
	path string
	mode Mode
}

// Option configures Open.
type Option func(*options)

type options struct {
	driver string
}

// WithDriver selects the database/sql driver (DriverCGo or DriverPure).
// Empty keeps the default.
func WithDriver(name string) Option {
	return func(o *options) {
		if name != "" {
			o.driver = name
		}
	}
}

// OpenSource opens the source store read-only and verifies its shape.
func OpenSource(ctx context.Context, path string, opts ...Option) (*Store, error) {
	return Open(ctx, path, ModeReadOnly, opts...)
}

// OpenTarget opens the target store for writing and verifies its shape.
func OpenTarget(ctx context.Context, path string, opts ...Option) (*Store, error) {
	return Open(ctx, path, ModeReadWrite, opts...)
}

// Open opens an existing store file in the given mode.
//
// The file must exist and be non-empty; SQLite would otherwise silently
// create a blank database. After connecting, the schema is verified.
func Open(ctx context.Context, path string, mode Mode, opts ...Option) (*Store, error) {
	o := options{driver: DefaultDriver}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver != DriverCGo && o.driver != DriverPure {
		return nil, fmt.Errorf("unsupported driver %q (want %s or %s)", o.driver, DriverCGo, DriverPure)
	}

	if err := CheckFile(path); err != nil {
		return nil, err
	}

	db, err := sql.Open(o.driver, dsn(path, mode))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps
	// connection-scoped pragmas in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db, mode); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, path: path, mode: mode}
	if err := s.VerifySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CheckFile verifies path names an existing, non-empty regular file.
func CheckFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a database file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return nil
}

// dsn builds a SQLite URI understood by both drivers.
func dsn(path string, mode Mode) string {
	if mode == ModeReadWrite {
		return fmt.Sprintf("file:%s?mode=rw&_txlock=immediate", path)
	}
	return fmt.Sprintf("file:%s?mode=ro", path)
}

// applyPragmas sets connection configuration. Journal mode is not touched:
// the stores belong to the media service.
func applyPragmas(ctx context.Context, db *sql.DB, mode Mode) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
	}
	if mode == ModeReadOnly {
		pragmas = append(pragmas, "PRAGMA query_only = ON")
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Mode returns the mode the store was opened in.
func (s *Store) Mode() Mode {
	return s.mode
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
