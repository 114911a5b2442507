package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/greenstreak/greenstreak/internal/config"
)

const (
	driverLibsql = "libsql"
	memoryPath   = ":memory:"
)

// Store wraps the libsql connection holding limiter, activity and commit state.
type Store struct {
	DB     *sql.DB
	target Target
}

// Target is where a store configuration points.
type Target struct {
	// DSN is passed to the libsql driver and may carry an auth token.
	DSN    string
	// File is the local database file; empty for remote and in-memory stores.
	File   string
	Remote bool
}

// String is safe to log: the query string is dropped.
func (t Target) String() string {
	if t.File != "" {
		return t.File
	}
	if i := strings.IndexByte(t.DSN, '?'); i >= 0 {
		return t.DSN[:i]
	}
	return t.DSN
}

// Resolve maps cfg to a driver DSN without touching the filesystem.
func Resolve(cfg config.StoreConfig) (Target, error) {
	if driver := strings.TrimSpace(cfg.Driver); driver != "" && driver != driverLibsql {
		return Target{}, fmt.Errorf("unsupported store driver: %s", driver)
	}

	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		if err != nil {
			return Target{}, err
		}
		return Target{DSN: dsn, Remote: true}, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return Target{}, errors.New("store path or url is required")
	case path == memoryPath:
		return Target{DSN: memoryPath}, nil
	case strings.HasPrefix(path, "libsql:"):
		return Target{DSN: path, Remote: true}, nil
	case strings.HasPrefix(path, "file:"):
		file, err := fileFromDSN(path)
		if err != nil {
			return Target{}, err
		}
		return Target{DSN: path, File: file}, nil
	default:
		file := filepath.Clean(path)
		return Target{DSN: "file:" + file, File: file}, nil
	}
}

// Open connects to the configured store. Local database directories are
// created on demand.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(target.File); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if target.DSN == memoryPath {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store %s: %w", target, err)
	}
	return &Store{DB: db, target: target}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// CheckHealth pings the database.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return s.DB.PingContext(ctx)
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return driverLibsql
}

// Target returns the resolved location of the open store.
func (s *Store) Target() Target {
	if s == nil {
		return Target{}
	}
	return s.target
}

func withAuthToken(dsn, token string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func fileFromDSN(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	file := parsed.Path
	if file == "" {
		file = parsed.Opaque
	}
	return strings.TrimPrefix(file, "//"), nil
}

func ensureDir(file string) error {
	if file == "" {
		return nil
	}
	dir := filepath.Dir(file)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
