package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ repository.OrderRepositoryInterface      = (*Store)(nil)
	_ repository.ProductRepositoryInterface    = (*Store)(nil)
	_ repository.ConnectionRepositoryInterface = (*Store)(nil)
)

// Store is the pgx/v5 implementation of every repository port. Guarded
// transitions run in a transaction that locks the row with SELECT ... FOR UPDATE.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewFromPool(pool *pgxpool.Pool, lg *logger.Logger) *Store {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Store{pool: pool, log: lg}
}

func (s *Store) Repository() repository.Repository {
	return repository.Repository{Orders: s, Products: s, Connections: s, Close: s.pool.Close}
}

// Migrate applies the embedded SQL files in name order, once each.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("postgres: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, entry.Name(),
		).Scan(&applied); err != nil {
			return fmt.Errorf("postgres: check migration %s: %w", entry.Name(), err)
		}
		if applied {
			continue
		}

		data, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("postgres: execute migration %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, entry.Name()); err != nil {
			return fmt.Errorf("postgres: record migration %s: %w", entry.Name(), err)
		}
		s.log.Info("migration_applied", map[string]any{"file": entry.Name()})
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
