// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

const (
	defaultPathsTable = "wiki_paths"
	defaultNodesTable = "wiki_path_nodes"
	bytesPerGB        = 1024 * 1024 * 1024
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PathStoreConfig controls the Postgres connection pool used for paths.
type PathStoreConfig struct {
	DSN             string
	PathsTable      string
	NodesTable      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PathStore writes walked paths into Postgres and reports the tables' size.
type PathStore struct {
	pool  pool
	paths string
	nodes string
}

// NewPathStore creates a Postgres-backed PathStore using the provided config.
func NewPathStore(ctx context.Context, cfg PathStoreConfig) (*PathStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	paths, nodes, err := tableNames(cfg.PathsTable, cfg.NodesTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PathStore{pool: p, paths: paths, nodes: nodes}, nil
}

// NewPathStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPathStoreWithPool(p pool, pathsTable, nodesTable string) (*PathStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	paths, nodes, err := tableNames(pathsTable, nodesTable)
	if err != nil {
		return nil, err
	}
	return &PathStore{pool: p, paths: paths, nodes: nodes}, nil
}

func tableNames(paths, nodes string) (string, string, error) {
	if paths == "" {
		paths = defaultPathsTable
	}
	if nodes == "" {
		nodes = defaultNodesTable
	}
	for _, t := range []string{paths, nodes} {
		if !validTableName.MatchString(t) {
			return "", "", fmt.Errorf("invalid table name %q", t)
		}
	}
	return paths, nodes, nil
}

// Close releases the underlying pool resources.
func (s *PathStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Store inserts the path row and one row per article in a single
// transaction and returns the new path ID.
func (s *PathStore) Store(ctx context.Context, path crawler.Path, outcome crawler.Outcome) (id string, err error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("path store is not configured")
	}
	if path.IsZero() {
		return "", fmt.Errorf("path is empty")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	var cycleStart any
	if outcome.CycleStart != nil {
		cycleStart = outcome.CycleStart.DisplayTitle()
	}
	insertPath := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	start_article,
	end_article,
	steps,
	outcome,
	cycle_start,
	succeeded
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
) RETURNING path_id`, s.paths)

	var pathID int64
	err = tx.QueryRow(ctx, insertPath,
		crawler.JobIDFrom(ctx),
		path.Start().DisplayTitle(),
		path.End().DisplayTitle(),
		outcome.Steps,
		string(outcome.Kind),
		cycleStart,
		outcome.Succeeded(),
	).Scan(&pathID)
	if err != nil {
		return "", fmt.Errorf("insert path: %w", err)
	}

	insertNode := fmt.Sprintf(`
INSERT INTO %s (path_id, step_number, article_title, article_url)
VALUES ($1,$2,$3,$4)`, s.nodes)
	for step, article := range path.Articles() {
		if _, err = tx.Exec(ctx, insertNode, pathID, step, article.DisplayTitle(), article.Locator); err != nil {
			return "", fmt.Errorf("insert path node %d: %w", step, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit path: %w", err)
	}
	committed = true
	return strconv.FormatInt(pathID, 10), nil
}

// LoadExistingTitles returns every start article and every article title
// recorded in any stored path.
func (s *PathStore) LoadExistingTitles(ctx context.Context) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("path store is not configured")
	}
	query := fmt.Sprintf(`
SELECT start_article FROM %s WHERE start_article IS NOT NULL
UNION
SELECT DISTINCT article_title FROM %s WHERE article_title IS NOT NULL`, s.paths, s.nodes)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query existing titles: %w", err)
	}
	titles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan existing titles: %w", err)
	}
	return titles, nil
}

// CurrentSizeGB reports the combined on-disk size of both tables, including
// indexes and TOAST data, in GB.
func (s *PathStore) CurrentSizeGB(ctx context.Context) (float64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("path store is not configured")
	}
	var size int64
	err := s.pool.QueryRow(ctx,
		`SELECT pg_total_relation_size($1::regclass) + pg_total_relation_size($2::regclass)`,
		s.paths, s.nodes,
	).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("query table size: %w", err)
	}
	return float64(size) / bytesPerGB, nil
}
