// Package duckdb implements registry.Querier's direct-key, partitioned, and
// establishment-fetch operations against Parquet files via DuckDB's
// embeddable column-store query engine. One *sql.DB is opened per worker;
// handles are never pooled or shared across workers.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/cenkalti/backoff/v4"

	"github.com/supplier-resolver/resolver/internal/domain"
	"github.com/supplier-resolver/resolver/internal/registry"
)

// ActiveStatus is the registry's "active" sentinel (glossary).
const ActiveStatus = "A"

// Config points the backend at the registry files the builder produces.
type Config struct {
	// EstablishmentsFile is the canonical establishment Parquet file
	// (nationwide, not pre-filtered to active).
	EstablishmentsFile string
	// PartitionsDir holds per-department partitions at dept=NN/*.parquet,
	// pre-filtered to administratively-active establishments.
	PartitionsDir string
	// MaxRetries bounds transient-read retry with exponential backoff.
	MaxRetries int
}

// Backend is a worker-local registry.ColumnStore implementation. It does not
// implement FTSCandidates — see registry.Compose.
type Backend struct {
	db  *sql.DB
	cfg Config
}

// Open creates a fresh DuckDB connection bound to the configured files.
// The connection always uses an in-memory database ("" DSN); the registry
// files are read per query through read_parquet on the configured paths.
func Open(cfg Config) (*Backend, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb handle: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Backend{db: db, cfg: cfg}, nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(b.cfg.MaxRetries)), ctx)
	return backoff.Retry(op, bo)
}

func (b *Backend) partitionGlob(dept string) string {
	return filepath.Join(b.cfg.PartitionsDir, fmt.Sprintf("dept=%s", dept), "*.parquet")
}

const candidateColumns = `establishment_id, company_id, official_name, city, address, is_head_office`

func scanCandidates(rows *sql.Rows) ([]domain.Candidate, error) {
	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.EstablishmentID, &c.CompanyID, &c.OfficialName, &c.City, &c.Address, &c.IsHeadOffice); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DirectLookup reads the nationwide establishment file by its primary key
// and re-asserts the active predicate, since a direct id carries no
// department hint to route through a pre-filtered partition.
func (b *Backend) DirectLookup(ctx context.Context, establishmentID string) (*domain.Candidate, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM read_parquet(?) WHERE establishment_id = ? AND active_status = ? LIMIT 1`,
		candidateColumns,
	)

	var cand domain.Candidate
	found := false
	err := b.withRetry(ctx, func() error {
		row := b.db.QueryRowContext(ctx, query, b.cfg.EstablishmentsFile, establishmentID, ActiveStatus)
		scanErr := row.Scan(&cand.EstablishmentID, &cand.CompanyID, &cand.OfficialName, &cand.City, &cand.Address, &cand.IsHeadOffice)
		if scanErr == sql.ErrNoRows {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &cand, nil
}

// StrictLocalLookup reads the pre-filtered department partition for
// postal[0:2], keeping only rows whose postal matches exactly and whose
// official name is within edit distance 3 of cleanName.
func (b *Backend) StrictLocalLookup(ctx context.Context, postal, cleanName string) ([]domain.Candidate, error) {
	if len(postal) < 2 {
		return nil, fmt.Errorf("malformed postal for department routing: %q", postal)
	}
	dept := postal[:2]
	query := fmt.Sprintf(
		`SELECT %s FROM read_parquet(?) WHERE postal = ? AND levenshtein(upper(official_name), ?) <= 3`,
		candidateColumns,
	)

	var out []domain.Candidate
	err := b.withRetry(ctx, func() error {
		rows, qErr := b.db.QueryContext(ctx, query, b.partitionGlob(dept), postal, strings.ToUpper(cleanName))
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		scanned, scanErr := scanCandidates(rows)
		if scanErr != nil {
			return scanErr
		}
		out = scanned
		return nil
	})
	return out, err
}

// FetchEstablishments returns every active Candidate for the given company
// ids, from the department partition (scope == ScopeDepartment, already
// active-filtered) or the nationwide file re-asserting the active predicate
// (scope == ScopeNationwide).
func (b *Backend) FetchEstablishments(ctx context.Context, companyIDs []string, scope registry.Scope, dept string) ([]domain.Candidate, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(companyIDs)), ",")
	args := make([]any, 0, len(companyIDs)+1)

	var query string
	switch scope {
	case registry.ScopeDepartment:
		if dept == "" {
			return nil, fmt.Errorf("department scope requires a department code")
		}
		query = fmt.Sprintf(
			`SELECT %s FROM read_parquet(?) WHERE company_id IN (%s)`,
			candidateColumns, placeholders,
		)
		args = append(args, b.partitionGlob(dept))
	case registry.ScopeNationwide:
		query = fmt.Sprintf(
			`SELECT %s FROM read_parquet(?) WHERE active_status = ? AND company_id IN (%s)`,
			candidateColumns, placeholders,
		)
		args = append(args, b.cfg.EstablishmentsFile, ActiveStatus)
	default:
		return nil, fmt.Errorf("unknown scope %v", scope)
	}
	for _, id := range companyIDs {
		args = append(args, id)
	}

	var out []domain.Candidate
	err := b.withRetry(ctx, func() error {
		rows, qErr := b.db.QueryContext(ctx, query, args...)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		scanned, scanErr := scanCandidates(rows)
		if scanErr != nil {
			return scanErr
		}
		out = scanned
		return nil
	})
	return out, err
}

// Ping checks the handle is usable, used at worker startup so a missing or
// unreadable registry file fails fast as a fatal, non-zero-exit condition
// rather than surfacing as a wall of per-record errors.
func (b *Backend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := b.db.QueryRowContext(ctx, `SELECT count(*) FROM read_parquet(?) LIMIT 1`, b.cfg.EstablishmentsFile)
	var n int64
	return row.Scan(&n)
}

var _ registry.ColumnStore = (*Backend)(nil)
