// Package registry is the typed facade over the column-store query engine:
// direct-key lookup, partitioned name-filtered lookup, full-text candidate
// search, and a nationwide/department establishment fetch. Every query is
// stateless and read-only; each worker owns its own Querier instance — the
// underlying column-store connection is not shared.
package registry

import (
	"context"

	"github.com/supplier-resolver/resolver/internal/domain"
)

// Scope selects where FetchEstablishments reads from.
type Scope int

const (
	// ScopeDepartment reads only the pre-filtered department partition —
	// fast, already active-filtered at build time.
	ScopeDepartment Scope = iota
	// ScopeNationwide reads the full establishment file and must
	// re-assert the active-status predicate itself: nationwide reads
	// are never pre-filtered to active at build time.
	ScopeNationwide
)

// FTSHit is one ranked result from the legal-entity full-text index.
type FTSHit struct {
	CompanyID    string
	OfficialName string
	Relevance    float64
}

// ColumnStore is the three column-store operations backed by the Parquet
// establishment/legal-entity files: direct-key, partitioned-fuzzy, and
// establishment fetch.
type ColumnStore interface {
	// DirectLookup returns the administratively-active establishment for
	// a syntactically valid 14-digit id, or nil if none exists.
	DirectLookup(ctx context.Context, establishmentID string) (*domain.Candidate, error)

	// StrictLocalLookup returns candidates from the department partition
	// for postal[0:2], filtered by exact postal equality and name edit
	// distance <= 3. All partitions are pre-filtered to active
	// establishments at build time.
	StrictLocalLookup(ctx context.Context, postal, cleanName string) ([]domain.Candidate, error)

	// FetchEstablishments returns every active Candidate for the given
	// company ids, reading from the department partition named by dept
	// (only consulted when scope == ScopeDepartment) or the nationwide
	// file otherwise.
	FetchEstablishments(ctx context.Context, companyIDs []string, scope Scope, dept string) ([]domain.Candidate, error)

	// Close releases the worker-local handle.
	Close() error

	// Ping verifies the underlying registry files are present and readable.
	// Callers use this once at startup to fail fast rather than letting a
	// missing registry surface as a wall of per-record errors.
	Ping(ctx context.Context) error
}

// FullTextSearch is the fourth operation, backed by the legal-entity FTS
// index rather than the column store.
type FullTextSearch interface {
	// FTSCandidates returns up to limit company ids ranked by the index's
	// own relevance score.
	FTSCandidates(ctx context.Context, searchToken string, limit int) ([]FTSHit, error)
}

// Querier is the complete four-operation registry facade. It is
// assembled from a ColumnStore and a FullTextSearch by Compose, since the
// column store and the FTS index are genuinely different backends (a
// DuckDB/Parquet handle and a Meilisearch client) sharing one logical API.
type Querier interface {
	ColumnStore
	FullTextSearch
}

type composed struct {
	ColumnStore
	FullTextSearch
}

// Compose binds a column-store backend and an FTS backend into a single
// Querier. Closing the result closes only the column store — the FTS
// client is a shared, longer-lived connection the caller manages
// separately (it is not opened per-worker the way the column store is).
func Compose(cs ColumnStore, fts FullTextSearch) Querier {
	return &composed{ColumnStore: cs, FullTextSearch: fts}
}
