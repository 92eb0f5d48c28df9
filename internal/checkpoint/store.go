// Package checkpoint is the embedded transactional key-value store backing
// C5: every MatchResult the cascade produces is durably upserted here,
// keyed by input_id, with an index maintained for fast error-retry
// discovery. All writes are serialized through a single writer, per §4.5
// and §5.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/domain"
)

var (
	resultsBucket = []byte("results")
	errorsBucket  = []byte("errors")
)

// Store is the coordinator's single writer onto the checkpoint file. Reads
// (processed_ids, export iteration) may run concurrently with writes;
// bbolt's MVCC readers never block on the writer.
type Store struct {
	db *bbolt.DB

	mu      sync.Mutex // serializes upsert/commit batching, per §4.5
	pending []domain.CheckpointRow
}

// Open opens (or creates) the checkpoint file at path. If path is not
// writable, it falls back to a platform temp directory path and logs the
// substitution once (§4.5 "Portability of location").
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		fallback := filepath.Join(os.TempDir(), filepath.Base(path))
		logger.Warn("checkpoint path not writable, falling back to temp dir",
			zap.String("configured_path", path), zap.String("fallback_path", fallback), zap.Error(err))
		db, err = bbolt.Open(fallback, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("checkpoint store unusable at both %q and %q: %w", path, fallback, err)
		}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(resultsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(errorsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize checkpoint buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Upsert stages a result for the next Commit. The coordinator owns the
// cadence at which Commit is called (every B upserts, per §4.6).
func (s *Store) Upsert(result domain.MatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, domain.CheckpointRow{Result: result, UpdatedAt: now()})
}

// PendingCount reports how many upserts are staged since the last Commit.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Commit atomically writes every staged upsert in a single bbolt
// transaction and clears the pending batch. A hard kill before Commit
// returns loses only that in-flight batch (§4.5 durability note).
func (s *Store) Commit() error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		results := tx.Bucket(resultsBucket)
		errs := tx.Bucket(errorsBucket)
		for _, row := range batch {
			raw, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshal checkpoint row for %q: %w", row.Result.InputID, err)
			}
			key := []byte(row.Result.InputID)
			if err := results.Put(key, raw); err != nil {
				return err
			}
			if row.Result.Method == domain.MethodError {
				if err := errs.Put(key, []byte{1}); err != nil {
					return err
				}
			} else {
				// A re-run may clear a previously ERROR'd id; drop its
				// error-index entry so processed_ids(include_errors=false)
				// reflects the latest outcome.
				if err := errs.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ProcessedIDs returns the set of input_ids already durably recorded.
// include_errors=false excludes ids whose last recorded method is ERROR;
// include_errors=true additionally includes them. The coordinator passes
// !retry_errors: a plain resume skips every recorded id, errors included,
// while a retry_errors run leaves ERROR ids out of the skip set so they are
// dispatched again.
func (s *Store) ProcessedIDs(includeErrors bool) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := s.db.View(func(tx *bbolt.Tx) error {
		results := tx.Bucket(resultsBucket)
		errs := tx.Bucket(errorsBucket)
		return results.ForEach(func(k, _ []byte) error {
			if !includeErrors && errs.Get(k) != nil {
				return nil
			}
			out[string(k)] = struct{}{}
			return nil
		})
	})
	return out, err
}

// All iterates every row for ResultExporter. It is read-only and may run
// concurrently with ongoing Commit calls.
func (s *Store) All(fn func(domain.CheckpointRow) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(resultsBucket).ForEach(func(_, v []byte) error {
			var row domain.CheckpointRow
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshal checkpoint row: %w", err)
			}
			return fn(row)
		})
	})
}

func now() time.Time { return time.Now() }
