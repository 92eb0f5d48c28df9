package coordinator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/checkpoint"
	"github.com/supplier-resolver/resolver/internal/domain"
)

func openTestStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	store, err := checkpoint.Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type recordingWorker struct {
	mu   sync.Mutex
	seen []string
}

func (w *recordingWorker) Resolve(ctx context.Context, raw domain.RawRecord) domain.MatchResult {
	w.mu.Lock()
	w.seen = append(w.seen, raw.InputID)
	w.mu.Unlock()
	id := "0000000000000" + raw.InputID
	name := "ACME"
	return domain.MatchResult{InputID: raw.InputID, ResolvedEstablishmentID: &id, OfficialName: &name, Confidence: 1.0, Method: domain.MethodDirectID}
}

func feed(ch chan<- domain.RawRecord, ids ...string) {
	for _, id := range ids {
		ch <- domain.RawRecord{InputID: id, Fields: map[string]domain.Value{}}
	}
	close(ch)
}

func TestRun_ProcessesEveryInputAndCommitsResults(t *testing.T) {
	store := openTestStore(t)
	worker := &recordingWorker{}
	cfg := Config{Workers: 2, BatchSize: 100}
	c := New(cfg, store, []Worker{worker, worker}, zap.NewNop(), nil)

	ch := make(chan domain.RawRecord)
	go feed(ch, "1", "2", "3")

	require.NoError(t, c.Run(context.Background(), ch))

	ids, err := store.ProcessedIDs(true)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestRun_SkipsAlreadyProcessedRecordsOnResume(t *testing.T) {
	store := openTestStore(t)

	id := "00000000000001"
	name := "ACME"
	store.Upsert(domain.MatchResult{InputID: "1", ResolvedEstablishmentID: &id, OfficialName: &name, Confidence: 1.0, Method: domain.MethodDirectID})
	require.NoError(t, store.Commit())

	worker := &recordingWorker{}
	cfg := Config{Workers: 1, BatchSize: 100}
	c := New(cfg, store, []Worker{worker}, zap.NewNop(), nil)

	ch := make(chan domain.RawRecord)
	go feed(ch, "1", "2")

	require.NoError(t, c.Run(context.Background(), ch))

	worker.mu.Lock()
	defer worker.mu.Unlock()
	assert.NotContains(t, worker.seen, "1")
	assert.Contains(t, worker.seen, "2")
}

func TestRun_RetryErrorsReprocessesOnlyErrorRows(t *testing.T) {
	store := openTestStore(t)

	id := "00000000000001"
	name := "ACME"
	store.Upsert(domain.MatchResult{InputID: "1", ResolvedEstablishmentID: &id, OfficialName: &name, Confidence: 1.0, Method: domain.MethodDirectID})
	store.Upsert(domain.NewError("2", "transient failure"))
	require.NoError(t, store.Commit())

	worker := &recordingWorker{}
	cfg := Config{Workers: 1, BatchSize: 100, RetryErrors: true}
	c := New(cfg, store, []Worker{worker}, zap.NewNop(), nil)

	ch := make(chan domain.RawRecord)
	go feed(ch, "1", "2")

	require.NoError(t, c.Run(context.Background(), ch))

	worker.mu.Lock()
	defer worker.mu.Unlock()
	assert.NotContains(t, worker.seen, "1")
	assert.Contains(t, worker.seen, "2")
}

func TestRun_LimitAppliesAfterFilteringProcessedRecords(t *testing.T) {
	store := openTestStore(t)

	id := "00000000000001"
	name := "ACME"
	store.Upsert(domain.MatchResult{InputID: "1", ResolvedEstablishmentID: &id, OfficialName: &name, Confidence: 1.0, Method: domain.MethodDirectID})
	require.NoError(t, store.Commit())

	worker := &recordingWorker{}
	cfg := Config{Workers: 1, BatchSize: 100, Limit: 1}
	c := New(cfg, store, []Worker{worker}, zap.NewNop(), nil)

	ch := make(chan domain.RawRecord)
	go feed(ch, "1", "2", "3")

	require.NoError(t, c.Run(context.Background(), ch))

	worker.mu.Lock()
	defer worker.mu.Unlock()
	assert.Len(t, worker.seen, 1)
	assert.Equal(t, "2", worker.seen[0])
}

func TestRun_ProgressCallbackReportsProcessedCount(t *testing.T) {
	store := openTestStore(t)
	worker := &recordingWorker{}
	cfg := Config{Workers: 1, BatchSize: 2, TotalRecords: 3}

	var last Progress
	var mu sync.Mutex
	c := New(cfg, store, []Worker{worker}, zap.NewNop(), func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		last = p
	})

	ch := make(chan domain.RawRecord)
	go feed(ch, "1", "2", "3")

	require.NoError(t, c.Run(context.Background(), ch))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, last.Processed)
	assert.Equal(t, 3, last.Total)
}
