package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func directResult(inputID, establishmentID string) domain.MatchResult {
	id := establishmentID
	name := "ACME"
	return domain.MatchResult{InputID: inputID, ResolvedEstablishmentID: &id, OfficialName: &name, Confidence: 1.0, Method: domain.MethodDirectID}
}

func TestStore_CommitIsAtomicAndClearsPending(t *testing.T) {
	store := openTestStore(t)

	store.Upsert(directResult("1", "00000000000001"))
	store.Upsert(directResult("2", "00000000000002"))
	assert.Equal(t, 2, store.PendingCount())

	require.NoError(t, store.Commit())
	assert.Equal(t, 0, store.PendingCount())

	ids, err := store.ProcessedIDs(true)
	require.NoError(t, err)
	assert.Contains(t, ids, "1")
	assert.Contains(t, ids, "2")
}

func TestStore_CommitWithNoPendingIsNoop(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Commit())
}

func TestStore_ProcessedIDsExcludesErrorsWhenNotIncluded(t *testing.T) {
	store := openTestStore(t)
	store.Upsert(directResult("ok", "00000000000001"))
	store.Upsert(domain.NewError("bad", "boom"))
	require.NoError(t, store.Commit())

	withoutErrors, err := store.ProcessedIDs(false)
	require.NoError(t, err)
	assert.Contains(t, withoutErrors, "ok")
	assert.NotContains(t, withoutErrors, "bad")

	withErrors, err := store.ProcessedIDs(true)
	require.NoError(t, err)
	assert.Contains(t, withErrors, "ok")
	assert.Contains(t, withErrors, "bad")
}

func TestStore_RerunClearsStaleErrorMarker(t *testing.T) {
	store := openTestStore(t)
	store.Upsert(domain.NewError("1", "boom"))
	require.NoError(t, store.Commit())

	ids, err := store.ProcessedIDs(false)
	require.NoError(t, err)
	assert.NotContains(t, ids, "1")

	store.Upsert(directResult("1", "00000000000001"))
	require.NoError(t, store.Commit())

	ids, err = store.ProcessedIDs(false)
	require.NoError(t, err)
	assert.Contains(t, ids, "1")
}

func TestStore_AllIteratesEveryCommittedRow(t *testing.T) {
	store := openTestStore(t)
	store.Upsert(directResult("1", "00000000000001"))
	store.Upsert(directResult("2", "00000000000002"))
	require.NoError(t, store.Commit())

	var seen []string
	require.NoError(t, store.All(func(row domain.CheckpointRow) error {
		seen = append(seen, row.Result.InputID)
		return nil
	}))
	assert.ElementsMatch(t, []string{"1", "2"}, seen)
}

func TestOpen_FallsBackWhenConfiguredPathIsUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: directory permissions do not block writes")
	}
	dir := t.TempDir()
	unwritableDir := filepath.Join(dir, "locked")
	require.NoError(t, os.Mkdir(unwritableDir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(unwritableDir, 0o700) })

	path := filepath.Join(unwritableDir, "checkpoint.db")
	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
}
