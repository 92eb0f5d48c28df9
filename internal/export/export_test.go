package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
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

func TestWriteCSV_HeaderMatchesStableColumnOrder(t *testing.T) {
	store := openTestStore(t)
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(store, &buf))

	reader := csv.NewReader(&buf)
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Columns, rows[0])
}

func TestWriteCSV_IncludesSuccessAndErrorRows(t *testing.T) {
	store := openTestStore(t)

	id := "00000000000001"
	name := "ACME"
	store.Upsert(domain.MatchResult{
		InputID:                 "1",
		ResolvedEstablishmentID: &id,
		OfficialName:            &name,
		Confidence:              0.91,
		Method:                  domain.MethodCalculated,
		Alternatives:            []string{"00000000000002"},
	})
	store.Upsert(domain.NewError("2", "boom"))
	require.NoError(t, store.Commit())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(store, &buf))

	reader := csv.NewReader(&buf)
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byInputID := map[string][]string{}
	for _, row := range rows[1:] {
		byInputID[row[0]] = row
	}

	success := byInputID["1"]
	require.NotNil(t, success)
	assert.Equal(t, "00000000000001", success[1])
	assert.Equal(t, "0.91", success[3])
	assert.Equal(t, string(domain.MethodCalculated), success[4])
	assert.Equal(t, `["00000000000002"]`, success[5])
	assert.Equal(t, "", success[6])

	failure := byInputID["2"]
	require.NotNil(t, failure)
	assert.Equal(t, "", failure[1])
	assert.Equal(t, string(domain.MethodError), failure[4])
	// A nil Alternatives slice (every NOT_FOUND/ERROR row) must still render
	// as a JSON array, never the literal `null` (§4.7).
	assert.Equal(t, "[]", failure[5])
	assert.Equal(t, "boom", failure[6])
}
