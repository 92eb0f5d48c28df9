package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplier-resolver/resolver/internal/domain"
)

func TestResolveHeader_RecognizesAliasesCaseInsensitively(t *testing.T) {
	canonical, ok := ResolveHeader("  Raison Sociale ")
	require.True(t, ok)
	assert.Equal(t, domain.FieldName, canonical)

	canonical, ok = ResolveHeader("ZIP")
	require.True(t, ok)
	assert.Equal(t, domain.FieldPostal, canonical)

	_, ok = ResolveHeader("some unrecognized column")
	assert.False(t, ok)
}

func TestReadCSV_AppliesAliasesAndDerivesInputID(t *testing.T) {
	input := "Auxiliaire,Raison Sociale,Code Postal,Ville\n" +
		"SUP-001,ACME WIDGETS,07500,Lyon\n"

	var got []domain.RawRecord
	err := ReadCSV(strings.NewReader(input), func(raw domain.RawRecord) error {
		got = append(got, raw)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Equal(t, "SUP-001", rec.InputID)
	assert.Equal(t, "ACME WIDGETS", rec.Get(domain.FieldName).AsString())
	assert.Equal(t, "07500", rec.Get(domain.FieldPostal).AsString())
	assert.Equal(t, "Lyon", rec.Get(domain.FieldCity).AsString())
}

func TestReadCSV_FallsBackToRowNumberWhenNoIdentifierColumn(t *testing.T) {
	input := "Name,City\nACME,Paris\nOther,Lyon\n"

	var ids []string
	err := ReadCSV(strings.NewReader(input), func(raw domain.RawRecord) error {
		ids = append(ids, raw.InputID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"row-0", "row-1"}, ids)
}

func TestReadCSV_DropsUnrecognizedColumns(t *testing.T) {
	input := "Name,Some Random Column\nACME,whatever\n"

	var got []domain.RawRecord
	err := ReadCSV(strings.NewReader(input), func(raw domain.RawRecord) error {
		got = append(got, raw)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Fields, 1)
	assert.Equal(t, "ACME", got[0].Get(domain.FieldName).AsString())
}

func TestReadCSV_PreservesLeadingZerosInPostalCode(t *testing.T) {
	input := "Name,Code Postal\nACME,07500\n"

	var got []domain.RawRecord
	err := ReadCSV(strings.NewReader(input), func(raw domain.RawRecord) error {
		got = append(got, raw)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "07500", got[0].Get(domain.FieldPostal).AsString())
}

func TestReadCSV_PropagatesCallbackError(t *testing.T) {
	input := "Name\nACME\n"
	boom := assert.AnError

	err := ReadCSV(strings.NewReader(input), func(raw domain.RawRecord) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
