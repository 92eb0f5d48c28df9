package normalizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/domain"
	"github.com/supplier-resolver/resolver/internal/llm"
)

func rawRecord(name, addr1, postal, city string) domain.RawRecord {
	return domain.RawRecord{
		InputID: "1",
		Fields: map[string]domain.Value{
			domain.FieldName:     domain.StringValue(name),
			domain.FieldAddress1: domain.StringValue(addr1),
			domain.FieldPostal:   domain.StringValue(postal),
			domain.FieldCity:     domain.StringValue(city),
		},
	}
}

func TestNormalize_HeuristicStripsLegalSuffix(t *testing.T) {
	n := New(zap.NewNop())
	out := n.Normalize(context.Background(), rawRecord("ACME WIDGETS SAS", "1 RUE X", "75001", "Paris"))

	assert.Equal(t, "ACME WIDGETS", out.CleanName)
	assert.Equal(t, "PARIS", *out.CleanCity)
	require.NotNil(t, out.CleanPostal)
	assert.Equal(t, "75001", *out.CleanPostal)
}

func TestNormalize_HeuristicStripsAccentsFromNameAndCity(t *testing.T) {
	n := New(zap.NewNop())
	out := n.Normalize(context.Background(), rawRecord("Société Générale", "", "", "Orléans"))

	assert.Equal(t, "SOCIETE GENERALE", out.CleanName)
	require.NotNil(t, out.CleanCity)
	assert.Equal(t, "ORLEANS", *out.CleanCity)
}

func TestNormalize_HeuristicSkipsGenericWordForSearchToken(t *testing.T) {
	n := New(zap.NewNop())
	out := n.Normalize(context.Background(), rawRecord("GROUPE WIDGETS", "", "", ""))

	assert.Equal(t, "WIDGETS", out.SearchToken)
}

func TestNormalize_HeuristicPadsFourDigitPostal(t *testing.T) {
	n := New(zap.NewNop())
	out := n.Normalize(context.Background(), rawRecord("ACME", "", "7500", ""))

	require.NotNil(t, out.CleanPostal)
	assert.Equal(t, "07500", *out.CleanPostal)
}

func TestNormalize_NoLocationFieldsLeavesCleanPostalAndCityNil(t *testing.T) {
	n := New(zap.NewNop())
	out := n.Normalize(context.Background(), rawRecord("ACME", "", "", ""))

	assert.Nil(t, out.CleanPostal)
	assert.Nil(t, out.CleanCity)
}

func TestNormalize_CachesByInputTuple(t *testing.T) {
	n := New(zap.NewNop())
	raw := rawRecord("ACME SARL", "1 RUE X", "75001", "PARIS")

	first := n.Normalize(context.Background(), raw)
	second := n.Normalize(context.Background(), raw)

	assert.Equal(t, first, second)
}

type stubAdapter struct {
	resp llm.NormalizeResponse
	err  error
}

func (s *stubAdapter) Normalize(ctx context.Context, req llm.NormalizeRequest) (llm.NormalizeResponse, error) {
	return s.resp, s.err
}

func (s *stubAdapter) Arbitrate(ctx context.Context, req llm.ArbitrateRequest) (llm.Choice, error) {
	return llm.ChoiceNone, nil
}

func TestNormalize_ModelBackedUsesAdapterResponse(t *testing.T) {
	adapter := &stubAdapter{resp: llm.NormalizeResponse{
		CleanName:   "acme widgets",
		SearchToken: "widgets",
		CleanPostal: "75001",
		CleanCity:   "paris",
	}}
	n := New(zap.NewNop(), WithAdapter(adapter))

	out := n.Normalize(context.Background(), rawRecord("Acme Widgets SAS", "1 rue x", "75001", "Paris"))

	assert.Equal(t, "ACME WIDGETS", out.CleanName)
	assert.Equal(t, "WIDGETS", out.SearchToken)
	require.NotNil(t, out.CleanCity)
	assert.Equal(t, "PARIS", *out.CleanCity)
}

func TestNormalize_AdapterFailureFallsBackToHeuristic(t *testing.T) {
	adapter := &stubAdapter{err: llm.Unavailable{}}
	n := New(zap.NewNop(), WithAdapter(adapter))

	out := n.Normalize(context.Background(), rawRecord("ACME WIDGETS SAS", "1 RUE X", "75001", "PARIS"))

	assert.Equal(t, "ACME WIDGETS", out.CleanName)
}
