package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAdapter struct {
	normalizeCalls int
	arbitrateCalls int
}

func (a *countingAdapter) Normalize(ctx context.Context, req NormalizeRequest) (NormalizeResponse, error) {
	a.normalizeCalls++
	return NormalizeResponse{CleanName: "ACME"}, nil
}

func (a *countingAdapter) Arbitrate(ctx context.Context, req ArbitrateRequest) (Choice, error) {
	a.arbitrateCalls++
	return ChoiceA, nil
}

func TestRateLimited_ZeroIntervalNeverBlocks(t *testing.T) {
	inner := &countingAdapter{}
	rl := NewRateLimited(inner, 0)

	for i := 0; i < 5; i++ {
		_, err := rl.Normalize(context.Background(), NormalizeRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, inner.normalizeCalls)
}

func TestRateLimited_DelegatesArbitrate(t *testing.T) {
	inner := &countingAdapter{}
	rl := NewRateLimited(inner, 0)

	choice, err := rl.Arbitrate(context.Background(), ArbitrateRequest{})
	require.NoError(t, err)
	assert.Equal(t, ChoiceA, choice)
	assert.Equal(t, 1, inner.arbitrateCalls)
}

func TestRateLimited_CancelledContextReturnsUnavailable(t *testing.T) {
	inner := &countingAdapter{}
	rl := NewRateLimited(inner, 60000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rl.Normalize(ctx, NormalizeRequest{})
	require.Error(t, err)
	var unavailable Unavailable
	assert.ErrorAs(t, err, &unavailable)
}

var _ Adapter = (*countingAdapter)(nil)
