package hotcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// New requires a reachable Redis instance; this only exercises the URL
// parsing and logs the connectivity outcome.
func TestNew_LogsConnectivityOutcome(t *testing.T) {
	_, err := New("redis://127.0.0.1:6379/0", zap.NewNop())
	t.Logf("hotcache.New result: %v", err)
}

func TestNew_RejectsMalformedURL(t *testing.T) {
	_, err := New("not-a-redis-url://", zap.NewNop())
	assert.Error(t, err)
}

func TestStats_ComputesHitRate(t *testing.T) {
	c := &Cache{hits: 3, misses: 1}
	stats := c.Stats()

	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.75, stats.HitRate, 0.0001)
}

func TestStats_ZeroRequestsHasZeroHitRate(t *testing.T) {
	c := &Cache{}
	stats := c.Stats()
	assert.Equal(t, 0.0, stats.HitRate)
}
