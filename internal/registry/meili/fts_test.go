package meili

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/registry"
)

// New requires a reachable Meilisearch instance; this only exercises the
// config plumbing and logs the outcome, the way a server-dependent
// constructor is tested elsewhere in this codebase.
func TestNew_LogsConnectivityOutcome(t *testing.T) {
	cfg := Config{Host: "http://127.0.0.1:7700", APIKey: "masterKey", Timeout: time.Second}
	_, err := New(cfg, zap.NewNop())
	t.Logf("meili.New result: %v", err)
}

func TestFTSCandidates_EmptySearchTokenShortCircuitsWithoutNetworkCall(t *testing.T) {
	c := &Client{logger: zap.NewNop(), timeout: time.Second}
	hits, err := c.FTSCandidates(context.Background(), "", 20)
	assert.NoError(t, err)
	assert.Nil(t, hits)
}

var _ registry.FullTextSearch = (*Client)(nil)
