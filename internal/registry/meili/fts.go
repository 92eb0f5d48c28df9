// Package meili implements registry.FullTextSearch over the legal-entity
// name index. It is a single shared client (unlike the per-worker
// column-store handle), since the Meilisearch server itself already pools
// connections.
package meili

import (
	"context"
	"fmt"
	"time"

	ms "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/registry"
)

// IndexName is the legal-entity search index the builder seeds.
const IndexName = "legal_entities"

// Config points the client at a running Meilisearch instance.
type Config struct {
	Host    string
	APIKey  string
	Timeout time.Duration
}

// Client is a registry.FullTextSearch implementation.
type Client struct {
	svc     ms.ServiceManager
	logger  *zap.Logger
	timeout time.Duration
}

// New connects to Meilisearch and verifies it is reachable.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	svc := ms.New(cfg.Host, ms.WithAPIKey(cfg.APIKey))
	if _, err := svc.Health(); err != nil {
		return nil, fmt.Errorf("meilisearch unreachable: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{svc: svc, logger: logger, timeout: timeout}, nil
}

// FTSCandidates searches the legal-entity index for searchToken and returns
// up to limit hits ranked by Meilisearch's own relevance score.
func (c *Client) FTSCandidates(ctx context.Context, searchToken string, limit int) ([]registry.FTSHit, error) {
	if searchToken == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_ = ctx // the meilisearch-go client does not take a context per call

	idx := c.svc.Index(IndexName)
	req := &ms.SearchRequest{
		Limit:                 int64(limit),
		ShowRankingScore:      true,
		AttributesToRetrieve:  []string{"company_id", "official_name"},
	}
	result, err := idx.Search(searchToken, req)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}

	hits := make([]registry.FTSHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		companyID, _ := m["company_id"].(string)
		officialName, _ := m["official_name"].(string)
		if companyID == "" {
			continue
		}
		relevance := 0.0
		if score, ok := m["_rankingScore"].(float64); ok {
			relevance = score
		}
		hits = append(hits, registry.FTSHit{
			CompanyID:    companyID,
			OfficialName: officialName,
			Relevance:    relevance,
		})
	}
	return hits, nil
}

// BuildIndex configures the legal-entity index's searchable/filterable
// attributes and typo tolerance. Run once by cmd/registrybuild, not by the
// resolver at query time.
func (c *Client) BuildIndex() error {
	idx := c.svc.Index(IndexName)
	enabled := true
	task, err := idx.UpdateSettings(&ms.Settings{
		SearchableAttributes: []string{"official_name"},
		FilterableAttributes: []string{"company_id", "active_status"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		TypoTolerance: &ms.TypoTolerance{
			Enabled: enabled,
			MinWordSizeForTypos: ms.MinWordSizeForTypos{
				OneTypo:  4,
				TwoTypos: 8,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configure fts index: %w", err)
	}
	c.logger.Info("configured legal-entity fts index", zap.Int64("task_uid", task.TaskUID))
	return nil
}

// SeedDocument is the shape seeded into the legal-entity index by
// cmd/registrybuild.
type SeedDocument struct {
	ID           string `json:"id"`
	CompanyID    string `json:"company_id"`
	OfficialName string `json:"official_name"`
	ActiveStatus string `json:"active_status"`
}

// Seed loads legal-entity documents into the index in batches of 1000.
func (c *Client) Seed(docs []SeedDocument) error {
	idx := c.svc.Index(IndexName)
	const batchSize = 1000
	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		task, err := idx.AddDocuments(docs[i:end], "id")
		if err != nil {
			return fmt.Errorf("seed fts batch %d-%d: %w", i, end, err)
		}
		c.logger.Info("seeded fts batch", zap.Int("from", i), zap.Int("to", end), zap.Int64("task_uid", task.TaskUID))
	}
	return nil
}

var _ registry.FullTextSearch = (*Client)(nil)
