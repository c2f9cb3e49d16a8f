// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"time"

	"poultry-review-engine/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient holds the cluster client the audit indexer writes
// through.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}

	esCfg := elasticsearch.Config{Addresses: addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: client}, nil
}

// Ping checks cluster reachability, bounded for startup retry loops.
func (c *ElasticsearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	return drainResponse("elasticsearch ping", res, err)
}

// Info asks the cluster for its identity banner; connectivity checks use it
// where they want an authenticated round trip rather than a bare ping.
func (c *ElasticsearchClient) Info(ctx context.Context) error {
	res, err := c.Client.Info(c.Client.Info.WithContext(ctx))
	return drainResponse("elasticsearch info", res, err)
}

// drainResponse closes the response body and folds transport and HTTP-level
// failures into one error.
func drainResponse(op string, res *esapi.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%s: %s", op, res.Status())
	}
	return nil
}
