// internal/audit/indexer.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/database"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultIndexPrefix = "review-actions"
	defaultQueueSize   = 512
	defaultSearchSize  = 50
	maxSearchSize      = 100
)

// ActionQuery narrows an audit search. Zero-value fields are ignored.
type ActionQuery struct {
	ApplicationID string
	ActorID       string
	Action        models.ActionKind
	Stage         *models.Stage
	From          *time.Time
	To            *time.Time
	Size          int
}

// Indexer mirrors review actions into Elasticsearch for ad-hoc search. The
// store's action log stays authoritative: indexing runs async off a bounded
// buffer and a failed write is logged and skipped, never retried against the
// workflow. Actions land in one index per year ({prefix}-{year}).
type Indexer struct {
	es     *database.ElasticsearchClient
	prefix string
	inbox  chan models.ReviewAction
	logger logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, cfg config.ObservabilityConfig, log logger.Logger) *Indexer {
	prefix := cfg.AuditIndex.Prefix
	if prefix == "" {
		prefix = defaultIndexPrefix
	}
	size := cfg.AuditIndex.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	return &Indexer{
		es:     es,
		prefix: prefix,
		inbox:  make(chan models.ReviewAction, size),
		logger: log.WithFields(map[string]interface{}{"component": "audit-indexer"}),
	}
}

// Publish enqueues one action for indexing. It never blocks: a full buffer
// drops the action with a warning and the Postgres log keeps the record.
func (ix *Indexer) Publish(action models.ReviewAction) {
	select {
	case ix.inbox <- action:
	default:
		ix.logger.Warn("audit buffer full, skipping index", map[string]interface{}{
			"actionId":    action.ID,
			"application": action.ApplicationID,
		})
	}
}

// Run drains the buffer until ctx is cancelled. Call in its own goroutine.
func (ix *Indexer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case action := <-ix.inbox:
			if err := ix.index(ctx, action); err != nil {
				ix.logger.Error("audit index write failed", map[string]interface{}{
					"actionId":    action.ID,
					"application": action.ApplicationID,
					"error":       err.Error(),
				})
			}
		}
	}
}

func (ix *Indexer) index(ctx context.Context, action models.ReviewAction) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      ix.indexFor(action.CreatedAt),
		DocumentID: action.ID,
		Body:       strings.NewReader(string(payload)),
	}

	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index request failed: %s", res.Status())
	}
	return nil
}

// indexFor buckets actions into yearly indices so retention can drop whole
// years at a time.
func (ix *Indexer) indexFor(createdAt time.Time) string {
	return fmt.Sprintf("%s-%d", ix.prefix, createdAt.UTC().Year())
}

// Search queries the mirrored actions across all yearly indices, newest
// first.
func (ix *Indexer) Search(ctx context.Context, query ActionQuery) ([]models.ReviewAction, error) {
	size := query.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	body, _ := json.Marshal(buildActionSearch(query))

	req := esapi.SearchRequest{
		Index: []string{ix.prefix + "-*"},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("audit search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	actions := make([]models.ReviewAction, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		var action models.ReviewAction
		if err := json.Unmarshal(hit.Source, &action); err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// buildActionSearch assembles the bool query for one ActionQuery.
func buildActionSearch(q ActionQuery) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if q.ApplicationID != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"applicationId": q.ApplicationID},
		})
	}
	if q.ActorID != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"actorId": q.ActorID},
		})
	}
	if q.Action != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"action": string(q.Action)},
		})
	}
	if q.Stage != nil {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"stage": string(*q.Stage)},
		})
	}

	if q.From != nil || q.To != nil {
		window := map[string]interface{}{}
		if q.From != nil {
			window["gte"] = q.From.UTC().Format(time.RFC3339)
		}
		if q.To != nil {
			window["lte"] = q.To.UTC().Format(time.RFC3339)
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"createdAt": window},
		})
	}

	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": mustClauses}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"sort": []map[string]interface{}{{"createdAt": "desc"}},
	}
}
