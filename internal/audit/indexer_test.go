// internal/audit/indexer_test.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/database"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type capturedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeElasticsearch is an httptest-backed stand-in for the cluster. It
// records index and search requests and serves a canned search response.
type fakeElasticsearch struct {
	mu             sync.Mutex
	indexed        []capturedRequest
	searches       []capturedRequest
	failNextIndex  int
	searchResponse string
}

func (f *fakeElasticsearch) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The v8 client refuses to talk to anything that does not identify
		// itself as Elasticsearch.
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		body, _ := io.ReadAll(r.Body)
		req := capturedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)}

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/_search"):
			f.searches = append(f.searches, req)
			fmt.Fprint(w, f.searchResponse)
		case strings.Contains(r.URL.Path, "/_doc/"):
			if f.failNextIndex > 0 {
				f.failNextIndex--
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"index_unavailable"}`)
				return
			}
			f.indexed = append(f.indexed, req)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"result":"created"}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	})
}

func (f *fakeElasticsearch) indexedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.indexed)
}

func (f *fakeElasticsearch) indexedAt(i int) capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[i]
}

func (f *fakeElasticsearch) lastSearch() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches[len(f.searches)-1]
}

func createTestIndexer(t *testing.T, fake *fakeElasticsearch) *Indexer {
	t.Helper()

	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	var cfg config.ObservabilityConfig
	cfg.AuditIndex.Enabled = true
	cfg.AuditIndex.Prefix = "review-actions"
	cfg.AuditIndex.QueueSize = 16

	return NewIndexer(&database.ElasticsearchClient{Client: client}, cfg, logger.NewTestLogger(t))
}

func startIndexer(t *testing.T, ix *Indexer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ix.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("indexer did not stop after cancel")
		}
	})
}

func createTestAction(id string, createdAt time.Time) models.ReviewAction {
	stage := models.StageConstituency
	return models.ReviewAction{
		ID:            id,
		ApplicationID: "app-001",
		Stage:         &stage,
		ActorID:       "reviewer-12",
		Action:        models.ActionApproved,
		Notes:         "farm visit confirmed capacity",
		CreatedAt:     createdAt,
	}
}

// ==========================
// Indexing Tests
// ==========================

func TestIndexer_IndexesActionsIntoYearlyIndex(t *testing.T) {
	fake := &fakeElasticsearch{}
	ix := createTestIndexer(t, fake)
	startIndexer(t, ix)

	ix.Publish(createTestAction("act-1", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))

	require.Eventually(t, func() bool { return fake.indexedCount() == 1 },
		time.Second, 5*time.Millisecond)

	req := fake.indexedAt(0)
	assert.Equal(t, "/review-actions-2025/_doc/act-1", req.Path)

	var doc models.ReviewAction
	require.NoError(t, json.Unmarshal([]byte(req.Body), &doc))
	assert.Equal(t, "app-001", doc.ApplicationID)
	assert.Equal(t, models.ActionApproved, doc.Action)
}

func TestIndexer_BucketsByActionYear(t *testing.T) {
	fake := &fakeElasticsearch{}
	ix := createTestIndexer(t, fake)
	startIndexer(t, ix)

	ix.Publish(createTestAction("act-2024", time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)))
	ix.Publish(createTestAction("act-2025", time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)))

	require.Eventually(t, func() bool { return fake.indexedCount() == 2 },
		time.Second, 5*time.Millisecond)

	assert.Equal(t, "/review-actions-2024/_doc/act-2024", fake.indexedAt(0).Path)
	assert.Equal(t, "/review-actions-2025/_doc/act-2025", fake.indexedAt(1).Path)
}

func TestIndexer_WriteFailureDoesNotStopWorker(t *testing.T) {
	fake := &fakeElasticsearch{failNextIndex: 1}
	ix := createTestIndexer(t, fake)
	startIndexer(t, ix)

	ix.Publish(createTestAction("act-lost", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	ix.Publish(createTestAction("act-kept", time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)))

	// The failed write is logged and skipped; the next one still lands.
	require.Eventually(t, func() bool { return fake.indexedCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, "/review-actions-2025/_doc/act-kept", fake.indexedAt(0).Path)
}

func TestIndexer_DropsWhenBufferFull(t *testing.T) {
	fake := &fakeElasticsearch{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	var cfg config.ObservabilityConfig
	cfg.AuditIndex.QueueSize = 1
	ix := NewIndexer(&database.ElasticsearchClient{Client: client}, cfg, logger.NewTestLogger(t))

	// No worker running: the second publish finds the buffer full and drops.
	ix.Publish(createTestAction("act-1", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	ix.Publish(createTestAction("act-2", time.Date(2025, 3, 10, 9, 1, 0, 0, time.UTC)))

	startIndexer(t, ix)

	require.Eventually(t, func() bool { return fake.indexedCount() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, fake.indexedCount())
	assert.Equal(t, "/review-actions-2025/_doc/act-1", fake.indexedAt(0).Path)
}

// ==========================
// Search Tests
// ==========================

func TestIndexer_SearchFiltersAndParsesHits(t *testing.T) {
	first := createTestAction("act-1", time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC))
	second := createTestAction("act-2", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	second.Action = models.ActionClaimed

	firstDoc, _ := json.Marshal(first)
	secondDoc, _ := json.Marshal(second)

	fake := &fakeElasticsearch{
		searchResponse: fmt.Sprintf(
			`{"took":3,"hits":{"total":{"value":2},"hits":[{"_source":%s},{"_source":%s}]}}`,
			firstDoc, secondDoc),
	}
	ix := createTestIndexer(t, fake)

	stage := models.StageConstituency
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	actions, err := ix.Search(context.Background(), ActionQuery{
		ApplicationID: "app-001",
		ActorID:       "reviewer-12",
		Stage:         &stage,
		From:          &from,
	})

	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "act-1", actions[0].ID)
	assert.Equal(t, models.ActionClaimed, actions[1].Action)

	search := fake.lastSearch()
	assert.Equal(t, "/review-actions-*/_search", search.Path)
	assert.Contains(t, search.Body, `"applicationId":"app-001"`)
	assert.Contains(t, search.Body, `"actorId":"reviewer-12"`)
	assert.Contains(t, search.Body, `"stage":"constituency"`)
	assert.Contains(t, search.Body, `"gte":"2025-03-01T00:00:00Z"`)
	assert.Contains(t, search.Body, `"createdAt":"desc"`)
}

func TestIndexer_SearchWithoutFiltersMatchesAll(t *testing.T) {
	fake := &fakeElasticsearch{
		searchResponse: `{"took":1,"hits":{"total":{"value":0},"hits":[]}}`,
	}
	ix := createTestIndexer(t, fake)

	actions, err := ix.Search(context.Background(), ActionQuery{})

	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.Contains(t, fake.lastSearch().Body, "match_all")
}
