// Package integration contains tests that verify the interaction between
// the corpus, matcher and lemma components. They use httptest servers with
// real handler wiring over a real PostgreSQL database; Kafka and Redis are
// left out, so updates are applied to the index directly.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS fragments (
    id          TEXT PRIMARY KEY,
    lines       JSONB NOT NULL DEFAULT '[]',
    line_to_vec JSONB NOT NULL DEFAULT '[]',
    lemma_lines JSONB NOT NULL DEFAULT '[]',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
TRUNCATE fragments;`

// skipIfNoPostgres skips the test when PostgreSQL is unavailable and
// otherwise returns a client on an empty fragments table.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	_, err = db.DB.ExecContext(ctx, schema)
	require.NoError(t, err)
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "fragmentarium_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "fragmentarium"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// newPlatformServer wires the corpus, matcher and lemma handlers the way
// cmd/matcher does, without Kafka or Redis.
func newPlatformServer(t *testing.T, db *postgres.Client) (*httptest.Server, *corpus.Loader) {
	t.Helper()
	repo := corpus.NewRepository(db)
	index := corpus.NewIndex(nil)
	loader := corpus.NewLoader(index, repo, config.CorpusConfig{LoadAttempts: 1, LoadTimeout: 10 * time.Second})

	searcher, err := lemma.NewSearcher(config.LemmaConfig{PoolSize: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(searcher.Release)

	matcherCfg := config.MatcherConfig{ResultLimit: 15, MaxConcurrentQueries: 2, QueryTimeout: 10 * time.Second, WeightTable: "default"}
	mux := http.NewServeMux()
	matcher.NewHandler(matcher.New(index, matcherCfg, nil), matcherCfg).Register(mux)
	lemma.NewHandler(searcher, repo, nil).Register(mux)
	corpus.NewHandler(corpus.NewIngester(repo, nil, corpus.NewApplier(index)), index).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, loader
}

func send(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func putFragment(t *testing.T, srv *httptest.Server, id string, req corpus.PutRequest) {
	t.Helper()
	require.Equal(t, http.StatusOK, send(t, http.MethodPut, srv.URL+"/api/v1/fragments/"+id, req, nil))
}

var ruledLines = []map[string]any{
	{"kind": 0, "number": 1},
	{"kind": 1, "rulings": []int{1}},
	{"kind": 0, "number": 2},
}

func TestStoredFragmentsAreRanked(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, loader := newPlatformServer(t, db)

	for _, id := range []string{"X.1", "X.2"} {
		require.Equal(t, http.StatusOK, send(t, http.MethodPut, srv.URL+"/api/v1/fragments/"+id,
			map[string]any{"lines": ruledLines}, nil))
	}
	putFragment(t, srv, "X.3", corpus.PutRequest{})

	var ranking matcher.Ranking
	require.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.URL+"/api/v1/fragments/X.1/match", nil, &ranking))
	require.NotEmpty(t, ranking.Score)
	assert.Equal(t, "X.2", ranking.Score[0].ID)
	for _, row := range ranking.Score {
		assert.NotEqual(t, "X.1", row.ID, "the candidate is never ranked against itself")
	}

	assert.Equal(t, http.StatusBadRequest, send(t, http.MethodGet, srv.URL+"/api/v1/fragments/X.3/match", nil, nil),
		"a fragment without ruling encodings cannot be matched")

	// A fresh load from the database sees the same corpus as the live index.
	require.NoError(t, loader.Reload(context.Background()))
	var encodings corpus.EncodingsResponse
	require.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.URL+"/api/v1/fragments/X.2/encodings", nil, &encodings))
	assert.Len(t, encodings.Encodings, 1)
}

func TestDeletedFragmentsLeaveTheRanking(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, _ := newPlatformServer(t, db)

	for _, id := range []string{"X.1", "X.2"} {
		require.Equal(t, http.StatusOK, send(t, http.MethodPut, srv.URL+"/api/v1/fragments/"+id,
			map[string]any{"lines": ruledLines}, nil))
	}
	require.Equal(t, http.StatusNoContent, send(t, http.MethodDelete, srv.URL+"/api/v1/fragments/X.2", nil, nil))

	var ranking matcher.Ranking
	require.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.URL+"/api/v1/match?sequence=0,1,2,1,5", nil, &ranking))
	for _, row := range ranking.Score {
		assert.NotEqual(t, "X.2", row.ID)
	}
	assert.Equal(t, http.StatusNotFound, send(t, http.MethodGet, srv.URL+"/api/v1/fragments/X.2/encodings", nil, nil))
}

func TestLemmaSearchOverStoredFragments(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv, _ := newPlatformServer(t, db)

	putFragment(t, srv, "K.1", corpus.PutRequest{LemmaLines: []lemma.Line{
		{{"šumma I"}, {"awīlum I"}},
		{{"kur I", "uk I"}, {"ap I"}, nil},
	}})
	putFragment(t, srv, "K.2", corpus.PutRequest{LemmaLines: []lemma.Line{
		{{"ap I"}, {"kur I"}},
	}})

	var result lemma.Result
	status := send(t, http.MethodPost, srv.URL+"/api/v1/lemmas/search", lemma.SearchRequest{
		Type:      "phrase",
		Lemmas:    []string{"uk I", "ap I"},
		Fragments: []string{"K.1", "K.2"},
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []lemma.Item{{ID: "K.1", MatchingLines: []int{1}, MatchCount: 1}}, result.Items)
	assert.Equal(t, 1, result.MatchCountTotal)

	status = send(t, http.MethodPost, srv.URL+"/api/v1/lemmas/search", lemma.SearchRequest{
		Type:      "OR",
		Lemmas:    []string{"ap I"},
		Fragments: []string{"K.1", "K.2"},
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, result.MatchCountTotal)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
