package utils

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeElasticsearch(t *testing.T, handler http.HandlerFunc) ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead && r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := newElasticsearchClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestSearchDocuments_ReturnsSources(t *testing.T) {
	var gotPath, gotBody string
	client := fakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		io.WriteString(w, `{"hits":{"hits":[{"_source":{"id":"r1","name":"Jane Doe"}},{"_source":{"id":"r2","name":"Janet"}}]}}`)
	})

	docs, err := client.SearchDocuments(context.Background(), "records", map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	})

	require.NoError(t, err)
	assert.Equal(t, "/records/_search", gotPath)
	assert.Contains(t, gotBody, "match_all")
	require.Len(t, docs, 2)

	var first struct{ ID, Name string }
	require.NoError(t, json.Unmarshal(docs[0], &first))
	assert.Equal(t, "Jane Doe", first.Name)
}

func TestSearchDocuments_MissingIndexIsEmpty(t *testing.T) {
	client := fakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
	})

	docs, err := client.SearchDocuments(context.Background(), "records", map[string]interface{}{})

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIndexAndDeleteDocument(t *testing.T) {
	var calls []string
	client := fakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		io.WriteString(w, `{"result":"created"}`)
	})
	ctx := context.Background()

	require.NoError(t, client.IndexDocument(ctx, "records", "r1", map[string]string{"name": "Jane"}))
	require.NoError(t, client.DeleteDocument(ctx, "records", "r1"))

	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "PUT /records/_doc/r1"))
	assert.Equal(t, "DELETE /records/_doc/r1", calls[1])
}
