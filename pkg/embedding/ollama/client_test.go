package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roofline/pkg/request"
)

func testRequestClient() *request.Client {
	return request.New(request.ClientConfig{
		Retries:   1,
		Timeout:   5 * time.Second,
		BaseDelay: time.Millisecond,
		MaxDelay:  time.Millisecond,
	})
}

func TestNewClientRequiresModel(t *testing.T) {
	_, err := NewClient(Options{Dimension: 4}, testRequestClient())
	require.Error(t, err)
}

func TestEmbedSingle(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3, 4}})
	}))
	defer srv.Close()

	c, err := NewClient(Options{Model: "mxbai-embed-large", Endpoint: srv.URL, Dimension: 4}, testRequestClient())
	require.NoError(t, err)
	assert.Equal(t, 1, c.BatchSize())

	vecs, err := c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, vecs[0])
	assert.Equal(t, "mxbai-embed-large", gotReq.Model)
	assert.Equal(t, "hello", gotReq.Prompt)
}

func TestEmbedRejectsBatch(t *testing.T) {
	c, err := NewClient(Options{Model: "m", Endpoint: "http://unused", Dimension: 4}, testRequestClient())
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2}})
	}))
	defer srv.Close()

	c, err := NewClient(Options{Model: "m", Endpoint: srv.URL, Dimension: 4}, testRequestClient())
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}
