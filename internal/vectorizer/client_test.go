package vectorizer_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"annotation-backend/internal/vectorizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizeImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectorize_image", r.URL.Path)

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "cat.png", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vector": [0.1, 0.2, 0.3]}`))
	}))
	defer server.Close()

	client := vectorizer.NewClient(server.URL)
	vector, err := client.VectorizeImage(context.Background(), "cat.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestVectorizeText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectorize_text", r.URL.Path)

		var queries []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&queries))
		assert.Equal(t, []string{"a cat on a sofa"}, queries)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vectors": [[1, 0]]}`))
	}))
	defer server.Close()

	client := vectorizer.NewClient(server.URL)
	vector, err := client.VectorizeText(context.Background(), "a cat on a sofa")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vector)
}

func TestSearchSimilar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search_similar_images", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(5), req["top_k"])
		assert.Len(t, req["ids"], 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"id": "a", "similarity": 0.9}, {"id": "b", "similarity": 0.5}]}`))
	}))
	defer server.Close()

	client := vectorizer.NewClient(server.URL)
	hits, err := client.SearchSimilar(context.Background(),
		[]float32{1, 0}, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Id)
	assert.InDelta(t, 0.9, hits[0].Similarity, 1e-6)
}

func TestServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := vectorizer.NewClient(server.URL)
	_, err := client.VectorizeText(context.Background(), "query")
	assert.Error(t, err)
}
