// Package vectorizer is a client for the external embedding service used for
// similarity search over uploaded images.
package vectorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	client *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
	}
}

type vectorizeImageResponse struct {
	Vector []float32 `json:"vector"`
}

type vectorizeTextResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

type searchSimilarRequest struct {
	QueryVector []float32   `json:"query_vector"`
	Vectors     [][]float32 `json:"vectors"`
	Ids         []string    `json:"ids"`
	TopK        int         `json:"top_k"`
}

type SearchHit struct {
	Id         string  `json:"id"`
	Similarity float32 `json:"similarity"`
}

type searchSimilarResponse struct {
	Results []SearchHit `json:"results"`
}

// VectorizeImage sends the image bytes as a multipart form and returns the
// embedding vector.
func (c *Client) VectorizeImage(ctx context.Context, filename, contentType string, data []byte) ([]float32, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetMultipartField("image", filename, contentType, bytes.NewReader(data)).
		SetHeader("Accept", "application/json").
		Post("/vectorize_image")
	if err != nil {
		return nil, fmt.Errorf("error calling vectorize_image: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("vectorize_image returned status %d: %s", res.StatusCode(), res.String())
	}

	var parsed vectorizeImageResponse
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("error parsing vectorize_image response: %w", err)
	}
	return parsed.Vector, nil
}

// VectorizeText embeds a single query string. The service accepts a batch and
// returns one vector per input.
func (c *Client) VectorizeText(ctx context.Context, query string) ([]float32, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody([]string{query}).
		Post("/vectorize_text")
	if err != nil {
		return nil, fmt.Errorf("error calling vectorize_text: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("vectorize_text returned status %d: %s", res.StatusCode(), res.String())
	}

	var parsed vectorizeTextResponse
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("error parsing vectorize_text response: %w", err)
	}
	if len(parsed.Vectors) == 0 {
		return nil, nil
	}
	return parsed.Vectors[0], nil
}

// SearchSimilar ranks the candidate vectors against the query vector and
// returns the top k hits by cosine similarity.
func (c *Client) SearchSimilar(ctx context.Context, queryVector []float32, ids []string, vectors [][]float32, topK int) ([]SearchHit, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(searchSimilarRequest{
			QueryVector: queryVector,
			Vectors:     vectors,
			Ids:         ids,
			TopK:        topK,
		}).
		Post("/search_similar_images")
	if err != nil {
		return nil, fmt.Errorf("error calling search_similar_images: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("search_similar_images returned status %d: %s", res.StatusCode(), res.String())
	}

	var parsed searchSimilarResponse
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("error parsing search_similar_images response: %w", err)
	}
	return parsed.Results, nil
}
