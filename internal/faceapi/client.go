// Package faceapi holds the clients for the external face services: the
// embedding service that detects faces and extracts embeddings, and the
// liveness classifier that tells live faces from presentation attacks.
// Both are consumed over multipart HTTP; nothing model-related runs in
// this process.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Detection is one detected face in a frame.
type Detection struct {
	// BBox is [x1, y1, x2, y2] in raw pixel coordinates.
	BBox []float64 `json:"bbox"`
	// DetScore is the detection confidence.
	DetScore float64 `json:"det_score"`
	// Embedding is the normalized face embedding, or nil when extraction failed.
	Embedding []float32 `json:"embedding"`
}

// Client talks to the embedding service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an embedding service client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// detectResponse represents the response from the embedding service.
type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint.
func postMultipartImage(ctx context.Context, client *http.Client, url string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Detect returns all face detections in the image, possibly none.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]Detection, error) {
	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/detect", imageData)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detect response: %w", err)
	}
	return resp.Faces, nil
}
