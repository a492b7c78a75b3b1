package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
)

// Liveness labels.
const (
	LabelReal = "real"
	LabelFake = "fake"
)

// cropSize is the edge length the face region is scaled to before
// classification; the classifier expects a fixed input size.
const cropSize = 224

// Liveness is the classifier's verdict for one face region.
type Liveness struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// LivenessClient talks to the anti-spoofing classifier.
type LivenessClient struct {
	baseURL string
	client  *http.Client
}

// NewLivenessClient creates a liveness classifier client.
func NewLivenessClient(baseURL string) *LivenessClient {
	return &LivenessClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Classify sends a face region to the classifier.
func (c *LivenessClient) Classify(ctx context.Context, regionData []byte) (Liveness, error) {
	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/classify", regionData)
	if err != nil {
		return Liveness{}, err
	}

	var result Liveness
	if err := json.Unmarshal(body, &result); err != nil {
		return Liveness{}, fmt.Errorf("failed to parse classify response: %w", err)
	}
	return result, nil
}

// CropFace cuts the detection's bounding box out of the frame and scales it
// to the classifier's input size, re-encoded as JPEG. The box is clamped to
// the frame bounds.
func CropFace(imageData []byte, bbox []float64) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("expected 4 bbox coordinates, got %d", len(bbox))
	}

	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := src.Bounds()
	rect := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %v is outside the frame %v", bbox, bounds)
	}

	dst := image.NewRGBA(image.Rect(0, 0, cropSize, cropSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, rect, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode face region: %w", err)
	}
	return buf.Bytes(), nil
}
