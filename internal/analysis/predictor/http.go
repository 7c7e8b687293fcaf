package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// modelClient wraps one inference sidecar. Model weights load lazily on the
// sidecar; warm-up happens once, triggered by the first caller, and every
// concurrent caller waits for that single attempt.
type modelClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger

	mu     sync.Mutex
	warmed bool
}

func newModelClient(baseURL string, timeout time.Duration, log *logger.Logger) *modelClient {
	return &modelClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// warmUp asks the sidecar to load its weights. A failed warm-up is not
// cached: the next caller retries, so a sidecar that comes up late still
// becomes usable.
func (c *modelClient) warmUp(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.warmed {
		return nil
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/warmup", nil)
	if err != nil {
		return fmt.Errorf("create warmup request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Model(err, "model warmup failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apperrors.Model(fmt.Errorf("status %d: %s", resp.StatusCode, string(body)), "model warmup failed")
	}

	c.warmed = true
	c.log.Info().
		Str("base_url", c.baseURL).
		Dur("duration", time.Since(start)).
		Msg("model warmed up")
	return nil
}

// infer uploads the image plus optional extra form fields and decodes the
// sidecar's JSON verdict into out.
func (c *modelClient) infer(ctx context.Context, endpoint, imagePath string, fields map[string]string, out any) error {
	if err := c.warmUp(ctx); err != nil {
		return err
	}

	body, contentType, err := imageForm(imagePath, fields)
	if err != nil {
		return apperrors.IO(err, "read image for inference")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("create inference request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Model(err, "inference request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Model(err, "read inference response")
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.Model(fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)), "inference error")
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.Model(err, "decode inference response")
	}
	return nil
}

func imageForm(imagePath string, fields map[string]string) (*bytes.Buffer, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy image data: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// SegmentationClient is the HTTP adapter for the tamper segmentation model
type SegmentationClient struct {
	*modelClient
}

// NewSegmentationClient creates a segmentation adapter against baseURL
func NewSegmentationClient(baseURL string, timeout time.Duration, log *logger.Logger) *SegmentationClient {
	return &SegmentationClient{
		modelClient: newModelClient(baseURL, timeout, log.WithComponent("segmentation")),
	}
}

// Predict implements Segmentation. The sidecar writes the heatmap artifact
// to heatmapPath, which is on a shared volume.
func (c *SegmentationClient) Predict(ctx context.Context, imagePath, heatmapPath string) (domain.SegmentationAnalysis, error) {
	var result domain.SegmentationAnalysis
	fields := map[string]string{"heatmap_path": heatmapPath}
	if err := c.infer(ctx, "/api/v1/segment", imagePath, fields, &result); err != nil {
		return domain.SegmentationAnalysis{}, err
	}
	result.HeatmapPath = heatmapPath
	return result, nil
}

// SensorTrustClient is the HTTP adapter for the sensor-noise trust model
type SensorTrustClient struct {
	*modelClient
}

// NewSensorTrustClient creates a sensor trust adapter against baseURL
func NewSensorTrustClient(baseURL string, timeout time.Duration, log *logger.Logger) *SensorTrustClient {
	return &SensorTrustClient{
		modelClient: newModelClient(baseURL, timeout, log.WithComponent("sensor_trust")),
	}
}

// Predict implements SensorTrust
func (c *SensorTrustClient) Predict(ctx context.Context, imagePath string) (SensorTrustPrediction, error) {
	var result SensorTrustPrediction
	if err := c.infer(ctx, "/api/v1/sensor-trust", imagePath, nil, &result); err != nil {
		return SensorTrustPrediction{}, err
	}
	return result, nil
}
