package document

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
	"time"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
)

// Client talks to the PDF accessor sidecar over HTTP. The sidecar wraps the
// actual parser and signature validator; this process only consumes their
// structured output.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new sidecar client. timeout bounds a single sidecar
// request, not the analysis as a whole.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Open implements Accessor by POSTing the file to the sidecar's inspect
// endpoint and decoding the full structural view.
func (c *Client) Open(ctx context.Context, path string) (*Document, error) {
	body, contentType, err := fileForm(path, nil)
	if err != nil {
		return nil, apperrors.IO(err, "read document for inspection")
	}

	respBody, err := c.post(ctx, "/api/v1/inspect", body, contentType)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return nil, apperrors.Parse(err, "decode inspect response")
	}
	return &doc, nil
}

// Validate implements SignatureValidator for a single signature field.
func (c *Client) Validate(ctx context.Context, path, field string, tc TrustContext) (domain.SignatureStatus, error) {
	extra := map[string]string{
		"field":          field,
		"allow_fetching": fmt.Sprintf("%t", tc.AllowFetching),
	}
	body, contentType, err := fileForm(path, extra)
	if err != nil {
		return domain.SignatureStatus{}, apperrors.IO(err, "read document for validation")
	}

	respBody, err := c.post(ctx, "/api/v1/signatures/validate", body, contentType)
	if err != nil {
		return domain.SignatureStatus{}, err
	}

	var status domain.SignatureStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return domain.SignatureStatus{}, apperrors.Signature(err, "decode validation response")
	}
	return status, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body *bytes.Buffer, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Model(err, "document sidecar request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Model(err, "read sidecar response")
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		// The sidecar could not parse the document at all.
		return nil, apperrors.Parse(fmt.Errorf("%s", string(respBody)), "sidecar parse rejection")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Model(fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)), "document sidecar error")
	}
	return respBody, nil
}

// fileForm builds a multipart body holding the file plus optional extra
// string fields.
func fileForm(path string, extra map[string]string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy file data: %w", err)
	}
	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
