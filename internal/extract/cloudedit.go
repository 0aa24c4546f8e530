package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minki/fundscan/internal/models"
)

// CloudEditorBackend converts documents through a cloud document-editor
// conversion API. It handles formats the native parsers choke on, at the cost
// of a network round trip, so it sits between native parse and OCR in the
// chain.
type CloudEditorBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCloudEditorBackend(baseURL, apiKey string, timeout time.Duration) *CloudEditorBackend {
	return &CloudEditorBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *CloudEditorBackend) Name() models.DataSource { return models.SourceCloudOCR }

func (b *CloudEditorBackend) Supports(path string) bool {
	if b.baseURL == "" {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hwp", ".hwpx", ".pdf", ".doc", ".docx":
		return true
	}
	return false
}

type cloudConvertRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64
	Output   string `json:"output"`
}

type cloudConvertResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (b *CloudEditorBackend) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	body, err := json.Marshal(cloudConvertRequest{
		Filename: filepath.Base(path),
		Content:  base64.StdEncoding.EncodeToString(data),
		Output:   "text",
	})
	if err != nil {
		return "", fmt.Errorf("marshal convert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/convert", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build convert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloud convert %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("cloud convert %s: status %d: %s", filepath.Base(path), resp.StatusCode, raw)
	}

	var out cloudConvertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode convert response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("cloud convert %s: %s", filepath.Base(path), out.Error)
	}
	return out.Text, nil
}
