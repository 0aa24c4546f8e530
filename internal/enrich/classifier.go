// Package enrich adds semantic industry classification and embeddings to
// stored programs after the fact. Enrichment is additive and resumable; it
// never rewrites extracted fields.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/store"
)

// ErrBudgetExhausted marks quota or rate exhaustion at the model API. It is
// fatal for the run: retrying other records would burn the same budget.
var ErrBudgetExhausted = errors.New("model API budget exhausted")

// Classification is the model's structured judgment on one program.
type Classification struct {
	PrimaryIndustry   string             `json:"primary_industry"`
	SecondaryIndustry string             `json:"secondary_industry"`
	SubDomains        map[string]float64 `json:"sub_domains"`
	Confidence        float64            `json:"confidence"`
}

// Classifier talks to an Ollama-compatible model server.
type Classifier struct {
	baseURL    string
	model      string
	embedModel string
	client     *http.Client
}

func NewClassifier(cfg config.EnrichConfig) *Classifier {
	return &Classifier{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the classification model name, recorded on enriched rows.
func (c *Classifier) Model() string { return c.model }

const classifyPrompt = `다음 정부 지원사업 공고를 분류하라.

제목: %s
부처: %s
기관: %s
분야: %s
키워드: %s

JSON으로만 답하라:
{
  "primary_industry": "주력 산업 분야",
  "secondary_industry": "보조 산업 분야 (없으면 빈 문자열)",
  "sub_domains": {"세부 도메인": 0.0에서 1.0 사이 관련도},
  "confidence": 0.0에서 1.0 사이 확신도
}`

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Classify asks the model for an industry judgment on one program.
func (c *Classifier) Classify(ctx context.Context, t store.EnrichTarget) (Classification, error) {
	prompt := fmt.Sprintf(classifyPrompt,
		t.Title, t.Ministry, t.AgencyName,
		strings.Join(t.Categories, ", "), strings.Join(t.Keywords, ", "))

	var gen generateResponse
	if err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	}, &gen); err != nil {
		return Classification{}, err
	}

	var cls Classification
	if err := json.Unmarshal([]byte(gen.Response), &cls); err != nil {
		return Classification{}, fmt.Errorf("classify %s: malformed model output: %w", t.ID, err)
	}
	if cls.PrimaryIndustry == "" {
		return Classification{}, fmt.Errorf("classify %s: model returned no primary industry", t.ID)
	}
	if cls.Confidence < 0 || cls.Confidence > 1 {
		return Classification{}, fmt.Errorf("classify %s: confidence %v out of range", t.ID, cls.Confidence)
	}
	return cls, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns an embedding vector for similarity search.
func (c *Classifier) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.embedModel, Prompt: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty vector")
	}
	return out.Embedding, nil
}

func (c *Classifier) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s returned %d", ErrBudgetExhausted, path, resp.StatusCode)
	default:
		return fmt.Errorf("call %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
