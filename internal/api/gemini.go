package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.5-flash"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	// APIKey is the Google AI key. If empty, uses GOOGLE_API_KEY env var.
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// GeminiBackend calls the Gemini generateContent REST endpoint with a
// response schema so the reply is JSON of the requested shape.
type GeminiBackend struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiBackend builds a Gemini backend.
func NewGeminiBackend(cfg GeminiConfig) (*GeminiBackend, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY environment variable is not set", ErrConfiguration)
	}
	b := &GeminiBackend{
		apiKey:     apiKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
	}
	if b.model == "" {
		b.model = geminiDefaultModel
	}
	if b.baseURL == "" {
		b.baseURL = geminiBaseURL
	}
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return b, nil
}

// Name implements Backend.
func (b *GeminiBackend) Name() string {
	return ProviderGemini
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
	MaxOutputTokens  int64          `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Usage struct {
		PromptTokens    int64 `json:"promptTokenCount"`
		CandidateTokens int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate implements Backend.
func (b *GeminiBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   geminiSchema(req.Schema),
			MaxOutputTokens:  req.MaxTokens,
		},
	}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", b.baseURL, url.PathEscape(b.model), url.QueryEscape(b.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	out := &GenerateResponse{
		InputTokens:  genResp.Usage.PromptTokens,
		OutputTokens: genResp.Usage.CandidateTokens,
	}
	if len(genResp.Candidates) == 0 {
		return out, errNoStructuredOutput
	}
	var text strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return out, errNoStructuredOutput
	}
	out.Raw = json.RawMessage(text.String())
	return out, nil
}

// ListModels implements ModelLister.
func (b *GeminiBackend) ListModels(ctx context.Context) ([]ModelInfo, error) {
	endpoint := fmt.Sprintf("%s/models?key=%s", b.baseURL, url.QueryEscape(b.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("list models: %w", &StatusError{StatusCode: resp.StatusCode, Body: string(msg)})
	}

	var listResp struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	out := make([]ModelInfo, 0, len(listResp.Models))
	for _, m := range listResp.Models {
		out = append(out, ModelInfo{ID: strings.TrimPrefix(m.Name, "models/"), DisplayName: m.DisplayName})
	}
	return out, nil
}

// geminiSchema converts a JSON Schema object into Gemini's OpenAPI subset:
// upper-case type names, string-only enums and no additionalProperties.
func geminiSchema(s models.Schema) map[string]any {
	return convertGeminiNode(s.JSONSchema())
}

func convertGeminiNode(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	typ, _ := node["type"].(string)
	for k, v := range node {
		switch k {
		case "additionalProperties", "minimum":
			continue
		case "type":
			out["type"] = strings.ToUpper(typ)
		case "properties":
			props, _ := v.(map[string]any)
			converted := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					converted[name] = convertGeminiNode(pm)
				}
			}
			out["properties"] = converted
		case "items":
			if im, ok := v.(map[string]any); ok {
				out["items"] = convertGeminiNode(im)
			}
		case "enum":
			if typ != "string" {
				desc, _ := node["description"].(string)
				out["description"] = strings.TrimSpace(fmt.Sprintf("%s (one of %v)", desc, v))
				continue
			}
			out["enum"] = v
		case "description":
			if _, set := out["description"]; !set {
				out["description"] = v
			}
		default:
			out[k] = v
		}
	}
	return out
}
