// Package gemini implements enrich.Enricher on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/newsdigest/digest-pipeline/internal/enrich"
	"google.golang.org/genai"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// TargetLanguage is the output language for titles and summaries.
	TargetLanguage string
}

type Enricher struct {
	client   *genai.Client
	model    string
	language string
}

func New(ctx context.Context, cfg Config) (*Enricher, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	language := strings.TrimSpace(cfg.TargetLanguage)
	if language == "" {
		language = "Korean"
	}
	return &Enricher{
		client:   client,
		model:    strings.TrimSpace(cfg.Model),
		language: language,
	}, nil
}

var outputSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":               {Type: genai.TypeInteger},
			"translated_title": {Type: genai.TypeString},
			"summary":          {Type: genai.TypeString},
		},
		Required: []string{"id", "translated_title", "summary"},
	},
}

// Enrich submits items in a single structured-JSON call and parses the
// per-item results. The returned slice may cover fewer ids than were
// submitted; the orchestrator handles missing correlation ids.
func (e *Enricher) Enrich(ctx context.Context, items []enrich.Item) ([]enrich.Enriched, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(items, e.language)
	if err != nil {
		return nil, &enrich.PermanentError{Err: fmt.Errorf("gemini: build prompt: %w", err)}
	}

	resp, err := e.client.Models.GenerateContent(
		ctx,
		e.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   outputSchema,
		},
	)
	if err != nil {
		return nil, classifyErr(err)
	}
	if blocked(resp) {
		return nil, &enrich.PermanentError{Err: errors.New("gemini: prompt blocked by content policy")}
	}

	var parsed []enrich.Enriched
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return nil, &enrich.MalformedOutputError{Err: fmt.Errorf("gemini: parse structured json: %w", err)}
	}

	out := make([]enrich.Enriched, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, enrich.Enriched{
			ID:              p.ID,
			TranslatedTitle: strings.TrimSpace(p.TranslatedTitle),
			Summary:         strings.TrimSpace(p.Summary),
		})
	}
	return out, nil
}

func buildPrompt(items []enrich.Item, language string) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(`
You are a professional science news editor. For each entry in the JSON array
below, translate the title into ` + language + ` and write a detailed 5-6
sentence ` + language + ` summary of the body, in a concise professional news
register.

Return ONLY a JSON array with one object per input entry:
- id (integer): copied unchanged from the input entry
- translated_title (string)
- summary (string)

Rules:
- Every input id must appear exactly once in the output.
- Do not include extra keys or commentary.

Entries (kind is the content type: news, paper, or video):
`) + "\n" + string(payload), nil
}

func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return true
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return true
	}
	return false
}

func classifyErr(err error) error {
	// Wrap failures so the orchestrator retries only what is worth retrying.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &enrich.TransientError{Err: err}
		}
		return &enrich.PermanentError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &enrich.TransientError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &enrich.TransientError{Err: err}
	}
	return err
}
