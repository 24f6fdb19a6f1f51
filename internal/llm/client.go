package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/goriftcoach/internal/observability"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrSchemaViolation viene restituito quando l'output LLM non
	// rispetta lo schema dopo entrambi i tentativi (degradabile, mai fatale)
	ErrSchemaViolation = errors.New("llm output violates schema")

	// ErrLLMUnavailable viene restituito su errori di trasporto o 5xx
	ErrLLMUnavailable = errors.New("llm service unavailable")

	// ErrEmptyCompletion viene restituito quando il vendor non produce scelte
	ErrEmptyCompletion = errors.New("llm returned no choices")
)

// strictDirective viene appesa al prompt nel retry dopo una violazione di schema
const strictDirective = "\n\nSTRICT JSON, no prose. Output ONLY the JSON object, nothing else."

// Client esegue una completion JSON strutturata per analisi.
// Valida l'output contro lo schema della modalità; alla prima violazione
// ritenta una volta con direttiva rafforzata, alla seconda restituisce
// ErrSchemaViolation e lascia degradare la pipeline.
type Client struct {
	httpClient *resty.Client
	metrics    *stats.Metrics

	modelID     string
	temperature float64
	maxTokens   int
}

// NewClient crea un nuovo client LLM
func NewClient(cfg *config.Config, metrics *stats.Metrics) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.LLM.BaseURL).
		SetTimeout(cfg.StageTimeout.Narrate).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.LLM.APIKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.LLM.APIKey)
	}

	return &Client{
		httpClient:  httpClient,
		metrics:     metrics,
		modelID:     cfg.LLM.ModelID,
		temperature: cfg.LLM.Temperature,
		maxTokens:   cfg.LLM.MaxOutputTokens,
	}
}

// Generate esegue la completion e valida l'output contro schemaJSON.
// Restituisce la narrazione, i metadati di osservabilità e l'errore.
// L'emotion_tag viene sempre ricalcolata con la mappatura deterministica
// a parole chiave, così che il risultato sia riproducibile nei test.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt, schemaJSON string) (*Narration, *Metadata, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid narration schema: %w", err)
	}

	meta := &Metadata{ModelID: c.modelID}
	start := time.Now()
	defer func() {
		meta.LatencyMs = time.Since(start).Milliseconds()
	}()

	var narration *Narration
	genErr := observability.ObserveWith(ctx, "llm.generate", func(ctx context.Context) (map[string]interface{}, error) {
		prompt := userPrompt
		var lastErr error

		for attempt := 1; attempt <= 2; attempt++ {
			meta.Attempts = attempt

			raw, u, err := c.complete(ctx, systemPrompt, prompt)
			if err != nil {
				lastErr = err
				break // errori di trasporto non si risolvono con un prompt più severo
			}
			meta.PromptTokens += u.PromptTokens
			meta.CompletionTokens += u.CompletionTokens
			meta.TotalTokens += u.TotalTokens

			n, err := parseAndValidate(raw, schema)
			if err == nil {
				narration = n
				lastErr = nil
				break
			}

			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("LLM output failed schema validation")
			prompt = userPrompt + strictDirective
		}

		c.metrics.LLMTokens.WithLabelValues("prompt").Add(float64(meta.PromptTokens))
		c.metrics.LLMTokens.WithLabelValues("completion").Add(float64(meta.CompletionTokens))

		return map[string]interface{}{
			"model":        c.modelID,
			"attempts":     meta.Attempts,
			"total_tokens": meta.TotalTokens,
		}, lastErr
	})

	if genErr != nil {
		return nil, meta, genErr
	}

	// Mappatura deterministica: la scelta del modello viene scartata
	narration.EmotionTag = MapEmotion(narration.NarrativeText)

	return narration, meta, nil
}

// complete esegue una singola chiamata chat-completions in JSON mode
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, usage, error) {
	req := chatCompletionRequest{
		Model: c.modelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var completion chatCompletionResponse
	var errResp errorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&completion).
		SetError(&errResp).
		Post("/v1/chat/completions")

	if err != nil {
		return "", usage{}, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	if resp.IsError() {
		msg := errResp.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return "", usage{}, fmt.Errorf("%w: %s", ErrLLMUnavailable, msg)
	}
	if len(completion.Choices) == 0 {
		return "", completion.Usage, ErrEmptyCompletion
	}

	return completion.Choices[0].Message.Content, completion.Usage, nil
}

// parseAndValidate decodifica l'output e lo valida contro lo schema
func parseAndValidate(raw string, schema *gojsonschema.Schema) (*Narration, error) {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		// JSON malformato: stessa classe della violazione di schema
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if !result.Valid() {
		var details string
		for _, desc := range result.Errors() {
			details += desc.String() + "; "
		}
		return nil, fmt.Errorf("%w: %s", ErrSchemaViolation, details)
	}

	var narration Narration
	if err := json.Unmarshal([]byte(raw), &narration); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return &narration, nil
}
