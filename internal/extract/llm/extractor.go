// Package llm extracts structured food logs from free text through a local
// Ollama chat endpoint. Output is schema-constrained when the runtime
// supports it and validated either way; an invalid response gets exactly one
// corrective retry before the extraction fails.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	stderrors "foodlog/internal/common/errors"
	"foodlog/internal/common/logger"
	"foodlog/internal/common/metrics"
	"foodlog/internal/models"
)

const (
	retryPause     = 150 * time.Millisecond
	retryMaxTokens = 512
	previewLimit   = 240
)

// Config holds the Ollama endpoint settings.
type Config struct {
	Host      string
	Model     string
	NumCtx    int
	MaxTokens int
	Timeout   time.Duration
	KeepAlive string
}

// Input carries the request fields given to the model.
type Input struct {
	ISODatetime string
	Timezone    string
	CountryISO2 string
	UserText    string
}

// Extractor is the language-model extraction client.
type Extractor struct {
	config     Config
	httpClient *http.Client
	logger     logger.Logger
}

func NewExtractor(cfg Config, log logger.Logger) *Extractor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &Extractor{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model     string          `json:"model"`
	Stream    bool            `json:"stream"`
	Messages  []chatMessage   `json:"messages"`
	KeepAlive string          `json:"keep_alive"`
	Options   chatOptions     `json:"options"`
	Format    json.RawMessage `json:"format,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (e *Extractor) postChat(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", stderrors.NewLLMTimeoutError(e.config.Timeout)
		}
		return "", stderrors.NewLLMRequestFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama error (%d): %s", resp.StatusCode, strings.TrimSpace(string(errText)))
	}

	var data chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(data.Message.Content) == "" {
		return "", fmt.Errorf("ollama returned empty content")
	}
	return data.Message.Content, nil
}

// chat sends the conversation preferring schema-constrained output, falling
// back to generic JSON mode for older Ollama runtimes.
func (e *Extractor) chat(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	base := chatRequest{
		Model:     e.config.Model,
		Stream:    false,
		Messages:  messages,
		KeepAlive: e.config.KeepAlive,
		Options: chatOptions{
			Temperature: 0,
			NumCtx:      e.config.NumCtx,
			NumPredict:  maxTokens,
		},
	}

	withSchema := base
	withSchema.Format = json.RawMessage(extractionSchemaJSON)
	content, err := e.postChat(ctx, withSchema)
	if err == nil {
		return content, nil
	}

	msg := err.Error()
	if strings.Contains(msg, "format") || strings.Contains(msg, "json") {
		e.logger.Warn("schema-constrained format rejected, retrying with json mode", map[string]interface{}{
			"error": msg,
		})
		withJSON := base
		withJSON.Format = json.RawMessage(`"json"`)
		return e.postChat(ctx, withJSON)
	}
	return "", err
}

// strictJSONParse locates the outermost {...} span in the model output and
// returns it when it holds a syntactically valid JSON document.
func strictJSONParse(content string) (string, error) {
	trimmed := strings.TrimSpace(content)

	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first == -1 || last == -1 || last <= first {
		return "", stderrors.NewExtractionParseError(preview(trimmed))
	}

	candidate := strings.TrimSpace(trimmed[first : last+1])
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("invalid JSON in model response: %s", preview(candidate))
	}
	return candidate, nil
}

func preview(s string) string {
	if len(s) > previewLimit {
		return s[:previewLimit]
	}
	return s
}

func (e *Extractor) attempt(ctx context.Context, userPrompt, extraInstruction string, maxTokens int) (*models.Extraction, error) {
	content := userPrompt
	if extraInstruction != "" {
		content = userPrompt + "\n\n" + extraInstruction
	}

	raw, err := e.chat(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: content},
	}, maxTokens)
	if err != nil {
		return nil, err
	}

	doc, err := strictJSONParse(raw)
	if err != nil {
		return nil, err
	}
	if err := validateExtractionJSON(doc); err != nil {
		return nil, err
	}

	var extraction models.Extraction
	if err := json.Unmarshal([]byte(doc), &extraction); err != nil {
		return nil, fmt.Errorf("unmarshal extraction: %w", err)
	}
	return &extraction, nil
}

// Extract runs the extraction with one corrective retry. The retry repeats
// the request with the first attempt's validation errors appended and a
// raised token budget to avoid truncated JSON.
func (e *Extractor) Extract(ctx context.Context, in Input) (*models.Extraction, error) {
	userPrompt := buildUserPrompt(in.ISODatetime, in.Timezone, in.CountryISO2, in.UserText)

	extraction, firstErr := e.attempt(ctx, userPrompt, "", e.config.MaxTokens)
	if firstErr == nil {
		metrics.LLMAttempts.WithLabelValues("ok").Inc()
		return extraction, nil
	}

	e.logger.Warn("extraction attempt failed, retrying once", map[string]interface{}{
		"error": firstErr.Error(),
	})
	metrics.LLMAttempts.WithLabelValues("retry").Inc()

	select {
	case <-time.After(retryPause):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	extraction, secondErr := e.attempt(ctx, userPrompt, buildCorrectivePrompt(firstErr.Error()), retryMaxTokens)
	if secondErr == nil {
		metrics.LLMAttempts.WithLabelValues("ok").Inc()
		return extraction, nil
	}

	metrics.LLMAttempts.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("extraction failed after retry.\nFirst error:\n%s\n\nSecond error:\n%s", firstErr, secondErr)
}
