package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuvault/rxtract/internal/llm"
	"github.com/docuvault/rxtract/internal/record"
)

// StructureText implements llm.TextStructurer using text-only
// chat/completions: recognized text in, schema-validated prescription JSON
// out. Any response that still fails schema validation after the sanitize
// pass is an extraction failure; malformed output is never partially
// accepted.
func (c *Client) StructureText(ctx context.Context, req llm.TextRequest) (record.Candidate, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.structure.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.RecognizedText),
		"recognition_confidence", req.Confidence,
	)

	schema := llm.BuildPrescriptionJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildTextSystemPrompt()},
			{"role": "user", "content": llm.BuildTextUserPrompt(req.RecognizedText) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	content, err := c.chat(ctx, rid, body)
	if err != nil {
		c.logger.Error("llm.structure.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.Candidate{}, nil, err
	}

	cand, raw, err := c.decodeCandidate(rid, schema, content)
	if err != nil {
		return record.Candidate{}, raw, err
	}

	c.logger.Info("llm.structure.ok",
		"req_id", rid,
		"medications", len(cand.Items),
		"document_class", cand.DocumentClass,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cand, raw, nil
}

// chat posts a chat/completions body and returns the first choice content.
func (c *Client) chat(ctx context.Context, rid string, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, c.logger)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.chat.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.chat.no_choices", "req_id", rid, "raw", string(raw))
		return "", fmt.Errorf("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

// decodeCandidate validates content strictly, applies the lenient sanitize
// pass on failure, re-validates, then unmarshals into a candidate record.
func (c *Client) decodeCandidate(rid string, schema map[string]any, content string) (record.Candidate, []byte, error) {
	rawContent := []byte(stripCodeFence(content))

	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(rawContent, c.logger)
		if sErr != nil {
			c.logger.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
			return record.Candidate{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent))
			return record.Candidate{}, rawContent, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		rawContent = cleaned
	}

	var out record.Candidate
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return record.Candidate{}, rawContent, fmt.Errorf("unmarshal candidate: %w", err)
	}
	return out, rawContent, nil
}

// stripCodeFence removes a markdown ```json fence if the model wrapped its
// answer despite the JSON response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
