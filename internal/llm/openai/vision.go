package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuvault/rxtract/internal/llm"
	"github.com/docuvault/rxtract/internal/record"
)

// ExtractImage implements llm.VisionExtractor: the original image (plus an
// optional recognized-text hint) in, schema-validated prescription JSON out.
func (c *Client) ExtractImage(ctx context.Context, req llm.VisionRequest) (record.Candidate, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, mimeType, err := llm.ReadAsDataURL(req.ImagePath)
	if err != nil {
		return record.Candidate{}, nil, fmt.Errorf("encode image: %w", err)
	}

	c.logger.Info("llm.vision.start",
		"req_id", rid,
		"model", c.cfg.VisionModel,
		"temp", c.cfg.Temperature,
		"mime", mimeType,
		"hint_len", len(req.RecognizedText),
		"recognition_confidence", req.Confidence,
	)

	schema := llm.BuildPrescriptionJSONSchema()
	body := map[string]any{
		"model":           c.cfg.VisionModel,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildVisionSystemPrompt() + "\n\nJSON Schema:\n" + mustJSON(schema)},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildVisionUserPrompt(req.RecognizedText, req.Confidence)},
				{"type": "image_url", "image_url": map[string]any{
					"url":    dataURL,
					"detail": "high", // high detail for better text reading
				}},
			}},
		},
	}

	content, err := c.chat(ctx, rid, body)
	if err != nil {
		c.logger.Error("llm.vision.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.Candidate{}, nil, err
	}

	cand, raw, err := c.decodeCandidate(rid, schema, content)
	if err != nil {
		return record.Candidate{}, raw, err
	}

	c.logger.Info("llm.vision.ok",
		"req_id", rid,
		"medications", len(cand.Items),
		"document_class", cand.DocumentClass,
		"signature_inline", cand.Signature != nil && cand.Signature.Present,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cand, raw, nil
}

// AnalyzeSignature implements llm.SignatureAnalyzer with a dedicated,
// signature-only vision call. A clean "no signature" comes back as
// {is_present:false} with no other fields.
func (c *Client) AnalyzeSignature(ctx context.Context, imagePath string) (record.SignatureRecord, error) {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, _, err := llm.ReadAsDataURL(imagePath)
	if err != nil {
		return record.SignatureRecord{}, fmt.Errorf("encode image: %w", err)
	}

	schema := llm.BuildSignatureJSONSchema()
	body := map[string]any{
		"model":           c.cfg.VisionModel,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      512,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildSignaturePrompt() + "\n\nJSON Schema:\n" + mustJSON(schema)},
				{"type": "image_url", "image_url": map[string]any{
					"url":    dataURL,
					"detail": "high",
				}},
			}},
		},
	}

	content, err := c.chat(ctx, rid, body)
	if err != nil {
		c.logger.Error("llm.signature.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.SignatureRecord{}, err
	}

	rawContent := []byte(stripCodeFence(content))
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		c.logger.Error("llm.signature.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(rawContent))
		return record.SignatureRecord{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var sig record.SignatureRecord
	if err := json.Unmarshal(rawContent, &sig); err != nil {
		return record.SignatureRecord{}, fmt.Errorf("unmarshal signature: %w", err)
	}

	c.logger.Info("llm.signature.ok",
		"req_id", rid,
		"present", sig.Present,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return sig, nil
}
