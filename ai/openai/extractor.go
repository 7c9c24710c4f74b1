// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/poiesic/docindex/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// FieldExtractor implements ai.FieldExtractor using OpenAI-compatible
// chat APIs.
type FieldExtractor struct {
	client     llms.Model
	fieldCount int
	logger     *slog.Logger
}

// newFieldExtractor is an internal constructor that returns the concrete
// type. Used by Provider to manage the instance.
func newFieldExtractor(config *ai.Config) (*FieldExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local services that don't require auth.
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &FieldExtractor{
		client:     client,
		fieldCount: config.FieldCount,
		logger:     slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewFieldExtractor creates a field extractor using the provided
// configuration.
//
// Returns the ai.FieldExtractor interface to enforce abstraction.
func NewFieldExtractor(config *ai.Config) (ai.FieldExtractor, error) {
	return newFieldExtractor(config)
}

// ExtractFields asks the model for a structured row and parses it. The
// raw model response is returned even on parse failure so callers can
// archive it for manual review.
func (e *FieldExtractor) ExtractFields(ctx context.Context, text string) ([]string, string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt(e.fieldCount)),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed output.
	var raw string
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, raw, err
		}

		if len(response.Choices) < 1 {
			lastErr = fmt.Errorf("%w: no choices returned", ai.ErrMalformedResponse)
			continue
		}

		raw = response.Choices[0].Content

		fields, err := parseFieldRow(raw, e.fieldCount)
		if err != nil {
			lastErr = err
			e.logger.Warn("error parsing extraction response",
				"attempt", attempt+1,
				"response", raw,
				"err", err)
			continue
		}
		return fields, raw, nil
	}

	e.logger.Error("failed to parse extraction response after retries", "err", lastErr)
	return nil, raw, lastErr
}

// parseFieldRow parses a model response into a row of exactly fieldCount
// strings. Short rows are padded with empty strings, long rows truncated.
func parseFieldRow(response string, fieldCount int) ([]string, error) {
	cleaned := repairJSON(stripFences(response))

	var fields []string
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	if len(fields) > fieldCount {
		fields = fields[:fieldCount]
	}
	for len(fields) < fieldCount {
		fields = append(fields, "")
	}
	return fields, nil
}
