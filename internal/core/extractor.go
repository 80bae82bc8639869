package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"triage-chatbot/internal/llm"
	"triage-chatbot/internal/metrics"
	"triage-chatbot/internal/symptoms"
	"triage-chatbot/pkg/logging"
)

// Extractor turns free text into a binary symptom vector over the
// vocabulary.  It never fails: any upstream or parse error yields an
// all-zero vector.
type Extractor struct {
	LLM     llm.Completer
	Logger  *zap.Logger
	Metrics *metrics.TriageMetrics
}

// NewExtractor constructs an Extractor.
func NewExtractor(client llm.Completer, logger *zap.Logger, m *metrics.TriageMetrics) *Extractor {
	return &Extractor{LLM: client, Logger: logging.OrNop(logger), Metrics: m}
}

type extraction struct {
	Present []string `json:"present"`
	Absent  []string `json:"absent"`
}

// Extract returns a vector with one entry per vocabulary symptom, 1 when
// the model listed the symptom as present.
func (e *Extractor) Extract(ctx context.Context, text string) []int {
	names := symptoms.Names()
	vector := make([]int, len(names))

	present, err := e.present(ctx, text, names)
	if err != nil {
		e.Logger.Warn("symptom extraction failed, using empty vector", zap.Error(err))
		e.Metrics.ExtractionFailed()
		return vector
	}
	for i, n := range names {
		if present[n] {
			vector[i] = 1
		}
	}
	return vector
}

func (e *Extractor) present(ctx context.Context, text string, names []string) (map[string]bool, error) {
	vocab, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return nil, err
	}
	raw, err := e.LLM.CompleteJSON(ctx, ExtractionSystemPrompt, fmt.Sprintf(ExtractionPrompt, text, vocab))
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	var out extraction
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return nil, fmt.Errorf("extraction parse: %w", err)
	}
	present := make(map[string]bool, len(out.Present))
	for _, s := range out.Present {
		present[normalizeSymptom(s)] = true
	}
	return present, nil
}

// normalizeSymptom maps "Skin Rash" style answers onto vocabulary names.
func normalizeSymptom(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
