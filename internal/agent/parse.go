package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrParseFailure is returned when every strategy in the pipeline fails to
// recover a valid document from an LLM response body.
type ErrParseFailure struct {
	Body string
}

func (e *ErrParseFailure) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("agent: failed to parse LLM output after all strategies: %s", body)
}

// ParseStrategy attempts to extract a JSON document from a raw LLM
// response body. It returns the extracted JSON bytes and true on success,
// or nil and false when this strategy does not apply.
type ParseStrategy func(body string) (json []byte, ok bool)

// wrapKeys lists the top-level keys parseWrappedKey will unwrap, in the
// order they are tried.
var wrapKeys = []string{"output", "roadmap", "framework", "data", "result"}

var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\s*\\n(.*?)\\n?```")

// DefaultStrategies is the ordered pipeline ParseDocument runs: raw JSON,
// then a fenced code block of any tag, then a wrapped top-level key.
// Filling in computable fields is not part of this pipeline; callers run
// FillComputableFrameworkFields on the extracted JSON separately.
func DefaultStrategies() []ParseStrategy {
	return []ParseStrategy{
		parseRaw,
		parseFenced,
		parseWrappedKey,
	}
}

func parseRaw(body string) ([]byte, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, false
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, false
	}
	return []byte(trimmed), true
}

func parseFenced(body string) ([]byte, bool) {
	match := fencedBlockPattern.FindStringSubmatch(body)
	if match == nil {
		return nil, false
	}
	inner := strings.TrimSpace(match[1])
	if !json.Valid([]byte(inner)) {
		return nil, false
	}
	return []byte(inner), true
}

func parseWrappedKey(body string) ([]byte, bool) {
	trimmed := strings.TrimSpace(body)
	if !json.Valid([]byte(trimmed)) {
		// Try unwrapping from inside a fenced block first.
		if fenced, ok := parseFenced(body); ok {
			trimmed = string(fenced)
		} else {
			return nil, false
		}
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, false
	}
	for _, key := range wrapKeys {
		if inner, ok := envelope[key]; ok {
			return inner, true
		}
	}
	return nil, false
}

// ParseDocument runs strategies in order against body and unmarshals the
// first successfully extracted JSON into out. If every strategy fails it
// returns *ErrParseFailure.
func ParseDocument(body string, out any, strategies []ParseStrategy) error {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	for _, strategy := range strategies {
		extracted, ok := strategy(body)
		if !ok {
			continue
		}
		if err := json.Unmarshal(extracted, out); err != nil {
			continue
		}
		return nil
	}
	return &ErrParseFailure{Body: body}
}

// stageLike and conceptLike describe the minimal shape the field-fill
// strategy needs to compute derived framework fields. They mirror
// internal/domain.Framework/Stage/Concept without importing that package,
// keeping the parser dependency-free for reuse by any document shape.
type stageLike struct {
	Order    int `json:"order"`
	Modules  []struct {
		Concepts []struct {
			EstimatedHours float64 `json:"estimated_hours"`
		} `json:"concepts"`
	} `json:"modules"`
}

type frameworkLike struct {
	Stages                     []stageLike `json:"stages"`
	TotalEstimatedHours        float64     `json:"total_estimated_hours"`
	RecommendedCompletionWeeks int         `json:"recommended_completion_weeks"`
}

// FillComputableFrameworkFields implements parse strategy (d): a body that
// is valid JSON for a framework document but is missing fields the engine
// can derive itself. stage order defaults to its 1-based index;
// total_estimated_hours sums concept hours; recommended_completion_weeks
// is ceil(total_hours / targetHoursPerWeek). raw is left unchanged; the
// updated document is returned as new bytes.
func FillComputableFrameworkFields(raw []byte, targetHoursPerWeek float64) ([]byte, error) {
	var fw frameworkLike
	if err := json.Unmarshal(raw, &fw); err != nil {
		return nil, fmt.Errorf("agent: fill computable fields: %w", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("agent: fill computable fields: %w", err)
	}

	stagesRaw, _ := generic["stages"].([]any)
	total := 0.0
	for i, stage := range fw.Stages {
		if stage.Order == 0 && i < len(stagesRaw) {
			if stageMap, ok := stagesRaw[i].(map[string]any); ok {
				if _, has := stageMap["order"]; !has {
					stageMap["order"] = i + 1
				}
			}
		}
		for _, mod := range stage.Modules {
			for _, concept := range mod.Concepts {
				total += concept.EstimatedHours
			}
		}
	}

	if fw.TotalEstimatedHours == 0 {
		generic["total_estimated_hours"] = total
	} else {
		total = fw.TotalEstimatedHours
	}

	if fw.RecommendedCompletionWeeks == 0 && targetHoursPerWeek > 0 {
		generic["recommended_completion_weeks"] = int(math.Ceil(total / targetHoursPerWeek))
	}

	return json.Marshal(generic)
}
