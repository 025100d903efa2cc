package agent_test

import (
	"encoding/json"
	"testing"

	"github.com/learnpath/roadmapgen/internal/agent"
)

type doc struct {
	Goal string `json:"goal"`
}

func TestParseDocument_Raw(t *testing.T) {
	var out doc
	if err := agent.ParseDocument(`{"goal":"learn go"}`, &out, nil); err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if out.Goal != "learn go" {
		t.Fatalf("got %+v", out)
	}
}

func TestParseDocument_Fenced(t *testing.T) {
	body := "Here is the result:\n```json\n{\"goal\":\"learn rust\"}\n```\nThanks."
	var out doc
	if err := agent.ParseDocument(body, &out, nil); err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if out.Goal != "learn rust" {
		t.Fatalf("got %+v", out)
	}
}

func TestParseDocument_WrappedKey(t *testing.T) {
	body := `{"output": {"goal": "learn python"}}`
	var out doc
	if err := agent.ParseDocument(body, &out, nil); err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if out.Goal != "learn python" {
		t.Fatalf("got %+v", out)
	}
}

func TestParseDocument_WrappedKeyInFencedBlock(t *testing.T) {
	body := "```\n{\"result\": {\"goal\": \"learn java\"}}\n```"
	var out doc
	if err := agent.ParseDocument(body, &out, nil); err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if out.Goal != "learn java" {
		t.Fatalf("got %+v", out)
	}
}

func TestParseDocument_AllStrategiesFail(t *testing.T) {
	var out doc
	err := agent.ParseDocument("not json at all", &out, nil)
	if err == nil {
		t.Fatal("expected a parse failure error")
	}
	if _, ok := err.(*agent.ErrParseFailure); !ok {
		t.Fatalf("expected *ErrParseFailure, got %T", err)
	}
}

func TestFillComputableFrameworkFields_DefaultsOrderAndTotals(t *testing.T) {
	raw := []byte(`{
		"stages": [
			{"modules": [{"concepts": [{"estimated_hours": 3}, {"estimated_hours": 2}]}]},
			{"modules": [{"concepts": [{"estimated_hours": 5}]}]}
		]
	}`)

	filled, err := agent.FillComputableFrameworkFields(raw, 5)
	if err != nil {
		t.Fatalf("FillComputableFrameworkFields: %v", err)
	}

	var out struct {
		Stages []struct {
			Order int `json:"order"`
		} `json:"stages"`
		TotalEstimatedHours        float64 `json:"total_estimated_hours"`
		RecommendedCompletionWeeks int     `json:"recommended_completion_weeks"`
	}
	if err := json.Unmarshal(filled, &out); err != nil {
		t.Fatalf("unmarshal filled result: %v", err)
	}

	if out.Stages[0].Order != 1 || out.Stages[1].Order != 2 {
		t.Fatalf("expected 1-based stage order, got %+v", out.Stages)
	}
	if out.TotalEstimatedHours != 10 {
		t.Fatalf("expected total hours 10, got %v", out.TotalEstimatedHours)
	}
	if out.RecommendedCompletionWeeks != 2 {
		t.Fatalf("expected ceil(10/5)=2 weeks, got %d", out.RecommendedCompletionWeeks)
	}
}
