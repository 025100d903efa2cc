package agent_test

import (
	"context"
	"testing"

	"github.com/learnpath/roadmapgen/graph/model"
	"github.com/learnpath/roadmapgen/graph/tool"
	"github.com/learnpath/roadmapgen/internal/agent"
)

type stubSearchBackend struct {
	results []agent.SearchResult
}

func (s *stubSearchBackend) Search(ctx context.Context, query string, maxResults int) ([]agent.SearchResult, error) {
	return s.results, nil
}

func TestWebSearchTool_CallReturnsResults(t *testing.T) {
	tool := &agent.WebSearchTool{Backend: &stubSearchBackend{
		results: []agent.SearchResult{{Title: "Go generics", URL: "https://go.dev/generics", Snippet: "intro"}},
	}}

	out, err := tool.Call(context.Background(), map[string]interface{}{"query": "go generics"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	results, ok := out["results"].([]map[string]interface{})
	if !ok || len(results) != 1 {
		t.Fatalf("unexpected output shape: %#v", out)
	}
	if results[0]["title"] != "Go generics" {
		t.Fatalf("unexpected result: %#v", results[0])
	}
}

func TestWebSearchTool_Call_MissingQuery(t *testing.T) {
	tool := &agent.WebSearchTool{Backend: &stubSearchBackend{}}
	if _, err := tool.Call(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatal("expected an error for a missing query")
	}
}

func TestRunToolLoop_ExitsWhenNoToolCall(t *testing.T) {
	mock := &model.MockChatModel{
		Responses: []model.ChatOut{{Text: "final answer, no tools needed"}},
	}
	out, err := agent.RunToolLoop(context.Background(), mock, []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil, nil)
	if err != nil {
		t.Fatalf("RunToolLoop: %v", err)
	}
	if out.Text != "final answer, no tools needed" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected a single turn when no tool call is requested, got %d", len(mock.Calls))
	}
}

func TestRunToolLoop_InvokesToolThenReturnsFinalAnswer(t *testing.T) {
	mock := &model.MockChatModel{
		Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{Name: "web_search", Input: map[string]interface{}{"query": "go"}}}},
			{Text: "final answer after search"},
		},
	}
	searchTool := &agent.WebSearchTool{Backend: &stubSearchBackend{
		results: []agent.SearchResult{{Title: "result", URL: "u", Snippet: "s"}},
	}}

	out, err := agent.RunToolLoop(
		context.Background(), mock,
		[]model.Message{{Role: model.RoleUser, Content: "research go"}},
		nil,
		map[string]tool.Tool{"web_search": searchTool},
	)
	if err != nil {
		t.Fatalf("RunToolLoop: %v", err)
	}
	if out.Text != "final answer after search" {
		t.Fatalf("unexpected final output: %+v", out)
	}
	if len(mock.Calls) != 2 {
		t.Fatalf("expected 2 turns (tool call then final), got %d", len(mock.Calls))
	}
}
