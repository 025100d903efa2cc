package agent

import (
	"context"
	"fmt"

	"github.com/learnpath/roadmapgen/graph/model"
	"github.com/learnpath/roadmapgen/graph/tool"
)

// maxToolTurns bounds the tutorial-generator and resource-recommender
// tool-call loop at N=5 LLM turns.
const maxToolTurns = 5

// RunToolLoop drives a bounded tool-calling conversation: the model may
// call any tool in tools up to maxToolTurns times; results are appended
// as user-role messages; the loop exits as soon as the model responds
// without requesting a tool call, returning that final ChatOut.
func RunToolLoop(ctx context.Context, chat model.ChatModel, messages []model.Message, specs []model.ToolSpec, tools map[string]tool.Tool) (model.ChatOut, error) {
	msgs := make([]model.Message, len(messages))
	copy(msgs, messages)

	var out model.ChatOut
	for turn := 0; turn < maxToolTurns; turn++ {
		var err error
		out, err = chat.Chat(ctx, msgs, specs)
		if err != nil {
			return model.ChatOut{}, fmt.Errorf("agent: tool loop turn %d: %w", turn+1, err)
		}
		if len(out.ToolCalls) == 0 {
			return out, nil
		}

		msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: out.Text})
		for _, call := range out.ToolCalls {
			t, ok := tools[call.Name]
			if !ok {
				msgs = append(msgs, model.Message{
					Role:    model.RoleUser,
					Content: fmt.Sprintf("tool %q is not available", call.Name),
				})
				continue
			}
			result, callErr := t.Call(ctx, call.Input)
			if callErr != nil {
				msgs = append(msgs, model.Message{
					Role:    model.RoleUser,
					Content: fmt.Sprintf("tool %q failed: %v", call.Name, callErr),
				})
				continue
			}
			msgs = append(msgs, model.Message{
				Role:    model.RoleUser,
				Content: fmt.Sprintf("tool %q result: %v", call.Name, result),
			})
		}
	}
	return out, nil
}

// SearchBackend performs the actual lookup behind the web_search tool.
// The production backend calls a real search API; tests supply a stub.
type SearchBackend interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// SearchResult is a single hit returned by a SearchBackend.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchTool exposes a SearchBackend as a graph/tool.Tool named
// "web_search", callable by the tutorial generator and resource
// recommender agents inside RunToolLoop.
type WebSearchTool struct {
	Backend SearchBackend
}

// Name implements tool.Tool.
func (w *WebSearchTool) Name() string { return "web_search" }

// Call implements tool.Tool. Input must provide "query" (string) and may
// provide "max_results" (number, defaults to 5).
func (w *WebSearchTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	query, ok := input["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("agent: web_search requires a non-empty \"query\" input")
	}
	maxResults := 5
	if raw, ok := input["max_results"]; ok {
		if n, ok := raw.(float64); ok && n > 0 {
			maxResults = int(n)
		}
	}

	results, err := w.Backend.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("agent: web_search backend: %w", err)
	}

	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = map[string]interface{}{"title": r.Title, "url": r.URL, "snippet": r.Snippet}
	}
	return map[string]interface{}{"results": out}, nil
}

var _ tool.Tool = (*WebSearchTool)(nil)
