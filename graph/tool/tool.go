// Package tool defines the single tool the bounded tool-call loop
// exposes to the tutorial generator and resource recommender:
// web_search(query, max_results). A real backend hits a search API;
// MockTool stands in for it in tests.
package tool

import "context"

// Tool is one callable the model may invoke mid-conversation. Name must
// match the corresponding model.ToolSpec.Name so the loop can dispatch a
// model.ToolCall to the right implementation.
type Tool interface {
	Name() string

	// Call executes the tool and returns its result as the structured
	// body appended to the conversation as a user-role message. input's shape
	// matches the ToolSpec.Schema the model was given.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
