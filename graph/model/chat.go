// Package model provides the provider-agnostic LLM interface the agent
// factory (internal/agent) builds the eleven agent variants on top of:
// intent analyzer, curriculum architect, structure validator, roadmap
// editor, tutorial generator, resource recommender, quiz generator,
// modification analyzer, and the three artifact modifiers.
package model

import "context"

// ChatModel is the interface every provider adapter (anthropic, openai,
// google) implements. Agents never depend on a concrete provider type;
// the factory picks the implementation from per-variant configuration
// (provider, model, endpoint, credential).
type ChatModel interface {
	// Chat sends messages and optional tool specs to the provider and
	// returns its response. tools is nil for agents that don't use the
	// bounded web-search loop; non-nil for tutorial generator and
	// resource recommender.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of an LLM conversation, in the common
// system/user/assistant shape every provider's wire format maps onto.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a callable the model may invoke — in this module,
// always the web_search(query, max_results) tool from the bounded
// tool-call loop (internal/agent/toolloop.go), never more than one per
// request.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is a provider's response: generated text, tool calls, or both.
// A tool-using agent loops on ToolCalls until the model stops calling
// tools (internal/agent/toolloop.go), then treats Text as the final body.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one invocation the model requested. The tool loop executes
// it, appends the result as a user-role message, and sends another turn.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
