package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnpath/roadmapgen/graph/model"
	"github.com/learnpath/roadmapgen/graph/tool"
)

// Runner is the generic Execute implementation shared by all eleven
// variants: marshal In to JSON, send it to the model under a fixed system
// prompt, parse the response into Out via the shared parser pipeline.
// Tool-using variants set Tools/ToolSpecs; others leave them nil and
// Runner calls chat.Chat directly instead of RunToolLoop.
type Runner[In, Out any] struct {
	Chat         model.ChatModel
	SystemPrompt string
	Strategies   []ParseStrategy
	ToolSpecs    []model.ToolSpec
	Tools        map[string]tool.Tool
}

// Execute implements Agent[In, Out].
func (r *Runner[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	var zero Out

	payload, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("agent: marshal input: %w", err)
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: r.SystemPrompt},
		{Role: model.RoleUser, Content: string(payload)},
	}

	var out model.ChatOut
	if len(r.Tools) > 0 {
		out, err = RunToolLoop(ctx, r.Chat, messages, r.ToolSpecs, r.Tools)
	} else {
		out, err = r.Chat.Chat(ctx, messages, nil)
	}
	if err != nil {
		return zero, fmt.Errorf("agent: chat call: %w", err)
	}

	var result Out
	if err := ParseDocument(out.Text, &result, r.Strategies); err != nil {
		return zero, err
	}
	return result, nil
}
