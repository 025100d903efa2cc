// Package agent implements the eleven LLM-backed agent variants that
// produce the roadmap's documents: intent analysis, curriculum design,
// structure validation, editing, per-concept content generation
// (tutorial, resources, quiz), and the three modification agents that
// revise a single artifact in response to a user edit request.
//
// Every variant shares one contract (Execute) and one construction path
// (the Factory), built on top of graph/model's provider-agnostic
// ChatModel abstraction.
package agent

import "context"

// Agent is the polymorphic contract every variant implements. In is the
// variant's concrete input document type, Out its concrete output
// document type; callers type-assert or, more commonly, call through one
// of the typed wrappers in this package (IntentAnalyzer, CurriculumDesigner,
// etc.) which embed a *Runner[In, Out].
type Agent[In, Out any] interface {
	Execute(ctx context.Context, input In) (Out, error)
}

// Provider identifies which ChatModel backend a variant is configured to
// use. Concrete values are "anthropic", "openai", "google".
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// AgentConfig is the per-variant configuration the Factory reads before
// instantiating an agent. Endpoint is only consulted by providers that
// support a custom base URL; it is empty for the default endpoint.
type AgentConfig struct {
	Provider   Provider
	Model      string
	Endpoint   string
	Credential string
}
