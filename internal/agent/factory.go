package agent

import (
	"fmt"

	"github.com/learnpath/roadmapgen/graph/model"
	"github.com/learnpath/roadmapgen/graph/model/anthropic"
	"github.com/learnpath/roadmapgen/graph/model/google"
	"github.com/learnpath/roadmapgen/graph/model/openai"
)

// Variant names the eleven agent kinds the Factory can build.
type Variant string

const (
	VariantIntentAnalyzer       Variant = "intent_analyzer"
	VariantCurriculumArchitect  Variant = "curriculum_architect"
	VariantStructureValidator   Variant = "structure_validator"
	VariantRoadmapEditor        Variant = "roadmap_editor"
	VariantTutorialGenerator    Variant = "tutorial_generator"
	VariantResourceRecommender  Variant = "resource_recommender"
	VariantQuizGenerator        Variant = "quiz_generator"
	VariantModificationAnalyzer Variant = "modification_analyzer"
	VariantTutorialModifier     Variant = "tutorial_modifier"
	VariantResourceModifier     Variant = "resource_modifier"
	VariantQuizModifier         Variant = "quiz_modifier"
)

// AllVariants lists the eleven variants in workflow order.
var AllVariants = []Variant{
	VariantIntentAnalyzer,
	VariantCurriculumArchitect,
	VariantStructureValidator,
	VariantRoadmapEditor,
	VariantTutorialGenerator,
	VariantResourceRecommender,
	VariantQuizGenerator,
	VariantModificationAnalyzer,
	VariantTutorialModifier,
	VariantResourceModifier,
	VariantQuizModifier,
}

// Factory builds a model.ChatModel per variant from its AgentConfig. It
// never opens a network connection itself: the provider SDKs used here
// (anthropic-sdk-go, openai-go, generative-ai-go) construct lazily and
// only dial on first Chat call.
type Factory struct {
	configs map[Variant]AgentConfig
}

// NewFactory builds a Factory from a complete variant -> config mapping.
// It returns an error if any of the eleven variants is missing a config.
func NewFactory(configs map[Variant]AgentConfig) (*Factory, error) {
	for _, v := range AllVariants {
		if _, ok := configs[v]; !ok {
			return nil, fmt.Errorf("agent: missing configuration for variant %q", v)
		}
	}
	return &Factory{configs: configs}, nil
}

// ChatModelFor constructs the model.ChatModel backing the given variant.
// Endpoint is currently only meaningful for providers with a configurable
// base URL; none of the three wired adapters (anthropic-sdk-go,
// openai-go, generative-ai-go) expose one through graph/model's
// constructors, so it is accepted here for forward compatibility and
// otherwise ignored.
func (f *Factory) ChatModelFor(v Variant) (model.ChatModel, error) {
	cfg, ok := f.configs[v]
	if !ok {
		return nil, fmt.Errorf("agent: unknown variant %q", v)
	}
	switch cfg.Provider {
	case ProviderAnthropic:
		return anthropic.NewChatModel(cfg.Credential, cfg.Model), nil
	case ProviderOpenAI:
		return openai.NewChatModel(cfg.Credential, cfg.Model), nil
	case ProviderGoogle:
		return google.NewChatModel(cfg.Credential, cfg.Model), nil
	default:
		return nil, fmt.Errorf("agent: unsupported provider %q for variant %q", cfg.Provider, v)
	}
}

// DefaultConfigs returns a starting configuration set matching the
// provider defaults named in the design notes: Anthropic for the
// reasoning-heavy document-structure agents, OpenAI for per-concept
// content generation, Google for resource recommendation. Credential
// fields are left empty; callers fill them from internal/config.
func DefaultConfigs() map[Variant]AgentConfig {
	return map[Variant]AgentConfig{
		VariantIntentAnalyzer:       {Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929"},
		VariantCurriculumArchitect:  {Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929"},
		VariantStructureValidator:   {Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929"},
		VariantRoadmapEditor:        {Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929"},
		VariantTutorialGenerator:    {Provider: ProviderOpenAI, Model: "gpt-4o"},
		VariantResourceRecommender:  {Provider: ProviderGoogle, Model: "gemini-1.5-pro"},
		VariantQuizGenerator:        {Provider: ProviderOpenAI, Model: "gpt-4o"},
		VariantModificationAnalyzer: {Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929"},
		VariantTutorialModifier:     {Provider: ProviderOpenAI, Model: "gpt-4o"},
		VariantResourceModifier:     {Provider: ProviderGoogle, Model: "gemini-1.5-pro"},
		VariantQuizModifier:         {Provider: ProviderOpenAI, Model: "gpt-4o"},
	}
}
