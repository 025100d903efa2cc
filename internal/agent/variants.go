package agent

import (
	"fmt"

	"github.com/learnpath/roadmapgen/graph/model"
	"github.com/learnpath/roadmapgen/graph/tool"
)

// Prompts holds the fixed system prompt text per variant. Callers load
// these from config or embed defaults; they are plain strings so they can
// be overridden per-deployment without code changes.
type Prompts struct {
	IntentAnalyzer       string
	CurriculumArchitect  string
	StructureValidator   string
	RoadmapEditor        string
	TutorialGenerator    string
	ResourceRecommender  string
	QuizGenerator        string
	ModificationAnalyzer string
	TutorialModifier     string
	ResourceModifier     string
	QuizModifier         string
}

// DefaultPrompts returns terse default system prompts, one per variant.
func DefaultPrompts() Prompts {
	return Prompts{
		IntentAnalyzer:       "Extract the learner's goal, skill level, focus areas, and target timeline from their request. Respond with JSON only.",
		CurriculumArchitect:  "Design a staged learning framework (stages, modules, concepts with estimated hours) from the intent and profile given. Respond with JSON only.",
		StructureValidator:   "Review the framework for gaps, ordering problems, and unrealistic estimates. Respond with JSON only: issues and an overall score.",
		RoadmapEditor:        "Revise the framework to address the listed issues without discarding unaffected content. Respond with JSON only.",
		TutorialGenerator:    "Write a tutorial for the given concept at the learner's level. You may call web_search for supporting material. Respond with JSON only.",
		ResourceRecommender:  "Recommend external resources (articles, videos, courses) for the given concept. You may call web_search. Respond with JSON only.",
		QuizGenerator:        "Write a short multiple-choice quiz testing the given concept. Respond with JSON only.",
		ModificationAnalyzer: "Interpret the user's free-form edit request against the current content and classify its scope. Respond with JSON only.",
		TutorialModifier:     "Apply the requested changes to the tutorial content. Respond with JSON only.",
		ResourceModifier:     "Apply the requested changes to the resource list. Respond with JSON only.",
		QuizModifier:         "Apply the requested changes to the quiz questions. Respond with JSON only.",
	}
}

// Set is the fully constructed collection of all eleven agents, ready for
// the workflow node runners to call.
type Set struct {
	IntentAnalyzer       Agent[IntentInput, IntentOutput]
	CurriculumArchitect  Agent[CurriculumInput, CurriculumOutput]
	StructureValidator   Agent[ValidationInput, ValidationOutput]
	RoadmapEditor        Agent[EditorInput, EditorOutput]
	TutorialGenerator    Agent[ConceptContentInput, TutorialOutput]
	ResourceRecommender  Agent[ConceptContentInput, ResourcesOutput]
	QuizGenerator        Agent[ConceptContentInput, QuizOutput]
	ModificationAnalyzer Agent[ModificationAnalyzerInput, ModificationAnalyzerOutput]
	TutorialModifier     Agent[ModifierInput, ModifierOutput]
	ResourceModifier     Agent[ModifierInput, ModifierOutput]
	QuizModifier         Agent[ModifierInput, ModifierOutput]
}

// webSearchSpec is the ToolSpec advertised to the model for the two
// tool-using variants.
var webSearchSpec = model.ToolSpec{
	Name:        "web_search",
	Description: "Search the web for supporting material.",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":       map[string]interface{}{"type": "string"},
			"max_results": map[string]interface{}{"type": "number"},
		},
		"required": []string{"query"},
	},
}

// BuildSet instantiates all eleven agents from the Factory and Prompts.
// search backs the web_search tool shared by the tutorial generator and
// resource recommender; pass nil to build agents that never call tools
// (e.g. in tests driving a mock ChatModel that never emits tool calls).
func BuildSet(f *Factory, prompts Prompts, search SearchBackend) (*Set, error) {
	chatFor := func(v Variant) (model.ChatModel, error) {
		m, err := f.ChatModelFor(v)
		if err != nil {
			return nil, fmt.Errorf("agent: build set: %w", err)
		}
		return m, nil
	}

	var tools map[string]tool.Tool
	var specs []model.ToolSpec
	if search != nil {
		webSearch := &WebSearchTool{Backend: search}
		tools = map[string]tool.Tool{webSearch.Name(): webSearch}
		specs = []model.ToolSpec{webSearchSpec}
	}

	intentChat, err := chatFor(VariantIntentAnalyzer)
	if err != nil {
		return nil, err
	}
	curriculumChat, err := chatFor(VariantCurriculumArchitect)
	if err != nil {
		return nil, err
	}
	validatorChat, err := chatFor(VariantStructureValidator)
	if err != nil {
		return nil, err
	}
	editorChat, err := chatFor(VariantRoadmapEditor)
	if err != nil {
		return nil, err
	}
	tutorialChat, err := chatFor(VariantTutorialGenerator)
	if err != nil {
		return nil, err
	}
	resourcesChat, err := chatFor(VariantResourceRecommender)
	if err != nil {
		return nil, err
	}
	quizChat, err := chatFor(VariantQuizGenerator)
	if err != nil {
		return nil, err
	}
	modAnalyzerChat, err := chatFor(VariantModificationAnalyzer)
	if err != nil {
		return nil, err
	}
	tutorialModChat, err := chatFor(VariantTutorialModifier)
	if err != nil {
		return nil, err
	}
	resourceModChat, err := chatFor(VariantResourceModifier)
	if err != nil {
		return nil, err
	}
	quizModChat, err := chatFor(VariantQuizModifier)
	if err != nil {
		return nil, err
	}

	return &Set{
		IntentAnalyzer:      &Runner[IntentInput, IntentOutput]{Chat: intentChat, SystemPrompt: prompts.IntentAnalyzer},
		CurriculumArchitect: &Runner[CurriculumInput, CurriculumOutput]{Chat: curriculumChat, SystemPrompt: prompts.CurriculumArchitect},
		StructureValidator:  &Runner[ValidationInput, ValidationOutput]{Chat: validatorChat, SystemPrompt: prompts.StructureValidator},
		RoadmapEditor:       &Runner[EditorInput, EditorOutput]{Chat: editorChat, SystemPrompt: prompts.RoadmapEditor},
		TutorialGenerator: &Runner[ConceptContentInput, TutorialOutput]{
			Chat: tutorialChat, SystemPrompt: prompts.TutorialGenerator, ToolSpecs: specs, Tools: tools,
		},
		ResourceRecommender: &Runner[ConceptContentInput, ResourcesOutput]{
			Chat: resourcesChat, SystemPrompt: prompts.ResourceRecommender, ToolSpecs: specs, Tools: tools,
		},
		QuizGenerator:        &Runner[ConceptContentInput, QuizOutput]{Chat: quizChat, SystemPrompt: prompts.QuizGenerator},
		ModificationAnalyzer: &Runner[ModificationAnalyzerInput, ModificationAnalyzerOutput]{Chat: modAnalyzerChat, SystemPrompt: prompts.ModificationAnalyzer},
		TutorialModifier:     &Runner[ModifierInput, ModifierOutput]{Chat: tutorialModChat, SystemPrompt: prompts.TutorialModifier},
		ResourceModifier:     &Runner[ModifierInput, ModifierOutput]{Chat: resourceModChat, SystemPrompt: prompts.ResourceModifier},
		QuizModifier:         &Runner[ModifierInput, ModifierOutput]{Chat: quizModChat, SystemPrompt: prompts.QuizModifier},
	}, nil
}
