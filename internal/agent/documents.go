package agent

import "github.com/learnpath/roadmapgen/internal/domain"

// IntentInput is the input document for the intent analyzer variant:
// the caller's opaque request plus an optional profile for tone.
type IntentInput struct {
	UserRequest string `json:"user_request"`
}

// IntentOutput mirrors domain.IntentAnalysisMetadata's content fields.
type IntentOutput struct {
	Goal        string   `json:"goal"`
	SkillLevel  string   `json:"skill_level"`
	FocusAreas  []string `json:"focus_areas"`
	TargetWeeks int      `json:"target_weeks"`
}

// CurriculumInput combines the intent analyzer's output with the user's
// stored preferences.
type CurriculumInput struct {
	Intent  IntentOutput        `json:"intent"`
	Profile domain.UserProfile `json:"profile"`
}

// CurriculumOutput is the raw framework document before normalization;
// CurriculumDesignRunner fills computable fields via
// FillComputableFrameworkFields before persisting it as domain.Framework.
type CurriculumOutput struct {
	domain.Framework
}

// ValidationInput carries the framework under review.
type ValidationInput struct {
	Framework domain.Framework `json:"framework"`
}

// ValidationIssue is a single problem the structure validator found.
type ValidationIssue struct {
	Severity string `json:"severity"` // "low", "medium", "high"
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"` // e.g. "stages[1].modules[0]"
}

// ValidationOutput is the structure validator's verdict.
type ValidationOutput struct {
	Issues []ValidationIssue `json:"issues"`
	Score  float64           `json:"score"`
}

// EditorInput gives the roadmap editor the framework plus the issues it
// must address.
type EditorInput struct {
	Framework domain.Framework  `json:"framework"`
	Issues    []ValidationIssue `json:"issues"`
}

// EditorOutput is the revised framework.
type EditorOutput struct {
	domain.Framework
}

// ConceptContentInput is shared by the tutorial generator, resource
// recommender, and quiz generator: one concept plus learner preferences.
type ConceptContentInput struct {
	Concept domain.Concept     `json:"concept"`
	Profile domain.UserProfile `json:"profile"`
}

// TutorialOutput is the tutorial generator's document.
type TutorialOutput struct {
	ContentURL string `json:"content_url"`
	Summary    string `json:"summary"`
}

// ResourcesOutput is the resource recommender's document.
type ResourcesOutput struct {
	Resources []domain.Resource `json:"resources"`
}

// QuizOutput is the quiz generator's document.
type QuizOutput struct {
	Questions []domain.QuizQuestion `json:"questions"`
}

// ModificationAnalyzerInput carries a free-form user edit request plus
// the artifact kind and current content it applies to.
type ModificationAnalyzerInput struct {
	Kind           domain.ArtifactKind `json:"kind"`
	CurrentContent string              `json:"current_content"`
	Request        string              `json:"request"`
}

// ModificationAnalyzerOutput is the analyzer's structured interpretation
// of the free-form request, handed to the matching modifier agent.
type ModificationAnalyzerOutput struct {
	Instructions []string `json:"instructions"`
	Scope        string   `json:"scope"` // "minor" or "rewrite"
}

// ModifierInput is shared by the three artifact-specific modifier agents.
type ModifierInput struct {
	CurrentContent string                     `json:"current_content"`
	Analysis       ModificationAnalyzerOutput `json:"analysis"`
}

// ModifierOutput carries the revised content for any of the three kinds;
// only the field matching the modifier's kind is populated.
type ModifierOutput struct {
	Tutorial  *TutorialOutput  `json:"tutorial,omitempty"`
	Resources *ResourcesOutput `json:"resources,omitempty"`
	Quiz      *QuizOutput      `json:"quiz,omitempty"`
}
