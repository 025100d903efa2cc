// Package domain defines the entities, invariants, and wire-level enums
// shared by every component of the roadmap generation engine.
package domain

import "time"

// TaskStatus enumerates the lifecycle states of a Task.
//
// pending -> processing -> {human_review_pending -> processing | completed | partial_failure | failed}
// rejected is a terminal leaf entered only from human_review_pending on reject.
type TaskStatus string

const (
	TaskPending            TaskStatus = "pending"
	TaskProcessing         TaskStatus = "processing"
	TaskHumanReviewPending TaskStatus = "human_review_pending"
	TaskCompleted          TaskStatus = "completed"
	TaskPartialFailure     TaskStatus = "partial_failure"
	TaskFailed             TaskStatus = "failed"
	TaskRejected           TaskStatus = "rejected"
)

// Terminal reports whether s is one of the terminal statuses a Task can
// never transition out of. Used to enforce terminal monotonicity.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskPartialFailure, TaskFailed, TaskRejected:
		return true
	default:
		return false
	}
}

// WorkflowStep names a node in the roadmap generation graph. It doubles as
// Task.CurrentStep and as the checkpoint store's step_id dimension.
type WorkflowStep string

const (
	StepIntent                  WorkflowStep = "intent"
	StepCurriculum              WorkflowStep = "curriculum"
	StepValidation              WorkflowStep = "validation"
	StepEditor                  WorkflowStep = "editor"
	StepHumanReview             WorkflowStep = "human_review"
	StepContentGenerationQueued WorkflowStep = "content_generation_queued"
	StepContentGeneration       WorkflowStep = "content_generation"
	StepDone                    WorkflowStep = "done"
)

// ConceptStatus is the closed status triplet tracked per-artifact on a
// Concept, and the detailed-row status on Tutorial/Resource/Quiz rows.
type ConceptStatus string

const (
	ConceptPending    ConceptStatus = "pending"
	ConceptInProgress ConceptStatus = "in_progress"
	ConceptCompleted  ConceptStatus = "completed"
	ConceptFailed     ConceptStatus = "failed"
)

// ArtifactKind is one of the three content artifacts generated per Concept.
type ArtifactKind string

const (
	ArtifactTutorial  ArtifactKind = "tutorial"
	ArtifactResources ArtifactKind = "resources"
	ArtifactQuiz      ArtifactKind = "quiz"
)

// AllArtifactKinds lists the three kinds in the traversal order the content
// fan-out schedules them; kinds themselves proceed in parallel.
var AllArtifactKinds = []ArtifactKind{ArtifactTutorial, ArtifactResources, ArtifactQuiz}

// ReviewDecision is the external input that resumes a suspended workflow
// from the human_review_pending checkpoint.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
	DecisionEdit    ReviewDecision = "edit"
)

// Task is the top-level unit of work submitted by a caller.
type Task struct {
	TaskID       string
	UserID       string
	TaskType     string
	UserRequest  []byte // opaque input document, caller-defined shape
	Status       TaskStatus
	CurrentStep  WorkflowStep
	RoadmapID    *string
	CeleryTaskID string // external queue handle (content-queue job id)
	ErrorPayload []byte // set by the error handler on Fatal/ValidationFailure
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Concept is a single learning unit and the target of the three content
// artifacts. Status triplet is the structural projection of detail rows;
// detail rows remain the source of truth.
type Concept struct {
	ConceptID       string        `json:"concept_id"`
	Title           string        `json:"title"`
	Summary         string        `json:"summary,omitempty"`
	EstimatedHours  float64       `json:"estimated_hours"`
	ContentStatus   ConceptStatus `json:"content_status"`
	ResourcesStatus ConceptStatus `json:"resources_status"`
	QuizStatus      ConceptStatus `json:"quiz_status"`
	TutorialID      *string       `json:"tutorial_id,omitempty"`
	ResourcesID     *string       `json:"resources_id,omitempty"`
	QuizID          *string       `json:"quiz_id,omitempty"`
}

// StatusFor returns the structural status field for the given artifact
// kind; a field that was never set reads as ConceptPending.
func (c *Concept) StatusFor(kind ArtifactKind) ConceptStatus {
	var s ConceptStatus
	switch kind {
	case ArtifactTutorial:
		s = c.ContentStatus
	case ArtifactResources:
		s = c.ResourcesStatus
	case ArtifactQuiz:
		s = c.QuizStatus
	}
	if s == "" {
		return ConceptPending
	}
	return s
}

// SetStatusFor mutates the structural status field for the given artifact kind.
func (c *Concept) SetStatusFor(kind ArtifactKind, status ConceptStatus) {
	switch kind {
	case ArtifactTutorial:
		c.ContentStatus = status
	case ArtifactResources:
		c.ResourcesStatus = status
	case ArtifactQuiz:
		c.QuizStatus = status
	}
}

// SetRefFor records the detail-row reference id for the given artifact kind.
func (c *Concept) SetRefFor(kind ArtifactKind, id string) {
	switch kind {
	case ArtifactTutorial:
		c.TutorialID = &id
	case ArtifactResources:
		c.ResourcesID = &id
	case ArtifactQuiz:
		c.QuizID = &id
	}
}

// Module groups Concepts within a Stage.
type Module struct {
	ModuleID string    `json:"module_id"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Concepts []Concept `json:"concepts"`
}

// Stage groups Modules within a Framework.
type Stage struct {
	Title   string   `json:"title"`
	Order   int      `json:"order"`
	Modules []Module `json:"modules"`
}

// Framework is the Stages -> Modules -> Concepts tree persisted inside a
// RoadmapMetadata row's framework_data column.
type Framework struct {
	Stages                     []Stage `json:"stages"`
	TotalEstimatedHours        float64 `json:"total_estimated_hours"`
	RecommendedCompletionWeeks int     `json:"recommended_completion_weeks"`
}

// AllConcepts flattens the framework in traversal order (stage, then
// module, then concept) — the order the content fan-out schedules work in.
func (f *Framework) AllConcepts() []*Concept {
	var out []*Concept
	for si := range f.Stages {
		for mi := range f.Stages[si].Modules {
			mod := &f.Stages[si].Modules[mi]
			for ci := range mod.Concepts {
				out = append(out, &mod.Concepts[ci])
			}
		}
	}
	return out
}

// RoadmapMetadata is the structural half of the dual-store model.
type RoadmapMetadata struct {
	RoadmapID string
	TaskID    string
	UserID    string
	Framework Framework
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TutorialMetadata is a detailed content row for the tutorial artifact.
// Invariant: for each (RoadmapID, ConceptID) at most one row has IsLatest.
type TutorialMetadata struct {
	TutorialID     string
	ConceptID      string
	RoadmapID      string
	ContentVersion int
	IsLatest       bool
	ContentURL     string
	Summary        string
	ContentStatus  ConceptStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Resource is a single embedded recommendation inside a
// ResourceRecommendationMetadata row.
type Resource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Kind        string `json:"kind"` // article, video, course, doc
	Description string `json:"description,omitempty"`
}

// ResourceRecommendationMetadata is a detailed content row for the
// resources artifact, keyed by (ConceptID, RoadmapID).
type ResourceRecommendationMetadata struct {
	ID        string
	ConceptID string
	RoadmapID string
	Resources []Resource
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuizQuestion is a single embedded question inside a QuizMetadata row.
type QuizQuestion struct {
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuizMetadata is a detailed content row for the quiz artifact, keyed by
// (ConceptID, RoadmapID).
type QuizMetadata struct {
	QuizID    string
	ConceptID string
	RoadmapID string
	Questions []QuizQuestion
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntentAnalysisMetadata is the parsed-goal document produced by the
// intent analyzer agent, keyed uniquely by TaskID.
type IntentAnalysisMetadata struct {
	TaskID      string
	Goal        string
	SkillLevel  string
	FocusAreas  []string
	TargetWeeks int
	RawDocument []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserProfile carries preference fields consumed by the curriculum
// designer agent.
type UserProfile struct {
	UserID         string
	PreferredPace  string // e.g. "relaxed", "standard", "intensive"
	HoursPerWeek   float64
	PriorKnowledge []string
	LearningStyle  string // e.g. "visual", "reading", "hands_on"
	Goals          string
	UpdatedAt      time.Time
}

// ExecutionLog is an append-only audit row. TraceID equals the owning
// Task's TaskID.
type ExecutionLog struct {
	TraceID   string
	Level     string
	Category  string
	Payload   []byte
	CreatedAt time.Time
}
