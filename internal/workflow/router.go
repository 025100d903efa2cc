package workflow

import "github.com/learnpath/roadmapgen/internal/domain"

// NextStep is the router's decision: which node runs next, or End.
type NextStep string

const (
	StepGotoIntent     NextStep = "intent"
	StepGotoCurriculum NextStep = "curriculum"
	StepGotoValidation NextStep = "validation"
	StepGotoEditor     NextStep = "editor"
	StepGotoReview     NextStep = "review"
	StepGotoContent    NextStep = "content"
	StepEnd            NextStep = "end"
)

// RouterConfig enumerates the routing skip flags and the edit-cycle cap.
type RouterConfig struct {
	SkipValidation           bool
	SkipHumanReview          bool
	SkipContentGeneration    bool
	MaxEditCycles            int
	ValidationScoreThreshold float64
}

// DefaultRouterConfig returns the documented defaults: no skips,
// max_edit_cycles = 2, editor triggers when the validator's score drops
// below 0.8.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{MaxEditCycles: 2, ValidationScoreThreshold: 0.8}
}

// editCyclesUsed counts how many times the editor node has already run
// for this state, read from the EditCycles counter the editor increments.
func editCyclesUsed(state domain.RoadmapState) int {
	return state.EditCycles
}

// Route is the pure total function Route(state, cfg) -> NextStep,
// seven ordered rules. Ties are broken by rule order: the first
// matching rule wins.
func Route(state domain.RoadmapState, cfg RouterConfig) NextStep {
	// Rule 1: no intent -> intent.
	if state.Intent == nil {
		return StepGotoIntent
	}

	// Rule 2: no framework -> curriculum.
	if state.Framework == nil {
		return StepGotoCurriculum
	}

	// Rule 3: the current framework hasn't been validated yet (and
	// validation isn't skipped) -> validation. This covers both "never
	// validated" and "validated an earlier revision" since FrameworkVersion
	// and ValidatedVersion only diverge in those two cases.
	if !cfg.SkipValidation && state.FrameworkVersion != state.ValidatedVersion {
		return StepGotoValidation
	}

	// Rule 4: issues above threshold and edit cycles remain -> editor,
	// which routes back to validation on its own next pass.
	if hasAboveThresholdIssues(state, cfg) && editCyclesUsed(state) < cfg.MaxEditCycles {
		return StepGotoEditor
	}

	// Rule 5: human review not yet done (and not skipped) -> review.
	if !cfg.SkipHumanReview && !state.ReviewDone {
		return StepGotoReview
	}

	// Rule 6: content generation not done (and not skipped) -> content.
	if !cfg.SkipContentGeneration && !state.ContentDone {
		return StepGotoContent
	}

	// Rule 7: nothing left to do.
	return StepEnd
}

// hasAboveThresholdIssues reports whether the last validation pass (run
// against the current framework revision) scored below the configured
// threshold and hasn't already been marked passed. It is false when no
// validation pass has been recorded (ValidatedVersion 0), e.g. when
// validation is skipped.
func hasAboveThresholdIssues(state domain.RoadmapState, cfg RouterConfig) bool {
	if state.ValidatedVersion == 0 {
		return false
	}
	if state.FrameworkVersion != state.ValidatedVersion || state.ValidationPassed {
		return false
	}
	return state.ValidationScore < cfg.ValidationScoreThreshold
}
