package domain

// RoadmapState is the state type threaded through graph.Node[RoadmapState]
// runners and the workflow.Executor's drive loop (internal/workflow).
// Each node produces a partial RoadmapState as its Delta; ReduceRoadmapState
// merges it into the accumulated state. Replace semantics apply to
// whole-document fields (the last writer wins); accumulate semantics apply
// to append-only logs and counters.
type RoadmapState struct {
	TaskID string
	UserID string

	// RoadmapID is assigned once, by the intent node, the first time a
	// task is processed; it is empty until then.
	RoadmapID string

	// RawRequest is the caller-supplied input document, set once at entry.
	RawRequest []byte

	// Intent is the parsed goal document produced by the intent node.
	Intent *IntentAnalysisMetadata

	// Profile is loaded once (outside the reducer's write path) and carried
	// through for the curriculum node; nodes never mutate it.
	Profile *UserProfile

	// Framework is the curriculum tree, replaced wholesale by the
	// curriculum node and mutated in place by the editor and content nodes.
	Framework *Framework

	// ValidationIssues holds the problems found by the most recent
	// validation pass (messages are cleared implicitly once ValidatedVersion
	// catches up to a revised FrameworkVersion).
	ValidationIssues []string
	ValidationPassed bool

	// ValidationScore is the validator's overall score; the router
	// compares it against RouterConfig.ValidationScoreThreshold.
	ValidationScore float64

	// FrameworkVersion increments every time the curriculum or editor node
	// produces a new framework document. ValidatedVersion records which
	// version the validator last examined. The router routes
	// to validation whenever the two diverge, which is both the "never
	// validated" case (ValidatedVersion 0, FrameworkVersion 1) and the
	// "framework changed since last validation" case after an edit —
	// a plain bool can't represent "revalidate me" through reducer merges,
	// since merges can only ever raise a value, never reset one to false.
	FrameworkVersion int
	ValidatedVersion int

	// EditCycles counts how many times the editor node has run for this
	// workflow, enforcing RouterConfig.MaxEditCycles.
	EditCycles int

	// ReviewDone is set once the human_review node has resolved (approve,
	// reject, or edit) rather than merely suspended.
	ReviewDone bool

	// ContentDone is set once the content fan-out has fully resolved
	// (every concept/kind pair has a terminal outcome).
	ContentDone bool

	// ReviewDecision is set by Resume when a suspended workflow is
	// continued with a human decision; ReviewNotes carries free-form
	// reviewer text for the edit path.
	ReviewDecision ReviewDecision
	ReviewNotes    string

	// ReviewDecisionSeq is bumped by Resume each time a new decision is
	// submitted; ReviewHandledSeq is set by the review node to the seq it
	// last acted on. The two diverging is how the review node tells a
	// fresh decision apart from a replayed one, for the same reason
	// FrameworkVersion/ValidatedVersion exist: a reducer merge can only
	// ever raise a value, never clear one back to its zero value.
	ReviewDecisionSeq int
	ReviewHandledSeq  int

	// CurrentStep mirrors Task.CurrentStep and drives router decisions.
	CurrentStep WorkflowStep

	// Suspended signals the executor to stop after checkpointing rather
	// than treat the Stop() route as terminal completion.
	Suspended bool

	// ContentResults accumulates per-(concept,kind) outcomes as the content
	// fan-out completes; append-only across retries of the same run.
	ContentResults []ContentResult

	// ErrorKind and ErrorDetail record the last classified error for the
	// error handler and for persistence into Task.ErrorPayload.
	ErrorKind   string
	ErrorDetail string

	// Done is set true by the terminal node once all bookkeeping for a
	// status (completed/partial_failure/failed/rejected) is written.
	Done        bool
	FinalStatus TaskStatus
}

// ContentResult records the outcome of generating one artifact for one
// concept during the fan-out phase.
type ContentResult struct {
	ConceptID string
	Kind      ArtifactKind
	Status    ConceptStatus
	ArtifactID string
	Err        string
}

// ReduceRoadmapState merges a delta RoadmapState into the accumulated state.
// workflow.Executor calls it after every node run, including on resume
// from a checkpoint.
func ReduceRoadmapState(prev, delta RoadmapState) RoadmapState {
	if delta.TaskID != "" {
		prev.TaskID = delta.TaskID
	}
	if delta.UserID != "" {
		prev.UserID = delta.UserID
	}
	if delta.RoadmapID != "" {
		prev.RoadmapID = delta.RoadmapID
	}
	if len(delta.RawRequest) > 0 {
		prev.RawRequest = delta.RawRequest
	}
	if delta.Intent != nil {
		prev.Intent = delta.Intent
	}
	if delta.Profile != nil {
		prev.Profile = delta.Profile
	}
	if delta.Framework != nil {
		prev.Framework = delta.Framework
	}

	if delta.ValidatedVersion > prev.ValidatedVersion {
		prev.ValidationIssues = delta.ValidationIssues
		prev.ValidationPassed = delta.ValidationPassed
		prev.ValidationScore = delta.ValidationScore
		prev.ValidatedVersion = delta.ValidatedVersion
	}
	if delta.FrameworkVersion > prev.FrameworkVersion {
		prev.FrameworkVersion = delta.FrameworkVersion
	}
	if delta.EditCycles > prev.EditCycles {
		prev.EditCycles = delta.EditCycles
	}
	if delta.ReviewDone {
		prev.ReviewDone = true
	}
	if delta.ContentDone {
		prev.ContentDone = true
	}

	if delta.ReviewDecision != "" {
		prev.ReviewDecision = delta.ReviewDecision
	}
	if delta.ReviewNotes != "" {
		prev.ReviewNotes = delta.ReviewNotes
	}
	if delta.ReviewDecisionSeq > prev.ReviewDecisionSeq {
		prev.ReviewDecisionSeq = delta.ReviewDecisionSeq
	}
	if delta.ReviewHandledSeq > prev.ReviewHandledSeq {
		prev.ReviewHandledSeq = delta.ReviewHandledSeq
	}
	if delta.CurrentStep != "" {
		prev.CurrentStep = delta.CurrentStep
	}
	if delta.Suspended {
		prev.Suspended = delta.Suspended
	}

	prev.ContentResults = append(prev.ContentResults, delta.ContentResults...)

	if delta.ErrorKind != "" {
		prev.ErrorKind = delta.ErrorKind
	}
	if delta.ErrorDetail != "" {
		prev.ErrorDetail = delta.ErrorDetail
	}
	if delta.Done {
		prev.Done = delta.Done
	}
	if delta.FinalStatus != "" {
		prev.FinalStatus = delta.FinalStatus
	}

	return prev
}
