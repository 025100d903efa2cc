package domain

import "testing"

func TestReduceRoadmapState_ReplaceSemantics(t *testing.T) {
	prev := RoadmapState{TaskID: "t1", CurrentStep: StepIntent}
	delta := RoadmapState{CurrentStep: StepCurriculum}

	got := ReduceRoadmapState(prev, delta)

	if got.TaskID != "t1" {
		t.Fatalf("expected TaskID to survive replace-semantics merge, got %q", got.TaskID)
	}
	if got.CurrentStep != StepCurriculum {
		t.Fatalf("expected CurrentStep replaced with delta value, got %q", got.CurrentStep)
	}
}

func TestReduceRoadmapState_ContentResultsAccumulate(t *testing.T) {
	prev := RoadmapState{
		ContentResults: []ContentResult{{ConceptID: "c1", Kind: ArtifactTutorial, Status: ConceptCompleted}},
	}
	delta := RoadmapState{
		ContentResults: []ContentResult{{ConceptID: "c1", Kind: ArtifactQuiz, Status: ConceptFailed}},
	}

	got := ReduceRoadmapState(prev, delta)

	if len(got.ContentResults) != 2 {
		t.Fatalf("expected content results to accumulate across merges, got %d entries", len(got.ContentResults))
	}
}

func TestReduceRoadmapState_IdempotentOnEmptyDelta(t *testing.T) {
	prev := RoadmapState{
		TaskID:      "t1",
		CurrentStep: StepValidation,
		Framework:   &Framework{TotalEstimatedHours: 12},
	}

	got := ReduceRoadmapState(prev, RoadmapState{})

	if got.TaskID != prev.TaskID || got.CurrentStep != prev.CurrentStep {
		t.Fatalf("empty delta must not change scalar fields, got %+v", got)
	}
	if got.Framework != prev.Framework {
		t.Fatalf("empty delta must not clear pointer fields")
	}
}

func TestConceptStatusForAndSetStatusFor(t *testing.T) {
	c := Concept{}
	c.SetStatusFor(ArtifactQuiz, ConceptInProgress)

	if c.StatusFor(ArtifactQuiz) != ConceptInProgress {
		t.Fatalf("expected quiz status set to in_progress")
	}
	if c.StatusFor(ArtifactTutorial) != ConceptPending {
		t.Fatalf("expected unrelated artifact status to remain untouched")
	}
}

func TestFrameworkAllConceptsTraversalOrder(t *testing.T) {
	fw := Framework{
		Stages: []Stage{
			{
				Modules: []Module{
					{Concepts: []Concept{{ConceptID: "a"}, {ConceptID: "b"}}},
					{Concepts: []Concept{{ConceptID: "c"}}},
				},
			},
			{
				Modules: []Module{
					{Concepts: []Concept{{ConceptID: "d"}}},
				},
			},
		},
	}

	got := fw.AllConcepts()
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %d concepts, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ConceptID != id {
			t.Fatalf("expected traversal order %v, got concept %q at index %d", want, got[i].ConceptID, i)
		}
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	cases := map[TaskStatus]bool{
		TaskPending:            false,
		TaskProcessing:         false,
		TaskHumanReviewPending: false,
		TaskCompleted:          true,
		TaskPartialFailure:     true,
		TaskFailed:             true,
		TaskRejected:           true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("TaskStatus(%q).Terminal() = %v, want %v", status, got, want)
		}
	}
}
