package statemgr_test

import (
	"testing"

	"github.com/learnpath/roadmapgen/internal/statemgr"
)

func TestManager_SetGetDelete(t *testing.T) {
	m := statemgr.New()

	if _, ok := m.Get("t1"); ok {
		t.Fatal("expected no entry for unknown task")
	}

	m.Set("t1", "processing")
	status, ok := m.Get("t1")
	if !ok || status != "processing" {
		t.Fatalf("got (%q, %v), want (\"processing\", true)", status, ok)
	}

	m.Set("t1", "completed")
	status, _ = m.Get("t1")
	if status != "completed" {
		t.Fatalf("expected overwrite to take effect, got %q", status)
	}

	m.Delete("t1")
	if _, ok := m.Get("t1"); ok {
		t.Fatal("expected entry removed after Delete")
	}
}

func TestManager_Len(t *testing.T) {
	m := statemgr.New()
	m.Set("a", "pending")
	m.Set("b", "pending")
	if got := m.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}
