package download

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestTask_Label(t *testing.T) {
	task := Task{URL: "https://cdn.test/a/b/c.png", Destination: filepath.Join("out", "a", "b", "c.png")}
	if got := task.Label(); got != "c.png" {
		t.Errorf("Label() = %q, want %q", got, "c.png")
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{OutcomePending, "pending"},
		{OutcomeSkipped, "skipped"},
		{OutcomeFetched, "fetched"},
		{OutcomeFailed, "failed"},
		{Outcome(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.expected {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.outcome, got, tt.expected)
		}
	}
}

func TestTaskError(t *testing.T) {
	inner := errors.New("HTTP 404")
	err := fmt.Errorf("worker: %w", &TaskError{
		Kind: KindFetch,
		Task: Task{URL: "https://cdn.test/x.png"},
		Err:  inner,
	})

	if !errors.Is(err, inner) {
		t.Error("errors.Is should reach the wrapped error")
	}
	if !IsKind(err, KindFetch) {
		t.Error("IsKind(KindFetch) = false, want true")
	}
	if IsKind(err, KindFilesystem) {
		t.Error("IsKind(KindFilesystem) = true, want false")
	}
	if IsKind(inner, KindFetch) {
		t.Error("IsKind on a plain error should be false")
	}
	if !strings.Contains(err.Error(), "fetch error for https://cdn.test/x.png") {
		t.Errorf("Error() = %q", err.Error())
	}
}
