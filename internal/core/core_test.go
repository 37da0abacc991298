package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestProposalStatusTransitions(t *testing.T) {
	tests := []struct {
		from ProposalStatus
		to   ProposalStatus
		want bool
	}{
		{StatusDraft, StatusReviewed, true},
		{StatusDraft, StatusApproved, true},
		{StatusReviewed, StatusApproved, true},
		{StatusReviewed, StatusDraft, false},
		{StatusApproved, StatusArchived, true},
		{StatusApproved, StatusRejected, false},
		{StatusArchived, StatusDraft, false},
		{StatusArchived, StatusApproved, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestProposalStatusValid(t *testing.T) {
	if !StatusRejected.Valid() {
		t.Error("Expected rejected to be valid")
	}
	if ProposalStatus("published").Valid() {
		t.Error("Expected unknown status to be invalid")
	}
}

func TestParseSourceType(t *testing.T) {
	if got := ParseSourceType("study"); got != SourceStudy {
		t.Errorf("Expected study, got %s", got)
	}
	if got := ParseSourceType("blog"); got != SourceNews {
		t.Errorf("Expected unknown types to map to news, got %s", got)
	}
}

func TestRolePermissions(t *testing.T) {
	if !RoleEditor.CanGenerate() || !RoleOwner.CanGenerate() {
		t.Error("Expected owners and editors to be able to generate")
	}
	if RoleViewer.CanGenerate() {
		t.Error("Viewers must not generate")
	}
	if !RoleViewer.CanPreview() {
		t.Error("Viewers must be able to preview")
	}
	if Role("").CanPreview() {
		t.Error("Unknown role must not preview")
	}
}

func TestDurationTableResolve(t *testing.T) {
	table := DefaultDurationTable()

	seconds, err := table.Resolve(DurationMedium, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if seconds != 300 {
		t.Errorf("Expected default 300s for medium, got %d", seconds)
	}

	seconds, err = table.Resolve(DurationShort, 75)
	if err != nil || seconds != 75 {
		t.Errorf("Expected 75s to be accepted for short, got %d (%v)", seconds, err)
	}

	if _, err := table.Resolve(DurationShort, 600); !IsKind(err, KindValidation) {
		t.Errorf("Expected validation error for out-of-range duration, got %v", err)
	}

	if _, err := table.Resolve("epic", 0); !IsKind(err, KindValidation) {
		t.Errorf("Expected validation error for unknown type, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewInsufficientInputError(1, 2)
	wrapped := fmt.Errorf("manual generation: %w", err)

	if !IsKind(wrapped, KindInsufficientInput) {
		t.Fatalf("Expected wrapped error to keep its kind, got %v", KindOf(wrapped))
	}

	var pe *Error
	if !errors.As(wrapped, &pe) {
		t.Fatal("Expected errors.As to find *Error")
	}
	if pe.Count != 1 {
		t.Errorf("Expected count 1, got %d", pe.Count)
	}

	cause := errors.New("deadline exceeded")
	gen := NewGenerationError("clustering call failed", cause)
	if !errors.Is(gen, cause) {
		t.Error("Expected generation error to unwrap to its cause")
	}

	if KindOf(errors.New("plain")) != "" {
		t.Error("Expected empty kind for non-pipeline errors")
	}
}
