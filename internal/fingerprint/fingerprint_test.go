package fingerprint

import (
	"testing"
	"time"
)

func TestStoriesOrderIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := []ItemStamp{{ID: "s1", Timestamp: now}, {ID: "s2", Timestamp: now.Add(time.Hour)}, {ID: "s3", Timestamp: now}}
	b := []ItemStamp{a[2], a[0], a[1]}

	if Stories(a) != Stories(b) {
		t.Errorf("Expected permutations to hash equal: %s vs %s", Stories(a), Stories(b))
	}
}

func TestStoriesSensitiveToContent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := []ItemStamp{{ID: "s1", Timestamp: now}, {ID: "s2", Timestamp: now}}

	changedID := []ItemStamp{{ID: "s1", Timestamp: now}, {ID: "s9", Timestamp: now}}
	if Stories(base) == Stories(changedID) {
		t.Error("Expected different ids to change the fingerprint")
	}

	changedTime := []ItemStamp{{ID: "s1", Timestamp: now}, {ID: "s2", Timestamp: now.Add(time.Second)}}
	if Stories(base) == Stories(changedTime) {
		t.Error("Expected a different timestamp to change the fingerprint")
	}
}

func TestTrendsSortsEmbeddedLists(t *testing.T) {
	a := []Labeled{{Text: "ai regulation", List: []string{"tiktok", "youtube"}}, {Text: "rent prices", List: []string{"x"}}}
	b := []Labeled{{Text: "rent prices", List: []string{"x"}}, {Text: "ai regulation", List: []string{"youtube", "tiktok"}}}

	if Trends(a) != Trends(b) {
		t.Error("Expected trend fingerprint to ignore entry and platform order")
	}

	c := []Labeled{{Text: "ai regulation", List: []string{"tiktok"}}, {Text: "rent prices", List: []string{"x"}}}
	if Trends(a) == Trends(c) {
		t.Error("Expected platform change to alter the fingerprint")
	}
}

func TestEmptySentinel(t *testing.T) {
	if got := Stories(nil); got != Empty {
		t.Errorf("Expected sentinel for empty stories, got %s", got)
	}
	if got := Trends([]Labeled{}); got != Empty {
		t.Errorf("Expected sentinel for empty trends, got %s", got)
	}
	if got := Of([]string{""}); got == Empty {
		t.Error("A single empty element is still data and must not yield the sentinel")
	}
}

func TestOfDoesNotMutateInput(t *testing.T) {
	in := []string{"b", "a"}
	_ = Of(in)
	if in[0] != "b" {
		t.Error("Of must not reorder the caller's slice")
	}
}
