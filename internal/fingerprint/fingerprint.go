// Package fingerprint computes order-independent content hashes used to invalidate cached clusters.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Empty is returned for empty input so "no data" is distinguishable from any real hash.
const Empty = "empty"

// ItemStamp identifies a source item and the timestamp that versions it.
type ItemStamp struct {
	ID        string
	Timestamp time.Time
}

// Labeled is a text label with an attached list, such as a trend query and its platforms.
type Labeled struct {
	Text string
	List []string
}

// Of hashes a set of canonical strings. Element order does not matter.
func Of(elements []string) string {
	if len(elements) == 0 {
		return Empty
	}

	sorted := make([]string, len(elements))
	copy(sorted, elements)
	sort.Strings(sorted)

	hasher := sha256.New()
	for _, e := range sorted {
		_, _ = hasher.Write([]byte(e))
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// Stories fingerprints a set of (id, timestamp) pairs.
func Stories(items []ItemStamp) string {
	elements := make([]string, 0, len(items))
	for _, item := range items {
		elements = append(elements, item.ID+"|"+item.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	return Of(elements)
}

// Trends fingerprints a set of labeled lists. Each embedded list is sorted before hashing.
func Trends(entries []Labeled) string {
	elements := make([]string, 0, len(entries))
	for _, entry := range entries {
		list := make([]string, len(entry.List))
		copy(list, entry.List)
		sort.Strings(list)
		elements = append(elements, entry.Text+"|"+strings.Join(list, ","))
	}
	return Of(elements)
}
