// Package sources aggregates the news items analysts flagged for a project
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"topicdesk/internal/core"
	"topicdesk/internal/logger"
	"topicdesk/internal/persistence"
)

// Scope selects whose flags count.
type Scope string

const (
	// ScopeUser counts only the requesting user's flags
	ScopeUser Scope = "user"
	// ScopeProject counts flags from every project member
	ScopeProject Scope = "project"
)

// ParseScope maps a request value onto a scope. Empty selects fallback.
func ParseScope(s string, fallback Scope) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case ScopeUser:
		return ScopeUser, nil
	case ScopeProject:
		return ScopeProject, nil
	}
	return "", core.NewValidationError(fmt.Sprintf("unknown scope %q", s))
}

// Options configures a flagged item lookup
type Options struct {
	WindowDays      int      // Only flags newer than now - WindowDays
	FocusCategories []string // Case-insensitive category filter, empty keeps all
	Limit           int      // 0 = no limit
	Scope           Scope
	UserID          string // Required for ScopeUser
}

// Aggregator loads flagged items within a rolling window
type Aggregator struct {
	items persistence.SourceItemRepository
	now   func() time.Time
	log   *slog.Logger
}

// NewAggregator creates a new aggregator over the source item repository
func NewAggregator(items persistence.SourceItemRepository) *Aggregator {
	return &Aggregator{
		items: items,
		now:   time.Now,
		log:   logger.Get(),
	}
}

// WithClock returns a copy of the aggregator using now as its clock
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	c := *a
	c.now = now
	return &c
}

// FlaggedItems returns the distinct items flagged within the window, newest publication first.
// An empty result is not an error.
func (a *Aggregator) FlaggedItems(ctx context.Context, projectID string, opts Options) ([]core.SourceItem, error) {
	if opts.WindowDays <= 0 {
		return nil, core.NewValidationError("window days must be positive")
	}

	q := persistence.FlagQuery{
		ProjectID: projectID,
		Since:     a.now().UTC().AddDate(0, 0, -opts.WindowDays),
	}
	if opts.Scope != ScopeProject {
		if opts.UserID == "" {
			return nil, core.NewValidationError("user scope requires a user id")
		}
		q.UserID = opts.UserID
	}

	ids, err := a.items.FlaggedItemIDs(ctx, q)
	if err != nil {
		return nil, core.NewPersistenceError("failed to load flagged items", err)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []core.SourceItem{}, nil
	}

	items, err := a.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, core.NewPersistenceError("failed to load source items", err)
	}

	items = filterCategories(items, opts.FocusCategories)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}

	for i := range items {
		items[i].Summary = PlainText(items[i].Summary)
		items[i].Body = PlainText(items[i].Body)
	}

	a.log.Debug("Aggregated flagged items",
		"project_id", projectID,
		"scope", string(opts.Scope),
		"flags", len(ids),
		"items", len(items))
	return items, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func filterCategories(items []core.SourceItem, categories []string) []core.SourceItem {
	if len(categories) == 0 {
		return items
	}
	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}

	filtered := items[:0]
	for _, item := range items {
		if allowed[strings.ToLower(item.Category)] {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// PlainText strips markup from s and collapses whitespace. Text without tags is returned trimmed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
