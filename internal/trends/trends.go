// Package trends builds the optional trending context that accompanies clustering prompts
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/fingerprint"
	"topicdesk/internal/logger"
	"topicdesk/internal/persistence"
)

const (
	defaultTrendLimit = 10
	defaultPostLimit  = 5
	defaultLookback   = 48 * time.Hour
	maxPostChars      = 280
)

// Context is the rendered trending context and the fingerprint of its inputs.
type Context struct {
	Text        string
	Fingerprint string
}

// Empty is the context used when trends are disabled or unavailable.
func Empty() Context {
	return Context{Fingerprint: fingerprint.Empty}
}

// Builder reads watched trends and viral posts for a project
type Builder struct {
	repo       persistence.TrendRepository
	trendLimit int
	postLimit  int
	lookback   time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewBuilder creates a trending context builder
func NewBuilder(repo persistence.TrendRepository) *Builder {
	return &Builder{
		repo:       repo,
		trendLimit: defaultTrendLimit,
		postLimit:  defaultPostLimit,
		lookback:   defaultLookback,
		now:        time.Now,
		log:        logger.Get(),
	}
}

// Build returns the trending context for a project. Failures are logged and yield an empty
// context; trending data never blocks generation.
func (b *Builder) Build(ctx context.Context, projectID string) Context {
	trendList, err := b.repo.WatchedTrends(ctx, projectID, b.trendLimit)
	if err != nil {
		b.log.Warn("Failed to load watched trends", "project_id", projectID, "error", err)
		return Empty()
	}
	posts, err := b.repo.RecentViralPosts(ctx, projectID, b.now().Add(-b.lookback), b.postLimit)
	if err != nil {
		b.log.Warn("Failed to load viral posts", "project_id", projectID, "error", err)
		return Empty()
	}
	return Render(trendList, posts)
}

// Render formats trends and posts into prompt text and fingerprints them.
func Render(trendList []core.Trend, posts []core.ViralPost) Context {
	if len(trendList) == 0 && len(posts) == 0 {
		return Empty()
	}

	var sb strings.Builder
	entries := make([]fingerprint.Labeled, 0, len(trendList)+len(posts))

	if len(trendList) > 0 {
		sb.WriteString("TRENDING SEARCHES:\n")
		for _, t := range trendList {
			sb.WriteString(fmt.Sprintf("- %q (score %.0f", t.Query, t.Score))
			if len(t.Platforms) > 0 {
				sb.WriteString(", platforms: " + strings.Join(t.Platforms, ", "))
			}
			sb.WriteString(")\n")
			entries = append(entries, fingerprint.Labeled{Text: "trend:" + t.Query, List: t.Platforms})
		}
	}

	if len(posts) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("VIRAL POSTS:\n")
		for _, p := range posts {
			sb.WriteString(fmt.Sprintf("- [%s, %d engagements] %s\n", p.Platform, p.Engagement, truncate(p.Text, maxPostChars)))
			entries = append(entries, fingerprint.Labeled{Text: "post:" + p.ID + ":" + p.Text, List: []string{p.Platform}})
		}
	}

	return Context{
		Text:        strings.TrimRight(sb.String(), "\n"),
		Fingerprint: fingerprint.Trends(entries),
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
