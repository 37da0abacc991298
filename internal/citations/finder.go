// Package citations finds research evidence for proposal talking points
package citations

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/llm"
	"topicdesk/internal/logger"
)

const (
	// MaxQueries caps the research queries run per proposal
	MaxQueries = 5

	// DefaultPerQuery is used when callers pass a non-positive per-query limit
	DefaultPerQuery = 3
)

const systemInstructions = `You are a research assistant for a video production team.
You suggest real, verifiable sources with working URLs. Never invent sources.
Respond with JSON only.`

// Finder asks the generative model for citations, one query at a time
type Finder struct {
	llm llm.Completer
	now func() time.Time
	log *slog.Logger
}

// NewFinder creates a new citation finder
func NewFinder(completer llm.Completer) *Finder {
	return &Finder{
		llm: completer,
		now: time.Now,
		log: logger.Get(),
	}
}

type citationResponse struct {
	Citations []struct {
		Title               string `json:"title"`
		URL                 string `json:"url"`
		SourceType          string `json:"source_type"`
		Snippet             string `json:"snippet"`
		RelevanceToAudience string `json:"relevance_to_audience"`
	} `json:"citations"`
}

// Find runs up to MaxQueries queries sequentially and returns the citations found,
// deduplicated by URL. A failing query is logged and skipped.
func (f *Finder) Find(ctx context.Context, topic string, queries []core.CitationQuery, audienceRegion string, maxPerQuery int) []core.ResearchCitation {
	if maxPerQuery <= 0 {
		maxPerQuery = DefaultPerQuery
	}
	if len(queries) > MaxQueries {
		queries = queries[:MaxQueries]
	}

	var all []core.ResearchCitation
	for i, q := range queries {
		if ctx.Err() != nil {
			f.log.Warn("Citation search cancelled", "topic", topic, "completed_queries", i)
			break
		}

		found, err := f.findOne(ctx, topic, q, audienceRegion, maxPerQuery)
		if err != nil {
			f.log.Warn("Citation query failed, skipping", "topic", topic, "query", q.Query, "error", err)
			continue
		}
		all = append(all, found...)
	}

	return Dedupe(all)
}

func (f *Finder) findOne(ctx context.Context, topic string, q core.CitationQuery, region string, maxPerQuery int) ([]core.ResearchCitation, error) {
	response, err := f.llm.Complete(ctx, systemInstructions, buildPrompt(topic, q, region))
	if err != nil {
		return nil, err
	}

	parsed := llm.ParseJSON[citationResponse](response)
	if !parsed.OK() {
		return nil, parsed.Err
	}

	accessed := f.now().UTC()
	var out []core.ResearchCitation
	for _, c := range parsed.Value.Citations {
		link := strings.TrimSpace(c.URL)
		if link == "" {
			continue
		}

		sourceType := q.EvidenceType
		if st := strings.ToLower(strings.TrimSpace(c.SourceType)); st != "" {
			sourceType = core.ParseSourceType(st)
		}
		relevance := strings.TrimSpace(c.RelevanceToAudience)
		if relevance == "" {
			relevance = q.Rationale
		}

		out = append(out, core.ResearchCitation{
			Title:               strings.TrimSpace(c.Title),
			URL:                 link,
			SourceType:          sourceType,
			Snippet:             strings.TrimSpace(c.Snippet),
			AccessedAt:          accessed,
			RelevanceToAudience: relevance,
		})
		if len(out) == maxPerQuery {
			break
		}
	}
	return out, nil
}

func buildPrompt(topic string, q core.CitationQuery, region string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Find 2-3 %s sources supporting a video about: %s\n\n", evidenceLabel(q.EvidenceType), topic))

	sb.WriteString("RESEARCH QUERY:\n")
	sb.WriteString(q.Query)
	sb.WriteString("\n")
	if q.Rationale != "" {
		sb.WriteString(fmt.Sprintf("Purpose: %s\n", q.Rationale))
	}
	sb.WriteString("\n")

	if region != "" {
		sb.WriteString(fmt.Sprintf("Prefer sources relevant to an audience in %s.\n\n", region))
	}

	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString(`{"citations": [{"title": "...", "url": "https://...", "source_type": "statistic|study|expert_opinion|news", "snippet": "...", "relevance_to_audience": "..."}]}`)
	sb.WriteString("\n")

	return sb.String()
}

func evidenceLabel(t core.SourceType) string {
	switch t {
	case core.SourceStatistic:
		return "statistical"
	case core.SourceStudy:
		return "research study"
	case core.SourceExpertOpinion:
		return "expert opinion"
	default:
		return "news"
	}
}

// Dedupe keeps the first citation for each URL
func Dedupe(list []core.ResearchCitation) []core.ResearchCitation {
	return Merge(nil, list)
}

// Merge appends the citations in fresh whose URL is not already in existing or earlier in fresh
func Merge(existing, fresh []core.ResearchCitation) []core.ResearchCitation {
	seen := make(map[string]bool, len(existing)+len(fresh))
	out := make([]core.ResearchCitation, 0, len(existing)+len(fresh))
	for _, c := range existing {
		seen[urlKey(c.URL)] = true
		out = append(out, c)
	}
	for _, c := range fresh {
		key := urlKey(c.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// urlKey normalises scheme and host case, fragments and trailing slashes
func urlKey(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// Publisher returns the registrable domain of a citation URL, e.g. "example.com"
func Publisher(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(parsedURL.Hostname(), "www.")
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}
