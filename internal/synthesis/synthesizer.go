// Package synthesis expands a topic cluster into a proposal draft
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"topicdesk/internal/core"
	"topicdesk/internal/llm"
	"topicdesk/internal/logger"
)

const (
	// MaxCitationQueries caps the research queries kept from one draft
	MaxCitationQueries = 5

	// DriftTolerance is the relative gap between talking point durations and the target
	// above which a draft carries a warning
	DriftTolerance = 0.20

	maxItemChars = 600
)

const systemInstructions = `You are a senior video producer writing topic proposals for a content team.
Every proposal must be accurate, grounded in the supplied stories and written for the described audience.
Respond with JSON only.`

// Request is everything needed to synthesize one proposal
type Request struct {
	Cluster           core.TopicCluster
	Items             []core.SourceItem
	Profile           *core.AudienceProfile
	DurationType      core.DurationType
	DurationSeconds   int
	ComparisonRegions []string
	TrendingContext   string
}

// Draft is the synthesized proposal content
type Draft struct {
	Title           string
	Hook            string
	AudienceCare    string
	TalkingPoints   []core.TalkingPoint
	CitationQueries []core.CitationQuery
	DurationWarning string // set when talking point durations drift from the target
}

// Synthesizer writes proposal drafts
type Synthesizer struct {
	llm llm.Completer
	log *slog.Logger
}

// NewSynthesizer creates a new synthesizer
func NewSynthesizer(completer llm.Completer) *Synthesizer {
	return &Synthesizer{
		llm: completer,
		log: logger.Get(),
	}
}

type draftResponse struct {
	Title         string `json:"title"`
	Hook          string `json:"hook"`
	AudienceCare  string `json:"audience_care"`
	TalkingPoints []struct {
		Point           string `json:"point"`
		Detail          string `json:"detail"`
		DurationSeconds int    `json:"duration_seconds"`
	} `json:"talking_points"`
	CitationQueries []struct {
		Query        string `json:"query"`
		EvidenceType string `json:"evidence_type"`
		Rationale    string `json:"rationale"`
	} `json:"citation_queries"`
}

// Synthesize makes one generative call and returns the draft. It never retries.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Draft, error) {
	if req.Profile == nil {
		return nil, core.NewValidationError("audience profile is required")
	}
	if req.DurationSeconds <= 0 {
		return nil, core.NewValidationError("duration must be positive")
	}

	prompt := BuildPrompt(req)
	response, err := s.llm.Complete(ctx, systemInstructions, prompt)
	if err != nil {
		return nil, core.NewGenerationError("synthesis call failed", err)
	}

	parsed := llm.ParseJSON[draftResponse](response)
	if !parsed.OK() {
		return nil, core.NewGenerationError("unparseable synthesis response", parsed.Err)
	}

	draft, err := toDraft(parsed.Value)
	if err != nil {
		return nil, err
	}

	if warning := durationDrift(draft.TalkingPoints, req.DurationSeconds); warning != "" {
		draft.DurationWarning = warning
		s.log.Warn("Talking point durations drift from target",
			"theme", req.Cluster.Theme,
			"target_seconds", req.DurationSeconds,
			"warning", warning)
	}

	s.log.Debug("Synthesized proposal draft",
		"theme", req.Cluster.Theme,
		"talking_points", len(draft.TalkingPoints),
		"citation_queries", len(draft.CitationQueries))
	return draft, nil
}

func toDraft(r draftResponse) (*Draft, error) {
	draft := &Draft{
		Title:        strings.TrimSpace(r.Title),
		Hook:         strings.TrimSpace(r.Hook),
		AudienceCare: strings.TrimSpace(r.AudienceCare),
	}
	for _, tp := range r.TalkingPoints {
		point := strings.TrimSpace(tp.Point)
		if point == "" {
			continue
		}
		draft.TalkingPoints = append(draft.TalkingPoints, core.TalkingPoint{
			Point:           point,
			Detail:          strings.TrimSpace(tp.Detail),
			DurationSeconds: tp.DurationSeconds,
		})
	}

	var missing []string
	if draft.Title == "" {
		missing = append(missing, "title")
	}
	if draft.Hook == "" {
		missing = append(missing, "hook")
	}
	if len(draft.TalkingPoints) == 0 {
		missing = append(missing, "talking_points")
	}
	if len(missing) > 0 {
		return nil, core.NewGenerationError(fmt.Sprintf("synthesis response missing %s", strings.Join(missing, ", ")), nil)
	}

	for _, q := range r.CitationQueries {
		query := strings.TrimSpace(q.Query)
		if query == "" {
			continue
		}
		draft.CitationQueries = append(draft.CitationQueries, core.CitationQuery{
			Query:        query,
			EvidenceType: core.ParseSourceType(strings.ToLower(strings.TrimSpace(q.EvidenceType))),
			Rationale:    strings.TrimSpace(q.Rationale),
		})
		if len(draft.CitationQueries) == MaxCitationQueries {
			break
		}
	}
	return draft, nil
}

// durationDrift returns a warning when the talking point durations stray more than
// DriftTolerance from target.
func durationDrift(points []core.TalkingPoint, target int) string {
	sum := 0
	for _, tp := range points {
		sum += tp.DurationSeconds
	}
	drift := math.Abs(float64(sum-target)) / float64(target)
	if drift <= DriftTolerance {
		return ""
	}
	return fmt.Sprintf("talking points total %ds against a %ds target (%.0f%% off)", sum, target, drift*100)
}

// BuildPrompt renders the synthesis prompt for req
func BuildPrompt(req Request) string {
	var sb strings.Builder
	p := req.Profile
	points := TalkingPointCount(p.DepthPreference, req.DurationSeconds)

	sb.WriteString("Write a video topic proposal for the following story cluster.\n\n")

	sb.WriteString("CLUSTER:\n")
	sb.WriteString(fmt.Sprintf("Theme: %s\n", req.Cluster.Theme))
	if len(req.Cluster.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("Keywords: %s\n", strings.Join(req.Cluster.Keywords, ", ")))
	}
	if req.Cluster.AudienceRelevance != "" {
		sb.WriteString(fmt.Sprintf("Why it matters: %s\n", req.Cluster.AudienceRelevance))
	}
	sb.WriteString("\n")

	sb.WriteString("STORIES:\n")
	for i, item := range req.Items {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, item.Title))
		if item.URL != "" {
			sb.WriteString(fmt.Sprintf("   URL: %s\n", item.URL))
		}
		text := item.Summary
		if text == "" {
			text = item.Body
		}
		if text = truncate(text, maxItemChars); text != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", text))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("AUDIENCE:\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n", p.Name))
	writeList(&sb, "Values", p.Values)
	writeList(&sb, "Fears", p.Fears)
	writeList(&sb, "Aspirations", p.Aspirations)
	writeField(&sb, "Age range", p.AgeRange)
	writeField(&sb, "Market", p.Market)
	writeField(&sb, "Region", p.Region)
	writeField(&sb, "Platform", p.Platform)
	sb.WriteString("\n")

	sb.WriteString("STYLE:\n")
	sb.WriteString(ToneInstruction(p.PreferredTone))
	sb.WriteString("\n")
	sb.WriteString(DepthInstruction(p.DepthPreference))
	sb.WriteString("\n")
	if p.PoliticalSensitivity >= SensitivityThreshold {
		sb.WriteString(sensitivityInstruction)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(req.ComparisonRegions) > 0 {
		sb.WriteString("COMPARISON REGIONS:\n")
		sb.WriteString(fmt.Sprintf("Where useful, compare with how %s handle this.\n\n", strings.Join(req.ComparisonRegions, ", ")))
	}

	if req.TrendingContext != "" {
		sb.WriteString("TRENDING CONTEXT:\n")
		sb.WriteString(req.TrendingContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("TASK:\n")
	sb.WriteString(fmt.Sprintf("1. Target a %s video of %d seconds\n", req.DurationType, req.DurationSeconds))
	sb.WriteString("2. Write a specific, accurate title and a hook for the first seconds\n")
	sb.WriteString("3. Explain in audience_care why this audience should care\n")
	sb.WriteString(fmt.Sprintf("4. Write exactly %d talking points; their duration_seconds must add up to %d\n", points, req.DurationSeconds))
	sb.WriteString(fmt.Sprintf("5. Suggest up to %d research queries that would find supporting evidence, each with an evidence_type of statistic, study, expert_opinion or news\n\n", MaxCitationQueries))

	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString(`{"title": "...", "hook": "...", "audience_care": "...", "talking_points": [{"point": "...", "detail": "...", "duration_seconds": 60}], "citation_queries": [{"query": "...", "evidence_type": "statistic", "rationale": "..."}]}`)
	sb.WriteString("\n")

	return sb.String()
}

func writeList(sb *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", label, strings.Join(values, ", ")))
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", label, value))
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
