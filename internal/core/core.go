package core

import "time"

// SourceItem is a news story an analyst flagged for a project.
type SourceItem struct {
	ID          string    `json:"id"`           // Unique identifier for the item
	Title       string    `json:"title"`        // Headline
	Summary     string    `json:"summary"`      // Short description, may contain HTML
	Body        string    `json:"body"`         // Full text, may be empty
	Category    string    `json:"category"`     // Editorial category (e.g. "politics", "tech")
	URL         string    `json:"url"`          // Canonical link to the story
	PublishedAt time.Time `json:"published_at"` // Publication timestamp
	TrendScore  float64   `json:"trend_score"`  // Upstream trend score, informational only
}

// Tone is the preferred storytelling tone of an audience.
type Tone string

const (
	ToneInvestigative  Tone = "investigative"
	ToneEducational    Tone = "educational"
	ToneProvocative    Tone = "provocative"
	ToneConversational Tone = "conversational"
	ToneBalanced       Tone = "balanced"
)

// Depth is how far an audience wants a topic explored.
type Depth string

const (
	DepthSurface  Depth = "surface"
	DepthModerate Depth = "moderate"
	DepthDeepDive Depth = "deep_dive"
)

// AudienceProfile describes who a proposal is written for.
type AudienceProfile struct {
	ID                   string   `json:"id"`
	ProjectID            string   `json:"project_id"`
	Name                 string   `json:"name"`
	Values               []string `json:"values"`
	Fears                []string `json:"fears"`
	Aspirations          []string `json:"aspirations"`
	PreferredTone        Tone     `json:"preferred_tone"`
	DepthPreference      Depth    `json:"depth_preference"`
	PoliticalSensitivity int      `json:"political_sensitivity"` // 0-10
	Market               string   `json:"market"`
	Region               string   `json:"region"`
	Platform             string   `json:"platform"`
	AgeRange             string   `json:"age_range"`
}

// TopicCluster is a group of source items sharing a theme, as proposed by the clusterer.
type TopicCluster struct {
	Theme             string   `json:"theme"`
	Keywords          []string `json:"keywords"`
	StoryIDs          []string `json:"story_ids"`
	RelevanceScore    float64  `json:"relevance_score"` // 1-100
	AudienceRelevance string   `json:"audience_relevance,omitempty"`
}

// ClusterCacheEntry stores the clusters computed for a (project, audience profile) pair.
type ClusterCacheEntry struct {
	ProjectID          string         `json:"project_id"`
	AudienceProfileID  string         `json:"audience_profile_id"` // empty when no profile
	Clusters           []TopicCluster `json:"clusters"`
	StoriesFingerprint string         `json:"stories_fingerprint"`
	TrendsFingerprint  string         `json:"trends_fingerprint"`
	CreatedAt          time.Time      `json:"created_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
}

// GenerationTrigger records what started a proposal generation.
type GenerationTrigger string

const (
	TriggerAuto   GenerationTrigger = "auto"
	TriggerManual GenerationTrigger = "manual"
)

// ProposalStatus is the review state of a proposal.
type ProposalStatus string

const (
	StatusDraft    ProposalStatus = "draft"
	StatusReviewed ProposalStatus = "reviewed"
	StatusApproved ProposalStatus = "approved"
	StatusRejected ProposalStatus = "rejected"
	StatusArchived ProposalStatus = "archived"
)

// Valid reports whether s is a known status.
func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReviewed, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// reviewTransitions lists the statuses reachable from each status.
var reviewTransitions = map[ProposalStatus][]ProposalStatus{
	StatusDraft:    {StatusReviewed, StatusApproved, StatusRejected, StatusArchived},
	StatusReviewed: {StatusApproved, StatusRejected, StatusArchived},
	StatusApproved: {StatusArchived},
	StatusRejected: {StatusArchived},
}

// CanTransition reports whether a proposal in status s may move to next.
func (s ProposalStatus) CanTransition(next ProposalStatus) bool {
	for _, allowed := range reviewTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TalkingPoint is one segment of a proposal's script outline.
type TalkingPoint struct {
	Point           string `json:"point"`
	Detail          string `json:"detail"`
	DurationSeconds int    `json:"duration_seconds"`
}

// SourceType classifies a research citation.
type SourceType string

const (
	SourceStatistic     SourceType = "statistic"
	SourceStudy         SourceType = "study"
	SourceExpertOpinion SourceType = "expert_opinion"
	SourceNews          SourceType = "news"
)

// ParseSourceType maps free-form model output onto a known source type, defaulting to news.
func ParseSourceType(s string) SourceType {
	switch SourceType(s) {
	case SourceStatistic, SourceStudy, SourceExpertOpinion, SourceNews:
		return SourceType(s)
	}
	return SourceNews
}

// ResearchCitation is a piece of supporting evidence attached to a proposal.
type ResearchCitation struct {
	Title               string     `json:"title"`
	URL                 string     `json:"url"`
	SourceType          SourceType `json:"source_type"`
	Snippet             string     `json:"snippet"`
	AccessedAt          time.Time  `json:"accessed_at"`
	RelevanceToAudience string     `json:"relevance_to_audience,omitempty"`
}

// CitationQuery is a research question produced during synthesis.
type CitationQuery struct {
	Query        string     `json:"query"`
	EvidenceType SourceType `json:"evidence_type"`
	Rationale    string     `json:"rationale"`
}

// TopicProposal is a persisted video topic proposal.
type TopicProposal struct {
	ID                string             `json:"id"`
	ProjectID         string             `json:"project_id"`
	AudienceProfileID string             `json:"audience_profile_id"`
	Title             string             `json:"title"`
	Hook              string             `json:"hook"`
	AudienceCare      string             `json:"audience_care"`
	TalkingPoints     []TalkingPoint     `json:"talking_points"`
	Citations         []ResearchCitation `json:"citations"`
	SourceStoryIDs    []string           `json:"source_story_ids"`
	ClusterTheme      string             `json:"cluster_theme"`
	ClusterKeywords   []string           `json:"cluster_keywords"`
	TrendingContext   string             `json:"trending_context,omitempty"`
	GenerationTrigger GenerationTrigger  `json:"generation_trigger"`
	DurationType      DurationType       `json:"duration_type"`
	DurationSeconds   int                `json:"duration_seconds"`
	Status            ProposalStatus     `json:"status"`
	ReviewNotes       string             `json:"review_notes,omitempty"`
	CreatedBy         string             `json:"created_by,omitempty"` // empty for scheduled runs
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// TopicGeneratorSettings is the per-project configuration for proposal generation.
type TopicGeneratorSettings struct {
	ProjectID                string       `json:"project_id"`
	AutoGenerateEnabled      bool         `json:"auto_generate_enabled"`
	ScheduleTime             string       `json:"schedule_time"` // "HH:MM" local time
	Timezone                 string       `json:"timezone"`      // IANA zone name
	TimeWindowDays           int          `json:"time_window_days"`
	MinStoriesForCluster     int          `json:"min_stories_for_cluster"`
	MaxProposalsPerRun       int          `json:"max_proposals_per_run"`
	FocusCategories          []string     `json:"focus_categories"`
	ComparisonRegions        []string     `json:"comparison_regions"`
	DefaultDurationType      DurationType `json:"default_duration_type"`
	DefaultAudienceProfileID string       `json:"default_audience_profile_id"`
	IncludeTrendingContext   bool         `json:"include_trending_context"`
	LastAutoRunAt            *time.Time   `json:"last_auto_run_at,omitempty"` // set after a scheduled run
}

// Trend is a watched search trend used as optional clustering context.
type Trend struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
	Score     float64  `json:"score"`
}

// ViralPost is a recently viral social post used as optional clustering context.
type ViralPost struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Platform   string    `json:"platform"`
	Engagement int64     `json:"engagement"`
	PostedAt   time.Time `json:"posted_at"`
}

// Role is a project member's permission level.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// CanGenerate reports whether the role may create, review or resynthesize proposals.
func (r Role) CanGenerate() bool {
	return r == RoleOwner || r == RoleEditor
}

// CanPreview reports whether the role may preview clusters and read proposals.
func (r Role) CanPreview() bool {
	return r.CanGenerate() || r == RoleViewer
}
