// Package themes groups flagged source items into thematic clusters using the generative model
package themes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"google.golang.org/genai"

	"topicdesk/internal/core"
	"topicdesk/internal/llm"
	"topicdesk/internal/logger"
)

const (
	// MaxClusters caps how many clusters one call may return
	MaxClusters = 5

	// MinStoriesPerCluster is the fewest stories a cluster must connect
	MinStoriesPerCluster = 2

	maxSummaryChars = 300
)

const systemInstructions = `You are an editorial strategist for a video production team.
You group news stories into coherent themes that could each become one video.
Respond with JSON only.`

// Clusterer groups source items into topic clusters
type Clusterer struct {
	llm llm.Completer
	log *slog.Logger
}

// NewClusterer creates a new clusterer
func NewClusterer(completer llm.Completer) *Clusterer {
	return &Clusterer{
		llm: completer,
		log: logger.Get(),
	}
}

type clusterResponse struct {
	Clusters []rawCluster `json:"clusters"`
}

type rawCluster struct {
	Theme             string   `json:"theme"`
	Keywords          []string `json:"keywords"`
	StoryIDs          []string `json:"story_ids"`
	RelevanceScore    float64  `json:"relevance_score"`
	AudienceRelevance string   `json:"audience_relevance"`
}

// ClusterSchema is the structured output schema for clustering responses
func ClusterSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"clusters": {
				Type:        genai.TypeArray,
				Description: "Thematic clusters, most relevant first",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"theme": {
							Type:        genai.TypeString,
							Description: "Short name for the shared theme",
						},
						"keywords": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
						"story_ids": {
							Type:        genai.TypeArray,
							Description: "IDs of the stories in this cluster, copied exactly from the input",
							Items:       &genai.Schema{Type: genai.TypeString},
						},
						"relevance_score": {
							Type:        genai.TypeNumber,
							Description: "Relevance to the audience from 1 to 100",
						},
						"audience_relevance": {
							Type:        genai.TypeString,
							Description: "One sentence on why this audience would care",
						},
					},
					Required: []string{"theme", "keywords", "story_ids", "relevance_score"},
				},
			},
		},
		Required: []string{"clusters"},
	}
}

// Cluster makes one generative call and returns validated clusters, most relevant first.
// Zero clusters is a valid result.
func (c *Clusterer) Cluster(ctx context.Context, items []core.SourceItem, profile *core.AudienceProfile, trendingContext string) ([]core.TopicCluster, error) {
	if len(items) == 0 {
		return []core.TopicCluster{}, nil
	}

	prompt := buildPrompt(items, profile, trendingContext)
	response, err := c.llm.Complete(llm.WithResponseSchema(ctx, ClusterSchema()), systemInstructions, prompt)
	if err != nil {
		return nil, core.NewGenerationError("clustering call failed", err)
	}

	parsed := llm.ParseJSON[clusterResponse](response)
	if !parsed.OK() {
		return nil, core.NewGenerationError("unparseable clustering response", parsed.Err)
	}

	valid := make(map[string]bool, len(items))
	for _, item := range items {
		valid[item.ID] = true
	}
	clusters := validate(parsed.Value.Clusters, valid)

	c.log.Info("Clustered flagged items",
		"items", len(items),
		"returned", len(parsed.Value.Clusters),
		"kept", len(clusters))
	return clusters, nil
}

// validate drops unknown and duplicate story ids, discards clusters left with fewer than
// MinStoriesPerCluster stories, clamps relevance to 1-100 and keeps the MaxClusters most relevant.
func validate(raw []rawCluster, valid map[string]bool) []core.TopicCluster {
	clusters := make([]core.TopicCluster, 0, len(raw))
	for _, rc := range raw {
		theme := strings.TrimSpace(rc.Theme)
		if theme == "" {
			continue
		}

		seen := make(map[string]bool, len(rc.StoryIDs))
		var ids []string
		for _, id := range rc.StoryIDs {
			id = strings.TrimSpace(id)
			if !valid[id] || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) < MinStoriesPerCluster {
			continue
		}

		clusters = append(clusters, core.TopicCluster{
			Theme:             theme,
			Keywords:          cleanKeywords(rc.Keywords),
			StoryIDs:          ids,
			RelevanceScore:    clamp(rc.RelevanceScore, 1, 100),
			AudienceRelevance: strings.TrimSpace(rc.AudienceRelevance),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].RelevanceScore > clusters[j].RelevanceScore
	})
	if len(clusters) > MaxClusters {
		clusters = clusters[:MaxClusters]
	}
	return clusters
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func buildPrompt(items []core.SourceItem, profile *core.AudienceProfile, trendingContext string) string {
	var sb strings.Builder

	sb.WriteString("Group the following flagged news stories into thematic clusters for video topics.\n\n")

	sb.WriteString("STORIES:\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("[%s] %s", item.ID, item.Title))
		if item.Category != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", item.Category))
		}
		sb.WriteString("\n")
		if summary := truncate(item.Summary, maxSummaryChars); summary != "" {
			sb.WriteString("   ")
			sb.WriteString(summary)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	if profile != nil {
		sb.WriteString("AUDIENCE:\n")
		sb.WriteString(describeAudience(profile))
		sb.WriteString("\n")
	}

	if trendingContext != "" {
		sb.WriteString("TRENDING CONTEXT:\n")
		sb.WriteString(trendingContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("TASK:\n")
	sb.WriteString(fmt.Sprintf("1. Form at most %d clusters of stories that share a theme\n", MaxClusters))
	sb.WriteString(fmt.Sprintf("2. Every cluster must connect at least %d stories; leave out stories that fit no theme\n", MinStoriesPerCluster))
	sb.WriteString("3. A story may belong to more than one cluster\n")
	sb.WriteString("4. Score each cluster's relevance from 1 to 100, weighing how timely the stories are, ")
	sb.WriteString("how well the theme fits the audience and how strongly the stories connect to each other\n")
	if profile != nil {
		sb.WriteString("5. Favour themes that touch the audience's values and fears listed above\n")
		sb.WriteString("6. Use only the story IDs shown in brackets above\n\n")
	} else {
		sb.WriteString("5. Use only the story IDs shown in brackets above\n\n")
	}

	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString(`{"clusters": [{"theme": "...", "keywords": ["..."], "story_ids": ["..."], "relevance_score": 75, "audience_relevance": "..."}]}`)
	sb.WriteString("\n")

	return sb.String()
}

func describeAudience(p *core.AudienceProfile) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name: %s\n", p.Name))
	if len(p.Values) > 0 {
		sb.WriteString(fmt.Sprintf("Values: %s\n", strings.Join(p.Values, ", ")))
	}
	if len(p.Fears) > 0 {
		sb.WriteString(fmt.Sprintf("Fears: %s\n", strings.Join(p.Fears, ", ")))
	}
	if len(p.Aspirations) > 0 {
		sb.WriteString(fmt.Sprintf("Aspirations: %s\n", strings.Join(p.Aspirations, ", ")))
	}
	if p.Region != "" {
		sb.WriteString(fmt.Sprintf("Region: %s\n", p.Region))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
