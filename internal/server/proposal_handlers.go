package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"topicdesk/internal/core"
	"topicdesk/internal/generator"
	"topicdesk/internal/persistence"
	"topicdesk/internal/render"
	"topicdesk/internal/similarity"
	"topicdesk/internal/sources"
)

// GenerateRequest is the body of POST /api/projects/{projectID}/proposals/generate
type GenerateRequest struct {
	AudienceProfileID string   `json:"audience_profile_id"`
	DurationType      string   `json:"duration_type"`
	DurationSeconds   int      `json:"duration_seconds"`
	ComparisonRegions []string `json:"comparison_regions"`
	IncludeTrends     *bool    `json:"include_trends"`
	Scope             string   `json:"scope"`
	ClusterIndices    []int    `json:"cluster_indices"`
	MaxProposals      int      `json:"max_proposals"`
}

// PreviewRequest is the body of POST /api/projects/{projectID}/proposals/preview
type PreviewRequest struct {
	AudienceProfileID string `json:"audience_profile_id"`
	IncludeTrends     *bool  `json:"include_trends"`
	Scope             string `json:"scope"`
}

// SimilarRequest is the body of POST /api/projects/{projectID}/proposals/similar
type SimilarRequest struct {
	StoryIDs             []string              `json:"story_ids"`
	MinOverlapPercentage *float64              `json:"min_overlap_percentage"` // omitted selects the default
	ExcludeStatuses      []core.ProposalStatus `json:"exclude_statuses"`
}

// ReviewRequest is the body of PATCH /api/proposals/{id}/review
type ReviewRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// ProposalListResponse is returned by the proposal listing
type ProposalListResponse struct {
	Proposals []core.TopicProposal `json:"proposals"`
	Total     int                  `json:"total"`
}

// handleGenerate handles POST /api/projects/{projectID}/proposals/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondFailure(w, err)
		return
	}
	scope, err := sources.ParseScope(req.Scope, sources.ScopeUser)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	result, err := s.gen.Generate(r.Context(), generator.ManualRequest{
		ProjectID:         chi.URLParam(r, "projectID"),
		UserID:            userID(r.Context()),
		AudienceProfileID: req.AudienceProfileID,
		DurationType:      core.DurationType(strings.ToLower(req.DurationType)),
		DurationSeconds:   req.DurationSeconds,
		ComparisonRegions: req.ComparisonRegions,
		IncludeTrends:     req.IncludeTrends,
		Scope:             scope,
		ClusterIndices:    req.ClusterIndices,
		MaxProposals:      req.MaxProposals,
	})
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

// handlePreview handles POST /api/projects/{projectID}/proposals/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondFailure(w, err)
		return
	}
	scope, err := sources.ParseScope(req.Scope, sources.ScopeUser)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	preview, err := s.gen.Preview(r.Context(), generator.PreviewRequest{
		ProjectID:         chi.URLParam(r, "projectID"),
		UserID:            userID(r.Context()),
		AudienceProfileID: req.AudienceProfileID,
		IncludeTrends:     req.IncludeTrends,
		Scope:             scope,
	})
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, preview)
}

// handleSimilar handles POST /api/projects/{projectID}/proposals/similar
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondFailure(w, err)
		return
	}
	if pct := req.MinOverlapPercentage; pct != nil && (*pct < 0 || *pct > 100) {
		s.respondFailure(w, core.NewValidationError("min_overlap_percentage must be between 0 and 100"))
		return
	}

	similar, err := s.similarity.FindSimilar(r.Context(), chi.URLParam(r, "projectID"), req.StoryIDs, similarity.Options{
		MinOverlapPercentage: req.MinOverlapPercentage,
		ExcludeStatuses:      req.ExcludeStatuses,
	})
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"similar": similar})
}

// handleListProposals handles GET /api/projects/{projectID}/proposals
func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := persistence.ProposalFilter{Limit: 50}

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := core.ProposalStatus(strings.TrimSpace(part))
			if !status.Valid() {
				s.respondFailure(w, core.NewValidationError("unknown status "+string(status)))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				s.respondFailure(w, core.NewValidationError("invalid "+key))
				return
			}
			*dst = n
		}
	}

	proposals, err := s.db.Proposals().ListByProject(r.Context(), chi.URLParam(r, "projectID"), filter)
	if err != nil {
		s.respondFailure(w, core.NewPersistenceError("failed to list proposals", err))
		return
	}
	if proposals == nil {
		proposals = []core.TopicProposal{}
	}
	s.respondJSON(w, http.StatusOK, ProposalListResponse{Proposals: proposals, Total: len(proposals)})
}

// loadAuthorized loads {id} and checks the caller's role in the proposal's project
func (s *Server) loadAuthorized(w http.ResponseWriter, r *http.Request, allowed func(core.Role) bool) (*core.TopicProposal, *http.Request, bool) {
	if r.Header.Get(UserIDHeader) == "" {
		s.respondFailure(w, errUnauthenticated)
		return nil, nil, false
	}

	id := chi.URLParam(r, "id")
	p, err := s.db.Proposals().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			s.respondFailure(w, core.NewNotFoundError("proposal", id))
		} else {
			s.respondFailure(w, core.NewPersistenceError("failed to load proposal", err))
		}
		return nil, nil, false
	}

	ctx, err := s.authorize(r, p.ProjectID, allowed)
	if err != nil {
		s.respondFailure(w, err)
		return nil, nil, false
	}
	return p, r.WithContext(ctx), true
}

// handleGetProposal handles GET /api/proposals/{id}
func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.loadAuthorized(w, r, canView)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

// handleBrief handles GET /api/proposals/{id}/brief?format=markdown|html
func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.loadAuthorized(w, r, canView)
	if !ok {
		return
	}

	md := render.Brief(p)
	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(render.HTML(md)))
	default:
		s.respondFailure(w, core.NewValidationError("format must be markdown or html"))
	}
}

// handleResynthesize handles POST /api/proposals/{id}/resynthesize
func (s *Server) handleResynthesize(w http.ResponseWriter, r *http.Request) {
	p, r, ok := s.loadAuthorized(w, r, canGenerate)
	if !ok {
		return
	}

	updated, err := s.gen.Resynthesize(r.Context(), p.ID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

// handleReview handles PATCH /api/proposals/{id}/review
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	p, r, ok := s.loadAuthorized(w, r, canGenerate)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondFailure(w, err)
		return
	}
	if req.Status == "" {
		s.respondFailure(w, core.NewValidationError("status is required"))
		return
	}

	updated, err := s.gen.Review(r.Context(), p.ID, core.ProposalStatus(req.Status), req.Notes)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

// handleScheduledRun handles POST /api/scheduled-runs
func (s *Server) handleScheduledRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.gen.RunScheduled(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}
