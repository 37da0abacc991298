package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"topicdesk/internal/clustercache"
	"topicdesk/internal/core"
	"topicdesk/internal/generator"
	"topicdesk/internal/metrics"
	"topicdesk/test/mocks"
)

const draft = `{
	"title": "Who wins the rent freeze?",
	"hook": "Your landlord has a plan.",
	"audience_care": "Rent is half their income.",
	"talking_points": [
		{"point": "One", "duration_seconds": 100},
		{"point": "Two", "duration_seconds": 100},
		{"point": "Three", "duration_seconds": 100}
	],
	"citation_queries": []
}`

type testServer struct {
	db  *mocks.MockDatabase
	llm *mocks.MockCompleter
	srv *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := mocks.NewMockDatabase()
	llm := mocks.NewMockCompleter()
	llm.SetResponse("Group the following flagged news stories",
		`{"clusters": [{"theme": "Rent freeze", "keywords": ["rent"], "story_ids": ["s1", "s2"], "relevance_score": 80}]}`)
	llm.SetResponse("Theme: Rent freeze", draft)

	now := time.Now().UTC()
	db.AddProfile(core.AudienceProfile{ID: "aud-1", ProjectID: "proj-1", Name: "Renters"})
	for _, id := range []string{"s1", "s2"} {
		db.AddItem(core.SourceItem{ID: id, Title: "Story " + id, PublishedAt: now.Add(-time.Hour)})
		db.FlagItem("proj-1", "editor-1", id, now.Add(-time.Hour))
	}
	db.SetRole("proj-1", "owner-1", core.RoleOwner)
	db.SetRole("proj-1", "editor-1", core.RoleEditor)
	db.SetRole("proj-1", "viewer-1", core.RoleViewer)
	db.AddProposal(core.TopicProposal{
		ID:             "p1",
		ProjectID:      "proj-1",
		Title:          "Existing proposal",
		Status:         core.StatusDraft,
		SourceStoryIDs: []string{"s1", "s2"},
		ClusterTheme:   "Rent freeze",
		CreatedAt:      now,
	})

	gen, err := generator.New(generator.Config{}, generator.DefaultDeps(db, llm, clustercache.New(db.ClusterCache())))
	if err != nil {
		t.Fatalf("generator.New failed: %v", err)
	}
	srv := New(db, gen, Config{AdminAPIKey: "admin-secret"}, metrics.NewCollector("test"))
	return &testServer{db: db, llm: llm, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON error body, got %q", rec.Body.String())
	}
	return body.Error.Kind
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"ok"`) {
		t.Errorf("Unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/generate", "editor-1",
		GenerateRequest{AudienceProfileID: "aud-1", DurationType: "medium"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result generator.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Proposals) != 1 || result.Proposals[0].CreatedBy != "editor-1" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestGeneratePermissions(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/projects/proj-1/proposals/generate"
	body := GenerateRequest{AudienceProfileID: "aud-1"}

	if rec := ts.do(t, http.MethodPost, path, "", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without user, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, path, "viewer-1", body); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for viewer, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, path, "stranger", body); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-member, got %d", rec.Code)
	}
	if ts.llm.CallCount() != 0 {
		t.Errorf("Expected no generative calls for rejected requests, got %d", ts.llm.CallCount())
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/projects/proj-1/proposals/generate"

	tests := []struct {
		name   string
		user   string
		body   any
		setup  func()
		status int
		kind   core.ErrorKind
	}{
		{"validation", "editor-1", GenerateRequest{AudienceProfileID: "aud-1", DurationType: "epic"}, nil, http.StatusBadRequest, core.KindValidation},
		{"bad scope", "editor-1", GenerateRequest{AudienceProfileID: "aud-1", Scope: "galaxy"}, nil, http.StatusBadRequest, core.KindValidation},
		{"not found", "editor-1", GenerateRequest{AudienceProfileID: "missing"}, nil, http.StatusNotFound, core.KindNotFound},
		{"insufficient", "owner-1", GenerateRequest{AudienceProfileID: "aud-1"}, nil, http.StatusUnprocessableEntity, core.KindInsufficientInput},
		{"no clusters", "editor-1", GenerateRequest{AudienceProfileID: "aud-1"}, func() {
			ts.llm.SetResponse("Group the following flagged news stories", `{"clusters": []}`)
		}, http.StatusUnprocessableEntity, core.KindNoClusters},
		{"generation", "editor-1", GenerateRequest{AudienceProfileID: "aud-1"}, func() {
			ts.llm.FailOn("Group the following flagged news stories")
		}, http.StatusBadGateway, core.KindGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rec := ts.do(t, http.MethodPost, path, tt.user, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if kind := errorKind(t, rec); kind != string(tt.kind) {
				t.Errorf("Expected kind %s, got %s", tt.kind, kind)
			}
		})
	}
}

func TestGenerationFailedMapsToBadGateway(t *testing.T) {
	ts := newTestServer(t)
	ts.llm.FailOn("Theme: Rent freeze")

	rec := ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/generate", "editor-1", GenerateRequest{AudienceProfileID: "aud-1"})
	if rec.Code != http.StatusBadGateway || errorKind(t, rec) != string(core.KindGenerationFailed) {
		t.Errorf("Expected 502 generation_failed, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPreviewEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.db.FlagItem("proj-1", "viewer-1", "s1", time.Now().UTC())
	ts.db.FlagItem("proj-1", "viewer-1", "s2", time.Now().UTC())

	rec := ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/preview", "viewer-1", PreviewRequest{AudienceProfileID: "aud-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var preview generator.Preview
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(preview.Clusters) != 1 || len(preview.Clusters[0].Similar) != 1 {
		t.Errorf("Expected one cluster overlapping p1, got %+v", preview.Clusters)
	}
	if ts.db.ProposalCount() != 1 {
		t.Error("Expected preview not to persist proposals")
	}
}

func TestListAndGetProposals(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/projects/proj-1/proposals?status=draft,reviewed&limit=10", "viewer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list ProposalListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 || list.Proposals[0].ID != "p1" {
		t.Errorf("Unexpected listing: %+v", list)
	}

	if rec := ts.do(t, http.MethodGet, "/api/projects/proj-1/proposals?status=published", "viewer-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodGet, "/api/proposals/p1", "viewer-1", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/proposals/nope", "viewer-1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/proposals/p1", "stranger", nil); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-member, got %d", rec.Code)
	}
}

func TestBriefEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/proposals/p1/brief", "viewer-1", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("Unexpected markdown response: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "# Existing proposal") {
		t.Errorf("Expected markdown title, got %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/proposals/p1/brief?format=html", "viewer-1", nil)
	if !strings.Contains(rec.Body.String(), "<h1") {
		t.Errorf("Expected HTML brief, got %s", rec.Body.String())
	}

	if rec := ts.do(t, http.MethodGet, "/api/proposals/p1/brief?format=pdf", "viewer-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestReviewEndpoint(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/proposals/p1/review"

	if rec := ts.do(t, http.MethodPatch, path, "viewer-1", ReviewRequest{Status: "approved"}); rec.Code != http.StatusForbidden {
		t.Errorf("Expected viewers to be rejected, got %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPatch, path, "editor-1", ReviewRequest{Status: "approved", Notes: "Go"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := ts.do(t, http.MethodPatch, path, "editor-1", ReviewRequest{Status: "draft"}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected illegal transition to be a 400, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPatch, path, "editor-1", ReviewRequest{}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected missing status to be a 400, got %d", rec.Code)
	}
}

func TestResynthesizeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	p, _ := ts.db.Proposals().Get(t.Context(), "p1")
	p.AudienceProfileID = "aud-1"
	ts.db.AddProposal(*p)

	rec := ts.do(t, http.MethodPost, "/api/proposals/p1/resynthesize", "editor-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated core.TopicProposal
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Title != "Who wins the rent freeze?" {
		t.Errorf("Expected resynthesized title, got %q", updated.Title)
	}
}

func TestSimilarEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/similar", "viewer-1", SimilarRequest{StoryIDs: []string{"s1", "s9"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"proposal_id":"p1"`) {
		t.Errorf("Expected p1 reported as similar, got %d %s", rec.Code, rec.Body.String())
	}

	tooHigh := 150.0
	rec = ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/similar", "viewer-1", SimilarRequest{StoryIDs: []string{"s1"}, MinOverlapPercentage: &tooHigh})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-range threshold, got %d", rec.Code)
	}
}

func TestSimilarEndpointZeroThreshold(t *testing.T) {
	ts := newTestServer(t)
	ts.db.AddProposal(core.TopicProposal{
		ID: "p-wide", ProjectID: "proj-1", Title: "Housing roundup", Status: core.StatusDraft,
		SourceStoryIDs: []string{"s1", "s5", "s6"},
	})
	query := []string{"s1", "s7", "s8"}

	rec := ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/similar", "viewer-1", SimilarRequest{StoryIDs: query})
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "p-wide") {
		t.Errorf("Expected the default threshold to drop a 33%% overlap, got %d %s", rec.Code, rec.Body.String())
	}

	zero := 0.0
	rec = ts.do(t, http.MethodPost, "/api/projects/proj-1/proposals/similar", "viewer-1", SimilarRequest{StoryIDs: query, MinOverlapPercentage: &zero})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"proposal_id":"p-wide"`) {
		t.Errorf("Expected threshold 0 to keep any overlap, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestScheduledRunRequiresAdminKey(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scheduled-runs", nil)
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/scheduled-runs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/scheduled-runs", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rec = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"projects_checked":0`) {
		t.Errorf("Expected run summary, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", "", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "topicdesk_http_requests_total") {
		t.Errorf("Expected prometheus output, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	if statusFor(errors.New("plain")) != http.StatusInternalServerError {
		t.Error("Expected unknown errors to map to 500")
	}
	if statusFor(core.NewPersistenceError("db", nil)) != http.StatusInternalServerError {
		t.Error("Expected persistence errors to map to 500")
	}
	if statusFor(core.NewPermissionError("no")) != http.StatusForbidden {
		t.Error("Expected permission errors to map to 403")
	}
}
