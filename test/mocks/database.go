package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/persistence"
)

// ErrMockDB is returned by MockDatabase for failing operations.
var ErrMockDB = errors.New("mock database error")

// Flag records an analyst flagging an item.
type Flag struct {
	ProjectID string
	UserID    string
	ItemID    string
	FlaggedAt time.Time
}

// MockDatabase is an in-memory persistence.Database.
type MockDatabase struct {
	mu sync.Mutex

	items     map[string]core.SourceItem
	flags     []Flag
	profiles  map[string]core.AudienceProfile
	settings  map[string]core.TopicGeneratorSettings
	proposals map[string]core.TopicProposal
	order     []string
	cache     map[string]core.ClusterCacheEntry
	trends    map[string][]core.Trend
	viral     map[string][]core.ViralPost
	roles     map[string]core.Role

	// FailFlagsFor makes flagged item lookups fail for the listed projects.
	FailFlagsFor map[string]bool
	// FailProposalCreate makes every proposal insert fail.
	FailProposalCreate bool
	FailTrends         bool
	FailCache          bool
	FailMarkAutoRun    bool
	CacheWrites        int
	// BeforeUpdateReview runs ahead of each review update, unlocked.
	BeforeUpdateReview func(id string)
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		items:        make(map[string]core.SourceItem),
		profiles:     make(map[string]core.AudienceProfile),
		settings:     make(map[string]core.TopicGeneratorSettings),
		proposals:    make(map[string]core.TopicProposal),
		cache:        make(map[string]core.ClusterCacheEntry),
		trends:       make(map[string][]core.Trend),
		viral:        make(map[string][]core.ViralPost),
		roles:        make(map[string]core.Role),
		FailFlagsFor: make(map[string]bool),
	}
}

// AddItem stores a source item.
func (m *MockDatabase) AddItem(item core.SourceItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// FlagItem records a flag on an item.
func (m *MockDatabase) FlagItem(projectID, userID, itemID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = append(m.flags, Flag{ProjectID: projectID, UserID: userID, ItemID: itemID, FlaggedAt: at})
}

func (m *MockDatabase) AddProfile(p core.AudienceProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MockDatabase) SetRole(projectID, userID string, role core.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[projectID+"/"+userID] = role
}

func (m *MockDatabase) SetTrends(projectID string, trends []core.Trend, posts []core.ViralPost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trends[projectID] = trends
	m.viral[projectID] = posts
}

// AddProposal stores a proposal as if it had been created earlier.
func (m *MockDatabase) AddProposal(p core.TopicProposal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putProposal(p)
}

// ProposalCount returns the number of stored proposals.
func (m *MockDatabase) ProposalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proposals)
}

// CacheEntry returns the raw stored cache entry.
func (m *MockDatabase) CacheEntry(projectID, profileID string) (core.ClusterCacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[projectID+"/"+profileID]
	return e, ok
}

func (m *MockDatabase) putProposal(p core.TopicProposal) {
	if _, exists := m.proposals[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.proposals[p.ID] = p
}

func (m *MockDatabase) SourceItems() persistence.SourceItemRepository           { return mockSourceItems{m} }
func (m *MockDatabase) AudienceProfiles() persistence.AudienceProfileRepository { return mockProfiles{m} }
func (m *MockDatabase) Settings() persistence.SettingsRepository                { return mockSettings{m} }
func (m *MockDatabase) Proposals() persistence.ProposalRepository               { return mockProposals{m} }
func (m *MockDatabase) ClusterCache() persistence.ClusterCacheRepository        { return mockClusterCache{m} }
func (m *MockDatabase) Trends() persistence.TrendRepository                     { return mockTrends{m} }
func (m *MockDatabase) Members() persistence.MemberRepository                   { return mockMembers{m} }

func (m *MockDatabase) Close() error                   { return nil }
func (m *MockDatabase) Ping(ctx context.Context) error { return nil }

func (m *MockDatabase) BeginTx(ctx context.Context) (persistence.Transaction, error) {
	return mockTx{m}, nil
}

type mockTx struct{ db *MockDatabase }

func (t mockTx) Commit() error                                    { return nil }
func (t mockTx) Rollback() error                                  { return nil }
func (t mockTx) Proposals() persistence.ProposalRepository        { return mockProposals{t.db} }
func (t mockTx) ClusterCache() persistence.ClusterCacheRepository { return mockClusterCache{t.db} }
func (t mockTx) Settings() persistence.SettingsRepository         { return mockSettings{t.db} }

type mockSourceItems struct{ db *MockDatabase }

func (r mockSourceItems) FlaggedItemIDs(ctx context.Context, q persistence.FlagQuery) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailFlagsFor[q.ProjectID] {
		return nil, ErrMockDB
	}

	var matched []Flag
	for _, f := range r.db.flags {
		if f.ProjectID != q.ProjectID || f.FlaggedAt.Before(q.Since) {
			continue
		}
		if q.UserID != "" && f.UserID != q.UserID {
			continue
		}
		matched = append(matched, f)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].FlaggedAt.After(matched[j].FlaggedAt) })

	ids := make([]string, 0, len(matched))
	for _, f := range matched {
		ids = append(ids, f.ItemID)
	}
	return ids, nil
}

func (r mockSourceItems) GetByIDs(ctx context.Context, ids []string) ([]core.SourceItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	items := []core.SourceItem{}
	for _, id := range ids {
		if item, ok := r.db.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

type mockProfiles struct{ db *MockDatabase }

func (r mockProfiles) Get(ctx context.Context, id string) (*core.AudienceProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return nil, fmt.Errorf("audience profile %s: %w", id, persistence.ErrNotFound)
	}
	return &p, nil
}

type mockSettings struct{ db *MockDatabase }

func (r mockSettings) Get(ctx context.Context, projectID string) (*core.TopicGeneratorSettings, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.settings[projectID]
	if !ok {
		return nil, fmt.Errorf("settings for project %s: %w", projectID, persistence.ErrNotFound)
	}
	return &s, nil
}

func (r mockSettings) ListAutoEnabled(ctx context.Context) ([]core.TopicGeneratorSettings, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []core.TopicGeneratorSettings
	for _, s := range r.db.settings {
		if s.AutoGenerateEnabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (r mockSettings) Upsert(ctx context.Context, s *core.TopicGeneratorSettings) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.settings[s.ProjectID] = *s
	return nil
}

func (r mockSettings) MarkAutoRun(ctx context.Context, projectID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailMarkAutoRun {
		return ErrMockDB
	}
	s, ok := r.db.settings[projectID]
	if !ok {
		return fmt.Errorf("settings for project %s: %w", projectID, persistence.ErrNotFound)
	}
	s.LastAutoRunAt = &at
	r.db.settings[projectID] = s
	return nil
}

type mockProposals struct{ db *MockDatabase }

func (r mockProposals) Create(ctx context.Context, p *core.TopicProposal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailProposalCreate {
		return ErrMockDB
	}
	r.db.putProposal(*p)
	return nil
}

func (r mockProposals) Get(ctx context.Context, id string) (*core.TopicProposal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, persistence.ErrNotFound)
	}
	return &p, nil
}

func (r mockProposals) Update(ctx context.Context, p *core.TopicProposal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.proposals[p.ID]
	if !ok {
		return fmt.Errorf("proposal %s: %w", p.ID, persistence.ErrNotFound)
	}
	existing.Title = p.Title
	existing.Hook = p.Hook
	existing.AudienceCare = p.AudienceCare
	existing.TalkingPoints = p.TalkingPoints
	existing.Citations = p.Citations
	existing.TrendingContext = p.TrendingContext
	existing.DurationType = p.DurationType
	existing.DurationSeconds = p.DurationSeconds
	existing.UpdatedAt = p.UpdatedAt
	r.db.proposals[p.ID] = existing
	return nil
}

func (r mockProposals) UpdateReview(ctx context.Context, id string, from, to core.ProposalStatus, notes string, at time.Time) error {
	if r.db.BeforeUpdateReview != nil {
		r.db.BeforeUpdateReview(id)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.proposals[id]
	if !ok || p.Status != from {
		return fmt.Errorf("proposal %s left %s: %w", id, from, persistence.ErrStatusChanged)
	}
	p.Status = to
	p.ReviewNotes = notes
	p.UpdatedAt = at.UTC()
	r.db.proposals[id] = p
	return nil
}

func (r mockProposals) ListByProject(ctx context.Context, projectID string, filter persistence.ProposalFilter) ([]core.TopicProposal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []core.TopicProposal
	for i := len(r.db.order) - 1; i >= 0; i-- {
		p := r.db.proposals[r.db.order[i]]
		if p.ProjectID != projectID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, p.Status) {
			continue
		}
		if hasStatus(filter.ExcludeStatuses, p.Status) {
			continue
		}
		out = append(out, p)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func hasStatus(statuses []core.ProposalStatus, s core.ProposalStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type mockClusterCache struct{ db *MockDatabase }

func (r mockClusterCache) Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailCache {
		return nil, ErrMockDB
	}
	e, ok := r.db.cache[projectID+"/"+audienceProfileID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r mockClusterCache) Upsert(ctx context.Context, entry core.ClusterCacheEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailCache {
		return ErrMockDB
	}
	r.db.CacheWrites++
	r.db.cache[entry.ProjectID+"/"+entry.AudienceProfileID] = entry
	return nil
}

func (r mockClusterCache) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for k, e := range r.db.cache {
		if e.ExpiresAt.Before(before) {
			delete(r.db.cache, k)
			n++
		}
	}
	return n, nil
}

type mockTrends struct{ db *MockDatabase }

func (r mockTrends) WatchedTrends(ctx context.Context, projectID string, limit int) ([]core.Trend, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailTrends {
		return nil, ErrMockDB
	}
	out := r.db.trends[projectID]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r mockTrends) RecentViralPosts(ctx context.Context, projectID string, since time.Time, limit int) ([]core.ViralPost, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailTrends {
		return nil, ErrMockDB
	}
	var out []core.ViralPost
	for _, p := range r.db.viral[projectID] {
		if !p.PostedAt.Before(since) {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockMembers struct{ db *MockDatabase }

func (r mockMembers) Role(ctx context.Context, projectID, userID string) (core.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	role, ok := r.db.roles[projectID+"/"+userID]
	if !ok {
		return "", fmt.Errorf("member %s of project %s: %w", userID, projectID, persistence.ErrNotFound)
	}
	return role, nil
}
