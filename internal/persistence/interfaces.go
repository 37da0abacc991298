// Package persistence provides database abstraction interfaces for the proposal pipeline
package persistence

import (
	"context"
	"errors"
	"time"

	"topicdesk/internal/core"
)

// ErrNotFound is wrapped by repositories when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStatusChanged is wrapped when a conditional status update finds the record in another status.
var ErrStatusChanged = errors.New("status changed")

// FlagQuery selects flagged source items.
type FlagQuery struct {
	ProjectID string
	UserID    string // empty selects flags from any project member
	Since     time.Time
}

// SourceItemRepository reads flagged news items
type SourceItemRepository interface {
	// FlaggedItemIDs returns ids of items flagged at or after Since, most recent flag first.
	// An item flagged by several users may appear more than once.
	FlaggedItemIDs(ctx context.Context, q FlagQuery) ([]string, error)

	// GetByIDs loads items by id. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]core.SourceItem, error)
}

// AudienceProfileRepository reads audience profiles
type AudienceProfileRepository interface {
	// Get retrieves a profile by ID
	Get(ctx context.Context, id string) (*core.AudienceProfile, error)
}

// SettingsRepository handles per-project generator settings
type SettingsRepository interface {
	// Get retrieves settings for a project, wrapping ErrNotFound when none are stored
	Get(ctx context.Context, projectID string) (*core.TopicGeneratorSettings, error)

	// ListAutoEnabled returns settings of every project with scheduled generation turned on
	ListAutoEnabled(ctx context.Context) ([]core.TopicGeneratorSettings, error)

	// Upsert creates or replaces a project's settings
	Upsert(ctx context.Context, settings *core.TopicGeneratorSettings) error

	// MarkAutoRun records when a scheduled run last fired for a project
	MarkAutoRun(ctx context.Context, projectID string, at time.Time) error
}

// ProposalFilter narrows proposal listings.
type ProposalFilter struct {
	Statuses        []core.ProposalStatus // only these, when set
	ExcludeStatuses []core.ProposalStatus
	Limit           int
	Offset          int
}

// ProposalRepository handles topic proposal persistence
type ProposalRepository interface {
	// Create inserts a new proposal
	Create(ctx context.Context, proposal *core.TopicProposal) error

	// Get retrieves a proposal by ID
	Get(ctx context.Context, id string) (*core.TopicProposal, error)

	// Update overwrites the generated content of a proposal
	Update(ctx context.Context, proposal *core.TopicProposal) error

	// UpdateReview moves a proposal from one status to another and sets review notes.
	// It wraps ErrStatusChanged when the proposal is missing or no longer in status from.
	UpdateReview(ctx context.Context, id string, from, to core.ProposalStatus, notes string, at time.Time) error

	// ListByProject lists proposals newest first
	ListByProject(ctx context.Context, projectID string, filter ProposalFilter) ([]core.TopicProposal, error)
}

// ClusterCacheRepository stores one cluster cache entry per (project, profile)
type ClusterCacheRepository interface {
	// Get returns the stored entry regardless of expiry, or nil when absent
	Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error)

	// Upsert replaces any prior entry for the same key
	Upsert(ctx context.Context, entry core.ClusterCacheEntry) error

	// DeleteExpired removes entries that expired before the given time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TrendRepository reads trending context for a project
type TrendRepository interface {
	// WatchedTrends returns active watched trends, highest score first
	WatchedTrends(ctx context.Context, projectID string, limit int) ([]core.Trend, error)

	// RecentViralPosts returns posts since the given time, most engaging first
	RecentViralPosts(ctx context.Context, projectID string, since time.Time, limit int) ([]core.ViralPost, error)
}

// MemberRepository resolves project membership
type MemberRepository interface {
	// Role returns the member's role, wrapping ErrNotFound for non-members
	Role(ctx context.Context, projectID, userID string) (core.Role, error)
}

// Database represents the main database interface that aggregates all repositories
type Database interface {
	SourceItems() SourceItemRepository
	AudienceProfiles() AudienceProfileRepository
	Settings() SettingsRepository
	Proposals() ProposalRepository
	ClusterCache() ClusterCacheRepository
	Trends() TrendRepository
	Members() MemberRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error

	Proposals() ProposalRepository
	ClusterCache() ClusterCacheRepository
	Settings() SettingsRepository
}
