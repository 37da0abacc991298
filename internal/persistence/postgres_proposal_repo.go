package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"topicdesk/internal/core"
)

// postgresProposalRepo implements ProposalRepository for PostgreSQL
type postgresProposalRepo struct{ conn }

const proposalColumns = `id, project_id, audience_profile_id, title, hook, audience_care, talking_points,
	citations, source_story_ids, cluster_theme, cluster_keywords, trending_context, generation_trigger,
	duration_type, duration_seconds, status, review_notes, created_by, created_at, updated_at`

func (r *postgresProposalRepo) Create(ctx context.Context, p *core.TopicProposal) error {
	talkingPoints, citations, err := marshalProposalJSON(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO topic_proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err = r.query().ExecContext(ctx, query,
		p.ID,
		p.ProjectID,
		p.AudienceProfileID,
		p.Title,
		p.Hook,
		p.AudienceCare,
		talkingPoints,
		citations,
		pq.Array(p.SourceStoryIDs),
		p.ClusterTheme,
		pq.Array(p.ClusterKeywords),
		p.TrendingContext,
		string(p.GenerationTrigger),
		string(p.DurationType),
		p.DurationSeconds,
		string(p.Status),
		p.ReviewNotes,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *postgresProposalRepo) Get(ctx context.Context, id string) (*core.TopicProposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM topic_proposals WHERE id = $1`
	p, err := scanProposal(r.query().QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresProposalRepo) Update(ctx context.Context, p *core.TopicProposal) error {
	talkingPoints, citations, err := marshalProposalJSON(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE topic_proposals
		SET title = $2, hook = $3, audience_care = $4, talking_points = $5, citations = $6,
			trending_context = $7, duration_type = $8, duration_seconds = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := r.query().ExecContext(ctx, query,
		p.ID,
		p.Title,
		p.Hook,
		p.AudienceCare,
		talkingPoints,
		citations,
		p.TrendingContext,
		string(p.DurationType),
		p.DurationSeconds,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "proposal", p.ID)
}

func (r *postgresProposalRepo) UpdateReview(ctx context.Context, id string, from, to core.ProposalStatus, notes string, at time.Time) error {
	query := `UPDATE topic_proposals SET status = $3, review_notes = $4, updated_at = $5 WHERE id = $1 AND status = $2`
	res, err := r.query().ExecContext(ctx, query, id, string(from), string(to), notes, at.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("proposal %s left %s: %w", id, from, ErrStatusChanged)
	}
	return nil
}

func (r *postgresProposalRepo) ListByProject(ctx context.Context, projectID string, filter ProposalFilter) ([]core.TopicProposal, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + proposalColumns + ` FROM topic_proposals WHERE project_id = $1`)
	args := []interface{}{projectID}

	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		sb.WriteString(fmt.Sprintf(" AND status = ANY($%d)", len(args)))
	}
	if len(filter.ExcludeStatuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.ExcludeStatuses)))
		sb.WriteString(fmt.Sprintf(" AND NOT (status = ANY($%d))", len(args)))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.query().QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []core.TopicProposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

func scanProposal(scan func(dest ...interface{}) error) (*core.TopicProposal, error) {
	var p core.TopicProposal
	var talkingPoints, citations []byte
	var trigger, durationType, status string
	err := scan(
		&p.ID,
		&p.ProjectID,
		&p.AudienceProfileID,
		&p.Title,
		&p.Hook,
		&p.AudienceCare,
		&talkingPoints,
		&citations,
		pq.Array(&p.SourceStoryIDs),
		&p.ClusterTheme,
		pq.Array(&p.ClusterKeywords),
		&p.TrendingContext,
		&trigger,
		&durationType,
		&p.DurationSeconds,
		&status,
		&p.ReviewNotes,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(talkingPoints) > 0 {
		if err := json.Unmarshal(talkingPoints, &p.TalkingPoints); err != nil {
			return nil, fmt.Errorf("failed to decode talking points: %w", err)
		}
	}
	if len(citations) > 0 {
		if err := json.Unmarshal(citations, &p.Citations); err != nil {
			return nil, fmt.Errorf("failed to decode citations: %w", err)
		}
	}
	p.GenerationTrigger = core.GenerationTrigger(trigger)
	p.DurationType = core.DurationType(durationType)
	p.Status = core.ProposalStatus(status)
	return &p, nil
}

func marshalProposalJSON(p *core.TopicProposal) ([]byte, []byte, error) {
	talkingPoints := p.TalkingPoints
	if talkingPoints == nil {
		talkingPoints = []core.TalkingPoint{}
	}
	citations := p.Citations
	if citations == nil {
		citations = []core.ResearchCitation{}
	}

	tp, err := json.Marshal(talkingPoints)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode talking points: %w", err)
	}
	cj, err := json.Marshal(citations)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode citations: %w", err)
	}
	return tp, cj, nil
}

func statusStrings(statuses []core.ProposalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
