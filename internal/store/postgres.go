package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-crm/leadrouter/internal/agentstats"
	"github.com/velora-crm/leadrouter/internal/proposal"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const proposalColumns = `id, org_id, lead_id, board_id, item_id,
	agent_id, agent_name, score, confidence, alternates, explanation,
	status, mode, idempotency_key,
	applied_agent_id, applied_at, apply_succeeded, apply_error,
	decided_by, rejected_by, reason,
	created_at, updated_at, expires_at`

// CreateOrGet inserts the proposal unless one already exists for the same
// (org, idempotency key), in which case the stored record is returned
// unchanged and created=false. An APPLIED duplicate stays APPLIED.
func (s *PostgresStore) CreateOrGet(ctx context.Context, p *proposal.Proposal) (*proposal.Proposal, bool, error) {
	alternatesJSON, _ := json.Marshal(p.Alternates)
	explanationJSON, _ := json.Marshal(p.Explanation)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO routing_proposals (id, org_id, lead_id, board_id, item_id,
			agent_id, agent_name, score, confidence, alternates, explanation,
			status, mode, idempotency_key,
			decided_by, reason,
			created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (org_id, idempotency_key) DO NOTHING`,
		p.ID, p.OrgID, p.LeadID, p.BoardID, p.ItemID,
		p.AgentID, p.AgentName, p.Score, p.Confidence, alternatesJSON, explanationJSON,
		p.Status, p.Mode, p.IdempotencyKey,
		p.DecidedBy, p.Reason,
		p.CreatedAt, p.UpdatedAt, p.ExpiresAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert proposal: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return p, true, nil
	}

	existing, err := s.GetByKey(ctx, p.OrgID, p.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+proposalColumns+`
		FROM routing_proposals WHERE id = $1`, id)
	return scanProposal(row)
}

func (s *PostgresStore) GetByKey(ctx context.Context, orgID, idempotencyKey string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+proposalColumns+`
		FROM routing_proposals WHERE org_id = $1 AND idempotency_key = $2`, orgID, idempotencyKey)
	return scanProposal(row)
}

func (s *PostgresStore) Update(ctx context.Context, p *proposal.Proposal) error {
	alternatesJSON, _ := json.Marshal(p.Alternates)
	explanationJSON, _ := json.Marshal(p.Explanation)

	tag, err := s.pool.Exec(ctx, `
		UPDATE routing_proposals SET
			agent_id = $2, agent_name = $3, score = $4, confidence = $5,
			alternates = $6, explanation = $7,
			status = $8, mode = $9,
			applied_agent_id = $10, applied_at = $11, apply_succeeded = $12, apply_error = $13,
			decided_by = $14, rejected_by = $15, reason = $16,
			updated_at = $17, expires_at = $18
		WHERE id = $1`,
		p.ID, p.AgentID, p.AgentName, p.Score, p.Confidence,
		alternatesJSON, explanationJSON,
		p.Status, p.Mode,
		p.AppliedAgentID, p.AppliedAt, p.ApplySucceeded, p.ApplyError,
		p.DecidedBy, p.RejectedBy, p.Reason,
		p.UpdatedAt, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ProposalFilter) ([]*proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM routing_proposals WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.OrgID != "" {
		n++
		query += fmt.Sprintf(" AND org_id = $%d", n)
		args = append(args, filter.OrgID)
	}
	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.LeadID != "" {
		n++
		query += fmt.Sprintf(" AND lead_id = $%d", n)
		args = append(args, filter.LeadID)
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *PostgresStore) ListExpirable(ctx context.Context, now time.Time) ([]*proposal.Proposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+proposalColumns+`
		FROM routing_proposals
		WHERE status = 'proposed' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *PostgresStore) Stats(ctx context.Context, orgID string) (*ProposalStats, error) {
	stats := &ProposalStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'proposed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'applied' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'overridden' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'writeback_failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'expired' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'applied' AND decided_by = $2 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(score) FILTER (WHERE status = 'applied'), 0)
		FROM routing_proposals WHERE org_id = $1`, orgID, proposal.ActorAuto,
	).Scan(&stats.TotalProposed, &stats.TotalApproved, &stats.TotalApplied,
		&stats.TotalRejected, &stats.TotalOverridden, &stats.TotalWritebackFailed,
		&stats.TotalExpired, &stats.TotalAutoApplied, &stats.AvgAppliedScore)
	if err == nil && stats.TotalApplied > 0 {
		stats.AutoApplyRatio = float64(stats.TotalAutoApplied) / float64(stats.TotalApplied)
	}
	return stats, err
}

// --- Lead history (agentstats.LeadHistory) ---

func (s *PostgresStore) ClosedLeads(ctx context.Context, orgID, agentID string, since time.Time) ([]agentstats.HistoricalLead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT lead_id, industry, deal_size, converted, closed_at
		FROM crm_leads
		WHERE org_id = $1 AND agent_id = $2 AND closed_at IS NOT NULL AND closed_at >= $3
		ORDER BY closed_at ASC`, orgID, agentID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []agentstats.HistoricalLead
	for rows.Next() {
		var l agentstats.HistoricalLead
		var industry sql.NullString
		if err := rows.Scan(&l.LeadID, &industry, &l.DealSize, &l.Converted, &l.ClosedAt); err != nil {
			return nil, err
		}
		if industry.Valid {
			l.Industry = industry.String
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *PostgresStore) ActiveLeadCount(ctx context.Context, orgID, agentID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM crm_leads
		WHERE org_id = $1 AND agent_id = $2 AND closed_at IS NULL`, orgID, agentID,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) AssignedCountSince(ctx context.Context, orgID, agentID string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM crm_leads
		WHERE org_id = $1 AND agent_id = $2 AND assigned_at >= $3`, orgID, agentID, since,
	).Scan(&count)
	return count, err
}

func scanProposal(row pgx.Row) (*proposal.Proposal, error) {
	p := &proposal.Proposal{}
	var boardID, itemID, agentID, agentName sql.NullString
	var appliedAgentID, applyError, decidedBy, rejectedBy, reason sql.NullString
	var alternatesJSON, explanationJSON []byte

	err := row.Scan(
		&p.ID, &p.OrgID, &p.LeadID, &boardID, &itemID,
		&agentID, &agentName, &p.Score, &p.Confidence, &alternatesJSON, &explanationJSON,
		&p.Status, &p.Mode, &p.IdempotencyKey,
		&appliedAgentID, &p.AppliedAt, &p.ApplySucceeded, &applyError,
		&decidedBy, &rejectedBy, &reason,
		&p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.BoardID = boardID.String
	p.ItemID = itemID.String
	p.AgentID = agentID.String
	p.AgentName = agentName.String
	p.AppliedAgentID = appliedAgentID.String
	p.ApplyError = applyError.String
	p.DecidedBy = decidedBy.String
	p.RejectedBy = rejectedBy.String
	p.Reason = reason.String
	if alternatesJSON != nil {
		_ = json.Unmarshal(alternatesJSON, &p.Alternates)
	}
	if explanationJSON != nil {
		_ = json.Unmarshal(explanationJSON, &p.Explanation)
	}
	return p, nil
}

func scanProposals(rows pgx.Rows) ([]*proposal.Proposal, error) {
	var proposals []*proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}
