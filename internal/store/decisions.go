// ABOUTME: Approval decision records: append and filtered listing
// ABOUTME: Implements approval.Recorder so gates can log every resolution

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/talkai-gateway/internal/approval"
)

// ErrInvalidDecision indicates a decision record is missing required fields.
var ErrInvalidDecision = errors.New("invalid decision")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DecisionFilter narrows ListDecisions.
type DecisionFilter struct {
	SessionID *string
	Outcome   *approval.Outcome
	Since     *time.Time // decided at or after
	Limit     int        // default 100, max 1000
}

var _ approval.Recorder = (*SQLiteStore)(nil)

// RecordDecision appends d to the ledger.
// Generates ID and timestamps if not set.
func (s *SQLiteStore) RecordDecision(ctx context.Context, d *approval.Decision) error {
	if d == nil || d.SessionID == "" || d.Outcome == "" {
		return ErrInvalidDecision
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	if d.RequestedAt.IsZero() {
		d.RequestedAt = d.DecidedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_decisions (decision_id, session_id, command, outcome, requested_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.SessionID,
		d.Command,
		string(d.Outcome),
		d.RequestedAt.UTC().Format(timeLayout),
		d.DecidedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}

	s.logger.Debug("recorded approval decision",
		"id", d.ID,
		"session_id", d.SessionID,
		"outcome", d.Outcome,
	)
	return nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const decisionQuery = `
	SELECT decision_id, session_id, command, outcome, requested_at, decided_at
	FROM approval_decisions
	WHERE (? IS NULL OR session_id = ?)
	  AND (? IS NULL OR outcome = ?)
	  AND (? IS NULL OR decided_at >= ?)
	ORDER BY decided_at DESC
	LIMIT ?
`

// ListDecisions returns matching decisions, newest first.
func (s *SQLiteStore) ListDecisions(ctx context.Context, f DecisionFilter) ([]approval.Decision, error) {
	var outcome, since *string
	if f.Outcome != nil {
		o := string(*f.Outcome)
		outcome = &o
	}
	if f.Since != nil {
		t := f.Since.UTC().Format(timeLayout)
		since = &t
	}

	rows, err := s.db.QueryContext(ctx, decisionQuery,
		f.SessionID, f.SessionID,
		outcome, outcome,
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	decisions := []approval.Decision{}
	for rows.Next() {
		var d approval.Decision
		var outcomeStr, requestedStr, decidedStr string
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Command, &outcomeStr, &requestedStr, &decidedStr); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		d.Outcome = approval.Outcome(outcomeStr)
		if d.RequestedAt, err = time.Parse(timeLayout, requestedStr); err != nil {
			return nil, fmt.Errorf("parsing requested_at: %w", err)
		}
		if d.DecidedAt, err = time.Parse(timeLayout, decidedStr); err != nil {
			return nil, fmt.Errorf("parsing decided_at: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}
	return decisions, nil
}
