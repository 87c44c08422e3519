package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/lifecycle"
	"github.com/givance/webserver-sub009/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

func (s *Store) GetDonorProfile(ctx context.Context, donorID string, organizationID string) (*store.DonorProfile, error) {
	p := store.DonorProfile{}
	err := s.conn.QueryRow(ctx,
		`SELECT id, organization_id, name, email, current_stage_name, classification_reasoning
		 FROM donors WHERE id = $1 AND organization_id = $2`,
		donorID, organizationID,
	).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Email, &p.CurrentStageName, &p.ClassificationReasoning)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("donor: query profile: %w", err)
	}
	return &p, nil
}

// GetDonorCommunicationHistory returns the donor's most recently active
// threads, newest first, each with its messages in chronological order.
func (s *Store) GetDonorCommunicationHistory(ctx context.Context, donorID string, limit int) ([]lifecycle.CommunicationThread, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT t.id, t.channel, t.created_at
		 FROM communication_threads t
		 LEFT JOIN LATERAL (
		     SELECT max(m.created_at) AS last_at FROM communication_messages m WHERE m.thread_id = t.id
		 ) lm ON true
		 WHERE t.donor_id = $1
		 ORDER BY coalesce(lm.last_at, t.created_at) DESC
		 LIMIT $2`,
		donorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("donor: query threads: %w", err)
	}
	defer rows.Close()

	threads := make([]lifecycle.CommunicationThread, 0, limit)
	byID := make(map[string]int, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var t lifecycle.CommunicationThread
		if err := rows.Scan(&t.ID, &t.Channel, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("donor: scan thread: %w", err)
		}
		t.Messages = []lifecycle.CommunicationMessage{}
		byID[t.ID] = len(threads)
		ids = append(ids, t.ID)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("donor: rows threads: %w", err)
	}
	if len(ids) == 0 {
		return threads, nil
	}

	rows, err = s.conn.Query(ctx,
		`SELECT thread_id, id, content, from_donor, created_at
		 FROM communication_messages WHERE thread_id = ANY($1)
		 ORDER BY created_at`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("donor: query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			threadID string
			m        lifecycle.CommunicationMessage
		)
		if err := rows.Scan(&threadID, &m.ID, &m.Content, &m.FromDonor, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("donor: scan message: %w", err)
		}
		if i, ok := byID[threadID]; ok {
			threads[i].Messages = append(threads[i].Messages, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("donor: rows messages: %w", err)
	}

	return threads, nil
}

func (s *Store) GetDonorDonationHistory(ctx context.Context, donorID string, limit int) ([]lifecycle.Donation, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, amount_cents, currency, donated_at, coalesce(project_name, '')
		 FROM donations WHERE donor_id = $1
		 ORDER BY donated_at DESC
		 LIMIT $2`,
		donorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("donor: query donations: %w", err)
	}
	defer rows.Close()

	donations := make([]lifecycle.Donation, 0, limit)
	for rows.Next() {
		var d lifecycle.Donation
		if err := rows.Scan(&d.ID, &d.AmountCents, &d.Currency, &d.Date, &d.ProjectName); err != nil {
			return nil, fmt.Errorf("donor: scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("donor: rows donations: %w", err)
	}
	return donations, nil
}

func (s *Store) PersistDonorStage(ctx context.Context, donorID string, update store.StageUpdate) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE donors SET current_stage_name = $2, classification_reasoning = $3, updated_at = now()
		 WHERE id = $1`,
		donorID,
		util.SanitizePostgresText(update.CurrentStageName),
		util.SanitizePostgresText(update.ClassificationReasoning),
	)
	if err != nil {
		return fmt.Errorf("donor: update stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donor: update stage: donor %s not found", donorID)
	}
	return nil
}

func (s *Store) PersistDonorPredictedActions(ctx context.Context, donorID string, actions []lifecycle.PredictedAction) error {
	if actions == nil {
		actions = []lifecycle.PredictedAction{}
	}
	clean := make([]lifecycle.PredictedAction, len(actions))
	for i, a := range actions {
		clean[i] = sanitizeAction(a)
	}
	payload, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("donor: encode predicted actions: %w", err)
	}

	tag, err := s.conn.Exec(ctx,
		`UPDATE donors SET predicted_actions = $2, updated_at = now() WHERE id = $1`,
		donorID, payload,
	)
	if err != nil {
		return fmt.Errorf("donor: update predicted actions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donor: update predicted actions: donor %s not found", donorID)
	}
	return nil
}

func sanitizeAction(a lifecycle.PredictedAction) lifecycle.PredictedAction {
	a.Type = util.SanitizePostgresText(a.Type)
	a.Description = util.SanitizePostgresText(a.Description)
	a.Explanation = util.SanitizePostgresText(a.Explanation)
	a.Instruction = util.SanitizePostgresText(a.Instruction)
	return a
}
