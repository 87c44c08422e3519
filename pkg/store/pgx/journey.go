package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/logger"

	pgxv5 "github.com/jackc/pgx/v5"
)

// GetDonorJourneyGraph returns nil, nil when the organization has no journey.
func (s *Store) GetDonorJourneyGraph(ctx context.Context, organizationID string) (*journey.Graph, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT true FROM journeys WHERE organization_id = $1`, organizationID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("journey: query journey: %w", err)
	}

	g := journey.Empty()

	rows, err := s.conn.Query(ctx,
		`SELECT stage_id, label, properties FROM journey_stages
		 WHERE organization_id = $1 ORDER BY position`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("journey: query stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st    journey.Stage
			props []byte
		)
		if err := rows.Scan(&st.ID, &st.Label, &props); err != nil {
			return nil, fmt.Errorf("journey: scan stage: %w", err)
		}
		if err := json.Unmarshal(props, &st.Properties); err != nil {
			return nil, fmt.Errorf("journey: decode stage %s: %w", st.ID, err)
		}
		g.Nodes = append(g.Nodes, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journey: rows stages: %w", err)
	}

	rows, err = s.conn.Query(ctx,
		`SELECT transition_id, source_stage_id, target_stage_id, label, properties FROM journey_transitions
		 WHERE organization_id = $1 ORDER BY position`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("journey: query transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tr    journey.Transition
			props []byte
		)
		if err := rows.Scan(&tr.ID, &tr.Source, &tr.Target, &tr.Label, &props); err != nil {
			return nil, fmt.Errorf("journey: scan transition: %w", err)
		}
		if err := json.Unmarshal(props, &tr.Properties); err != nil {
			return nil, fmt.Errorf("journey: decode transition %s: %w", tr.ID, err)
		}
		g.Edges = append(g.Edges, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journey: rows transitions: %w", err)
	}

	return g, nil
}

// ReplaceDonorJourneyGraph validates graph and replaces the stored journey of
// the organization in one transaction. When an archiver is configured the
// previous graph is archived first; archive failures are only logged.
func (s *Store) ReplaceDonorJourneyGraph(
	ctx context.Context,
	organizationID string,
	description string,
	graph *journey.Graph,
) error {
	if err := journey.Validate(graph); err != nil {
		return err
	}

	if s.archiver != nil {
		s.archivePrevious(ctx, organizationID)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journey: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO journeys (organization_id, description, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (organization_id) DO UPDATE SET description = EXCLUDED.description, updated_at = now()`,
		organizationID, util.SanitizePostgresText(description),
	); err != nil {
		return fmt.Errorf("journey: upsert journey: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM journey_transitions WHERE organization_id = $1`, organizationID); err != nil {
		return fmt.Errorf("journey: delete transitions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM journey_stages WHERE organization_id = $1`, organizationID); err != nil {
		return fmt.Errorf("journey: delete stages: %w", err)
	}

	for i, st := range graph.Nodes {
		props, err := json.Marshal(sanitizeStageProperties(st.Properties))
		if err != nil {
			return fmt.Errorf("journey: encode stage %s: %w", st.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO journey_stages (organization_id, stage_id, position, label, properties)
			 VALUES ($1, $2, $3, $4, $5)`,
			organizationID, st.ID, i, util.SanitizePostgresText(st.Label), props,
		); err != nil {
			return fmt.Errorf("journey: insert stage %s: %w", st.ID, err)
		}
	}

	for i, tr := range graph.Edges {
		p := tr.Properties
		p.Description = util.SanitizePostgresText(p.Description)
		props, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("journey: encode transition %s: %w", tr.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO journey_transitions
			 (organization_id, transition_id, position, source_stage_id, target_stage_id, label, properties)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			organizationID, tr.ID, i, tr.Source, tr.Target, util.SanitizePostgresText(tr.Label), props,
		); err != nil {
			return fmt.Errorf("journey: insert transition %s: %w", tr.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("journey: commit: %w", err)
	}

	logger.Info("[Store] Journey replaced",
		"organization_id", organizationID,
		"stages", len(graph.Nodes),
		"transitions", len(graph.Edges),
	)
	return nil
}

func (s *Store) archivePrevious(ctx context.Context, organizationID string) {
	prev, err := s.GetDonorJourneyGraph(ctx, organizationID)
	if err != nil {
		logger.Warn("[Store] Failed to load journey for archiving", "organization_id", organizationID, "err", err)
		return
	}
	if prev == nil {
		return
	}
	key, err := s.archiver.ArchiveJourneyGraph(ctx, organizationID, prev)
	if err != nil {
		logger.Warn("[Store] Failed to archive journey", "organization_id", organizationID, "err", err)
		return
	}
	logger.Debug("[Store] Journey archived", "organization_id", organizationID, "key", key)
}

func sanitizeStageProperties(p journey.StageProperties) journey.StageProperties {
	p.Description = util.SanitizePostgresText(p.Description)
	if p.Actions != nil {
		actions := make([]string, len(p.Actions))
		for i, a := range p.Actions {
			actions[i] = util.SanitizePostgresText(a)
		}
		p.Actions = actions
	}
	return p
}
