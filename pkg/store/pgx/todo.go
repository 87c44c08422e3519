package pgx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/givance/webserver-sub009/pkg/lifecycle"
	"github.com/givance/webserver-sub009/pkg/logger"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"
)

const (
	todoPending    = "pending"
	todoCompleted  = "completed"
	todoDismissed  = "dismissed"
	todoSuperseded = "superseded"

	todoSourcePredicted = "predicted"
)

type existingTodo struct {
	ID        string
	Key       string
	Status    string
	Embedding []float32
}

type todoWrite struct {
	// Index points into the action list the plan was made for.
	Index int
	// ID is empty for inserts.
	ID  string
	Key string
}

type todoPlan struct {
	Updates   []todoWrite
	Inserts   []todoWrite
	Supersede []string
}

// MaterializeTodosFromPredictedActions reconciles the donor's predicted to-dos
// with actions, the complete current prediction list. Matching pending to-dos
// are refreshed, new actions are inserted, pending predicted to-dos that no
// longer match any action are superseded. Completed and dismissed to-dos are
// never modified, and an action matching one of them is not re-created.
func (s *Store) MaterializeTodosFromPredictedActions(
	ctx context.Context,
	donorID string,
	organizationID string,
	actions []lifecycle.PredictedAction,
) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("todo: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := loadPredictedTodos(ctx, tx, donorID, organizationID)
	if err != nil {
		return err
	}

	clean := make([]lifecycle.PredictedAction, len(actions))
	for i, a := range actions {
		clean[i] = sanitizeAction(a)
	}

	embeddings := s.embedUnmatched(ctx, existing, clean)
	plan := planTodoReconcile(existing, clean, embeddings, s.threshold)

	for _, u := range plan.Updates {
		a := clean[u.Index]
		if _, err := tx.Exec(ctx,
			`UPDATE todos
			 SET type = $2, description = $3, explanation = $4, instruction = $5,
			     scheduled_date = $6, dedupe_key = $7, embedding = coalesce($8, embedding), updated_at = now()
			 WHERE id = $1 AND status = 'pending'`,
			u.ID, a.Type, a.Description, a.Explanation, a.Instruction,
			scheduledDate(a.ScheduledDate), u.Key, vectorOrNil(embeddings, u.Index),
		); err != nil {
			return fmt.Errorf("todo: update %s: %w", u.ID, err)
		}
	}

	for _, in := range plan.Inserts {
		a := clean[in.Index]
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO todos
			 (id, organization_id, donor_id, source, status, type, description, explanation, instruction,
			  scheduled_date, dedupe_key, embedding)
			 VALUES ($1, $2, $3, 'predicted', 'pending', $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (donor_id, dedupe_key) WHERE status = 'pending' DO NOTHING`,
			id, organizationID, donorID, a.Type, a.Description, a.Explanation, a.Instruction,
			scheduledDate(a.ScheduledDate), in.Key, vectorOrNil(embeddings, in.Index),
		); err != nil {
			return fmt.Errorf("todo: insert: %w", err)
		}
	}

	if len(plan.Supersede) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE todos SET status = 'superseded', updated_at = now()
			 WHERE id = ANY($1) AND status = 'pending'`,
			plan.Supersede,
		); err != nil {
			return fmt.Errorf("todo: supersede: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("todo: commit: %w", err)
	}

	logger.Debug("[Store] Todos reconciled",
		"donor_id", donorID,
		"updated", len(plan.Updates),
		"inserted", len(plan.Inserts),
		"superseded", len(plan.Supersede),
	)
	return nil
}

func loadPredictedTodos(ctx context.Context, tx pgxv5.Tx, donorID, organizationID string) ([]existingTodo, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, dedupe_key, status, embedding FROM todos
		 WHERE donor_id = $1 AND organization_id = $2 AND source = $3 AND status <> $4
		 ORDER BY created_at
		 FOR UPDATE`,
		donorID, organizationID, todoSourcePredicted, todoSuperseded,
	)
	if err != nil {
		return nil, fmt.Errorf("todo: query existing: %w", err)
	}
	defer rows.Close()

	var out []existingTodo
	for rows.Next() {
		var (
			t   existingTodo
			vec *pgvector.Vector
		)
		if err := rows.Scan(&t.ID, &t.Key, &t.Status, &vec); err != nil {
			return nil, fmt.Errorf("todo: scan existing: %w", err)
		}
		if vec != nil {
			t.Embedding = vec.Slice()
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("todo: rows existing: %w", err)
	}
	return out, nil
}

// embedUnmatched embeds the actions without an exact key match. Embedding
// failures degrade to exact matching.
func (s *Store) embedUnmatched(ctx context.Context, existing []existingTodo, actions []lifecycle.PredictedAction) [][]float32 {
	if s.embedder == nil || len(actions) == 0 {
		return nil
	}
	keys := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		keys[t.Key] = struct{}{}
	}

	out := make([][]float32, len(actions))
	for i, a := range actions {
		if _, ok := keys[todoKey(a)]; ok {
			continue
		}
		emb, err := s.embedder.GenerateEmbedding(ctx, []byte(todoEmbeddingText(a)))
		if err != nil {
			logger.Warn("[Store] Failed to embed predicted action, using exact matching", "err", err)
			return nil
		}
		out[i] = emb
	}
	return out
}

// planTodoReconcile decides what happens to every action and every existing
// predicted to-do. Actions are matched by key first, then by embedding
// similarity against the to-dos left over. Each to-do matches at most one
// action, duplicate actions collapse onto the first.
func planTodoReconcile(
	existing []existingTodo,
	actions []lifecycle.PredictedAction,
	embeddings [][]float32,
	threshold float64,
) todoPlan {
	plan := todoPlan{}

	byKey := make(map[string]int, len(existing))
	for i, t := range existing {
		j, ok := byKey[t.Key]
		if !ok || (existing[j].Status != todoPending && t.Status == todoPending) {
			byKey[t.Key] = i
		}
	}
	claimed := make([]bool, len(existing))
	seen := make(map[string]struct{}, len(actions))
	pending := make([]int, 0, len(actions))

	claim := func(actionIdx, todoIdx int, key string) {
		claimed[todoIdx] = true
		t := existing[todoIdx]
		if t.Status == todoPending {
			plan.Updates = append(plan.Updates, todoWrite{Index: actionIdx, ID: t.ID, Key: key})
		}
	}

	for i, a := range actions {
		key := todoKey(a)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if j, ok := byKey[key]; ok && !claimed[j] {
			claim(i, j, key)
			continue
		}
		pending = append(pending, i)
	}

	for _, i := range pending {
		key := todoKey(actions[i])
		best, bestScore := -1, threshold
		if i < len(embeddings) && embeddings[i] != nil {
			for j, t := range existing {
				if claimed[j] || t.Embedding == nil {
					continue
				}
				if score := cosineSimilarity(embeddings[i], t.Embedding); score >= bestScore {
					best, bestScore = j, score
				}
			}
		}
		if best >= 0 {
			claim(i, best, key)
			continue
		}
		plan.Inserts = append(plan.Inserts, todoWrite{Index: i, Key: key})
	}

	for j, t := range existing {
		if !claimed[j] && t.Status == todoPending {
			plan.Supersede = append(plan.Supersede, t.ID)
		}
	}
	return plan
}

// todoKey identifies an action independent of case and whitespace.
func todoKey(a lifecycle.PredictedAction) string {
	sum := sha256.Sum256([]byte(normalizeKeyPart(a.Type) + "|" + normalizeKeyPart(a.Description)))
	return hex.EncodeToString(sum[:16])
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func todoEmbeddingText(a lifecycle.PredictedAction) string {
	return a.Type + ": " + a.Description
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func scheduledDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return &d
}

func vectorOrNil(embeddings [][]float32, i int) *pgvector.Vector {
	if i >= len(embeddings) || embeddings[i] == nil {
		return nil
	}
	v := pgvector.NewVector(embeddings[i])
	return &v
}
