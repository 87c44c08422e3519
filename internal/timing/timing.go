package timing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatAnalysis = "donor_analysis"
	StatJourney  = "journey_generation"
)

// Predictions are averaged over this many recent runs of a stat type.
const predictionWindow = 50

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Recorder keeps per-run processing durations and predicts new ones from
// them.
type Recorder struct {
	conn pgxIConn
}

func New(conn pgxIConn) *Recorder {
	return &Recorder{conn: conn}
}

func (r *Recorder) AddProcessingTime(
	ctx context.Context,
	organizationID string,
	amount int,
	duration time.Duration,
	statType string,
) error {
	if amount <= 0 {
		return nil
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO process_stats (organization_id, stat_type, amount, duration_ms)
		VALUES ($1, $2, $3, $4)
	`, organizationID, statType, amount, duration.Milliseconds())
	return err
}

// PredictProcessingTime scales the recent per-item average to amount. It
// returns 0 when nothing has been recorded yet.
func (r *Recorder) PredictProcessingTime(ctx context.Context, amount int, statType string) (time.Duration, error) {
	if amount <= 0 {
		return 0, nil
	}
	var perItemMs float64
	err := r.conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_ms)::float8 / NULLIF(SUM(amount), 0), 0)
		FROM (
			SELECT duration_ms, amount
			FROM process_stats
			WHERE stat_type = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
	`, statType, predictionWindow).Scan(&perItemMs)
	if err != nil {
		return 0, err
	}
	return time.Duration(perItemMs*float64(amount)) * time.Millisecond, nil
}
