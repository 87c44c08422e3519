// Package pgx implements the pkg/store interfaces on PostgreSQL with pgx and
// pgvector. The schema lives in the migrations directory.
package pgx

import (
	"context"

	"github.com/givance/webserver-sub009/pkg/ai"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphArchiver keeps a copy of a journey graph before it is replaced.
type GraphArchiver interface {
	ArchiveJourneyGraph(ctx context.Context, organizationID string, graph *journey.Graph) (string, error)
}

// DefaultSimilarityThreshold is the cosine similarity above which a predicted
// action is considered the same to-do as an existing one.
const DefaultSimilarityThreshold = 0.9

// Store implements store.JourneyStore, store.DonorStore and
// store.TodoMaterializer.
type Store struct {
	conn      pgxIConn
	archiver  GraphArchiver
	embedder  ai.Embedder
	threshold float64
}

var (
	_ store.JourneyStore     = (*Store)(nil)
	_ store.DonorStore       = (*Store)(nil)
	_ store.TodoMaterializer = (*Store)(nil)
)

type StoreOption func(*Store)

// WithArchiver archives the previous journey graph on every replace.
func WithArchiver(a GraphArchiver) StoreOption {
	return func(s *Store) {
		s.archiver = a
	}
}

// WithEmbedder enables semantic matching of predicted actions to existing
// to-dos. Without it only exact matches are reconciled.
func WithEmbedder(e ai.Embedder) StoreOption {
	return func(s *Store) {
		s.embedder = e
	}
}

func WithSimilarityThreshold(t float64) StoreOption {
	return func(s *Store) {
		if t > 0 && t <= 1 {
			s.threshold = t
		}
	}
}

func NewStore(conn pgxIConn, opts ...StoreOption) *Store {
	s := &Store{
		conn:      conn,
		threshold: DefaultSimilarityThreshold,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}
