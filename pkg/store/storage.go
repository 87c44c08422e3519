// Package store declares the persistence collaborators of the donor analysis
// pipeline. pkg/store/pgx implements them on PostgreSQL.
package store

import (
	"context"

	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/lifecycle"
)

// DonorProfile is the donor record as far as analysis is concerned.
// CurrentStageName is nil until the donor has been classified once.
type DonorProfile struct {
	ID                      string
	OrganizationID          string
	Name                    string
	Email                   string
	CurrentStageName        *string
	ClassificationReasoning *string
}

// StageUpdate is written after a successful classification or transition.
type StageUpdate struct {
	CurrentStageName        string
	ClassificationReasoning string
}

// JourneyStore holds one journey graph per organization.
type JourneyStore interface {
	// GetDonorJourneyGraph returns nil, nil when the organization has no graph.
	GetDonorJourneyGraph(ctx context.Context, organizationID string) (*journey.Graph, error)
	// ReplaceDonorJourneyGraph swaps the whole graph and the description it
	// was generated from.
	ReplaceDonorJourneyGraph(ctx context.Context, organizationID string, description string, graph *journey.Graph) error
}

// DonorStore reads donor context and writes analysis results.
type DonorStore interface {
	// GetDonorProfile returns nil, nil when the donor does not exist in the
	// organization.
	GetDonorProfile(ctx context.Context, donorID string, organizationID string) (*DonorProfile, error)
	// GetDonorCommunicationHistory returns at most limit threads, most recent first.
	GetDonorCommunicationHistory(ctx context.Context, donorID string, limit int) ([]lifecycle.CommunicationThread, error)
	// GetDonorDonationHistory returns at most limit donations, most recent first.
	GetDonorDonationHistory(ctx context.Context, donorID string, limit int) ([]lifecycle.Donation, error)
	PersistDonorStage(ctx context.Context, donorID string, update StageUpdate) error
	// PersistDonorPredictedActions overwrites the stored predictions.
	PersistDonorPredictedActions(ctx context.Context, donorID string, actions []lifecycle.PredictedAction) error
}

// TodoMaterializer turns the complete current prediction list of a donor into
// to-do records. Calling it again with the same list must not create
// duplicates.
type TodoMaterializer interface {
	MaterializeTodosFromPredictedActions(ctx context.Context, donorID string, organizationID string, actions []lifecycle.PredictedAction) error
}
