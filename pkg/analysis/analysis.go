// Package analysis runs the donor lifecycle pipeline for a batch of donors:
// classify or transition each donor, predict next actions, persist the
// outcome and hand the predictions to the to-do materializer.
package analysis

import (
	"context"
	"errors"

	"github.com/givance/webserver-sub009/pkg/lifecycle"
	"github.com/givance/webserver-sub009/pkg/store"
)

var (
	// ErrJourneyNotFound aborts a whole batch.
	ErrJourneyNotFound = errors.New("analysis: organization has no donor journey")
	// ErrDonorNotFound fails a single donor.
	ErrDonorNotFound = errors.New("analysis: donor not found")
	// ErrUnknownStage fails a single donor whose stored stage name or
	// classified stage id does not exist in the journey.
	ErrUnknownStage = lifecycle.ErrUnknownStage
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DonorResult is the outcome for one requested donor. Stage is the donor's
// stage name after the run, nil when the donor never got one.
type DonorResult struct {
	DonorID string                      `json:"donorId"`
	Status  Status                      `json:"status"`
	Stage   *string                     `json:"stage"`
	Actions []lifecycle.PredictedAction `json:"actions"`
	Error   string                      `json:"error,omitempty"`

	Err error `json:"-"`
}

// BatchResult covers every distinct donor id of a request, in request order.
type BatchResult struct {
	OrganizationID string        `json:"organizationId"`
	RequestedBy    string        `json:"requestedBy"`
	Results        []DonorResult `json:"results"`
	SuccessCount   int           `json:"successCount"`
	ErrorCount     int           `json:"errorCount"`
}

// Lifecycle is the set of decisions the orchestrator sequences per donor.
// *lifecycle.Service implements it.
type Lifecycle interface {
	ClassifyStage(ctx context.Context, in lifecycle.ClassificationInput) (*lifecycle.ClassificationResult, error)
	CheckTransition(ctx context.Context, in lifecycle.TransitionInput) (*lifecycle.TransitionResult, error)
	PredictActions(ctx context.Context, in lifecycle.PredictionInput) (*lifecycle.PredictionResult, error)
}

// Config bounds the work done per batch and per donor.
type Config struct {
	// ParallelDonors is the number of donors analyzed at the same time.
	ParallelDonors int
	// CommunicationLimit caps the communication threads fed to the model.
	CommunicationLimit int
	// DonationLimit caps the donations fed to the model.
	DonationLimit int
}

func DefaultConfig() Config {
	return Config{
		ParallelDonors:     5,
		CommunicationLimit: 10,
		DonationLimit:      20,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.ParallelDonors <= 0 {
		c.ParallelDonors = d.ParallelDonors
	}
	if c.CommunicationLimit <= 0 {
		c.CommunicationLimit = d.CommunicationLimit
	}
	if c.DonationLimit <= 0 {
		c.DonationLimit = d.DonationLimit
	}
	return c
}

// Orchestrator is safe for concurrent use; it keeps no state between calls.
type Orchestrator struct {
	journeys  store.JourneyStore
	donors    store.DonorStore
	todos     store.TodoMaterializer
	lifecycle Lifecycle
	cfg       Config
}

type Option func(*Orchestrator)

func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg.normalized()
	}
}

func NewOrchestrator(
	journeys store.JourneyStore,
	donors store.DonorStore,
	todos store.TodoMaterializer,
	lc Lifecycle,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		journeys:  journeys,
		donors:    donors,
		todos:     todos,
		lifecycle: lc,
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
