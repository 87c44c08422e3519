// Package lifecycle holds the three LLM backed decisions of a donor analysis:
// classifying a donor without a stage, checking whether a staged donor moves
// along an outgoing transition, and predicting next actions. The services
// only read their inputs and call the model; persisting results is up to the
// caller.
package lifecycle

import (
	"errors"
	"time"

	"github.com/givance/webserver-sub009/pkg/ai"
	"github.com/givance/webserver-sub009/pkg/journey"
)

var (
	// ErrMalformedResponse marks model output that could not be parsed into
	// the expected shape. Retrying the prompt may help.
	ErrMalformedResponse = errors.New("lifecycle: malformed model response")
	// ErrUnknownStage marks a stage id or label that does not exist in the
	// journey graph. The graph or the donor record has to be fixed.
	ErrUnknownStage = errors.New("lifecycle: unknown stage")
)

// DonorInfo is the read-only donor snapshot given to the model.
type DonorInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommunicationThread is one conversation with the donor.
type CommunicationThread struct {
	ID        string                 `json:"id"`
	Channel   string                 `json:"channel"`
	CreatedAt time.Time              `json:"createdAt"`
	Messages  []CommunicationMessage `json:"messages"`
}

type CommunicationMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	FromDonor bool      `json:"fromDonor"`
	CreatedAt time.Time `json:"createdAt"`
}

// Donation is a single gift. Amount is in minor currency units.
type Donation struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	Date        time.Time `json:"date"`
	ProjectName string    `json:"projectName,omitempty"`
}

// PredictedAction is a recommended next step. ScheduledDate is YYYY-MM-DD
// or empty.
type PredictedAction struct {
	Type          string `json:"type"`
	Description   string `json:"description"`
	Explanation   string `json:"explanation"`
	Instruction   string `json:"instruction"`
	ScheduledDate string `json:"scheduledDate,omitempty"`
}

// Evidence is the context every decision is based on. Journey is indexed once
// per analysis run and shared by all donors of that run.
type Evidence struct {
	Donor          DonorInfo
	Journey        *journey.Index
	Communications []CommunicationThread
	Donations      []Donation
}

type ClassificationInput struct {
	Evidence
}

type ClassificationResult struct {
	DonorID           string
	ClassifiedStageID string
	Reasoning         string
}

type TransitionInput struct {
	Evidence
	CurrentStageID string
}

// TransitionResult is the outcome of a transition check. NextStageID is nil
// unless the model picked the target of one of the current stage's
// outgoing transitions.
type TransitionResult struct {
	CanTransition bool
	NextStageID   *string
	Reasoning     string
}

type PredictionInput struct {
	Evidence
	CurrentStageID string
}

type PredictionResult struct {
	PredictedActions []PredictedAction
}

// Service runs the lifecycle decisions against one ai.Client.
type Service struct {
	client       ai.Client
	classifyOpts []ai.GenerateOption
	predictOpts  []ai.GenerateOption
	now          func() time.Time
}

type Option func(*Service)

// WithClassificationModel selects the model for classification and
// transition checks.
func WithClassificationModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.classifyOpts = append(s.classifyOpts, ai.WithModel(model))
		}
	}
}

// WithPredictionModel selects the model for action prediction.
func WithPredictionModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.predictOpts = append(s.predictOpts, ai.WithModel(model))
		}
	}
}

// WithClock replaces time.Now, which is used to tell the model today's date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(client ai.Client, opts ...Option) *Service {
	s := &Service{
		client:       client,
		classifyOpts: []ai.GenerateOption{ai.WithTemperature(0)},
		predictOpts:  []ai.GenerateOption{ai.WithTemperature(0.3)},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
