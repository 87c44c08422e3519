package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/givance/webserver-sub009/internal/timing"
	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/logger"
	"github.com/givance/webserver-sub009/pkg/store"
)

// ErrPermanent marks failures that retrying cannot fix. Such messages go
// straight to the dead-letter queue.
var ErrPermanent = errors.New("permanent failure")

type Analyzer interface {
	AnalyzeDonors(ctx context.Context, donorIDs []string, organizationID string, requestingUserID string) (*analysis.BatchResult, error)
}

type JourneyGenerator interface {
	Generate(ctx context.Context, description string) (*journey.Graph, error)
}

type Locker interface {
	WithOrganizationLease(ctx context.Context, organizationID string, fn func(ctx context.Context) error) error
}

type TopicPublisher interface {
	PublishTopic(topic string, data []byte) error
}

type Timer interface {
	AddProcessingTime(ctx context.Context, organizationID string, amount int, duration time.Duration, statType string) error
	PredictProcessingTime(ctx context.Context, amount int, statType string) (time.Duration, error)
}

// Processor executes queued analysis batches and journey regenerations.
type Processor struct {
	analyzer  Analyzer
	generator JourneyGenerator
	journeys  store.JourneyStore
	locks     Locker
	publisher TopicPublisher
	timer     Timer
}

func NewProcessor(
	analyzer Analyzer,
	generator JourneyGenerator,
	journeys store.JourneyStore,
	locks Locker,
	publisher TopicPublisher,
) *Processor {
	return &Processor{
		analyzer:  analyzer,
		generator: generator,
		journeys:  journeys,
		locks:     locks,
		publisher: publisher,
	}
}

// WithTimer records processing durations and logs a prediction before each
// job.
func (p *Processor) WithTimer(t Timer) *Processor {
	p.timer = t
	return p
}

func (p *Processor) predict(ctx context.Context, amount int, statType string) {
	if p.timer == nil {
		return
	}
	prediction, err := p.timer.PredictProcessingTime(ctx, amount, statType)
	if err != nil {
		prediction = 0
	}
	logger.Info("[Queue] Prediction", "stat", statType, "amount", amount, "time_ms", prediction.Milliseconds())
}

func (p *Processor) record(ctx context.Context, organizationID string, amount int, start time.Time, statType string) {
	if p.timer == nil {
		return
	}
	if err := p.timer.AddProcessingTime(ctx, organizationID, amount, time.Since(start), statType); err != nil {
		logger.Warn("[Queue] Failed to record processing time", "stat", statType, "err", err)
	}
}

// Process dispatches body by queue name.
func (p *Processor) Process(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case AnalysisQueue:
		return p.ProcessAnalysisMessage(ctx, body)
	case JourneyQueue:
		return p.ProcessJourneyMessage(ctx, body)
	default:
		return fmt.Errorf("%w: unknown queue %s", ErrPermanent, queueName)
	}
}

// ProcessAnalysisMessage analyzes the requested donors while holding the
// organization's lease, then publishes the batch result. Per-donor failures
// are part of the result and do not fail the message.
func (p *Processor) ProcessAnalysisMessage(ctx context.Context, body []byte) error {
	var data QueueAnalysisMsg
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("%w: decode analysis message: %v", ErrPermanent, err)
	}
	if strings.TrimSpace(data.OrganizationID) == "" {
		return fmt.Errorf("%w: analysis message without organization", ErrPermanent)
	}

	p.predict(ctx, len(data.DonorIDs), timing.StatAnalysis)
	start := time.Now()

	var result *analysis.BatchResult
	err := p.locks.WithOrganizationLease(ctx, data.OrganizationID, func(ctx context.Context) error {
		var err error
		result, err = p.analyzer.AnalyzeDonors(ctx, data.DonorIDs, data.OrganizationID, data.RequestedBy)
		return err
	})
	if err != nil {
		if errors.Is(err, analysis.ErrJourneyNotFound) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}

	logger.Info("[Queue] Analysis batch finished",
		"correlation_id", data.CorrelationID,
		"organization_id", data.OrganizationID,
		"success", result.SuccessCount,
		"errors", result.ErrorCount,
	)
	p.record(ctx, data.OrganizationID, len(result.Results), start, timing.StatAnalysis)

	payload, err := json.Marshal(AnalysisCompletedMsg{
		CorrelationID: data.CorrelationID,
		Result:        result,
	})
	if err != nil {
		return err
	}
	if err := p.publisher.PublishTopic(AnalysisCompletedTopic(data.OrganizationID), payload); err != nil {
		logger.Warn("[Queue] Failed to publish analysis result", "correlation_id", data.CorrelationID, "err", err)
	}
	return nil
}

// ProcessJourneyMessage generates a journey from the description and replaces
// the organization's stored graph with it. A blank description stores an
// empty journey.
func (p *Processor) ProcessJourneyMessage(ctx context.Context, body []byte) error {
	var data QueueJourneyMsg
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("%w: decode journey message: %v", ErrPermanent, err)
	}
	if strings.TrimSpace(data.OrganizationID) == "" {
		return fmt.Errorf("%w: journey message without organization", ErrPermanent)
	}
	p.predict(ctx, 1, timing.StatJourney)
	start := time.Now()

	graph, err := p.generator.Generate(ctx, data.Description)
	if err != nil {
		return fmt.Errorf("generate journey: %w", err)
	}
	if err := p.journeys.ReplaceDonorJourneyGraph(ctx, data.OrganizationID, data.Description, graph); err != nil {
		if errors.Is(err, journey.ErrInvalidGraph) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return fmt.Errorf("store journey: %w", err)
	}
	p.record(ctx, data.OrganizationID, 1, start, timing.StatJourney)

	payload, err := json.Marshal(JourneyCompletedMsg{
		CorrelationID:  data.CorrelationID,
		OrganizationID: data.OrganizationID,
		Graph:          graph,
	})
	if err != nil {
		return err
	}
	if err := p.publisher.PublishTopic(JourneyCompletedTopic(data.OrganizationID), payload); err != nil {
		logger.Warn("[Queue] Failed to publish journey result", "correlation_id", data.CorrelationID, "err", err)
	}
	return nil
}
