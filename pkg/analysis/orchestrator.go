package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/givance/webserver-sub009/pkg/journey"
	"github.com/givance/webserver-sub009/pkg/lifecycle"
	"github.com/givance/webserver-sub009/pkg/logger"
	"github.com/givance/webserver-sub009/pkg/store"

	"golang.org/x/sync/errgroup"
)

// AnalyzeDonors analyzes every distinct id in donorIDs for the organization.
// A missing journey graph, or a failure to load it, is returned as an error
// before any donor is read. Everything that goes wrong for a single donor is
// reported in that donor's result and never affects the others.
//
// When ctx is canceled, donors that have not started yet are reported with
// the context error while running ones finish.
func (o *Orchestrator) AnalyzeDonors(
	ctx context.Context,
	donorIDs []string,
	organizationID string,
	requestingUserID string,
) (*BatchResult, error) {
	graph, err := o.journeys.GetDonorJourneyGraph(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("load journey for organization %s: %w", organizationID, err)
	}
	if graph == nil {
		return nil, fmt.Errorf("%w: %s", ErrJourneyNotFound, organizationID)
	}
	idx := journey.NewIndex(graph)

	ids := distinct(donorIDs)
	logger.Info(
		"[Analysis] Starting donor analysis",
		"organization_id", organizationID,
		"requested_by", requestingUserID,
		"donors", len(ids),
		"stages", len(graph.Nodes),
	)
	start := time.Now()

	results := make([]DonorResult, len(ids))
	var g errgroup.Group
	g.SetLimit(o.cfg.ParallelDonors)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			results[i] = failed(id, nil, err)
			continue
		}
		g.Go(func() error {
			results[i] = o.analyzeDonor(ctx, idx, id, organizationID)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{
		OrganizationID: organizationID,
		RequestedBy:    requestingUserID,
		Results:        results,
	}
	for _, r := range results {
		if r.Status == StatusSuccess {
			batch.SuccessCount++
		} else {
			batch.ErrorCount++
		}
	}

	logger.Info(
		"[Analysis] Finished donor analysis",
		"organization_id", organizationID,
		"success", batch.SuccessCount,
		"errors", batch.ErrorCount,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return batch, nil
}

func (o *Orchestrator) analyzeDonor(ctx context.Context, idx *journey.Index, donorID, organizationID string) DonorResult {
	log := logger.With("donor_id", donorID, "organization_id", organizationID)

	if err := ctx.Err(); err != nil {
		return failed(donorID, nil, err)
	}
	if strings.TrimSpace(donorID) == "" {
		log.Warn("[Analysis] Blank donor id")
		return failed(donorID, nil, fmt.Errorf("%w: blank donor id", ErrDonorNotFound))
	}

	stage, actions, err := o.runDonor(ctx, idx, donorID, organizationID, log)
	if err != nil {
		log.Error("[Analysis] Donor analysis failed", "err", err)
		return failed(donorID, stage, err)
	}

	log.Debug("[Analysis] Donor analyzed", "stage", *stage, "actions", len(actions))
	return DonorResult{
		DonorID: donorID,
		Status:  StatusSuccess,
		Stage:   stage,
		Actions: actions,
	}
}

// runDonor returns the donor's stage name as known at the point it stopped,
// so a failure after the stage was persisted still reports it.
func (o *Orchestrator) runDonor(
	ctx context.Context,
	idx *journey.Index,
	donorID string,
	organizationID string,
	log logger.Scoped,
) (*string, []lifecycle.PredictedAction, error) {
	profile, err := o.donors.GetDonorProfile(ctx, donorID, organizationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load donor: %w", err)
	}
	if profile == nil {
		return nil, nil, ErrDonorNotFound
	}
	stageName := profile.CurrentStageName

	comms, err := o.donors.GetDonorCommunicationHistory(ctx, donorID, o.cfg.CommunicationLimit)
	if err != nil {
		return stageName, nil, fmt.Errorf("load communication history: %w", err)
	}
	donations, err := o.donors.GetDonorDonationHistory(ctx, donorID, o.cfg.DonationLimit)
	if err != nil {
		return stageName, nil, fmt.Errorf("load donation history: %w", err)
	}

	ev := lifecycle.Evidence{
		Donor: lifecycle.DonorInfo{
			ID:    profile.ID,
			Name:  profile.Name,
			Email: profile.Email,
		},
		Journey:        idx,
		Communications: comms,
		Donations:      donations,
	}

	var current journey.Stage
	if stageName == nil {
		current, err = o.classify(ctx, ev, log)
	} else {
		current, err = o.transition(ctx, ev, *stageName, log)
	}
	if err != nil {
		return stageName, nil, err
	}
	stageName = &current.Label

	prediction, err := o.lifecycle.PredictActions(ctx, lifecycle.PredictionInput{
		Evidence:       ev,
		CurrentStageID: current.ID,
	})
	if err != nil {
		return stageName, nil, err
	}
	actions := prediction.PredictedActions
	if actions == nil {
		actions = []lifecycle.PredictedAction{}
	}

	if err := o.donors.PersistDonorPredictedActions(ctx, donorID, actions); err != nil {
		return stageName, nil, fmt.Errorf("persist predicted actions: %w", err)
	}
	if err := o.todos.MaterializeTodosFromPredictedActions(ctx, donorID, organizationID, actions); err != nil {
		return stageName, nil, fmt.Errorf("materialize todos: %w", err)
	}

	return stageName, actions, nil
}

func (o *Orchestrator) classify(ctx context.Context, ev lifecycle.Evidence, log logger.Scoped) (journey.Stage, error) {
	res, err := o.lifecycle.ClassifyStage(ctx, lifecycle.ClassificationInput{Evidence: ev})
	if err != nil {
		return journey.Stage{}, err
	}

	stage, ok := ev.Journey.Stage(res.ClassifiedStageID)
	if !ok {
		return journey.Stage{}, fmt.Errorf("%w: classified stage id %q", ErrUnknownStage, res.ClassifiedStageID)
	}

	if err := o.donors.PersistDonorStage(ctx, ev.Donor.ID, store.StageUpdate{
		CurrentStageName:        stage.Label,
		ClassificationReasoning: res.Reasoning,
	}); err != nil {
		return journey.Stage{}, fmt.Errorf("persist stage: %w", err)
	}

	log.Info("[Analysis] Donor classified", "stage", stage.Label)
	return stage, nil
}

func (o *Orchestrator) transition(ctx context.Context, ev lifecycle.Evidence, stageName string, log logger.Scoped) (journey.Stage, error) {
	current, ok := ev.Journey.StageByLabel(stageName)
	if !ok {
		return journey.Stage{}, fmt.Errorf("%w: stored stage %q", ErrUnknownStage, stageName)
	}

	res, err := o.lifecycle.CheckTransition(ctx, lifecycle.TransitionInput{
		Evidence:       ev,
		CurrentStageID: current.ID,
	})
	if err != nil {
		return journey.Stage{}, err
	}
	if !res.CanTransition {
		return current, nil
	}

	if res.NextStageID == nil {
		log.Warn("[Analysis] Transition recommended without a reachable target, keeping stage", "stage", current.Label)
		return current, nil
	}
	next, ok := ev.Journey.Stage(*res.NextStageID)
	if !ok {
		log.Warn("[Analysis] Transition target not in journey, keeping stage", "stage", current.Label, "target", *res.NextStageID)
		return current, nil
	}

	if err := o.donors.PersistDonorStage(ctx, ev.Donor.ID, store.StageUpdate{
		CurrentStageName:        next.Label,
		ClassificationReasoning: res.Reasoning,
	}); err != nil {
		return journey.Stage{}, fmt.Errorf("persist stage: %w", err)
	}

	log.Info("[Analysis] Donor moved", "from", current.Label, "to", next.Label)
	return next, nil
}

func failed(donorID string, stage *string, err error) DonorResult {
	return DonorResult{
		DonorID: donorID,
		Status:  StatusError,
		Stage:   stage,
		Actions: []lifecycle.PredictedAction{},
		Error:   err.Error(),
		Err:     err,
	}
}

// distinct keeps the first occurrence of every id. Blank ids stay in so they
// get an error entry.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
