package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/givance/webserver-sub009/pkg/ai"
)

type predictionResponse struct {
	Actions []predictedActionResponse `json:"actions" jsonschema_description:"Recommended next actions, possibly empty"`
}

type predictedActionResponse struct {
	Type          string `json:"type" jsonschema_description:"Short lowercase action category such as email, call, meeting, thank_you or task"`
	Description   string `json:"description" jsonschema_description:"One line summary of the action"`
	Explanation   string `json:"explanation" jsonschema_description:"Why the action moves the donor forward"`
	Instruction   string `json:"instruction" jsonschema_description:"What staff should do or say"`
	ScheduledDate string `json:"scheduledDate" jsonschema_description:"Date the action should happen as YYYY-MM-DD or an empty string"`
}

// PredictActions recommends next actions for a donor in CurrentStageID. An
// empty list is a valid answer.
func (s *Service) PredictActions(ctx context.Context, in PredictionInput) (*PredictionResult, error) {
	current, ok := in.Journey.Stage(in.CurrentStageID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, in.CurrentStageID)
	}

	prompt := fmt.Sprintf(
		ai.PredictionPrompt,
		formatDonor(in.Donor),
		formatStage(current),
		formatTransitions(in.Journey, in.Journey.Outgoing(current.ID)),
		formatCommunications(in.Communications),
		formatDonations(in.Donations),
		s.now().Format("2006-01-02"),
	)

	opts := append([]ai.GenerateOption{ai.WithSystemPrompts(ai.PredictionSystemPrompt)}, s.predictOpts...)

	var out predictionResponse
	if err := s.client.GenerateCompletionWithFormat(
		ctx,
		"predicted_actions",
		"Recommended next actions for a donor",
		prompt,
		&out,
		opts...,
	); err != nil {
		return nil, fmt.Errorf("predict actions for donor %s: %w", in.Donor.ID, err)
	}

	return &PredictionResult{PredictedActions: normalizeActions(out.Actions)}, nil
}

func normalizeActions(in []predictedActionResponse) []PredictedAction {
	out := make([]PredictedAction, 0, len(in))
	for _, a := range in {
		desc := strings.TrimSpace(a.Description)
		if desc == "" {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(a.Type))
		if kind == "" {
			kind = "task"
		}
		date := strings.TrimSpace(a.ScheduledDate)
		if _, err := time.Parse("2006-01-02", date); err != nil {
			date = ""
		}
		out = append(out, PredictedAction{
			Type:          kind,
			Description:   desc,
			Explanation:   strings.TrimSpace(a.Explanation),
			Instruction:   strings.TrimSpace(a.Instruction),
			ScheduledDate: date,
		})
	}
	return out
}
