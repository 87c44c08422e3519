package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/givance/webserver-sub009/pkg/ai"
)

const noOutgoingReasoning = "The current stage has no outgoing transitions."

// CheckTransition decides whether a donor in CurrentStageID moves along one
// of that stage's outgoing transitions. Only targets of those transitions can
// be returned. A stage without outgoing transitions is answered without a
// model call.
func (s *Service) CheckTransition(ctx context.Context, in TransitionInput) (*TransitionResult, error) {
	current, ok := in.Journey.Stage(in.CurrentStageID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, in.CurrentStageID)
	}

	candidates := in.Journey.Outgoing(current.ID)
	if len(candidates) == 0 {
		return &TransitionResult{CanTransition: false, Reasoning: noOutgoingReasoning}, nil
	}

	prompt := fmt.Sprintf(
		ai.TransitionPrompt,
		current.Label,
		current.ID,
		formatDonor(in.Donor),
		formatStage(current),
		formatTransitions(in.Journey, candidates),
		formatCommunications(in.Communications),
		formatDonations(in.Donations),
	)

	opts := append([]ai.GenerateOption{ai.WithSystemPrompts(ai.TransitionSystemPrompt)}, s.classifyOpts...)
	text, err := s.client.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("check transition for donor %s: %w", in.Donor.ID, err)
	}

	answer, err := decodeObject(text)
	if err != nil {
		return nil, err
	}

	canTransition, ok := answer["canTransition"].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: canTransition missing or not a boolean", ErrMalformedResponse)
	}

	result := &TransitionResult{
		CanTransition: canTransition,
		Reasoning:     optionalString(answer, "reasoning"),
	}
	if !canTransition {
		return result, nil
	}

	next, _ := answer["nextStageId"].(string)
	next = strings.TrimSpace(next)
	for _, e := range candidates {
		if e.Target == next {
			result.NextStageID = &next
			break
		}
	}
	return result, nil
}
