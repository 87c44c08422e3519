package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/givance/webserver-sub009/pkg/ai"
)

// ClassifyStage asks the model which stage of the journey a donor without a
// stage belongs to. The returned id is taken from the model as is; resolving
// it against the graph is the caller's job.
func (s *Service) ClassifyStage(ctx context.Context, in ClassificationInput) (*ClassificationResult, error) {
	prompt := fmt.Sprintf(
		ai.ClassificationPrompt,
		formatDonor(in.Donor),
		formatStages(in.Journey.Graph()),
		formatCommunications(in.Communications),
		formatDonations(in.Donations),
	)

	opts := append([]ai.GenerateOption{ai.WithSystemPrompts(ai.ClassificationSystemPrompt)}, s.classifyOpts...)
	text, err := s.client.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("classify donor %s: %w", in.Donor.ID, err)
	}

	answer, err := decodeObject(text)
	if err != nil {
		return nil, err
	}

	stageID, ok := answer["stageId"].(string)
	if !ok || strings.TrimSpace(stageID) == "" {
		return nil, fmt.Errorf("%w: stageId missing or not a string", ErrMalformedResponse)
	}

	return &ClassificationResult{
		DonorID:           in.Donor.ID,
		ClassifiedStageID: strings.TrimSpace(stageID),
		Reasoning:         optionalString(answer, "reasoning"),
	}, nil
}

// decodeObject parses a free text model answer that must be a JSON object.
func decodeObject(text string) (map[string]any, error) {
	var answer map[string]any
	if err := ai.UnmarshalFlexible(text, &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if answer == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}
	return answer, nil
}

func optionalString(answer map[string]any, key string) string {
	v, _ := answer[key].(string)
	return strings.TrimSpace(v)
}
