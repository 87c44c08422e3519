package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/givance/webserver-sub009/pkg/ai"
	"github.com/givance/webserver-sub009/pkg/ai/aitest"
	"github.com/givance/webserver-sub009/pkg/journey"

	"github.com/google/go-cmp/cmp"
)

func testJourney() *journey.Index {
	return journey.NewIndex(&journey.Graph{
		Nodes: []journey.Stage{
			{ID: "n1", Label: "Initial Contact", Properties: journey.StageProperties{Description: "Met the donor", Actions: []string{"Send thank you"}}},
			{ID: "n2", Label: "Follow Up", Properties: journey.StageProperties{Description: "Followed up"}},
			{ID: "n3", Label: "Meeting", Properties: journey.StageProperties{Description: "Meeting held"}},
		},
		Edges: []journey.Transition{
			{ID: "e1", Source: "n1", Target: "n2", Label: "FOLLOW_UP", Properties: journey.TransitionProperties{Description: "Staff followed up"}},
			{ID: "e2", Source: "n2", Target: "n3", Label: "SCHEDULE_MEETING", Properties: journey.TransitionProperties{Description: "Donor agreed to meet"}},
		},
	})
}

func testEvidence() Evidence {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return Evidence{
		Donor:   DonorInfo{ID: "d1", Name: "Ada Lovelace", Email: "ada@example.org"},
		Journey: testJourney(),
		Communications: []CommunicationThread{{
			ID: "t1", Channel: "email", CreatedAt: day,
			Messages: []CommunicationMessage{
				{ID: "m1", Content: "Thanks for the gala!", FromDonor: true, CreatedAt: day},
			},
		}},
		Donations: []Donation{{ID: "g1", AmountCents: 12550, Currency: "usd", Date: day, ProjectName: "Library"}},
	}
}

func completion(answer string) *aitest.FakeClient {
	return &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
			return answer, nil
		},
	}
}

func TestClassifyStage(t *testing.T) {
	fake := completion("```json\n{\"stageId\": \"n1\", \"reasoning\": \"met at the gala\"}\n```")
	svc := NewService(fake, WithClassificationModel("classifier"))

	got, err := svc.ClassifyStage(context.Background(), ClassificationInput{Evidence: testEvidence()})
	if err != nil {
		t.Fatalf("ClassifyStage() error = %v", err)
	}

	want := &ClassificationResult{DonorID: "d1", ClassifiedStageID: "n1", Reasoning: "met at the gala"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ClassifyStage() mismatch (-want +got):\n%s", diff)
	}

	prompt := fake.Prompts[0]
	for _, fragment := range []string{"Ada Lovelace", "id: n3 | label: Meeting", "Thanks for the gala!", "125.50 USD for Library"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt is missing %q:\n%s", fragment, prompt)
		}
	}
	if fake.LastOptions.Model != "classifier" || fake.LastOptions.Temperature != 0 {
		t.Fatalf("options = %+v, want classifier model at temperature 0", fake.LastOptions)
	}
}

func TestClassifyStageMalformed(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{name: "missing stageId", answer: `{"reasoning": "no idea"}`},
		{name: "numeric stageId", answer: `{"stageId": 1}`},
		{name: "empty stageId", answer: `{"stageId": "  "}`},
		{name: "null", answer: `null`},
		{name: "prose", answer: `I think the donor is new.`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(completion(tc.answer))
			_, err := svc.ClassifyStage(context.Background(), ClassificationInput{Evidence: testEvidence()})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("ClassifyStage() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestClassifyStageReturnsUnknownIDUnchanged(t *testing.T) {
	svc := NewService(completion(`{"stageId": "n42"}`))
	got, err := svc.ClassifyStage(context.Background(), ClassificationInput{Evidence: testEvidence()})
	if err != nil {
		t.Fatalf("ClassifyStage() error = %v", err)
	}
	if got.ClassifiedStageID != "n42" || got.Reasoning != "" {
		t.Fatalf("ClassifyStage() = %+v", got)
	}
}

func TestClassifyStageModelError(t *testing.T) {
	boom := errors.New("timeout")
	fake := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
			return "", boom
		},
	}
	_, err := NewService(fake).ClassifyStage(context.Background(), ClassificationInput{Evidence: testEvidence()})
	if !errors.Is(err, boom) {
		t.Fatalf("ClassifyStage() error = %v, want wrapped model error", err)
	}
}

func TestCheckTransition(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name    string
		current string
		answer  string
		want    *TransitionResult
	}{
		{
			name:    "adjacent target accepted",
			current: "n1",
			answer:  `{"canTransition": true, "nextStageId": "n2", "reasoning": "replied"}`,
			want:    &TransitionResult{CanTransition: true, NextStageID: strPtr("n2"), Reasoning: "replied"},
		},
		{
			name:    "non adjacent target dropped",
			current: "n1",
			answer:  `{"canTransition": true, "nextStageId": "n3"}`,
			want:    &TransitionResult{CanTransition: true},
		},
		{
			name:    "unknown target dropped",
			current: "n1",
			answer:  `{"canTransition": true, "nextStageId": "n99"}`,
			want:    &TransitionResult{CanTransition: true},
		},
		{
			name:    "null target",
			current: "n2",
			answer:  `{"canTransition": true, "nextStageId": null}`,
			want:    &TransitionResult{CanTransition: true},
		},
		{
			name:    "stay",
			current: "n2",
			answer:  `{"canTransition": false, "nextStageId": "n3", "reasoning": "not yet"}`,
			want:    &TransitionResult{CanTransition: false, Reasoning: "not yet"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := completion(tc.answer)
			got, err := NewService(fake).CheckTransition(context.Background(), TransitionInput{
				Evidence:       testEvidence(),
				CurrentStageID: tc.current,
			})
			if err != nil {
				t.Fatalf("CheckTransition() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("CheckTransition() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckTransitionOnlyOffersOutgoingEdges(t *testing.T) {
	fake := completion(`{"canTransition": false}`)
	_, err := NewService(fake).CheckTransition(context.Background(), TransitionInput{
		Evidence:       testEvidence(),
		CurrentStageID: "n1",
	})
	if err != nil {
		t.Fatalf("CheckTransition() error = %v", err)
	}

	prompt := fake.Prompts[0]
	if !strings.Contains(prompt, "FOLLOW_UP: to stage n2 (Follow Up)") {
		t.Fatalf("prompt is missing the outgoing transition:\n%s", prompt)
	}
	if strings.Contains(prompt, "SCHEDULE_MEETING") {
		t.Fatalf("prompt offers a transition that does not start at the current stage:\n%s", prompt)
	}
}

func TestCheckTransitionFinalStageSkipsModel(t *testing.T) {
	fake := &aitest.FakeClient{}
	got, err := NewService(fake).CheckTransition(context.Background(), TransitionInput{
		Evidence:       testEvidence(),
		CurrentStageID: "n3",
	})
	if err != nil {
		t.Fatalf("CheckTransition() error = %v", err)
	}
	if got.CanTransition || got.NextStageID != nil {
		t.Fatalf("CheckTransition() = %+v, want no transition", got)
	}
	if fake.Calls() != 0 {
		t.Fatalf("model was called %d times for a final stage", fake.Calls())
	}
}

func TestCheckTransitionErrors(t *testing.T) {
	_, err := NewService(completion(`{"nextStageId": "n2"}`)).CheckTransition(context.Background(), TransitionInput{
		Evidence:       testEvidence(),
		CurrentStageID: "n1",
	})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("missing canTransition: error = %v, want ErrMalformedResponse", err)
	}

	_, err = NewService(completion(`{"canTransition": "yes"}`)).CheckTransition(context.Background(), TransitionInput{
		Evidence:       testEvidence(),
		CurrentStageID: "n1",
	})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("string canTransition: error = %v, want ErrMalformedResponse", err)
	}

	_, err = NewService(&aitest.FakeClient{}).CheckTransition(context.Background(), TransitionInput{
		Evidence:       testEvidence(),
		CurrentStageID: "gone",
	})
	if !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("unknown stage: error = %v, want ErrUnknownStage", err)
	}
}

func TestPredictActions(t *testing.T) {
	fake := &aitest.FakeClient{
		FormatFunc: func(ctx context.Context, name, prompt string) (string, error) {
			return `{"actions": [
				{"type": "Email", "description": " Send impact report ", "explanation": "keeps them engaged", "instruction": "attach the PDF", "scheduledDate": "2026-03-08"},
				{"type": "", "description": "Invite to site visit", "explanation": "", "instruction": "", "scheduledDate": "next week"},
				{"type": "call", "description": "  ", "explanation": "", "instruction": "", "scheduledDate": ""}
			]}`, nil
		},
	}
	clock := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	svc := NewService(fake, WithClock(clock), WithPredictionModel("planner"))

	got, err := svc.PredictActions(context.Background(), PredictionInput{Evidence: testEvidence(), CurrentStageID: "n1"})
	if err != nil {
		t.Fatalf("PredictActions() error = %v", err)
	}

	want := []PredictedAction{
		{Type: "email", Description: "Send impact report", Explanation: "keeps them engaged", Instruction: "attach the PDF", ScheduledDate: "2026-03-08"},
		{Type: "task", Description: "Invite to site visit"},
	}
	if diff := cmp.Diff(want, got.PredictedActions); diff != "" {
		t.Fatalf("PredictActions() mismatch (-want +got):\n%s", diff)
	}

	prompt := fake.Prompts[0]
	if !strings.Contains(prompt, "2026-03-02") || !strings.Contains(prompt, "typical actions: Send thank you") {
		t.Fatalf("prompt is missing today or stage actions:\n%s", prompt)
	}
	if fake.LastOptions.Model != "planner" {
		t.Fatalf("model = %q, want planner", fake.LastOptions.Model)
	}
}

func TestPredictActionsEmptyIsValid(t *testing.T) {
	fake := &aitest.FakeClient{
		FormatFunc: func(ctx context.Context, name, prompt string) (string, error) {
			return `{"actions": []}`, nil
		},
	}
	got, err := NewService(fake).PredictActions(context.Background(), PredictionInput{Evidence: testEvidence(), CurrentStageID: "n3"})
	if err != nil {
		t.Fatalf("PredictActions() error = %v", err)
	}
	if got.PredictedActions == nil || len(got.PredictedActions) != 0 {
		t.Fatalf("PredictActions() = %#v, want empty non-nil list", got.PredictedActions)
	}
}

func TestPredictActionsKeepsEveryValidAction(t *testing.T) {
	var items []string
	for i := 1; i <= 7; i++ {
		items = append(items, fmt.Sprintf(`{"type": "task", "description": "Action %d", "explanation": "", "instruction": "", "scheduledDate": ""}`, i))
	}
	fake := &aitest.FakeClient{
		FormatFunc: func(ctx context.Context, name, prompt string) (string, error) {
			return `{"actions": [` + strings.Join(items, ",") + `]}`, nil
		},
	}
	got, err := NewService(fake).PredictActions(context.Background(), PredictionInput{Evidence: testEvidence(), CurrentStageID: "n1"})
	if err != nil {
		t.Fatalf("PredictActions() error = %v", err)
	}
	if len(got.PredictedActions) != 7 || got.PredictedActions[6].Description != "Action 7" {
		t.Fatalf("PredictActions() = %+v, want all 7 actions", got.PredictedActions)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{cents: 12550, currency: "usd", want: "125.50 USD"},
		{cents: 5, currency: "EUR", want: "0.05 EUR"},
		{cents: -1000, currency: "", want: "-10.00 USD"},
	}
	for _, tc := range tests {
		if got := formatAmount(tc.cents, tc.currency); got != tc.want {
			t.Fatalf("formatAmount(%d, %q) = %q, want %q", tc.cents, tc.currency, got, tc.want)
		}
	}
}
