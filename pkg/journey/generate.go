package journey

import (
	"context"
	"fmt"
	"strings"

	"github.com/givance/webserver-sub009/pkg/ai"
	"github.com/givance/webserver-sub009/pkg/logger"
)

// Nodes and Edges are pointers so a missing or null list can be told apart
// from an empty one.
type generatedGraph struct {
	Nodes *[]generatedStage      `json:"nodes" jsonschema_description:"Stages of the donor journey in journey order"`
	Edges *[]generatedTransition `json:"edges" jsonschema_description:"Allowed moves between stages"`
}

type generatedStage struct {
	ID         string                   `json:"id" jsonschema_description:"Short unique stage id such as n1"`
	Label      string                   `json:"label" jsonschema_description:"Unique human readable stage name"`
	Properties generatedStageProperties `json:"properties"`
}

type generatedStageProperties struct {
	Description string   `json:"description" jsonschema_description:"What it means for a donor to be in this stage"`
	Actions     []string `json:"actions" jsonschema_description:"Typical staff actions while a donor is in this stage"`
}

type generatedTransition struct {
	ID         string                        `json:"id" jsonschema_description:"Short unique transition id such as e1"`
	Source     string                        `json:"source" jsonschema_description:"Id of the stage the donor leaves"`
	Target     string                        `json:"target" jsonschema_description:"Id of the stage the donor enters"`
	Label      string                        `json:"label" jsonschema_description:"UPPER_SNAKE_CASE name of the transition"`
	Properties generatedTransitionProperties `json:"properties"`
}

type generatedTransitionProperties struct {
	Description string `json:"description" jsonschema_description:"When the transition happens"`
}

// Generator turns free text descriptions into journey graphs.
type Generator struct {
	client ai.Client
	opts   []ai.GenerateOption
}

// NewGenerator returns a Generator issuing its single LLM call through client
// with opts applied.
func NewGenerator(client ai.Client, opts ...ai.GenerateOption) *Generator {
	return &Generator{client: client, opts: opts}
}

// Generate converts description into a validated graph. Blank text yields an
// empty graph without calling the model. Errors from the model are returned
// as they are, without retrying.
func (g *Generator) Generate(ctx context.Context, description string) (*Graph, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Empty(), nil
	}

	opts := append([]ai.GenerateOption{ai.WithSystemPrompts(ai.JourneySystemPrompt)}, g.opts...)

	var out generatedGraph
	prompt := fmt.Sprintf(ai.JourneyPrompt, description)
	if err := g.client.GenerateCompletionWithFormat(
		ctx,
		"donor_journey",
		"Donor journey graph with stages and transitions",
		prompt,
		&out,
		opts...,
	); err != nil {
		return nil, err
	}

	graph, err := out.toGraph()
	if err == nil {
		err = Validate(graph)
	}
	if err != nil {
		logger.Warn("[Journey] Generated graph rejected", "err", err)
		return nil, err
	}

	logger.Debug("[Journey] Generated graph", "stages", len(graph.Nodes), "transitions", len(graph.Edges))
	return graph, nil
}

func (o generatedGraph) toGraph() (*Graph, error) {
	switch {
	case o.Nodes == nil:
		return nil, fmt.Errorf("%w: generated graph has no nodes list", ErrInvalidGraph)
	case o.Edges == nil:
		return nil, fmt.Errorf("%w: generated graph has no edges list", ErrInvalidGraph)
	case len(*o.Nodes) == 0:
		return nil, fmt.Errorf("%w: generated graph has no stages", ErrInvalidGraph)
	}

	g := Empty()
	for _, n := range *o.Nodes {
		actions := n.Properties.Actions
		if actions == nil {
			actions = []string{}
		}
		g.Nodes = append(g.Nodes, Stage{
			ID:    strings.TrimSpace(n.ID),
			Label: strings.TrimSpace(n.Label),
			Properties: StageProperties{
				Description: n.Properties.Description,
				Actions:     actions,
			},
		})
	}
	for _, e := range *o.Edges {
		g.Edges = append(g.Edges, Transition{
			ID:     strings.TrimSpace(e.ID),
			Source: strings.TrimSpace(e.Source),
			Target: strings.TrimSpace(e.Target),
			Label:  strings.TrimSpace(e.Label),
			Properties: TransitionProperties{
				Description: e.Properties.Description,
			},
		})
	}
	return g, nil
}
