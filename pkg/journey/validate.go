package journey

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph is wrapped by every structural validation failure.
var ErrInvalidGraph = errors.New("journey: invalid graph")

// Validate checks the structural invariants of g: non-empty unique stage ids
// and labels, a description on every stage and transition, and transitions
// whose id, label, source and target are set and whose endpoints exist.
func Validate(g *Graph) error {
	if g == nil {
		return fmt.Errorf("%w: graph is nil", ErrInvalidGraph)
	}

	var problems []string
	ids := make(map[string]struct{}, len(g.Nodes))
	labels := make(map[string]struct{}, len(g.Nodes))

	for i, n := range g.Nodes {
		switch {
		case strings.TrimSpace(n.ID) == "":
			problems = append(problems, fmt.Sprintf("nodes[%d]: missing id", i))
		case has(ids, n.ID):
			problems = append(problems, fmt.Sprintf("nodes[%d]: duplicate id %q", i, n.ID))
		}
		ids[n.ID] = struct{}{}

		switch {
		case strings.TrimSpace(n.Label) == "":
			problems = append(problems, fmt.Sprintf("nodes[%d]: missing label", i))
		case has(labels, n.Label):
			problems = append(problems, fmt.Sprintf("nodes[%d]: duplicate label %q", i, n.Label))
		}
		labels[n.Label] = struct{}{}

		if strings.TrimSpace(n.Properties.Description) == "" {
			problems = append(problems, fmt.Sprintf("nodes[%d]: missing properties.description", i))
		}
	}

	edgeIDs := make(map[string]struct{}, len(g.Edges))
	for i, e := range g.Edges {
		switch {
		case strings.TrimSpace(e.ID) == "":
			problems = append(problems, fmt.Sprintf("edges[%d]: missing id", i))
		case has(edgeIDs, e.ID):
			problems = append(problems, fmt.Sprintf("edges[%d]: duplicate id %q", i, e.ID))
		}
		edgeIDs[e.ID] = struct{}{}

		if strings.TrimSpace(e.Label) == "" {
			problems = append(problems, fmt.Sprintf("edges[%d]: missing label", i))
		}
		if strings.TrimSpace(e.Properties.Description) == "" {
			problems = append(problems, fmt.Sprintf("edges[%d]: missing properties.description", i))
		}

		switch {
		case e.Source == "":
			problems = append(problems, fmt.Sprintf("edges[%d]: missing source", i))
		case !has(ids, e.Source):
			problems = append(problems, fmt.Sprintf("edges[%d]: unknown source %q", i, e.Source))
		}
		switch {
		case e.Target == "":
			problems = append(problems, fmt.Sprintf("edges[%d]: missing target", i))
		case !has(ids, e.Target):
			problems = append(problems, fmt.Sprintf("edges[%d]: unknown target %q", i, e.Target))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(problems, "; "))
	}
	return nil
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// Decode parses untrusted graph JSON. It rejects anything that is not an
// object with "nodes" and "edges" arrays whose entries are objects carrying
// the required string fields, then runs Validate on the typed result.
func Decode(raw []byte) (*Graph, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: graph must be a JSON object", ErrInvalidGraph)
	}

	nodes, ok := obj["nodes"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: nodes must be an array", ErrInvalidGraph)
	}
	edges, ok := obj["edges"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: edges must be an array", ErrInvalidGraph)
	}

	var problems []string
	for i, n := range nodes {
		problems = append(problems, checkShape(fmt.Sprintf("nodes[%d]", i), n, "id", "label")...)
	}
	for i, e := range edges {
		problems = append(problems, checkShape(fmt.Sprintf("edges[%d]", i), e, "id", "source", "target", "label")...)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(problems, "; "))
	}

	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	if err := Validate(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

func checkShape(path string, v any, stringFields ...string) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{path + ": must be an object"}
	}
	var problems []string
	for _, f := range stringFields {
		if _, ok := obj[f].(string); !ok {
			problems = append(problems, fmt.Sprintf("%s: %s must be a string", path, f))
		}
	}
	props, ok := obj["properties"].(map[string]any)
	if !ok {
		return append(problems, path+": properties must be an object")
	}
	if _, ok := props["description"].(string); !ok {
		problems = append(problems, path+": properties.description must be a string")
	}
	if actions, present := props["actions"]; present {
		list, ok := actions.([]any)
		if !ok {
			return append(problems, path+": properties.actions must be an array")
		}
		for j, a := range list {
			if _, ok := a.(string); !ok {
				problems = append(problems, fmt.Sprintf("%s: properties.actions[%d] must be a string", path, j))
			}
		}
	}
	return problems
}
