// Package journey models an organization's donor journey: a directed graph
// whose nodes are stages and whose edges are the allowed transitions between
// them. Nodes and edges are flat slices that reference each other by id so a
// graph can be stored and regenerated as plain JSON.
package journey

import (
	"encoding/json"
	"fmt"
)

// Graph is one organization's donor journey.
type Graph struct {
	Nodes []Stage      `json:"nodes"`
	Edges []Transition `json:"edges"`
}

// Stage is a node of the journey. Label is what gets stored on a donor record,
// so it must be unique within a graph.
type Stage struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Properties StageProperties `json:"properties"`
}

// StageProperties holds the known stage properties. Unknown keys are kept in
// Extra and written back next to the known ones.
type StageProperties struct {
	Description string
	Actions     []string
	Extra       map[string]any
}

// Transition is a directed edge from Source to Target.
type Transition struct {
	ID         string               `json:"id"`
	Source     string               `json:"source"`
	Target     string               `json:"target"`
	Label      string               `json:"label"`
	Properties TransitionProperties `json:"properties"`
}

// TransitionProperties mirrors StageProperties for edges.
type TransitionProperties struct {
	Description string
	Extra       map[string]any
}

// Empty returns a graph with no stages and no transitions. Its slices are
// non-nil so it serializes as {"nodes":[],"edges":[]}.
func Empty() *Graph {
	return &Graph{Nodes: []Stage{}, Edges: []Transition{}}
}

func (p StageProperties) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+2)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["description"] = p.Description
	if p.Actions != nil {
		m["actions"] = p.Actions
	}
	return json.Marshal(m)
}

func (p *StageProperties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = StageProperties{}
	for k, v := range raw {
		switch k {
		case "description":
			if err := json.Unmarshal(v, &p.Description); err != nil {
				return fmt.Errorf("description: %w", err)
			}
		case "actions":
			if err := json.Unmarshal(v, &p.Actions); err != nil {
				return fmt.Errorf("actions: %w", err)
			}
		default:
			if err := setExtra(&p.Extra, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p TransitionProperties) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+1)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["description"] = p.Description
	return json.Marshal(m)
}

func (p *TransitionProperties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = TransitionProperties{}
	for k, v := range raw {
		if k == "description" {
			if err := json.Unmarshal(v, &p.Description); err != nil {
				return fmt.Errorf("description: %w", err)
			}
			continue
		}
		if err := setExtra(&p.Extra, k, v); err != nil {
			return err
		}
	}
	return nil
}

func setExtra(extra *map[string]any, key string, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if *extra == nil {
		*extra = make(map[string]any)
	}
	(*extra)[key] = v
	return nil
}
