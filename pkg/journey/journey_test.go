package journey

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleGraph() *Graph {
	return &Graph{
		Nodes: []Stage{
			{ID: "n1", Label: "Initial Contact", Properties: StageProperties{Description: "Met the donor"}},
			{ID: "n2", Label: "Follow Up", Properties: StageProperties{Description: "Followed up", Actions: []string{"Call"}}},
			{ID: "n3", Label: "Meeting", Properties: StageProperties{Description: "Meeting held"}},
		},
		Edges: []Transition{
			{ID: "e1", Source: "n1", Target: "n2", Label: "FOLLOW_UP", Properties: TransitionProperties{Description: "Followed up"}},
			{ID: "e2", Source: "n2", Target: "n3", Label: "SCHEDULE_MEETING", Properties: TransitionProperties{Description: "Agreed to meet"}},
		},
	}
}

func TestLookupsAreInverse(t *testing.T) {
	g := sampleGraph()
	for _, n := range g.Nodes {
		id, ok := StageIDFromName(g, n.Label)
		if !ok || id != n.ID {
			t.Fatalf("StageIDFromName(%q) = %q, %v; want %q", n.Label, id, ok, n.ID)
		}
		label, ok := StageNameFromID(g, n.ID)
		if !ok || label != n.Label {
			t.Fatalf("StageNameFromID(%q) = %q, %v; want %q", n.ID, label, ok, n.Label)
		}
	}
}

func TestLookupsNotFoundAndCaseSensitive(t *testing.T) {
	g := sampleGraph()

	tests := []struct {
		name  string
		label string
	}{
		{name: "absent", label: "Stewardship"},
		{name: "lower case", label: "initial contact"},
		{name: "trailing space", label: "Meeting "},
		{name: "empty", label: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if id, ok := StageIDFromName(g, tc.label); ok {
				t.Fatalf("StageIDFromName(%q) = %q, want not found", tc.label, id)
			}
		})
	}

	if _, ok := StageNameFromID(g, "N1"); ok {
		t.Fatalf("StageNameFromID should be case-sensitive")
	}
	if _, ok := StageNameFromID(nil, "n1"); ok {
		t.Fatalf("StageNameFromID(nil) should not find anything")
	}
}

func TestIndex(t *testing.T) {
	g := sampleGraph()
	g.Edges = append(g.Edges, Transition{ID: "e3", Source: "n1", Target: "n3", Label: "FAST_TRACK"})
	idx := NewIndex(g)

	if s, ok := idx.StageByLabel("Follow Up"); !ok || s.ID != "n2" {
		t.Fatalf("StageByLabel = %+v, %v", s, ok)
	}
	if s, ok := idx.Stage("n3"); !ok || s.Label != "Meeting" {
		t.Fatalf("Stage = %+v, %v", s, ok)
	}
	if _, ok := idx.Stage("n9"); ok {
		t.Fatalf("Stage(n9) should not be found")
	}

	var targets []string
	for _, e := range idx.Outgoing("n1") {
		targets = append(targets, e.Target)
	}
	if diff := cmp.Diff([]string{"n2", "n3"}, targets); diff != "" {
		t.Fatalf("Outgoing(n1) mismatch (-want +got):\n%s", diff)
	}
	if out := idx.Outgoing("n3"); len(out) != 0 {
		t.Fatalf("Outgoing(n3) = %+v, want none", out)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *Graph)
		wantErr string
	}{
		{name: "valid", mutate: func(g *Graph) {}},
		{name: "empty graph", mutate: func(g *Graph) { *g = *Empty() }},
		{
			name:    "unknown edge target",
			mutate:  func(g *Graph) { g.Edges[0].Target = "n9" },
			wantErr: `unknown target "n9"`,
		},
		{
			name:    "unknown edge source",
			mutate:  func(g *Graph) { g.Edges[1].Source = "x" },
			wantErr: `unknown source "x"`,
		},
		{
			name:    "missing edge id",
			mutate:  func(g *Graph) { g.Edges[0].ID = "" },
			wantErr: "edges[0]: missing id",
		},
		{
			name:    "missing edge source",
			mutate:  func(g *Graph) { g.Edges[0].Source = "" },
			wantErr: "edges[0]: missing source",
		},
		{
			name:    "duplicate label",
			mutate:  func(g *Graph) { g.Nodes[2].Label = "Follow Up" },
			wantErr: `duplicate label "Follow Up"`,
		},
		{
			name:    "duplicate id",
			mutate:  func(g *Graph) { g.Nodes[2].ID = "n1" },
			wantErr: `duplicate id "n1"`,
		},
		{
			name:    "missing description",
			mutate:  func(g *Graph) { g.Nodes[0].Properties.Description = " " },
			wantErr: "nodes[0]: missing properties.description",
		},
		{
			name:    "missing label",
			mutate:  func(g *Graph) { g.Nodes[1].Label = "" },
			wantErr: "nodes[1]: missing label",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := sampleGraph()
			tc.mutate(g)
			err := Validate(g)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("Validate() error = %v, want ErrInvalidGraph", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `nodes`},
		{name: "array", raw: `[]`},
		{name: "string", raw: `"graph"`},
		{name: "missing edges", raw: `{"nodes": []}`},
		{name: "node not object", raw: `{"nodes": [1], "edges": []}`},
		{name: "node id not string", raw: `{"nodes": [{"id": 1, "label": "A", "properties": {"description": "d"}}], "edges": []}`},
		{name: "node without properties", raw: `{"nodes": [{"id": "n1", "label": "A"}], "edges": []}`},
		{name: "actions not strings", raw: `{"nodes": [{"id": "n1", "label": "A", "properties": {"description": "d", "actions": [1]}}], "edges": []}`},
		{name: "edge without target", raw: `{"nodes": [{"id": "n1", "label": "A", "properties": {"description": "d"}}], "edges": [{"id": "e1", "source": "n1", "label": "X", "properties": {"description": "d"}}]}`},
		{name: "dangling edge", raw: `{"nodes": [{"id": "n1", "label": "A", "properties": {"description": "d"}}], "edges": [{"id": "e1", "source": "n1", "target": "n2", "label": "X", "properties": {"description": "d"}}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("Decode() error = %v, want ErrInvalidGraph", err)
			}
		})
	}
}

func TestDecodeKeepsExtraProperties(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": "n1", "label": "Initial Contact", "properties": {"description": "Met", "actions": ["Thank"], "color": "green", "weight": 2}},
			{"id": "n2", "label": "Follow Up", "properties": {"description": "Followed"}}
		],
		"edges": [
			{"id": "e1", "source": "n1", "target": "n2", "label": "FOLLOW_UP", "properties": {"description": "d", "sla_days": 7}}
		]
	}`

	g, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := StageProperties{
		Description: "Met",
		Actions:     []string{"Thank"},
		Extra:       map[string]any{"color": "green", "weight": float64(2)},
	}
	if diff := cmp.Diff(want, g.Nodes[0].Properties); diff != "" {
		t.Fatalf("stage properties mismatch (-want +got):\n%s", diff)
	}
	if got := g.Edges[0].Properties.Extra["sla_days"]; got != float64(7) {
		t.Fatalf("edge extra = %#v", got)
	}

	out, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, fragment := range []string{`"color":"green"`, `"sla_days":7`, `"actions":["Thank"]`} {
		if !strings.Contains(string(out), fragment) {
			t.Fatalf("Marshal() = %s, missing %s", out, fragment)
		}
	}
}

func TestEmptyGraphSerializesWithArrays(t *testing.T) {
	out, err := json.Marshal(Empty())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"nodes":[],"edges":[]}` {
		t.Fatalf("Marshal(Empty()) = %s", out)
	}
}
