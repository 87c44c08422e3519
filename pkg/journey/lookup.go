package journey

// StageIDFromName returns the id of the stage labeled name. The match is
// exact and case-sensitive; ok is false when no stage has that label.
func StageIDFromName(g *Graph, name string) (id string, ok bool) {
	if g == nil {
		return "", false
	}
	for _, n := range g.Nodes {
		if n.Label == name {
			return n.ID, true
		}
	}
	return "", false
}

// StageNameFromID returns the label of the stage with the given id; ok is
// false when the graph has no such stage.
func StageNameFromID(g *Graph, id string) (name string, ok bool) {
	if g == nil {
		return "", false
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n.Label, true
		}
	}
	return "", false
}

// Index gives constant time lookups over a graph that is not modified while
// the index is in use. Build one per analysis run and pass it down.
type Index struct {
	graph    *Graph
	byID     map[string]int
	byLabel  map[string]int
	outgoing map[string][]int
}

// NewIndex indexes g. When labels or ids repeat, the first occurrence wins,
// matching StageIDFromName and StageNameFromID.
func NewIndex(g *Graph) *Index {
	if g == nil {
		g = Empty()
	}
	idx := &Index{
		graph:    g,
		byID:     make(map[string]int, len(g.Nodes)),
		byLabel:  make(map[string]int, len(g.Nodes)),
		outgoing: make(map[string][]int),
	}
	for i, n := range g.Nodes {
		if _, ok := idx.byID[n.ID]; !ok {
			idx.byID[n.ID] = i
		}
		if _, ok := idx.byLabel[n.Label]; !ok {
			idx.byLabel[n.Label] = i
		}
	}
	for i, e := range g.Edges {
		idx.outgoing[e.Source] = append(idx.outgoing[e.Source], i)
	}
	return idx
}

// Graph returns the indexed graph.
func (idx *Index) Graph() *Graph {
	return idx.graph
}

// Stage returns the stage with the given id.
func (idx *Index) Stage(id string) (Stage, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Stage{}, false
	}
	return idx.graph.Nodes[i], true
}

// StageByLabel returns the stage with the given label.
func (idx *Index) StageByLabel(label string) (Stage, bool) {
	i, ok := idx.byLabel[label]
	if !ok {
		return Stage{}, false
	}
	return idx.graph.Nodes[i], true
}

// Outgoing returns the transitions whose source is id, in graph order.
func (idx *Index) Outgoing(id string) []Transition {
	positions := idx.outgoing[id]
	out := make([]Transition, 0, len(positions))
	for _, i := range positions {
		out = append(out, idx.graph.Edges[i])
	}
	return out
}
