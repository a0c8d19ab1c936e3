package grid

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/kilianp07/mgdispatch/core/model"
)

// Connectivity answers reachability queries over the canonical actor list.
type Connectivity struct {
	labels []string
	index  map[string]int64
	g      *simple.DirectedGraph
}

// NewConnectivity builds the directed delivery graph. matrix[i][j] true means
// labels[j] can deliver power to labels[i].
func NewConnectivity(labels []string, matrix [][]bool) (*Connectivity, error) {
	if len(matrix) != len(labels) {
		return nil, fmt.Errorf("%w: %d rows for %d actors", model.ErrMatrixShape, len(matrix), len(labels))
	}
	c := &Connectivity{
		labels: append([]string(nil), labels...),
		index:  make(map[string]int64, len(labels)),
		g:      simple.NewDirectedGraph(),
	}
	for i, l := range labels {
		c.index[l] = int64(i)
		c.g.AddNode(simple.Node(i))
	}
	for i, row := range matrix {
		if len(row) != len(labels) {
			return nil, fmt.Errorf("%w: row %d has %d columns", model.ErrMatrixShape, i, len(row))
		}
		for j, ok := range row {
			if !ok || i == j {
				continue
			}
			c.g.SetEdge(c.g.NewEdge(simple.Node(j), simple.Node(i)))
		}
	}
	return c, nil
}

// Labels returns the canonical actor ordering.
func (c *Connectivity) Labels() []string { return c.labels }

// CanReach reports whether source can deliver power to sink, directly or
// through other actors. An actor never reaches itself.
func (c *Connectivity) CanReach(source, sink string) bool {
	from, ok := c.index[source]
	if !ok {
		return false
	}
	to, ok := c.index[sink]
	if !ok || from == to {
		return false
	}
	var bf traverse.BreadthFirst
	found := bf.Walk(c.g, c.g.Node(from), func(n graph.Node, _ int) bool {
		return n.ID() == to
	})
	return found != nil
}

// Reachable returns every actor source can deliver to, in canonical order.
func (c *Connectivity) Reachable(source string) []string {
	from, ok := c.index[source]
	if !ok {
		return nil
	}
	var ids []int
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) {
			if n.ID() != from {
				ids = append(ids, int(n.ID()))
			}
		},
	}
	bf.Walk(c.g, c.g.Node(from), nil)
	sort.Ints(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.labels[id]
	}
	return out
}

// CanReach is a convenience wrapper building a one-off Connectivity. A
// malformed matrix reaches nothing.
func CanReach(source, sink string, labels []string, matrix [][]bool) bool {
	c, err := NewConnectivity(labels, matrix)
	if err != nil {
		return false
	}
	return c.CanReach(source, sink)
}
