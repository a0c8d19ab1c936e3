package grid

import (
	"slices"
	"sort"
)

// Circuit groups suppliers that can each reach every demander of the circuit.
// Circuits produced by Decompose may share actors.
type Circuit struct {
	Suppliers []string
	Demanders []string
}

// Actors returns the distinct labels of the circuit, suppliers first.
func (c Circuit) Actors() []string {
	seen := make(map[string]struct{}, len(c.Suppliers)+len(c.Demanders))
	var out []string
	for _, l := range append(append([]string(nil), c.Suppliers...), c.Demanders...) {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Size is the number of distinct actors in the circuit.
func (c Circuit) Size() int { return len(c.Actors()) }

// HasSupplier reports whether label is one of the circuit suppliers.
func (c Circuit) HasSupplier(label string) bool { return slices.Contains(c.Suppliers, label) }

// HasDemander reports whether label is one of the circuit demanders.
func (c Circuit) HasDemander(label string) bool { return slices.Contains(c.Demanders, label) }

type labelSet map[string]struct{}

func newLabelSet(labels []string) labelSet {
	s := make(labelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s labelSet) subsetOf(o labelSet) bool {
	if len(s) > len(o) {
		return false
	}
	for l := range s {
		if _, ok := o[l]; !ok {
			return false
		}
	}
	return true
}

func (s labelSet) equal(o labelSet) bool {
	return len(s) == len(o) && s.subsetOf(o)
}

type building struct {
	suppliers []string
	demanders labelSet
	order     []string
}

// Decompose partitions the grid into circuits keyed by their demander sets.
// Actors are processed in canonical order. Each actor with a non-empty
// reachable set joins every existing circuit whose demanders it can all
// reach, then opens a new circuit unless one already has exactly its
// reachable set as demanders.
func Decompose(c *Connectivity) []Circuit {
	var circuits []*building
	for _, s := range c.Labels() {
		reach := c.Reachable(s)
		if len(reach) == 0 {
			continue
		}
		rs := newLabelSet(reach)
		exact := false
		for _, b := range circuits {
			if !b.demanders.subsetOf(rs) {
				continue
			}
			b.suppliers = append(b.suppliers, s)
			if b.demanders.equal(rs) {
				exact = true
			}
		}
		if !exact {
			circuits = append(circuits, &building{suppliers: []string{s}, demanders: rs, order: reach})
		}
	}
	out := make([]Circuit, len(circuits))
	for i, b := range circuits {
		out[i] = Circuit{Suppliers: b.suppliers, Demanders: b.order}
	}
	return out
}

// SortBySize orders circuits by distinct actor count, largest first. Equal
// sizes keep their decomposition order.
func SortBySize(circuits []Circuit) []Circuit {
	out := append([]Circuit(nil), circuits...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Size() > out[j].Size()
	})
	return out
}
