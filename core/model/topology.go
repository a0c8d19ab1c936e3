package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptyLabel       = errors.New("empty actor label")
	ErrDuplicateLabel   = errors.New("duplicate actor label")
	ErrMatrixShape      = errors.New("connectivity matrix does not match actor list")
	ErrUnknownActor     = errors.New("unknown actor")
	ErrInvalidTolerance = errors.New("invalid tolerance")
)

// Topology is the complete input of one dispatch call: the canonical ordered
// actor list, the connectivity matrix over that ordering and every offer and
// bid for the timestep. Matrix[i][j] true means actor j can deliver power to
// actor i.
type Topology struct {
	Actors    []Actor
	Matrix    [][]bool
	Offers    []SupplyOffer
	Bids      []DemandBid
	Tolerance float64
	Timestamp time.Time
}

// Labels returns the canonical ordered actor labels.
func (t Topology) Labels() []string {
	out := make([]string, len(t.Actors))
	for i, a := range t.Actors {
		out[i] = a.Label
	}
	return out
}

// Index maps each label to its position in the canonical ordering.
func (t Topology) Index() map[string]int {
	idx := make(map[string]int, len(t.Actors))
	for i, a := range t.Actors {
		idx[a.Label] = i
	}
	return idx
}

// Kind returns the kind of the labelled actor, or "" if unknown.
func (t Topology) Kind(label string) Kind {
	for _, a := range t.Actors {
		if a.Label == label {
			return a.Kind
		}
	}
	return ""
}

// Validate checks that the topology is well formed. Offers and bids that
// merely do not participate are not errors.
//
//gocyclo:ignore
func (t Topology) Validate() error {
	if t.Tolerance < 0 || math.IsNaN(t.Tolerance) || math.IsInf(t.Tolerance, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, t.Tolerance)
	}
	idx := make(map[string]int, len(t.Actors))
	for i, a := range t.Actors {
		if a.Label == "" {
			return fmt.Errorf("%w at index %d", ErrEmptyLabel, i)
		}
		if _, ok := idx[a.Label]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, a.Label)
		}
		idx[a.Label] = i
	}
	if len(t.Matrix) != len(t.Actors) {
		return fmt.Errorf("%w: %d rows for %d actors", ErrMatrixShape, len(t.Matrix), len(t.Actors))
	}
	for i, row := range t.Matrix {
		if len(row) != len(t.Actors) {
			return fmt.Errorf("%w: row %d has %d columns", ErrMatrixShape, i, len(row))
		}
	}
	offered := make(map[string]struct{}, len(t.Offers))
	for _, o := range t.Offers {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, ok := idx[o.Label]; !ok {
			return fmt.Errorf("%w: offer from %s", ErrUnknownActor, o.Label)
		}
		if _, ok := offered[o.Label]; ok {
			return fmt.Errorf("%w: second offer from %s", ErrDuplicateLabel, o.Label)
		}
		offered[o.Label] = struct{}{}
	}
	bidden := make(map[string]struct{}, len(t.Bids))
	for _, b := range t.Bids {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, ok := idx[b.Label]; !ok {
			return fmt.Errorf("%w: bid from %s", ErrUnknownActor, b.Label)
		}
		if _, ok := bidden[b.Label]; ok {
			return fmt.Errorf("%w: second bid from %s", ErrDuplicateLabel, b.Label)
		}
		bidden[b.Label] = struct{}{}
	}
	return nil
}

// FullyConnected returns an n×n matrix where every actor delivers to every
// other actor. The diagonal is left false.
func FullyConnected(n int) [][]bool {
	m := make([][]bool, n)
	for i := range m {
		m[i] = make([]bool, n)
		for j := range m[i] {
			m[i][j] = i != j
		}
	}
	return m
}
