package dispatch

import (
	"fmt"
	"strings"

	"github.com/kilianp07/mgdispatch/core/model"
)

// WarningKind classifies orchestrator warnings.
type WarningKind string

const (
	// WarningRepeatedActors: a circuit lost participants already dispatched
	// by a larger circuit.
	WarningRepeatedActors WarningKind = "repeated_actors"
	// WarningDroppedProposal: a circuit proposal overlapped the accumulated
	// result and was discarded.
	WarningDroppedProposal WarningKind = "dropped_proposal"
)

// Warning is a non-fatal condition found while merging circuits.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Circuit int         `json:"circuit"`
	Actors  []string    `json:"actors"`
}

func (w Warning) String() string {
	return fmt.Sprintf("circuit %d: %s [%s]", w.Circuit, w.Kind, strings.Join(w.Actors, ", "))
}

// CircuitReport describes how one circuit was processed.
type CircuitReport struct {
	Index     int      `json:"index"`
	Suppliers []string `json:"suppliers"`
	Demanders []string `json:"demanders"`
	// Assigned counts the actors this circuit contributed to the result.
	Assigned int  `json:"assigned"`
	Dropped  bool `json:"dropped"`
}

// Result is the outcome of one dispatch run.
type Result struct {
	States   model.StateVector `json:"states"`
	Warnings []Warning         `json:"warnings,omitempty"`
	// Unserved lists bidders with a required demand that received no power.
	Unserved []string        `json:"unserved,omitempty"`
	Circuits []CircuitReport `json:"circuits"`
}

// WarningCount returns the number of warnings of kind k.
func (r Result) WarningCount(k WarningKind) int {
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == k {
			n++
		}
	}
	return n
}
