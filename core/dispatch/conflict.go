package dispatch

import (
	"sort"

	"github.com/kilianp07/mgdispatch/core/market"
)

// mergeProposal merges a circuit proposal into acc and returns the labels it
// discarded, sorted. Nothing is discarded when the proposal is disjoint from acc.
func mergeProposal(acc, proposal market.Assignments, policy ConflictPolicy) []string {
	var overlap []string
	for label := range proposal {
		if _, ok := acc[label]; ok {
			overlap = append(overlap, label)
		}
	}
	if len(overlap) == 0 {
		for label, p := range proposal {
			acc[label] = p
		}
		return nil
	}
	if policy == PolicyDiscardOverlap {
		sort.Strings(overlap)
		for label, p := range proposal {
			if _, ok := acc[label]; !ok {
				acc[label] = p
			}
		}
		return overlap
	}
	dropped := make([]string, 0, len(proposal))
	for label := range proposal {
		dropped = append(dropped, label)
	}
	sort.Strings(dropped)
	return dropped
}
