package market

import (
	"cmp"
	"slices"

	"github.com/kilianp07/mgdispatch/core/model"
)

// BuildSupplyQueue drops non-participating offers and sorts the rest by
// ascending cost. Ties keep their input order.
func BuildSupplyQueue(tol float64, offers []model.SupplyOffer) []model.SupplyOffer {
	q := make([]model.SupplyOffer, 0, len(offers))
	for _, o := range offers {
		if o.Participates(tol) {
			q = append(q, o)
		}
	}
	slices.SortStableFunc(q, func(a, b model.SupplyOffer) int {
		return cmp.Compare(a.Cost, b.Cost)
	})
	return q
}

// BuildDemandQueue drops non-participating bids and sorts the rest by
// descending benefit. Ties keep their input order.
func BuildDemandQueue(tol float64, bids []model.DemandBid) []model.DemandBid {
	q := make([]model.DemandBid, 0, len(bids))
	for _, b := range bids {
		if b.Participates(tol) {
			q = append(q, b)
		}
	}
	slices.SortStableFunc(q, func(a, b model.DemandBid) int {
		return cmp.Compare(b.Benefit, a.Benefit)
	})
	return q
}
