package dispatch

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/mgdispatch/core/grid"
	"github.com/kilianp07/mgdispatch/core/logger"
	"github.com/kilianp07/mgdispatch/core/market"
	"github.com/kilianp07/mgdispatch/core/model"
)

// Dispatcher computes the state vector of one timestep. It keeps no state
// between calls and is safe for concurrent use.
type Dispatcher struct {
	cfg Config
	log logger.Logger
}

// NewDispatcher returns a Dispatcher after applying defaults to cfg.
func NewDispatcher(cfg Config, log logger.Logger) (*Dispatcher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{cfg: cfg, log: log}, nil
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config { return d.cfg }

// Tolerance returns the tolerance used for topo.
func (d *Dispatcher) Tolerance(topo model.Topology) float64 {
	if topo.Tolerance > 0 {
		return topo.Tolerance
	}
	return d.cfg.Tolerance
}

// Dispatch validates topo and returns its state vector along with the
// warnings raised while merging circuits. Invalid input is reported with the
// model error it violates; matching failures are never swallowed.
func (d *Dispatcher) Dispatch(topo model.Topology) (Result, error) {
	start := time.Now()
	if err := topo.Validate(); err != nil {
		return Result{}, fmt.Errorf("dispatch: %w", err)
	}
	tol := d.Tolerance(topo)
	labels := topo.Labels()
	conn, err := grid.NewConnectivity(labels, topo.Matrix)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: %w", err)
	}
	circuits := grid.SortBySize(grid.Decompose(conn))

	offers := make(map[string]model.SupplyOffer, len(topo.Offers))
	for _, o := range topo.Offers {
		offers[o.Label] = o
	}
	bids := make(map[string]model.DemandBid, len(topo.Bids))
	for _, b := range topo.Bids {
		bids[b.Label] = b
	}

	acc := make(market.Assignments)
	res := Result{Circuits: make([]CircuitReport, 0, len(circuits))}
	for i, c := range circuits {
		report := CircuitReport{Index: i, Suppliers: c.Suppliers, Demanders: c.Demanders}

		circuitOffers, circuitBids, repeated := filterCircuit(c, offers, bids, acc)
		if len(repeated) > 0 {
			res.Warnings = append(res.Warnings, d.warn(WarningRepeatedActors, i, repeated))
		}

		proposal, err := market.Match(
			market.BuildDemandQueue(tol, circuitBids),
			market.BuildSupplyQueue(tol, circuitOffers),
			tol,
		)
		if err != nil {
			return Result{}, fmt.Errorf("dispatch: circuit %d: %w", i, err)
		}

		dropped := mergeProposal(acc, proposal, d.cfg.ConflictPolicy)
		if len(dropped) > 0 {
			res.Warnings = append(res.Warnings, d.warn(WarningDroppedProposal, i, dropped))
			report.Dropped = true
		}
		report.Assigned = len(proposal) - len(dropped)
		res.Circuits = append(res.Circuits, report)
	}

	res.States = model.NewStateVector(labels, acc)
	res.Unserved = unserved(topo.Bids, res.States, tol)
	d.observe(res, time.Since(start))
	return res, nil
}

// filterCircuit selects the offers and bids of the circuit's members that are
// not yet dispatched. repeated lists the participating members that were
// excluded because an earlier circuit already assigned them.
func filterCircuit(c grid.Circuit, offers map[string]model.SupplyOffer, bids map[string]model.DemandBid, acc market.Assignments) ([]model.SupplyOffer, []model.DemandBid, []string) {
	seen := make(map[string]struct{})
	var repeated []string
	mark := func(label string) {
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			repeated = append(repeated, label)
		}
	}

	var circuitOffers []model.SupplyOffer
	for _, label := range c.Suppliers {
		o, ok := offers[label]
		if !ok {
			continue
		}
		if _, done := acc[label]; done {
			mark(label)
			continue
		}
		circuitOffers = append(circuitOffers, o)
	}
	var circuitBids []model.DemandBid
	for _, label := range c.Demanders {
		b, ok := bids[label]
		if !ok {
			continue
		}
		if _, done := acc[label]; done {
			mark(label)
			continue
		}
		circuitBids = append(circuitBids, b)
	}
	sort.Strings(repeated)
	return circuitOffers, circuitBids, repeated
}

func unserved(bids []model.DemandBid, states model.StateVector, tol float64) []string {
	var out []string
	for _, b := range bids {
		if !b.Participates(tol) || b.Required <= tol {
			continue
		}
		if p, _ := states.Get(b.Label); p >= 0 {
			out = append(out, b.Label)
		}
	}
	return out
}

func (d *Dispatcher) warn(kind WarningKind, circuit int, actors []string) Warning {
	w := Warning{Kind: kind, Circuit: circuit, Actors: actors}
	if d.log != nil {
		d.log.Warnw("non-independent circuit", map[string]any{
			"kind":    string(kind),
			"circuit": circuit,
			"actors":  actors,
		})
	}
	return w
}

func (d *Dispatcher) observe(res Result, elapsed time.Duration) {
	runsTotal.Inc()
	circuitsGauge.Set(float64(len(res.Circuits)))
	unservedGauge.Set(float64(len(res.Unserved)))
	for _, w := range res.Warnings {
		warningsTotal.WithLabelValues(string(w.Kind)).Inc()
	}
	dispatchLatency.Observe(elapsed.Seconds())
	if d.log != nil {
		d.log.Debugf("dispatched %d actors over %d circuits in %s", len(res.States), len(res.Circuits), elapsed)
	}
}
