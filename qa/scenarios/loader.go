// Package scenarios replays YAML described microgrid timesteps through the
// dispatch manager and checks the resulting state vectors.
package scenarios

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/mgdispatch/core/model"
)

// ErrInvalidScenario is returned for scenario files that cannot describe a topology.
var ErrInvalidScenario = errors.New("invalid scenario")

type ActorDef struct {
	Label string `yaml:"label"`
	Kind  string `yaml:"kind,omitempty"`
}

type OfferDef struct {
	Label     string  `yaml:"label"`
	Cost      float64 `yaml:"cost"`
	Available float64 `yaml:"available"`
}

type BidDef struct {
	Label    string  `yaml:"label"`
	Benefit  float64 `yaml:"benefit"`
	Required float64 `yaml:"required"`
	Max      float64 `yaml:"max"`
}

// Expected lists the checks applied to one step. Labels missing from States
// are not checked.
type Expected struct {
	States   map[string]float64 `yaml:"states"`
	Warnings *int               `yaml:"warnings,omitempty"`
	Unserved []string           `yaml:"unserved,omitempty"`
}

type Step struct {
	Offers   []OfferDef `yaml:"offers"`
	Bids     []BidDef   `yaml:"bids"`
	Expected *Expected  `yaml:"expected,omitempty"`
}

// Scenario is a fixed grid replayed over one or more timesteps, each with
// fresh offers and bids.
type Scenario struct {
	Name           string        `yaml:"name"`
	Description    string        `yaml:"description,omitempty"`
	Tolerance      float64       `yaml:"tolerance"`
	ConflictPolicy string        `yaml:"conflict_policy,omitempty"`
	Start          time.Time     `yaml:"start"`
	Interval       time.Duration `yaml:"interval"`
	Actors         []ActorDef    `yaml:"actors"`
	// Links are "from->to" pairs. FullyConnected ignores them.
	Links          []string `yaml:"links"`
	FullyConnected bool     `yaml:"fully_connected"`
	Steps          []Step   `yaml:"steps"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if sc.Interval <= 0 {
		sc.Interval = time.Hour
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Actors) == 0 {
		return fmt.Errorf("%w: %s has no actors", ErrInvalidScenario, sc.Name)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidScenario, sc.Name)
	}
	_, err := sc.Matrix()
	return err
}

// Labels returns the canonical actor order.
func (sc *Scenario) Labels() []string {
	out := make([]string, len(sc.Actors))
	for i, a := range sc.Actors {
		out[i] = a.Label
	}
	return out
}

// Matrix builds the connectivity matrix from the link list.
func (sc *Scenario) Matrix() ([][]bool, error) {
	if sc.FullyConnected {
		return model.FullyConnected(len(sc.Actors)), nil
	}
	idx := make(map[string]int, len(sc.Actors))
	for i, a := range sc.Actors {
		idx[a.Label] = i
	}
	m := make([][]bool, len(sc.Actors))
	for i := range m {
		m[i] = make([]bool, len(sc.Actors))
	}
	for _, l := range sc.Links {
		from, to, ok := strings.Cut(l, "->")
		if !ok {
			return nil, fmt.Errorf("%w: link %q is not from->to", ErrInvalidScenario, l)
		}
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		fi, fok := idx[from]
		ti, tok := idx[to]
		if !fok || !tok {
			return nil, fmt.Errorf("%w: link %q names an unknown actor", ErrInvalidScenario, l)
		}
		m[ti][fi] = true
	}
	return m, nil
}

// Topologies returns one topology per step, timestamped Start + i*Interval.
func (sc *Scenario) Topologies() ([]model.Topology, error) {
	matrix, err := sc.Matrix()
	if err != nil {
		return nil, err
	}
	actors := make([]model.Actor, len(sc.Actors))
	for i, a := range sc.Actors {
		actors[i] = model.Actor{Label: a.Label, Kind: model.Kind(a.Kind)}
	}
	out := make([]model.Topology, len(sc.Steps))
	for i, st := range sc.Steps {
		topo := model.Topology{
			Actors:    actors,
			Matrix:    matrix,
			Tolerance: sc.Tolerance,
			Timestamp: sc.Start.Add(time.Duration(i) * sc.Interval),
		}
		for _, o := range st.Offers {
			topo.Offers = append(topo.Offers, model.SupplyOffer{Label: o.Label, Cost: o.Cost, Available: o.Available})
		}
		for _, b := range st.Bids {
			topo.Bids = append(topo.Bids, model.DemandBid{Label: b.Label, Benefit: b.Benefit, Required: b.Required, Max: b.Max})
		}
		if err := topo.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out[i] = topo
	}
	return out, nil
}
