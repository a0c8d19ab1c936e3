package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/mgdispatch/core/model"
)

var (
	// ErrQueueExhausted signals that a cursor moved past the last offer or
	// bid. It ends the current matching pass and is never returned to callers.
	ErrQueueExhausted = errors.New("queue exhausted")
	// ErrInvalidQueue is returned when a queue was not produced by the queue
	// builders: it holds non-participating entries or is out of order.
	ErrInvalidQueue = errors.New("invalid queue")

	errNotViable  = errors.New("benefit below cost")
	errSelfSupply = errors.New("demander is current supplier")
)

// Assignments maps actor labels to signed net power.
type Assignments map[string]float64

// Leftover is the supply cursor position handed from the required pass to the
// max pass.
type Leftover struct {
	Index     int
	Remaining float64
}

// checkpoint is the last committed supply position. A failed required-demand
// attempt restores it.
type checkpoint struct {
	supplier  int
	remaining float64
	demander  int
}

// Matcher pairs a demand queue with a supply queue for one circuit. It is
// single use: MeetRequired then MeetMax.
type Matcher struct {
	demand []model.DemandBid
	supply []model.SupplyOffer
	tol    float64

	result    Assignments
	committed map[string]bool
	si        int
	remaining float64
	di        int
}

// NewMatcher validates the queues and positions the supply cursor on the
// cheapest offer.
func NewMatcher(demand []model.DemandBid, supply []model.SupplyOffer, tol float64) (*Matcher, error) {
	for i, s := range supply {
		if !s.Participates(tol) {
			return nil, fmt.Errorf("%w: offer %s does not participate", ErrInvalidQueue, s.Label)
		}
		if i > 0 && supply[i-1].Cost > s.Cost {
			return nil, fmt.Errorf("%w: supply not sorted by ascending cost at %s", ErrInvalidQueue, s.Label)
		}
	}
	for i, d := range demand {
		if !d.Participates(tol) {
			return nil, fmt.Errorf("%w: bid %s does not participate", ErrInvalidQueue, d.Label)
		}
		if i > 0 && demand[i-1].Benefit < d.Benefit {
			return nil, fmt.Errorf("%w: demand not sorted by descending benefit at %s", ErrInvalidQueue, d.Label)
		}
	}
	m := &Matcher{
		demand:    demand,
		supply:    supply,
		tol:       tol,
		result:    make(Assignments),
		committed: make(map[string]bool),
	}
	if len(supply) > 0 {
		m.remaining = supply[0].Available
	}
	return m, nil
}

// Match runs both passes and returns the circuit proposal.
func Match(demand []model.DemandBid, supply []model.SupplyOffer, tol float64) (Assignments, error) {
	m, err := NewMatcher(demand, supply, tol)
	if err != nil {
		return nil, err
	}
	if _, err := m.MeetRequired(); err != nil {
		return nil, err
	}
	return m.MeetMax()
}

// Leftover reports the supply cursor.
func (m *Matcher) Leftover() Leftover {
	return Leftover{Index: m.si, Remaining: m.remaining}
}

// Committed reports whether the required demand of label was met.
func (m *Matcher) Committed(label string) bool { return m.committed[label] }

// supplier returns the current supplier, first advancing past exhausted
// suppliers and suppliers that are themselves receiving power.
func (m *Matcher) supplier() (model.SupplyOffer, error) {
	for m.si < len(m.supply) {
		s := m.supply[m.si]
		if m.remaining > m.tol && m.result[s.Label] >= 0 {
			return s, nil
		}
		m.si++
		if m.si < len(m.supply) {
			m.remaining = m.supply[m.si].Available
		}
	}
	return model.SupplyOffer{}, ErrQueueExhausted
}

func (m *Matcher) save() checkpoint {
	return checkpoint{supplier: m.si, remaining: m.remaining, demander: m.di}
}

func (m *Matcher) restore(cp checkpoint) {
	m.si = cp.supplier
	m.remaining = cp.remaining
	m.di = cp.demander
}

// MeetRequired satisfies required demands all-or-nothing, in descending
// benefit order. Supply drawn for a demander is held aside until the whole
// requirement is met; otherwise the supply cursor returns to the last
// checkpoint and matching resumes with the next demander. Demanders that
// cannot be met stay unassigned.
func (m *Matcher) MeetRequired() (Assignments, error) {
	for m.di = 0; m.di < len(m.demand); m.di++ {
		d := m.demand[m.di]
		if d.Required <= m.tol {
			continue
		}
		if _, seen := m.result[d.Label]; seen {
			continue
		}
		cp := m.save()
		pending, err := m.drawRequired(d)
		switch {
		case err == nil:
			m.result[d.Label] = -d.Required
			for label, p := range pending {
				m.result[label] += p
			}
			m.committed[d.Label] = true
		case errors.Is(err, ErrQueueExhausted), errors.Is(err, errNotViable), errors.Is(err, errSelfSupply):
			m.restore(cp)
		default:
			return m.result, fmt.Errorf("required demand of %s: %w", d.Label, err)
		}
	}
	return m.result, nil
}

func (m *Matcher) drawRequired(d model.DemandBid) (map[string]float64, error) {
	pending := make(map[string]float64)
	need := d.Required
	for need > m.tol {
		s, err := m.supplier()
		if err != nil {
			return nil, err
		}
		if s.Label == d.Label {
			return nil, errSelfSupply
		}
		if d.Benefit < s.Cost {
			return nil, errNotViable
		}
		take := math.Min(need, m.remaining)
		pending[s.Label] += take
		m.remaining -= take
		need -= take
	}
	return pending, nil
}

// MeetMax fills the headroom above required demand from the supply left by
// MeetRequired. Progress is committed immediately. The pass stops at the
// first demander whose benefit is below the current cost or when either
// queue runs out.
func (m *Matcher) MeetMax() (Assignments, error) {
	for _, d := range m.demand {
		if !m.headroomEligible(d) {
			continue
		}
		want := d.Headroom()
		for want > m.tol {
			s, err := m.supplier()
			if errors.Is(err, ErrQueueExhausted) {
				return m.result, nil
			}
			if err != nil {
				return m.result, fmt.Errorf("max demand of %s: %w", d.Label, err)
			}
			if s.Label == d.Label {
				break
			}
			if d.Benefit < s.Cost {
				return m.result, nil
			}
			take := math.Min(want, m.remaining)
			m.result[d.Label] -= take
			m.result[s.Label] += take
			m.remaining -= take
			want -= take
		}
	}
	return m.result, nil
}

func (m *Matcher) headroomEligible(d model.DemandBid) bool {
	if p, ok := m.result[d.Label]; ok && p > 0 {
		return false
	}
	if d.Required > m.tol && !m.committed[d.Label] {
		return false
	}
	return d.Headroom() > m.tol
}
