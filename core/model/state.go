package model

// ActorState is the signed net power of one actor: positive when supplying,
// negative when consuming, zero when idle or disconnected.
type ActorState struct {
	Label string  `json:"label"`
	Power float64 `json:"power"`
}

// StateVector is aligned index-for-index with the canonical actor list.
type StateVector []ActorState

// NewStateVector looks up each label in assigned, defaulting to zero.
func NewStateVector(labels []string, assigned map[string]float64) StateVector {
	sv := make(StateVector, len(labels))
	for i, l := range labels {
		sv[i] = ActorState{Label: l, Power: assigned[l]}
	}
	return sv
}

// Get returns the state of the labelled actor and whether it is present.
func (sv StateVector) Get(label string) (float64, bool) {
	for _, s := range sv {
		if s.Label == label {
			return s.Power, true
		}
	}
	return 0, false
}

// Map returns the state vector keyed by label.
func (sv StateVector) Map() map[string]float64 {
	m := make(map[string]float64, len(sv))
	for _, s := range sv {
		m[s.Label] = s.Power
	}
	return m
}

// Values returns the powers in canonical order.
func (sv StateVector) Values() []float64 {
	out := make([]float64, len(sv))
	for i, s := range sv {
		out[i] = s.Power
	}
	return out
}

// Supplied is the total positive power.
func (sv StateVector) Supplied() float64 {
	var sum float64
	for _, s := range sv {
		if s.Power > 0 {
			sum += s.Power
		}
	}
	return sum
}

// Consumed is the total consumed power as a positive number.
func (sv StateVector) Consumed() float64 {
	var sum float64
	for _, s := range sv {
		if s.Power < 0 {
			sum -= s.Power
		}
	}
	return sum
}

// Balance is the signed sum of all states. A perfectly matched dispatch has a
// balance of zero.
func (sv StateVector) Balance() float64 {
	var sum float64
	for _, s := range sv {
		sum += s.Power
	}
	return sum
}
