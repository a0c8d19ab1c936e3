package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSupplyOffer(t *testing.T) {
	_, err := NewSupplyOffer("", 1, 1)
	assert.ErrorIs(t, err, ErrMalformedOffer)

	_, err = NewSupplyOffer("g", math.NaN(), 1)
	assert.ErrorIs(t, err, ErrMalformedOffer)

	o, err := NewSupplyOffer("g", Unavailable, 10)
	require.NoError(t, err)
	assert.False(t, o.Participates(0.001), "infinite cost never participates")
}

func TestNewDemandBid(t *testing.T) {
	_, err := NewDemandBid("l", 1, 10, 5)
	assert.ErrorIs(t, err, ErrMalformedBid)

	b, err := NewDemandBid("l", 0.1, 40, 60)
	require.NoError(t, err)
	assert.True(t, b.Participates(0.001))
	assert.Equal(t, 20.0, b.Headroom())

	neg := DemandBid{Label: "l", Benefit: -1, Required: 0, Max: 0}
	assert.False(t, neg.Participates(0.001))
}

func TestTopologyValidate(t *testing.T) {
	actors := []Actor{{Label: "a"}, {Label: "b"}}
	cases := []struct {
		name string
		topo Topology
		want error
	}{
		{"ok", Topology{Actors: actors, Matrix: FullyConnected(2)}, nil},
		{"negative tolerance", Topology{Actors: actors, Matrix: FullyConnected(2), Tolerance: -1}, ErrInvalidTolerance},
		{"duplicate", Topology{Actors: []Actor{{Label: "a"}, {Label: "a"}}, Matrix: FullyConnected(2)}, ErrDuplicateLabel},
		{"empty label", Topology{Actors: []Actor{{Label: ""}}, Matrix: FullyConnected(1)}, ErrEmptyLabel},
		{"rows", Topology{Actors: actors, Matrix: FullyConnected(1)}, ErrMatrixShape},
		{"columns", Topology{Actors: actors, Matrix: [][]bool{{false, true}, {true}}}, ErrMatrixShape},
		{"unknown offer", Topology{Actors: actors, Matrix: FullyConnected(2), Offers: []SupplyOffer{{Label: "x", Cost: 1}}}, ErrUnknownActor},
		{"unknown bid", Topology{Actors: actors, Matrix: FullyConnected(2), Bids: []DemandBid{{Label: "x"}}}, ErrUnknownActor},
		{"second offer", Topology{Actors: actors, Matrix: FullyConnected(2), Offers: []SupplyOffer{{Label: "a"}, {Label: "a"}}}, ErrDuplicateLabel},
		{"malformed bid", Topology{Actors: actors, Matrix: FullyConnected(2), Bids: []DemandBid{{Label: "a", Required: 2, Max: 1}}}, ErrMalformedBid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.topo.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
		})
	}
}

func TestStateVector(t *testing.T) {
	sv := NewStateVector([]string{"g", "l", "idle"}, map[string]float64{"g": 60, "l": -60})
	require.Len(t, sv, 3)
	assert.Equal(t, "idle", sv[2].Label)
	p, ok := sv.Get("l")
	assert.True(t, ok)
	assert.Equal(t, -60.0, p)
	assert.Equal(t, 60.0, sv.Supplied())
	assert.Equal(t, 60.0, sv.Consumed())
	assert.Zero(t, sv.Balance())
	assert.Equal(t, []float64{60, -60, 0}, sv.Values())
}
