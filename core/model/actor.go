package model

import (
	"errors"
	"fmt"
	"math"
)

// Unavailable is the cost sentinel for an actor that cannot supply power.
var Unavailable = math.Inf(1)

var (
	// ErrMalformedOffer is returned when a supply offer has an invalid shape.
	ErrMalformedOffer = errors.New("malformed supply offer")
	// ErrMalformedBid is returned when a demand bid has an invalid shape.
	ErrMalformedBid = errors.New("malformed demand bid")
)

// Kind classifies a grid actor. It is informational only; dispatch treats all
// actors alike.
type Kind string

const (
	KindGenerator    Kind = "generator"
	KindBattery      Kind = "battery"
	KindPhotovoltaic Kind = "photovoltaic"
	KindLoad         Kind = "load"
	KindUtility      Kind = "utility"
	KindBus          Kind = "bus"
)

// Actor is any entity on the grid that can supply, consume or route power.
type Actor struct {
	Label string
	Kind  Kind
}

// SupplyOffer is the willingness of an actor to supply up to Available units
// at Cost per unit.
type SupplyOffer struct {
	Label     string
	Cost      float64
	Available float64
}

// NewSupplyOffer returns a validated offer. An infinite cost is accepted: it
// marks the actor as non-participating and is filtered before queueing.
func NewSupplyOffer(label string, cost, available float64) (SupplyOffer, error) {
	o := SupplyOffer{Label: label, Cost: cost, Available: available}
	if err := o.Validate(); err != nil {
		return SupplyOffer{}, err
	}
	return o, nil
}

// Validate checks the shape of the offer.
func (o SupplyOffer) Validate() error {
	if o.Label == "" {
		return fmt.Errorf("%w: empty label", ErrMalformedOffer)
	}
	if math.IsNaN(o.Cost) || math.IsNaN(o.Available) {
		return fmt.Errorf("%w: %s has NaN value", ErrMalformedOffer, o.Label)
	}
	return nil
}

// Participates reports whether the offer can enter a supply queue.
func (o SupplyOffer) Participates(tol float64) bool {
	return !math.IsInf(o.Cost, 0) && !math.IsNaN(o.Cost) && o.Available > -tol
}

// DemandBid is the willingness of an actor to consume power at Benefit per
// unit. Required is all-or-nothing; Max caps the total consumption.
type DemandBid struct {
	Label    string
	Benefit  float64
	Required float64
	Max      float64
}

// NewDemandBid returns a validated bid.
func NewDemandBid(label string, benefit, required, max float64) (DemandBid, error) {
	b := DemandBid{Label: label, Benefit: benefit, Required: required, Max: max}
	if err := b.Validate(); err != nil {
		return DemandBid{}, err
	}
	return b, nil
}

// Validate checks the shape of the bid.
func (b DemandBid) Validate() error {
	if b.Label == "" {
		return fmt.Errorf("%w: empty label", ErrMalformedBid)
	}
	if math.IsNaN(b.Benefit) || math.IsNaN(b.Required) || math.IsNaN(b.Max) {
		return fmt.Errorf("%w: %s has NaN value", ErrMalformedBid, b.Label)
	}
	if b.Max < b.Required {
		return fmt.Errorf("%w: %s max demand %.3f below required %.3f", ErrMalformedBid, b.Label, b.Max, b.Required)
	}
	return nil
}

// Participates reports whether the bid can enter a demand queue.
func (b DemandBid) Participates(tol float64) bool {
	return b.Benefit > -tol && b.Required > -tol
}

// Headroom is the demand above the required amount.
func (b DemandBid) Headroom() float64 {
	h := b.Max - b.Required
	if h < 0 {
		return 0
	}
	return h
}
