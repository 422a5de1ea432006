package coord

import (
	"fmt"

	"github.com/jakewins/price-signals/core/model"
)

// Negotiated grants per-step draw ceilings through an allocator. Devices
// never learn about each other, only about their own grant.
type Negotiated struct {
	allocator     AllocatorFunc
	allocatorName string
}

// NewNegotiated builds a negotiator around the named allocator.
func NewNegotiated(allocator string) (*Negotiated, error) {
	if allocator == "" {
		allocator = "fair_share"
	}
	alloc, err := NewAllocator(allocator)
	if err != nil {
		return nil, err
	}
	return &Negotiated{allocator: alloc, allocatorName: allocator}, nil
}

func (n *Negotiated) Name() string { return "negotiated" }

// Allocator names the allocator in use, for reports and logs.
func (n *Negotiated) Allocator() string { return n.allocatorName }

// Negotiate runs the allocator and verifies its output before anything is
// handed to a device: grants must stay within the limit and within what
// each device asked for.
func (n *Negotiated) Negotiate(step int, reqs []Request, limit model.Amps) ([]Grant, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	grants := n.allocator(reqs, limit)
	if len(grants) != len(reqs) {
		return nil, fmt.Errorf("step %d: %d grants for %d requests: %w", step, len(grants), len(reqs), ErrAllocationConflict)
	}
	var total model.Amps
	for i, g := range grants {
		if g.Device != reqs[i].Device {
			return nil, fmt.Errorf("step %d: grant %d for %q, request was %q: %w", step, i, g.Device, reqs[i].Device, ErrAllocationConflict)
		}
		if g.Amps < 0 || g.Amps > reqs[i].Amps+epsAmps {
			return nil, fmt.Errorf("step %d: device %s granted %v for a %v request: %w", step, g.Device, g.Amps, reqs[i].Amps, ErrAllocationConflict)
		}
		total += g.Amps
	}
	if total > limit+epsAmps {
		return nil, fmt.Errorf("step %d: grants sum to %v, limit is %v: %w", step, total, limit, ErrAllocationConflict)
	}
	return grants, nil
}
