package coord

import (
	"fmt"
	"sort"

	"github.com/jakewins/price-signals/core/model"
)

// Allocations tolerate micro-amp rounding when checked against the limit.
const epsAmps model.Amps = 1e-6

// AllocatorFunc splits a step's capacity limit across the requests. The
// request order is stable (device ID order) so allocation is deterministic.
type AllocatorFunc func(reqs []Request, limit model.Amps) []Grant

var allocators = map[string]AllocatorFunc{
	"fair_share": FairShare,
	"priority":   Priority,
}

// NewAllocator resolves an allocator by name.
func NewAllocator(name string) (AllocatorFunc, error) {
	if name == "" {
		name = "fair_share"
	}
	alloc, ok := allocators[name]
	if !ok {
		names := make([]string, 0, len(allocators))
		for n := range allocators {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown allocator %q, have %v", name, names)
	}
	return alloc, nil
}

// FairShare fills requests max-min: capacity is split evenly, devices that
// want less than their share hand the surplus back, and the remainder is
// re-split over the still-hungry until nothing is left to give.
func FairShare(reqs []Request, limit model.Amps) []Grant {
	grants := make([]Grant, len(reqs))
	for i, r := range reqs {
		grants[i] = Grant{Device: r.Device}
	}
	remaining := limit
	hungry := make([]int, 0, len(reqs))
	for i, r := range reqs {
		if r.Amps > 0 {
			hungry = append(hungry, i)
		}
	}
	for len(hungry) > 0 && remaining > epsAmps {
		share := model.FloorAmps(remaining / model.Amps(len(hungry)))
		if share <= 0 {
			break
		}
		next := hungry[:0]
		for _, i := range hungry {
			want := reqs[i].Amps - grants[i].Amps
			give := min(share, want)
			grants[i].Amps += give
			remaining -= give
			if grants[i].Amps < reqs[i].Amps {
				next = append(next, i)
			}
		}
		hungry = next
	}
	return grants
}

// Priority serves the most urgent sessions first: fewest usable steps left,
// then largest remaining need, then device ID. Each request is filled as far
// as the remaining capacity allows before the next is considered.
func Priority(reqs []Request, limit model.Amps) []Grant {
	order := make([]int, len(reqs))
	for i := range reqs {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := reqs[order[a]], reqs[order[b]]
		if ra.StepsLeft != rb.StepsLeft {
			return ra.StepsLeft < rb.StepsLeft
		}
		if ra.RemainingKWh != rb.RemainingKWh {
			return ra.RemainingKWh > rb.RemainingKWh
		}
		return ra.Device < rb.Device
	})
	grants := make([]Grant, len(reqs))
	for i, r := range reqs {
		grants[i] = Grant{Device: r.Device}
	}
	remaining := limit
	for _, i := range order {
		if remaining <= 0 {
			break
		}
		give := model.FloorAmps(min(reqs[i].Amps, remaining))
		grants[i].Amps = give
		remaining -= give
	}
	return grants
}
