// Package leader resolves the current slot's leader (and its immediate
// successor) to TPU endpoints, combining the cluster node table and the
// leader schedule cache. It is a plain value type with no locking of its
// own, called from a single goroutine: the forwarder's event loop, or the
// caller of the embedded facade.
package leader

import (
	"github.com/solpipe/tpuforward/cluster"
	"github.com/solpipe/tpuforward/schedule"
)

// Result is the resolver's output for one slot tick.
type Result struct {
	HasCurrent bool
	Current    cluster.Endpoint
	HasNext    bool
	Next       cluster.Endpoint
}

type Resolver struct {
	Table    *cluster.Table
	Schedule *schedule.Schedule

	slot uint64
}

func New(table *cluster.Table, sched *schedule.Schedule) *Resolver {
	return &Resolver{Table: table, Schedule: sched}
}

func (r *Resolver) CurrentSlot() uint64 {
	return r.slot
}

// OnSlot implements §4.5: discard non-advancing slots, otherwise update
// the watermark and resolve (current, next) leader endpoints. The
// caller is responsible for issuing a prefetch when NeedsPrefetch is
// true; OnSlot's bool result only reports whether the slot advanced,
// alongside the resolved endpoints.
func (r *Resolver) OnSlot(newSlot uint64) (Result, bool) {
	if newSlot <= r.slot {
		return Result{}, false
	}
	r.slot = newSlot

	var res Result
	pkey, hasP := r.Schedule.LeaderOf(r.slot)
	if hasP {
		if ep, ok := r.Table.EndpointOf(pkey); ok {
			res.HasCurrent = true
			res.Current = ep
		}
	}

	nkey, hasN := r.Schedule.LeaderOf(r.slot + 1)
	if hasN && (!hasP || nkey != pkey) {
		if ep, ok := r.Table.EndpointOf(nkey); ok {
			res.HasNext = true
			res.Next = ep
		}
	}

	return res, true
}
