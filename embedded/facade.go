// Package embedded provides the in-process submission facade used when
// the forwarder is linked directly into a publishing application
// instead of being reached over TCP: the caller builds and submits a
// transaction in the same call stack, with no socket in between.
package embedded

import (
	"github.com/solpipe/tpuforward/cluster"
	"github.com/solpipe/tpuforward/egress"
	"github.com/solpipe/tpuforward/leader"
	"github.com/solpipe/tpuforward/netbuf"
)

// Request is anything that can serialize itself into a pooled buffer,
// the in-process analog of the TCP ingress's decoded frame body.
type Request interface {
	Build(buf *netbuf.Buffer) error
}

// Facade is the embeddable entry point: Submit builds and sprays a
// transaction using the resolver's last-computed leader endpoints,
// Poll advances the resolver when the slot clock ticks forward.
type Facade struct {
	pool     *netbuf.Pool
	sender   *egress.Sender
	resolver *leader.Resolver
	lastSlot uint64
	lastRes  leader.Result
}

func NewFacade(pool *netbuf.Pool, sender *egress.Sender, resolver *leader.Resolver) *Facade {
	return &Facade{pool: pool, sender: sender, resolver: resolver}
}

// Poll mirrors tpu_embed::poll's `slot_ != slot` guard: the resolver is
// only re-run when the observed slot has actually changed.
func (f *Facade) Poll(slot uint64) {
	if slot == f.lastSlot {
		return
	}
	if res, advanced := f.resolver.OnSlot(slot); advanced {
		f.lastRes = res
	}
	f.lastSlot = slot
}

// Submit builds req into a pooled buffer and sprays it at whichever
// leader endpoints are currently known, returning the buffer to the
// pool whether or not either send succeeded.
func (f *Facade) Submit(req Request) error {
	buf := f.pool.Get()
	defer f.pool.Put(buf)

	if err := req.Build(buf); err != nil {
		return err
	}

	f.sender.Spray(f.lastRes.HasCurrent, f.lastRes.Current, f.lastRes.HasNext, f.lastRes.Next, buf.Bytes())
	return nil
}

// CurrentLeader and NextLeader expose the resolver's last computed
// endpoints, mainly for diagnostics and tests.
func (f *Facade) CurrentLeader() (cluster.Endpoint, bool) {
	return f.lastRes.Current, f.lastRes.HasCurrent
}

func (f *Facade) NextLeader() (cluster.Endpoint, bool) {
	return f.lastRes.Next, f.lastRes.HasNext
}
