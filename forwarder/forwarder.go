// Package forwarder wires the RPC control plane, the TCP ingress
// listener, the UDP egress sender, the cluster/schedule caches, and the
// leader resolver into one event loop, the Go-idiomatic equivalent of
// the original server's single-threaded epoll poll() loop.
package forwarder

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/solpipe/tpuforward/cluster"
	"github.com/solpipe/tpuforward/egress"
	"github.com/solpipe/tpuforward/ingress"
	"github.com/solpipe/tpuforward/leader"
	"github.com/solpipe/tpuforward/rpcctl"
	"github.com/solpipe/tpuforward/schedule"
)

// drainInterval stands in for the original's 1ms epoll timeout: the
// cadence at which the delete list is drained and pending state is
// reconciled even with no new network activity.
const drainInterval = time.Millisecond

// Config is the fully resolved set of addresses Run needs.
type Config struct {
	ListenAddr     string
	HTTPURL        string
	WSURL          string
	ListenCapacity int
}

// Forwarder is the running system. LastError/IsError expose the
// soft-error surface; Run blocks until ctx is canceled or a fatal error
// occurs (the UDP socket or the listener failing to open, or the
// listener's accept socket dying).
type Forwarder struct {
	cfg Config

	mu        sync.Mutex
	lastError string

	table    *cluster.Table
	sched    *schedule.Schedule
	resolver *leader.Resolver
	lastRes  leader.Result

	rpc     *rpcctl.Controller
	ingress *ingress.Listener
	egress  *egress.Sender
}

func New(cfg Config) *Forwarder {
	table := cluster.New()
	sched := schedule.New()
	return &Forwarder{
		cfg:      cfg,
		table:    table,
		sched:    sched,
		resolver: leader.New(table, sched),
	}
}

func (f *Forwarder) setError(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	f.lastError = err.Error()
	f.mu.Unlock()
	log.Debugf("forwarder soft error: %s", err.Error())
}

func (f *Forwarder) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

func (f *Forwarder) IsError() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError != ""
}

// Run starts every subcomponent and drives the event loop until ctx is
// canceled or the listener dies. A non-nil return is fatal; soft errors
// never reach the caller. RPC hiccups show up via LastError; bad frames
// are only logged by ingress, and UDP send failures are only counted
// and logged by the sender.
func (f *Forwarder) Run(ctx context.Context) error {
	sender, err := egress.New()
	if err != nil {
		return err
	}
	defer sender.Close()
	f.egress = sender

	lst, err := ingress.Start(ctx, f.cfg.ListenAddr, f.cfg.ListenCapacity)
	if err != nil {
		return err
	}
	f.ingress = lst

	ctrl := rpcctl.Start(ctx, f.cfg.HTTPURL, f.cfg.WSURL, f.table, f.sched)
	f.rpc = ctrl

	drainTicker := time.NewTicker(drainInterval)
	defer drainTicker.Stop()

	doneC := ctx.Done()
	for {
		select {
		case <-doneC:
			return nil

		case err := <-lst.ErrC():
			return err

		case slot := <-ctrl.SlotC():
			if res, advanced := f.resolver.OnSlot(slot); advanced {
				f.lastRes = res
			}

		case sub := <-lst.SubmitC():
			f.spray(sub)

		case <-drainTicker.C:
			lst.DrainDeleted()
			if s := ctrl.LastError(); s != "" {
				f.setError(errors.New(s))
			}
		}
	}
}

func (f *Forwarder) spray(sub ingress.Submission) {
	defer f.ingress.ReturnBuffer(sub.Buf)
	f.egress.Spray(f.lastRes.HasCurrent, f.lastRes.Current, f.lastRes.HasNext, f.lastRes.Next, sub.Buf.Bytes())
}

// CurrentLeader and NextLeader expose the resolver's last computed
// endpoints, mainly for diagnostics and tests.
func (f *Forwarder) CurrentLeader() (cluster.Endpoint, bool) {
	return f.lastRes.Current, f.lastRes.HasCurrent
}

func (f *Forwarder) NextLeader() (cluster.Endpoint, bool) {
	return f.lastRes.Next, f.lastRes.HasNext
}
