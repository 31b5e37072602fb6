// Package rpcctl owns the paired HTTP+WS RPC connection to a cluster
// node: it keeps the connection alive across drops with an exponential
// backoff, streams the slot clock, and issues the one-shot
// get_cluster_nodes / get_slot_leaders calls that feed the cluster and
// schedule caches.
package rpcctl

import (
	"context"
	"time"

	sgo "github.com/SolmateDev/solana-go"
	sgorpc "github.com/SolmateDev/solana-go/rpc"
	sgows "github.com/SolmateDev/solana-go/rpc/ws"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/solpipe/tpuforward/cluster"
	"github.com/solpipe/tpuforward/schedule"
)

const (
	clusterRefreshInterval = 30 * time.Second
	slotLeadersLimit       = schedule.WindowSize
)

// Controller is the actor handle returned to the forwarder. All state
// mutation happens on the internal goroutine; callers only ever send
// closures over cmdC, the same idiom the teacher's `internalC chan
// func(*internal)` actors use throughout.
type Controller struct {
	cmdC  chan func(*internal)
	ctx   context.Context
	slotC chan uint64
}

func Start(ctx context.Context, httpURL, wsURL string, table *cluster.Table, sched *schedule.Schedule) *Controller {
	cmdC := make(chan func(*internal))
	slotC := make(chan uint64, 1)
	c := &Controller{cmdC: cmdC, ctx: ctx, slotC: slotC}
	go loopInternal(ctx, cmdC, slotC, httpURL, wsURL, table, sched)
	return c
}

// SlotC delivers the most recently observed slot. It is a
// latest-value-wins channel of capacity 1: a slow consumer only ever
// sees the newest slot, never a backlog.
func (c *Controller) SlotC() <-chan uint64 {
	return c.slotC
}

func (c *Controller) LastError() string {
	respC := make(chan string, 1)
	select {
	case c.cmdC <- func(in *internal) { respC <- in.lastError }:
	case <-c.ctx.Done():
		return "closed"
	}
	return <-respC
}

func (c *Controller) IsError() bool {
	respC := make(chan bool, 1)
	select {
	case c.cmdC <- func(in *internal) { respC <- in.httpState == Errored || in.wsState == Errored }:
	case <-c.ctx.Done():
		return true
	}
	return <-respC
}

func (c *Controller) State() (http State, ws State) {
	respC := make(chan [2]State, 1)
	select {
	case c.cmdC <- func(in *internal) { respC <- [2]State{in.httpState, in.wsState} }:
	case <-c.ctx.Done():
		return Disconnected, Disconnected
	}
	pair := <-respC
	return pair[0], pair[1]
}

// responseKind tags the single internal response type shared by both
// one-shot RPC calls, so the actor's select loop has one case per kind
// of async work rather than one channel per RPC method.
type responseKind int

const (
	kindClusterNodes responseKind = iota
	kindSlotLeaders
)

type response struct {
	kind      responseKind
	firstSlot uint64
	leaders   []sgo.PublicKey
	err       error
}

type internal struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     uuid.UUID

	httpURL, wsURL string
	rpcClient      *sgorpc.Client
	wsClient       *sgows.Client
	slotSub        *sgows.SlotSubscription

	table *cluster.Table
	sched *schedule.Schedule

	httpState State
	wsState   State
	backoff   *backoff
	retryAt   time.Time
	lastError string

	currentSlot uint64

	respC chan response
}

func loopInternal(
	ctx context.Context,
	cmdC <-chan func(*internal),
	slotC chan uint64,
	httpURL, wsURL string,
	table *cluster.Table,
	sched *schedule.Schedule,
) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id, err := uuid.NewRandom()
	if err != nil {
		id = uuid.UUID{}
	}
	in := &internal{
		ctx: ctx, cancel: cancel, id: id,
		httpURL: httpURL, wsURL: wsURL,
		table: table, sched: sched,
		httpState: Disconnected, wsState: Disconnected,
		backoff: newBackoff(),
		respC:   make(chan response, 4),
	}

	connect(in)

	clusterTicker := time.NewTicker(clusterRefreshInterval)
	defer clusterTicker.Stop()
	retryTicker := time.NewTicker(time.Second)
	defer retryTicker.Stop()

	doneC := ctx.Done()

out:
	for {
		var streamC <-chan sgows.Result
		var streamErrC <-chan error
		if in.slotSub != nil {
			streamC = in.slotSub.RecvStream()
			streamErrC = in.slotSub.CloseSignal()
		}

		select {
		case <-doneC:
			break out

		case req := <-cmdC:
			req(in)

		case <-clusterTicker.C:
			if in.httpState == Connected {
				issueClusterNodesRefresh(in)
			}

		case <-retryTicker.C:
			if in.httpState != Connected || in.wsState != Connected {
				if !in.retryAt.IsZero() && time.Now().After(in.retryAt) {
					connect(in)
				}
			}

		case r := <-in.respC:
			handleResponse(in, r)

		case d := <-streamC:
			res, ok := d.(*sgows.SlotResult)
			if !ok || res == nil {
				continue
			}
			if res.Slot <= in.currentSlot && in.currentSlot != 0 {
				continue
			}
			in.currentSlot = res.Slot
			select {
			case slotC <- res.Slot:
			default:
				// drop; SlotC is latest-value-wins
				select {
				case <-slotC:
				default:
				}
				slotC <- res.Slot
			}
			if sched.NeedsPrefetch(in.currentSlot) {
				issueSlotLeadersRefresh(in)
			}

		case err := <-streamErrC:
			if err != nil {
				log.Debugf("rpcctl ws stream closed: %v", err)
			}
			teardown(in)
		}
	}
}

func connect(in *internal) {
	in.httpState = Connecting
	in.wsState = Connecting

	in.rpcClient = sgorpc.New(in.httpURL)

	wsCtx, wsCancel := context.WithTimeout(in.ctx, 10*time.Second)
	defer wsCancel()
	wsClient, err := sgows.Connect(wsCtx, in.wsURL)
	if err != nil {
		in.lastError = err.Error()
		in.httpState = Errored
		in.wsState = Errored
		in.retryAt = time.Now().Add(in.backoff.Next())
		log.Debugf("rpcctl connect failed: %s", err.Error())
		return
	}
	in.wsClient = wsClient

	sub, err := wsClient.SlotSubscribe()
	if err != nil {
		in.lastError = err.Error()
		in.httpState = Errored
		in.wsState = Errored
		in.retryAt = time.Now().Add(in.backoff.Next())
		log.Debugf("rpcctl slot_subscribe failed: %s", err.Error())
		return
	}

	in.slotSub = sub
	in.httpState = Connected
	in.wsState = Connected
	in.lastError = ""
	in.retryAt = time.Time{}
	in.backoff.Reset()
	in.currentSlot = 0
	log.Infof("rpcctl connected id=%s", in.id.String())

	issueClusterNodesRefresh(in)
	issueSlotLeadersRefresh(in)
}

func teardown(in *internal) {
	if in.slotSub != nil {
		in.slotSub.Unsubscribe()
		in.slotSub = nil
	}
	in.wsState = Errored
	in.httpState = Errored
	in.retryAt = time.Now().Add(in.backoff.Next())
	log.Infof("rpcctl disconnected id=%s", in.id.String())
}

func issueClusterNodesRefresh(in *internal) {
	rpcClient := in.rpcClient
	ctx := in.ctx
	respC := in.respC
	go func() {
		err := in.table.Refresh(ctx, rpcClient)
		select {
		case respC <- response{kind: kindClusterNodes, err: err}:
		case <-ctx.Done():
		}
	}()
}

func issueSlotLeadersRefresh(in *internal) {
	in.sched.MarkRequested()
	rpcClient := in.rpcClient
	ctx := in.ctx
	respC := in.respC
	anchor := in.currentSlot
	go func() {
		leaders, err := rpcClient.GetSlotLeaders(ctx, anchor, slotLeadersLimit)
		select {
		case respC <- response{kind: kindSlotLeaders, firstSlot: anchor, leaders: leaders, err: err}:
		case <-ctx.Done():
		}
	}()
}

func handleResponse(in *internal, r response) {
	switch r.kind {
	case kindClusterNodes:
		if r.err != nil {
			in.lastError = r.err.Error()
			log.Debugf("rpcctl get_cluster_nodes failed: %s", r.err.Error())
		}
	case kindSlotLeaders:
		if r.err != nil {
			in.lastError = r.err.Error()
			in.sched.Fail()
			log.Debugf("rpcctl get_slot_leaders failed: %s", r.err.Error())
			return
		}
		in.sched.Fill(r.firstSlot, r.leaders)
	}
}
