// Package egress sprays outbound transaction bytes at validator TPU
// endpoints over a single, unconnected, reused UDP socket.
package egress

import (
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/solpipe/tpuforward/cluster"
)

// Sender is a best-effort, non-blocking UDP spray sender. Send failures
// are counted and logged; they never propagate to the TCP ingress or RPC
// control plane.
type Sender struct {
	conn        *net.UDPConn
	failedSends atomic.Uint64
}

func New() (*Sender, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &Sender{conn: conn}, nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

func (s *Sender) FailedSends() uint64 {
	return s.failedSends.Load()
}

// Send is best-effort: a failure is counted and logged, never returned,
// matching §4.8 — send failures must not affect any other path.
func (s *Sender) Send(dst cluster.Endpoint, payload []byte) {
	addr := &net.UDPAddr{IP: dst.IP, Port: int(dst.Port)}
	if _, err := s.conn.WriteTo(payload, addr); err != nil {
		s.failedSends.Add(1)
		log.Debugf("udp send failed dst=%s err=%s", dst.String(), err.Error())
	}
}

// Spray implements the forwarding rule of §4.8: send to the current
// leader if hasCurrent, to the next leader if hasNext, and drop silently
// if neither is set. It does not compare the two endpoints; the resolver
// clears hasNext when the next leader is the current one.
func (s *Sender) Spray(hasCurrent bool, current cluster.Endpoint, hasNext bool, next cluster.Endpoint, payload []byte) {
	if hasCurrent {
		s.Send(current, payload)
	}
	if hasNext {
		s.Send(next, payload)
	}
}
