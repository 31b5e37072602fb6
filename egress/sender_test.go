package egress_test

import (
	"net"
	"testing"

	"github.com/solpipe/tpuforward/cluster"
	"github.com/solpipe/tpuforward/egress"
)

func TestSendToLoopbackListener(t *testing.T) {
	lc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer lc.Close()

	s, err := egress.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	dst := cluster.Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: uint16(lc.LocalAddr().(*net.UDPAddr).Port)}
	s.Send(dst, []byte("payload"))

	buf := make([]byte, 16)
	n, _, err := lc.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "payload" {
		t.Fatalf("expected payload to arrive unmodified, got %q", buf[:n])
	}
	if s.FailedSends() != 0 {
		t.Fatal("expected no failed sends for a successful write")
	}
}

func TestSendToClosedPortDoesNotBlock(t *testing.T) {
	lc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	closedPort := uint16(lc.LocalAddr().(*net.UDPAddr).Port)
	lc.Close()

	s, err := egress.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	dst := cluster.Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: closedPort}
	// A single datagram write to a closed UDP port on loopback rarely
	// fails synchronously (ICMP port-unreachable arrives later, if at
	// all, as an async error on some platforms), so this only checks
	// that Send never panics or blocks; it does not assert on the
	// failure counter.
	s.Send(dst, []byte("x"))
}

func TestSprayCurrentAndNextBothKnown(t *testing.T) {
	l1, _ := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	defer l1.Close()
	l2, _ := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	defer l2.Close()

	s, err := egress.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	c := cluster.Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: uint16(l1.LocalAddr().(*net.UDPAddr).Port)}
	n := cluster.Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: uint16(l2.LocalAddr().(*net.UDPAddr).Port)}
	s.Spray(true, c, true, n, []byte("tx"))

	buf := make([]byte, 16)
	if _, _, err := l1.ReadFrom(buf); err != nil {
		t.Fatal("expected current leader to receive the spray")
	}
	if _, _, err := l2.ReadFrom(buf); err != nil {
		t.Fatal("expected next leader to receive the spray")
	}
}

func TestSprayNeitherKnownSendsNothing(t *testing.T) {
	s, err := egress.New()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.Spray(false, cluster.Endpoint{}, false, cluster.Endpoint{}, []byte("tx"))
	if s.FailedSends() != 0 {
		t.Fatal("expected no send attempts when neither leader is known")
	}
}
