package forwarder

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/solpipe/tpuforward/cluster"
	"github.com/solpipe/tpuforward/egress"
	"github.com/solpipe/tpuforward/ingress"
	"github.com/solpipe/tpuforward/leader"
)

func TestSetErrorAndIsError(t *testing.T) {
	f := New(Config{})
	if f.IsError() {
		t.Fatal("expected no error initially")
	}
	f.setError(errors.New("boom"))
	if !f.IsError() || f.LastError() != "boom" {
		t.Fatalf("expected error to be recorded, got %q", f.LastError())
	}
}

func TestSetErrorIgnoresNil(t *testing.T) {
	f := New(Config{})
	f.setError(nil)
	if f.IsError() {
		t.Fatal("expected a nil error to be a no-op")
	}
}

func TestSprayDeliversToResolvedLeader(t *testing.T) {
	lc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer lc.Close()

	sender, err := egress.New()
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	f := New(Config{})
	f.egress = sender
	f.lastRes = leader.Result{
		HasCurrent: true,
		Current:    cluster.Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: uint16(lc.LocalAddr().(*net.UDPAddr).Port)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lst, err := ingress.Start(ctx, "127.0.0.1:0", 1)
	if err != nil {
		t.Fatal(err)
	}
	f.ingress = lst

	buf := lst.GetBuffer()
	buf.Buf.Write([]byte("tx-bytes"))

	f.spray(ingress.Submission{Buf: buf})

	out := make([]byte, 16)
	n, _, err := lc.ReadFrom(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(out[:n]) != "tx-bytes" {
		t.Fatalf("expected sprayed payload to match, got %q", out[:n])
	}
}

