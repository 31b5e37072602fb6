// Package cluster maps validator identity keys to their advertised TPU
// UDP endpoints. The table is rebuilt wholesale on every refresh; it is
// never mutated in place, so readers never observe a partially updated
// map.
package cluster

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	sgo "github.com/SolmateDev/solana-go"
	sgorpc "github.com/SolmateDev/solana-go/rpc"
)

// Endpoint is an IPv4 address plus UDP port for TPU ingestion.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP.String(), e.Port)
}

// Table is a read-mostly identity-key -> Endpoint map, swapped wholesale
// on every Refresh.
type Table struct {
	m atomic.Pointer[map[sgo.PublicKey]Endpoint]
}

func New() *Table {
	t := &Table{}
	empty := make(map[sgo.PublicKey]Endpoint)
	t.m.Store(&empty)
	return t
}

// NewWithMap seeds a table directly, bypassing RPC. Used by tests and by
// embedders that already know their cluster topology.
func NewWithMap(m map[sgo.PublicKey]Endpoint) *Table {
	t := &Table{}
	copyOf := make(map[sgo.PublicKey]Endpoint, len(m))
	for k, v := range m {
		copyOf[k] = v
	}
	t.m.Store(&copyOf)
	return t
}

// EndpointOf is an O(1) average lookup against the current table.
func (t *Table) EndpointOf(key sgo.PublicKey) (Endpoint, bool) {
	m := *t.m.Load()
	e, ok := m[key]
	return e, ok
}

// Refresh calls get_cluster_nodes and, on success, atomically swaps in a
// freshly built table. On failure the existing table (stale but usable)
// is left in place and the error is returned for the caller to log as a
// soft error; it never invalidates what is already there.
func (t *Table) Refresh(ctx context.Context, rpcClient *sgorpc.Client) error {
	nodes, err := rpcClient.GetClusterNodes(ctx)
	if err != nil {
		return err
	}
	next := make(map[sgo.PublicKey]Endpoint, len(nodes))
	for _, n := range nodes {
		if n == nil || n.TPU == nil || *n.TPU == "" {
			continue
		}
		ep, err := parseEndpoint(*n.TPU)
		if err != nil {
			continue
		}
		next[n.Pubkey] = ep
	}
	t.m.Store(&next)
	return nil
}

func parseEndpoint(hostPort string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Endpoint{}, err
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	if ip == nil {
		return Endpoint{}, fmt.Errorf("bad tpu host %q", host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{IP: ip, Port: uint16(port)}, nil
}
