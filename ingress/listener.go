// Package ingress accepts TCP connections carrying framed transaction
// blobs and hands each decoded payload to the forwarder for spraying at
// the current slot leader. One goroutine per connection does the
// blocking read and framing; a single actor goroutine owns the
// open/delete connection lists and the handle slab, mirroring the
// two-list deferred-teardown discipline of the original single
// -threaded server.
package ingress

import (
	"context"
	"io"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/solpipe/tpuforward/ds/list"
	"github.com/solpipe/tpuforward/netbuf"
	"github.com/solpipe/tpuforward/wire"
)

// ProtocolID is the fixed value every frame header must carry; a
// mismatch is a protocol violation and tears the connection down
// within the same read callback.
const ProtocolID uint16 = 0xACE1

const maxFrameBodySize = netbuf.MaxTransactionSize

// Submission is one decoded frame body handed to the forwarder. Buf
// must be returned to the pool (Pool.Put) once the payload has been
// forwarded.
type Submission struct {
	Handle Handle
	Buf    *netbuf.Buffer
}

type connEntry struct {
	conn   net.Conn
	handle Handle
	node   *list.Node[*connEntry]
}

// Listener is the actor handle. Construct with Start; consume decoded
// frames from SubmitC; call DrainDeleted once per forwarder tick to
// close connections torn down since the last drain.
type Listener struct {
	ln      net.Listener
	pool    *netbuf.Pool
	submitC chan Submission
	cmdC    chan func(*internal)
	errC    chan error
	ctx     context.Context
}

type internal struct {
	slab   *slab
	open   *list.Generic[*connEntry]
	delete *list.Generic[*connEntry]
}

// Start binds addr and begins accepting connections. capacity sizes the
// payload buffer pool to the expected number of concurrent in-flight
// frames.
func Start(ctx context.Context, addr string, capacity int) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		ln:      ln,
		pool:    netbuf.NewPool(capacity),
		submitC: make(chan Submission, capacity),
		cmdC:    make(chan func(*internal)),
		errC:    make(chan error, 1),
		ctx:     ctx,
	}

	in := &internal{
		slab:   newSlab(),
		open:   list.CreateGeneric[*connEntry](),
		delete: list.CreateGeneric[*connEntry](),
	}
	go l.loopInternal(in)
	go l.acceptLoop()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	return l, nil
}

func (l *Listener) SubmitC() <-chan Submission {
	return l.submitC
}

// ErrC delivers a fatal listener error (the accept socket died for a
// reason other than ctx cancellation). The forwarder's Run loop treats
// anything received here as terminal.
func (l *Listener) ErrC() <-chan error {
	return l.errC
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) loopInternal(in *internal) {
	doneC := l.ctx.Done()
	for {
		select {
		case <-doneC:
			in.open.Iterate(func(c *connEntry, _ uint32, remove func()) error {
				c.conn.Close()
				remove()
				return nil
			})
			return
		case req := <-l.cmdC:
			req(in)
		}
	}
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
				log.Errorf("ingress accept error: %s", err.Error())
				select {
				case l.errC <- err:
				default:
				}
				return
			}
		}
		go l.serve(conn)
	}
}

func (l *Listener) serve(conn net.Conn) {
	c := &connEntry{conn: conn}

	respC := make(chan Handle, 1)
	select {
	case l.cmdC <- func(in *internal) {
		c.handle = in.slab.alloc(c)
		c.node = in.open.Append(c)
		respC <- c.handle
	}:
	case <-l.ctx.Done():
		conn.Close()
		return
	}
	handle := <-respC

	defer l.teardown(handle)

	var hdr [wire.FrameHeaderSize]byte
	for {
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return
		}
		fh := wire.DecodeFrameHeader(hdr[:])
		if fh.ProtoID != ProtocolID {
			log.Debugf("ingress protocol violation proto_id=%d", fh.ProtoID)
			return
		}
		if int(fh.Size) < wire.FrameHeaderSize || int(fh.Size) > wire.FrameHeaderSize+maxFrameBodySize {
			log.Debugf("ingress bad frame size=%d", fh.Size)
			return
		}
		bodyLen := int(fh.Size) - wire.FrameHeaderSize

		buf := l.pool.Get()
		if bodyLen > 0 {
			if _, err := io.CopyN(buf.Buf, conn, int64(bodyLen)); err != nil {
				l.pool.Put(buf)
				return
			}
		}

		select {
		case l.submitC <- Submission{Handle: handle, Buf: buf}:
		case <-l.ctx.Done():
			l.pool.Put(buf)
			return
		}
	}
}

// teardown moves the connection from the open list to the delete list.
// The actual close happens in DrainDeleted, matching tx_svr::del_user
// deferring the socket close to teardown_users.
func (l *Listener) teardown(h Handle) {
	select {
	case l.cmdC <- func(in *internal) {
		c, ok := in.slab.get(h)
		if !ok {
			return
		}
		in.open.Remove(c.node)
		c.node = in.delete.Append(c)
	}:
	case <-l.ctx.Done():
	}
}

// DrainDeleted closes every connection queued for teardown since the
// last call and frees its slab handle. Called once per forwarder tick.
func (l *Listener) DrainDeleted() {
	respC := make(chan struct{}, 1)
	select {
	case l.cmdC <- func(in *internal) {
		for {
			c, ok := in.delete.Pop()
			if !ok {
				break
			}
			c.conn.Close()
			in.slab.release(c.handle)
		}
		respC <- struct{}{}
	}:
	case <-l.ctx.Done():
		return
	}
	<-respC
}

func (l *Listener) ReturnBuffer(b *netbuf.Buffer) {
	l.pool.Put(b)
}

// GetBuffer draws from the same pool the read path uses. Exposed so
// callers that synthesize a Submission without going through a real
// TCP connection use the same buffer lifecycle as inbound frames.
func (l *Listener) GetBuffer() *netbuf.Buffer {
	return l.pool.Get()
}
