// Package wire implements the little-endian, length-prefixed binary
// encoding used to build transaction envelopes and to frame inbound
// submissions on the TCP ingress path.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	sgo "github.com/SolmateDev/solana-go"
	bin "github.com/gagliardetto/binary"
)

// Encoder writes the fixed on-chain transaction layout into a caller
// -supplied backing array (typically a pooled netbuf.Buffer) without
// growing it, provided the caller sized the array generously enough.
type Encoder struct {
	buf *bytes.Buffer
	enc *bin.Encoder
}

// NewEncoder wraps buf (whose backing array the caller owns) for writes.
// buf should be reset to zero length, non-zero capacity before use so
// that writes land in the existing backing array instead of allocating.
func NewEncoder(buf *bytes.Buffer) *Encoder {
	return &Encoder{buf: buf, enc: bin.NewBinEncoder(buf)}
}

func (e *Encoder) Pos() int {
	return e.buf.Len()
}

func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) WriteU8(v uint8) error {
	return e.enc.WriteUint8(v)
}

func (e *Encoder) WriteU16(v uint16) error {
	return e.enc.WriteUint16(v, binary.LittleEndian)
}

func (e *Encoder) WriteU32(v uint32) error {
	return e.enc.WriteUint32(v, binary.LittleEndian)
}

func (e *Encoder) WriteI32(v int32) error {
	return e.enc.WriteInt32(v, binary.LittleEndian)
}

func (e *Encoder) WriteI64(v int64) error {
	return e.enc.WriteInt64(v, binary.LittleEndian)
}

func (e *Encoder) WriteU64(v uint64) error {
	return e.enc.WriteUint64(v, binary.LittleEndian)
}

// WriteBytes writes b verbatim, with no length prefix.
func (e *Encoder) WriteBytes(b []byte) error {
	return e.enc.WriteBytes(b, false)
}

// WriteShortVecLen writes n using the compact-u16 "short-vec" encoding:
// 7 bits per byte, high bit set on every byte but the last.
func (e *Encoder) WriteShortVecLen(n int) error {
	if n < 0 || n > 0x1FFFFF {
		return errors.New("short-vec length out of range")
	}
	v := uint32(n)
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			if err := e.WriteU8(b | 0x80); err != nil {
				return err
			}
		} else {
			return e.WriteU8(b)
		}
	}
}

// ReserveSignature writes 64 zero bytes and returns their starting
// offset so Sign can patch them in once the message bytes are final.
func (e *Encoder) ReserveSignature() (int, error) {
	pos := e.Pos()
	var zero [sgo.SignatureLength]byte
	if err := e.WriteBytes(zero[:]); err != nil {
		return 0, err
	}
	return pos, nil
}

// Sign Ed25519-signs the bytes [msgStart, end-of-buffer) with key and
// writes the 64-byte signature into the slot reserved at sigPos.
func (e *Encoder) Sign(sigPos int, msgStart int, key sgo.PrivateKey) error {
	buf := e.buf.Bytes()
	if msgStart < 0 || msgStart > len(buf) {
		return errors.New("message start out of range")
	}
	if sigPos < 0 || sigPos+sgo.SignatureLength > len(buf) {
		return errors.New("signature slot out of range")
	}
	sig, err := key.Sign(buf[msgStart:])
	if err != nil {
		return err
	}
	copy(buf[sigPos:sigPos+sgo.SignatureLength], sig[:])
	return nil
}
