package wire

import "encoding/binary"

// FrameHeaderSize is the fixed 4-byte envelope every inbound TCP
// submission starts with: a u16 total size (including this header) and
// a u16 protocol id.
const FrameHeaderSize = 4

type FrameHeader struct {
	Size    uint16
	ProtoID uint16
}

// DecodeFrameHeader reads the fixed-offset header from buf. buf must be
// at least FrameHeaderSize bytes long.
func DecodeFrameHeader(buf []byte) FrameHeader {
	return FrameHeader{
		Size:    binary.LittleEndian.Uint16(buf[0:2]),
		ProtoID: binary.LittleEndian.Uint16(buf[2:4]),
	}
}

// EncodeFrameHeader writes h into buf, which must be at least
// FrameHeaderSize bytes long. Used by tests, not by the ingress read
// path (which only decodes).
func EncodeFrameHeader(buf []byte, h FrameHeader) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Size)
	binary.LittleEndian.PutUint16(buf[2:4], h.ProtoID)
}
