// Package txbuilder assembles the one on-chain instruction this
// forwarder knows how to build directly: a price publish transaction.
// It defines the wire layout the forwarder preserves when a transaction
// arrives pre-built over TCP (the instruction bytes are opaque to the
// ingress path) and when the embedded facade builds one itself.
package txbuilder

import (
	sgo "github.com/SolmateDev/solana-go"

	"github.com/solpipe/tpuforward/netbuf"
	"github.com/solpipe/tpuforward/wire"
)

// Command mirrors the domain protocol's price instruction discriminant.
type Command int32

const (
	CmdUpdPrice Command = 7
	CmdAggPrice Command = 11
)

// Status mirrors the domain protocol's symbol trading status enum. The
// builder treats it as an opaque i32; callers supply a validated value.
type Status int32

// pcVersion is the wire-format version tag carried in every parameter
// blob, a single well-known deployment constant.
const pcVersion uint32 = 2

// PriceUpdate borrows its key material for the span of one Build call;
// the caller retains ownership and must not mutate it concurrently.
type PriceUpdate struct {
	Publish         *sgo.PrivateKey
	Program         *sgo.PublicKey
	Account         *sgo.PublicKey
	RecentBlockHash *sgo.Hash

	Price       int64
	Confidence  uint64
	Status      Status
	PublishSlot uint64
	Command     Command
}

// Build writes the complete transaction, per §4.2 of the forwarder spec:
// signatures, message header, accounts, recent block hash, instructions,
// parameter blob, then signs [message start, end) with Publish.
func (p *PriceUpdate) Build(buf *netbuf.Buffer) error {
	enc := wire.NewEncoder(buf.Buf)

	// signatures section: one reserved slot for the publisher
	if err := enc.WriteShortVecLen(1); err != nil {
		return err
	}
	pubIdx, err := enc.ReserveSignature()
	if err != nil {
		return err
	}

	// message header
	msgStart := enc.Pos()
	if err := enc.WriteU8(1); err != nil { // num_required_signatures
		return err
	}
	if err := enc.WriteU8(0); err != nil { // num_readonly_signed_accounts
		return err
	}
	if err := enc.WriteU8(2); err != nil { // num_readonly_unsigned_accounts
		return err
	}

	// accounts: publisher, price account, sysvar clock, program id
	if err := enc.WriteShortVecLen(4); err != nil {
		return err
	}
	publishKey := (*p.Publish).PublicKey()
	if err := enc.WriteBytes(publishKey[:]); err != nil {
		return err
	}
	if err := enc.WriteBytes((*p.Account)[:]); err != nil {
		return err
	}
	if err := enc.WriteBytes(sgo.SysVarClockPubkey[:]); err != nil {
		return err
	}
	if err := enc.WriteBytes((*p.Program)[:]); err != nil {
		return err
	}

	// recent block hash
	if err := enc.WriteBytes((*p.RecentBlockHash)[:]); err != nil {
		return err
	}

	// instructions: one instruction against program-id index 3
	if err := enc.WriteShortVecLen(1); err != nil {
		return err
	}
	if err := enc.WriteU8(3); err != nil { // program id account index
		return err
	}
	if err := enc.WriteShortVecLen(3); err != nil {
		return err
	}
	if err := enc.WriteU8(0); err != nil { // publisher account index
		return err
	}
	if err := enc.WriteU8(1); err != nil { // price account index
		return err
	}
	if err := enc.WriteU8(2); err != nil { // sysvar clock account index
		return err
	}

	// parameter blob, length-prefixed with short-vec like every other
	// instruction data section in the envelope
	const paramBlobSize = 4 + 4 + 4 + 4 + 8 + 8 + 8
	if err := enc.WriteShortVecLen(paramBlobSize); err != nil {
		return err
	}
	if err := enc.WriteU32(pcVersion); err != nil {
		return err
	}
	if err := enc.WriteI32(int32(p.Command)); err != nil {
		return err
	}
	if err := enc.WriteI32(int32(p.Status)); err != nil {
		return err
	}
	if err := enc.WriteI32(0); err != nil { // reserved
		return err
	}
	if err := enc.WriteI64(p.Price); err != nil {
		return err
	}
	if err := enc.WriteU64(p.Confidence); err != nil {
		return err
	}
	if err := enc.WriteU64(p.PublishSlot); err != nil {
		return err
	}

	return enc.Sign(pubIdx, msgStart, *p.Publish)
}
