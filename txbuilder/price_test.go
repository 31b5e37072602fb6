package txbuilder_test

import (
	"encoding/binary"
	"testing"

	sgo "github.com/SolmateDev/solana-go"

	"github.com/solpipe/tpuforward/netbuf"
	"github.com/solpipe/tpuforward/txbuilder"
)

func TestBuildRoundTrip(t *testing.T) {
	publish, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	programKey, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	accountKey, err := sgo.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	program := programKey.PublicKey()
	account := accountKey.PublicKey()
	var bhash sgo.Hash
	for i := range bhash {
		bhash[i] = byte(i)
	}
	publishKey := publish.PublicKey()

	pu := &txbuilder.PriceUpdate{
		Publish:         &publish,
		Program:         &program,
		Account:         &account,
		RecentBlockHash: &bhash,
		Price:           -12345678,
		Confidence:      987654321,
		Status:          1,
		PublishSlot:     55555,
		Command:         txbuilder.CmdUpdPrice,
	}

	pool := netbuf.NewPool(1)
	buf := pool.Get()
	if err := pu.Build(buf); err != nil {
		t.Fatal(err)
	}

	out := buf.Bytes()

	// signatures short-vec (1 byte, value 1), then 64-byte signature
	if out[0] != 1 {
		t.Fatalf("expected 1 signature, got short-vec byte %d", out[0])
	}
	sig := sgo.SignatureFromBytes(out[1:65])

	msgStart := 65
	if out[msgStart] != 1 || out[msgStart+1] != 0 || out[msgStart+2] != 2 {
		t.Fatalf("unexpected message header: %v", out[msgStart:msgStart+3])
	}

	if !sig.Verify(publishKey, out[msgStart:]) {
		t.Fatal("signature does not verify")
	}

	accountsStart := msgStart + 3
	if out[accountsStart] != 4 {
		t.Fatalf("expected 4 accounts, got %d", out[accountsStart])
	}
	keysStart := accountsStart + 1
	gotPublish := sgo.PublicKeyFromBytes(out[keysStart : keysStart+32])
	gotAccount := sgo.PublicKeyFromBytes(out[keysStart+32 : keysStart+64])
	gotClock := sgo.PublicKeyFromBytes(out[keysStart+64 : keysStart+96])
	gotProgram := sgo.PublicKeyFromBytes(out[keysStart+96 : keysStart+128])
	if gotPublish != publishKey {
		t.Fatal("publish key mismatch")
	}
	if gotAccount != account {
		t.Fatal("account key mismatch")
	}
	if gotClock != sgo.SysVarClockPubkey {
		t.Fatal("sysvar clock key mismatch")
	}
	if gotProgram != program {
		t.Fatal("program key mismatch")
	}

	bhashStart := keysStart + 128
	for i, b := range bhash {
		if out[bhashStart+i] != b {
			t.Fatalf("block hash byte %d mismatch", i)
		}
	}

	instrStart := bhashStart + 32
	// instrStart: short-vec(1)=1, program idx=1, short-vec(3)=1, 3 account idx=3 => 6 bytes before param short-vec
	paramLenPos := instrStart + 6
	if out[paramLenPos] != 40 {
		t.Fatalf("expected param blob length 40, got %d", out[paramLenPos])
	}
	paramStart := paramLenPos + 1
	gotVersion := binary.LittleEndian.Uint32(out[paramStart : paramStart+4])
	gotCommand := int32(binary.LittleEndian.Uint32(out[paramStart+4 : paramStart+8]))
	gotStatus := int32(binary.LittleEndian.Uint32(out[paramStart+8 : paramStart+12]))
	gotPrice := int64(binary.LittleEndian.Uint64(out[paramStart+16 : paramStart+24]))
	gotConf := binary.LittleEndian.Uint64(out[paramStart+24 : paramStart+32])
	gotSlot := binary.LittleEndian.Uint64(out[paramStart+32 : paramStart+40])

	if gotVersion != 2 {
		t.Fatalf("unexpected pc version %d", gotVersion)
	}
	if gotCommand != int32(txbuilder.CmdUpdPrice) {
		t.Fatalf("unexpected command %d", gotCommand)
	}
	if gotStatus != 1 {
		t.Fatalf("unexpected status %d", gotStatus)
	}
	if gotPrice != -12345678 {
		t.Fatalf("unexpected price %d", gotPrice)
	}
	if gotConf != 987654321 {
		t.Fatalf("unexpected confidence %d", gotConf)
	}
	if gotSlot != 55555 {
		t.Fatalf("unexpected slot %d", gotSlot)
	}
}
