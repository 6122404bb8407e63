package mailbox

import (
	"testing"
	"unsafe"
)

func TestGenPacketAlignment(t *testing.T) {
	b := genPacket(tagAllocateMemory, 4, 4096, 4096, 0xC)
	if off := uintptr(unsafe.Pointer(&b[0])) & 15; off != 0 {
		t.Fatalf("packet not 16-byte aligned, offset %d", off)
	}
	if b[2] != tagAllocateMemory {
		t.Fatalf("tag = %#x, want %#x", b[2], tagAllocateMemory)
	}
	if b[3] != 3*4 {
		t.Fatalf("request length = %d, want %d", b[3], 3*4)
	}
	if b[4] != 4 {
		t.Fatalf("reply length = %d, want 4", b[4])
	}
	if b[5] != 4096 || b[6] != 4096 || b[7] != 0xC {
		t.Fatalf("args not copied correctly: %v", b[5:8])
	}
}

func TestGenPacketTotalLength(t *testing.T) {
	b := genPacket(tagLockMemory, 4, 7)
	// 6 header words + ceil(max(replyLen, len(args)*4)/4) data words.
	want := uint32(6*4) + 4
	if b[0] != want {
		t.Fatalf("total length = %d, want %d", b[0], want)
	}
}
