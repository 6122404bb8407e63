package engine

import "github.com/besp9510/dma-pwm/memory"

// cbWords is a control block's size in 32-bit words: 6 meaningful fields
// plus 2 reserved words the datasheet requires but this engine never
// reads (pages 50-52). cbSize is the same thing in bytes.
const cbWords = 8
const cbSize = cbWords * 4

// controlBlock mirrors the BCM DMA controller's CB layout (spec.md §3).
// Next is a bus address, never a Go pointer — the DMA engine dereferences
// it, not the CPU, so there is nothing for the Go runtime to track.
type controlBlock struct {
	Info   uint32
	Src    uint32
	Dst    uint32
	Length uint32
	Stride uint32
	Next   uint32
}

// writeTo stores cb into v at the given CB index, through the same
// atomic Store32 path every other register write in this engine uses —
// the DMA controller can begin reading a ring while a sibling channel's
// rebuild is still in flight, so there is no reason to special-case CB
// memory as a plain byte buffer.
func (cb controlBlock) writeTo(v *memory.View, index int) {
	base := index * cbSize
	v.Store32(base+0, cb.Info)
	v.Store32(base+4, cb.Src)
	v.Store32(base+8, cb.Dst)
	v.Store32(base+12, cb.Length)
	v.Store32(base+16, cb.Stride)
	v.Store32(base+20, cb.Next)
	v.Store32(base+24, 0)
	v.Store32(base+28, 0)
}
