// Package memory provides page-aligned views over physical memory, both the
// register windows mapped through /dev/mem and the GPU-coherent uncached
// buffers allocated through the VideoCore mailbox.
//
// Every access here is a volatile MMIO access from the CPU's perspective:
// the bytes behind a View may change underneath Go without any store
// instruction executing in this process (a DMA controller writing its
// status register, for example). Reads and writes go through sync/atomic
// rather than plain slice indexing so the compiler cannot reorder or elide
// them, and so the generated load/store uses the platform's ordered MMIO
// access instructions on ARM.
package memory

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PageSize is the MMU page size assumed throughout this package. The
// bcm283x family is always 4KiB pages.
const PageSize = 4096

// View is a page-aligned mapping of physical memory into this process's
// address space, typically a peripheral's register window.
type View struct {
	data []byte // the full page-rounded mapping
	off  int    // offset of the requested region within data
	size int    // length of the requested region
}

// MapPhysical maps size bytes of physical memory starting at base through
// /dev/mem. base and size are rounded down/up to page boundaries; the
// returned View exposes exactly [base, base+size).
func MapPhysical(base uint64, size int) (*View, error) {
	f, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "memory: open /dev/mem (are you root?)")
	}
	defer unix.Close(f)

	offset := int(base & (PageSize - 1))
	mapLen := (size + offset + PageSize - 1) &^ (PageSize - 1)
	data, err := unix.Mmap(f, int64(base&^(PageSize-1)), mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "memory: mmap /dev/mem at 0x%x", base)
	}
	return &View{data: data, off: offset, size: size}, nil
}

// Close unmaps the view. Not calling Close is safe; the kernel reclaims the
// mapping on process exit, but every peripheral window this engine opens is
// explicitly unmapped on Engine.Close so repeated Open/Close cycles (as in
// tests) do not leak file descriptors or address space.
func (v *View) Close() error {
	if v.data == nil {
		return nil
	}
	err := unix.Munmap(v.data)
	v.data = nil
	return err
}

func (v *View) bounds(offset int) error {
	if offset < 0 || offset+4 > v.size {
		return fmt.Errorf("memory: offset %d out of bounds (size %d)", offset, v.size)
	}
	return nil
}

func (v *View) word(offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&v.data[v.off+offset]))
}

// Load32 performs an atomic 32-bit read at the given byte offset from the
// start of the view.
func (v *View) Load32(offset int) uint32 {
	if err := v.bounds(offset); err != nil {
		panic(err)
	}
	return loadUint32(v.word(offset))
}

// Store32 performs an atomic 32-bit write at the given byte offset from the
// start of the view.
func (v *View) Store32(offset int, value uint32) {
	if err := v.bounds(offset); err != nil {
		panic(err)
	}
	storeUint32(v.word(offset), value)
}

// SetBits32 performs an atomic read-modify-write OR at the given offset.
func (v *View) SetBits32(offset int, bits uint32) {
	v.Store32(offset, v.Load32(offset)|bits)
}

// ClearBits32 performs an atomic read-modify-write AND-NOT at the given
// offset.
func (v *View) ClearBits32(offset int, bits uint32) {
	v.Store32(offset, v.Load32(offset)&^bits)
}

// Addr returns the virtual address backing offset, for use by code that
// needs to compute a bus address out of band (see Block.VirtToBus).
func (v *View) Addr(offset int) uintptr {
	return uintptr(unsafe.Pointer(&v.data[v.off+offset]))
}
