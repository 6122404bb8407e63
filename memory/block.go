package memory

import (
	"fmt"

	"github.com/pkg/errors"
)

// allocator is the subset of the mailbox interface memory.Alloc needs. It is
// satisfied by *mailbox.Mailbox; declared here (rather than importing
// mailbox, so this package does not depend on it) as the narrow capability
// this package actually consumes.
type allocator interface {
	Allocate(size, alignment, flags uint32) (handle uint32, err error)
	Lock(handle uint32) (busAddr uint32, err error)
	Unlock(handle uint32) error
	Release(handle uint32) error
}

// Uncached memory flags, VideoCore mailbox property interface values. See
// spec.md §4.2: DIRECT|COHERENT selects the 0xC alias — uncached, L2
// coherent.
const (
	FlagDirect   = 1 << 2
	FlagCoherent = 2 << 2
	FlagUncached = FlagDirect | FlagCoherent
)

// Block is a page-aligned, physically contiguous, GPU-coherent buffer
// allocated through the VideoCore mailbox. The DMA controller can read it
// without CPU cache interference; the bus address is what a control block's
// src/dst/next fields must carry.
type Block struct {
	mb      allocator
	handle  uint32
	size    int
	align   int
	busAddr uint32
	view    *View
}

// Alloc allocates size bytes (rounded up to PageSize) of uncached memory
// through mb, aligned to align bytes, and maps it into this process.
func Alloc(mb allocator, size, align int) (*Block, error) {
	if size <= 0 {
		return nil, errors.New("memory: block size must be > 0")
	}
	rounded := (size + PageSize - 1) &^ (PageSize - 1)
	handle, err := mb.Allocate(uint32(rounded), uint32(align), FlagUncached)
	if err != nil {
		return nil, errors.Wrap(err, "memory: mailbox allocate")
	}
	if handle == 0 {
		return nil, errors.New("memory: mailbox allocate returned a zero handle")
	}
	busAddr, err := mb.Lock(handle)
	if err != nil {
		_ = mb.Release(handle)
		return nil, errors.Wrap(err, "memory: mailbox lock")
	}
	if busAddr == 0 {
		_ = mb.Release(handle)
		return nil, errors.New("memory: mailbox lock returned a zero bus address")
	}
	// The mailbox hands back a bus address (0x7E000000/0xC0000000-aliased);
	// mmap through /dev/mem needs the physical address, stripping the bus
	// alias bits per spec.md §4.2.
	view, err := MapPhysical(uint64(busAddr&^0xC0000000), rounded)
	if err != nil {
		_ = mb.Unlock(handle)
		_ = mb.Release(handle)
		return nil, errors.Wrap(err, "memory: map allocated block")
	}
	return &Block{mb: mb, handle: handle, size: rounded, align: align, busAddr: busAddr, view: view}, nil
}

// View returns the mapped register-style accessor over the block, usable
// with Load32/Store32/SetBits32/ClearBits32.
func (b *Block) View() *View { return b.view }

// Size returns the rounded allocation size in bytes.
func (b *Block) Size() int { return b.size }

// BusAddr returns the bus address of the start of the block.
func (b *Block) BusAddr() uint32 { return b.busAddr }

// VirtToBus returns the bus address corresponding to a byte offset inside
// this block, asserting the offset falls within the allocation.
//
// Mirrors spec.md §4.2's virt_to_bus(block, ptr): bus_address + (ptr -
// virt_address), with the out-of-range case returning an error instead of a
// sentinel, since Go has no natural "impossible address" value to return.
func (b *Block) VirtToBus(offset int) (uint32, error) {
	if offset < 0 || offset >= b.size {
		return 0, fmt.Errorf("memory: offset %d out of bounds for block of size %d", offset, b.size)
	}
	return b.busAddr + uint32(offset), nil
}

// Close unmaps and frees the underlying mailbox allocation. Safe to call
// more than once.
func (b *Block) Close() error {
	if b.view == nil {
		return nil
	}
	var errs []error
	if err := b.view.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.mb.Unlock(b.handle); err != nil {
		errs = append(errs, err)
	}
	if err := b.mb.Release(b.handle); err != nil {
		errs = append(errs, err)
	}
	b.view = nil
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "memory: close block")
	}
	return nil
}
