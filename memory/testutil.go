package memory

// noopAllocator satisfies allocator for synthetic test blocks that were
// never actually backed by a mailbox allocation; its Close-path methods
// are no-ops since there is nothing on the other end to release.
type noopAllocator struct{}

func (noopAllocator) Allocate(size, alignment, flags uint32) (uint32, error) { return 1, nil }
func (noopAllocator) Lock(handle uint32) (uint32, error)                    { return 0, nil }
func (noopAllocator) Unlock(handle uint32) error                            { return nil }
func (noopAllocator) Release(handle uint32) error                          { return nil }

// NewTestView wraps buf directly as a View with no page rounding, for
// tests elsewhere in this module that need a register-window stand-in
// without mmap'ing real memory (engine package tests swap in a plain
// byte slice the same way host/bcm283x's tests swap in a mockMem).
func NewTestView(buf []byte) *View {
	return &View{data: buf, off: 0, size: len(buf)}
}

// NewTestBlock wraps buf as a Block reporting busAddr as its bus address,
// for engine package tests that need a CB/mask buffer without a real
// mailbox allocation behind it.
func NewTestBlock(buf []byte, busAddr uint32) *Block {
	return &Block{mb: noopAllocator{}, size: len(buf), busAddr: busAddr, view: NewTestView(buf)}
}
