package memory

import "testing"

// fakeAllocator is a software-only stand-in for the VideoCore mailbox,
// mirroring the style of host/bcm283x/gpio_test.go's dmaBufAllocator fake:
// the teacher's convention for sidestepping real hardware access in tests.
type fakeAllocator struct {
	nextHandle uint32
	released   map[uint32]bool
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{released: map[uint32]bool{}}
}

func (f *fakeAllocator) Allocate(size, alignment, flags uint32) (uint32, error) {
	f.nextHandle++
	return f.nextHandle, nil
}

func (f *fakeAllocator) Lock(handle uint32) (uint32, error) {
	// Bus addresses are arbitrary here; tests only assert arithmetic relative
	// to the returned value, never the absolute address.
	return 0xC0100000 + handle*PageSize, nil
}

func (f *fakeAllocator) Unlock(handle uint32) error { return nil }

func (f *fakeAllocator) Release(handle uint32) error {
	f.released[handle] = true
	return nil
}

func TestAllocRejectsNonPositiveSize(t *testing.T) {
	if _, err := Alloc(newFakeAllocator(), 0, 16); err == nil {
		t.Fatal("expected an error for a zero-sized allocation")
	}
	if _, err := Alloc(newFakeAllocator(), -1, 16); err == nil {
		t.Fatal("expected an error for a negative-sized allocation")
	}
}

func TestVirtToBusBounds(t *testing.T) {
	b := &Block{busAddr: 0xC0001000, size: PageSize}
	addr, err := b.VirtToBus(0)
	if err != nil || addr != 0xC0001000 {
		t.Fatalf("VirtToBus(0) = %#x, %v; want 0xC0001000, nil", addr, err)
	}
	addr, err = b.VirtToBus(PageSize - 1)
	if err != nil || addr != 0xC0001000+PageSize-1 {
		t.Fatalf("VirtToBus(PageSize-1) = %#x, %v", addr, err)
	}
	if _, err := b.VirtToBus(PageSize); err == nil {
		t.Fatal("expected out-of-bounds VirtToBus to fail")
	}
	if _, err := b.VirtToBus(-1); err == nil {
		t.Fatal("expected negative offset VirtToBus to fail")
	}
}
