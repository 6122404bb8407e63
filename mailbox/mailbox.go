// Package mailbox implements the VideoCore mailbox property interface used
// to allocate GPU-coherent, physically contiguous memory for DMA.
//
// This is spec.md's designated external collaborator (§1, §4.2): a fixed
// operation set — Allocate, Lock, Unlock, Release — that this engine
// treats as a black box rather than something to extend. Mapping a locked
// allocation into this process is not done here; memory.Alloc maps it
// through /dev/mem. The wire protocol
// (packet framing, the mbReply high bit, 16-byte alignment requirement) is
// kept close to the reference implementation rather than redesigned.
package mailbox

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const devicePath = "/dev/vcio"

// Mailbox property interface tags. Only the tags this engine needs are
// declared; the protocol has dozens more.
const (
	tagAllocateMemory = 0x3000C
	tagLockMemory     = 0x3000D
	tagUnlockMemory   = 0x3000E
	tagReleaseMemory  = 0x3000F
	tagGetFirmwareRev = 0x1

	replyBit = 0x80000000

	// ioctlRequest is _IOWR(100, 0, char*) for the mailbox char device.
	ioctlRequest = 0xc0046400
)

// Mailbox is a handle to the /dev/vcio mailbox device. It is safe for
// concurrent use; every request is serialized, matching the hardware
// mailbox's single in-flight-request semantics.
type Mailbox struct {
	mu     sync.Mutex
	fd     int
	logger *zap.Logger
}

// Open opens /dev/vcio and verifies the mailbox responds, the way
// host/videocore.openMailbox's implicit first call does, except here it is
// explicit: spec.md §4.2 classifies a non-responding mailbox as EMAPFAIL,
// not a silently-proceeding condition.
func Open(logger *zap.Logger) (*Mailbox, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mailbox: open %s", devicePath)
	}
	m := &Mailbox{fd: fd, logger: logger}
	if _, err := m.tx32(tagGetFirmwareRev); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrap(err, "mailbox: smoke test failed")
	}
	logger.Debug("mailbox opened", zap.String("device", devicePath))
	return m, nil
}

// Close closes the underlying device file.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fd == 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = 0
	return err
}

// Allocate requests size bytes of memory aligned to alignment bytes with
// the given property-interface flags (see memory.FlagUncached), returning
// an opaque handle.
func (m *Mailbox) Allocate(size, alignment, flags uint32) (uint32, error) {
	return m.tx32(tagAllocateMemory, size, alignment, flags)
}

// Lock pins the allocation behind handle and returns its bus address.
func (m *Mailbox) Lock(handle uint32) (uint32, error) {
	return m.tx32(tagLockMemory, handle)
}

// Unlock releases the pin taken by Lock, without freeing the allocation.
func (m *Mailbox) Unlock(handle uint32) error {
	_, err := m.tx32(tagUnlockMemory, handle)
	return err
}

// Release frees the allocation behind handle. handle must have been
// unlocked first.
func (m *Mailbox) Release(handle uint32) error {
	_, err := m.tx32(tagReleaseMemory, handle)
	return err
}

// genPacket builds a mailbox request packet. The message must be 16-byte
// aligned in memory because only the upper 28 bits of the mailbox address
// are transmitted to the GPU; the low 4 bits select the channel. See
// host/videocore/videocore.go, which this is a direct port of.
func genPacket(tag uint32, replyLen uint32, args ...uint32) []uint32 {
	p := make([]uint32, 48)
	offset := uintptr(unsafe.Pointer(&p[0])) & 15
	b := p[16-offset : 32+16-offset]
	maxLen := uint32(len(args) * 4)
	if replyLen > maxLen {
		maxLen = replyLen
	}
	maxLen = ((maxLen + 3) / 4) * 4
	b[0] = uint32(6*4) + maxLen // total message length, including trailing zero
	b[2] = tag
	b[3] = uint32(len(args)) * 4 // request length in bytes
	b[4] = replyLen              // response buffer length in bytes
	copy(b[5:], args)
	return b[:6+maxLen/4]
}

func (m *Mailbox) sendPacket(b []uint32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(m.fd), ioctlRequest, uintptr(unsafe.Pointer(&b[0])))
	if errno != 0 {
		return errors.Wrap(errno, "mailbox: ioctl")
	}
	if b[1] != replyBit {
		return errors.Errorf("mailbox: unexpected reply code 0x%08x", b[1])
	}
	return nil
}

func (m *Mailbox) tx32(tag uint32, args ...uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := genPacket(tag, 4, args...)
	if err := m.sendPacket(b); err != nil {
		return 0, err
	}
	if b[4] != replyBit|4 {
		return 0, errors.Errorf("mailbox: reply length mismatch 0x%08x", b[4])
	}
	return b[5], nil
}
