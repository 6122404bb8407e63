// Package board identifies the Broadcom SoC family behind a Raspberry Pi by
// parsing /proc/cpuinfo, and maps the four peripheral register windows this
// engine needs (GPIO, DMA controller, PWM controller, PWM clock manager)
// through /dev/mem.
//
// Grounded on host/rpi/rpi.go (board revision detection shape) and
// host/distro/distro.go (/proc/cpuinfo reading), with the literal revision
// table and exact-string matching algorithm taken from
// _examples/original_source/src/get_pi_version.c per spec.md §4.1/§9 OQ1.
package board

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/besp9510/dma-pwm/memory"
)

// Revision is the coarse board generation spec.md §4.1 names v0..v4.
type Revision int

const (
	RevisionUnknown Revision = iota
	RevisionZero             // v0: Pi Zero
	RevisionBCM2835          // v1: classic Pi 1 / A / B / B+
	RevisionPi2              // v2: Pi 2 (BCM2836/2837)
	RevisionPi3              // v3: Pi 3 (BCM2837)
	RevisionPi4              // v4: Pi 4 (BCM2711)
)

// Family is the SoC family that determines the physical peripheral base
// address (spec.md §4.1).
type Family int

const (
	FamilyUnknown Family = iota
	FamilyBCM2835
	FamilyBCM2837
	FamilyBCM2711
)

func (r Revision) family() Family {
	switch r {
	case RevisionZero, RevisionBCM2835:
		return FamilyBCM2835
	case RevisionPi2, RevisionPi3:
		return FamilyBCM2837
	case RevisionPi4:
		return FamilyBCM2711
	default:
		return FamilyUnknown
	}
}

// physicalBase returns the peripheral physical base address for f.
func (f Family) physicalBase() uint64 {
	switch f {
	case FamilyBCM2835:
		return 0x20000000
	case FamilyBCM2837:
		return 0x3F000000
	case FamilyBCM2711:
		return 0xFE000000
	default:
		return 0
	}
}

// busBase is the DMA/GPU bus address alias, constant across every family
// (spec.md §4.1).
const busBase = 0x7E000000

// Peripheral register offsets from the base, constant across every family.
const (
	offsetGPIO  = 0x200000
	offsetDMA   = 0x007000
	offsetPWM   = 0x20C000
	offsetClock = 0x101000
)

// revisionTable is keyed on the exact string after "Revision" ": " in
// /proc/cpuinfo, following _examples/original_source/src/get_pi_version.c.
// Overclock bits are not masked here: the match is on the raw printed
// string, not a parsed integer, so an overclocked board simply
// needs its own (rare) table entry — same behavior as the original.
var revisionTable = map[string]Revision{
	"0002": RevisionBCM2835, "0003": RevisionBCM2835, "0004": RevisionBCM2835,
	"0005": RevisionBCM2835, "0006": RevisionBCM2835, "0007": RevisionBCM2835,
	"0008": RevisionBCM2835, "0009": RevisionBCM2835, "000d": RevisionBCM2835,
	"000e": RevisionBCM2835, "000f": RevisionBCM2835, "0010": RevisionBCM2835,
	"0012": RevisionBCM2835, "0013": RevisionBCM2835, "0015": RevisionBCM2835,
	"900032": RevisionBCM2835,
	"900092": RevisionZero, "900093": RevisionZero, "9000c1": RevisionZero,
	"a01041": RevisionPi2, "a21041": RevisionPi2, "a22042": RevisionPi2,
	"a02082": RevisionPi3, "a22082": RevisionPi3, "a020d3": RevisionPi3,
	"a03111": RevisionPi4, "b03111": RevisionPi4, "c03111": RevisionPi4,
}

// detectRevision reads /proc/cpuinfo, locates the line containing
// "Revision", and looks up the string after ": " in revisionTable.
func detectRevision(cpuinfoPath string) (Revision, error) {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return RevisionUnknown, errors.Wrap(err, "board: open /proc/cpuinfo")
	}
	defer f.Close()

	var revisionLine string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "Revision") {
			revisionLine = line
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return RevisionUnknown, errors.Wrap(err, "board: read /proc/cpuinfo")
	}
	idx := strings.Index(revisionLine, ": ")
	if idx < 0 {
		return RevisionUnknown, ErrNoPiVersion
	}
	revisionString := strings.ToLower(strings.TrimSpace(revisionLine[idx+2:]))

	if rev, ok := revisionTable[revisionString]; ok {
		return rev, nil
	}
	// spec.md §9 OQ1: the original C loop can fall off the end leaving
	// `version` uninitialized; this must be an explicit error instead.
	return RevisionUnknown, ErrNoPiVersion
}

// Peripherals holds the detected board revision, the physical/bus base
// addresses it implies, and the four mapped register windows.
type Peripherals struct {
	Revision     Revision
	Family       Family
	PhysicalBase uint64
	BusBase      uint64

	// Physical base address of each register window, for code that needs
	// to compute a bus address of a specific register within it (e.g. the
	// engine package's GPSET0/GPCLR0 lookups).
	GPIOBase  uint64
	DMABase   uint64
	PWMBase   uint64
	ClockBase uint64

	GPIO  *memory.View
	DMA   *memory.View
	PWM   *memory.View
	Clock *memory.View
}

// Open detects the board revision and maps all four register windows.
func Open() (*Peripherals, error) {
	rev, err := detectRevision("/proc/cpuinfo")
	if err != nil {
		return nil, err
	}
	family := rev.family()
	physBase := family.physicalBase()

	p := &Peripherals{
		Revision: rev, Family: family, PhysicalBase: physBase, BusBase: busBase,
		GPIOBase: physBase + offsetGPIO, DMABase: physBase + offsetDMA,
		PWMBase: physBase + offsetPWM, ClockBase: physBase + offsetClock,
	}
	windows := []struct {
		offset uint64
		dst    **memory.View
	}{
		{offsetGPIO, &p.GPIO},
		{offsetDMA, &p.DMA},
		{offsetPWM, &p.PWM},
		{offsetClock, &p.Clock},
	}
	for _, w := range windows {
		v, err := memory.MapPhysical(physBase+w.offset, memory.PageSize)
		if err != nil {
			p.Close()
			return nil, errors.Wrap(err, "board: map peripheral window")
		}
		*w.dst = v
	}
	return p, nil
}

// Close unmaps every mapped register window. Safe to call on a partially
// initialized Peripherals (e.g. if Open failed partway through).
func (p *Peripherals) Close() error {
	var err error
	for _, v := range []*memory.View{p.GPIO, p.DMA, p.PWM, p.Clock} {
		if v != nil {
			if cerr := v.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}

// DMAChannelOffset returns the byte offset of physical DMA channel idx's
// register window within the DMA controller's mapped region (spec.md §3:
// offset = 0x100 * physical_index).
func DMAChannelOffset(physicalIndex int) int {
	return 0x100 * physicalIndex
}

// BusAddr translates a physical peripheral address (GPIO/DMA/PWM/Clock base
// + register offset) to the 0x7E000000-aliased bus address the DMA
// controller must use to reach it (spec.md §4.1).
func (p *Peripherals) BusAddr(physicalAddr uint64) uint64 {
	return busBase | (physicalAddr &^ 0xFF000000)
}
