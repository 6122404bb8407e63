package board

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCPUInfo(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cpuinfo")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectRevisionKnownBoards(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Revision
	}{
		{"pi3", "Revision\t: a02082\n", RevisionPi3},
		{"pi3-plus", "Revision\t: a020d3\n", RevisionPi3},
		{"pi4", "Revision\t: c03111\n", RevisionPi4},
		{"pi2", "Revision\t: a01041\n", RevisionPi2},
		{"pi-zero", "Revision\t: 900092\n", RevisionZero},
		{"classic", "Revision\t: 0010\n", RevisionBCM2835},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeCPUInfo(t, "Hardware\t: BCM2835\n"+c.line)
			rev, err := detectRevision(path)
			if err != nil {
				t.Fatalf("detectRevision: %v", err)
			}
			if rev != c.want {
				t.Fatalf("revision = %v, want %v", rev, c.want)
			}
		})
	}
}

func TestDetectRevisionUnknownIsExplicitError(t *testing.T) {
	path := writeCPUInfo(t, "Revision\t: ffffff\n")
	if _, err := detectRevision(path); err != ErrNoPiVersion {
		t.Fatalf("err = %v, want ErrNoPiVersion", err)
	}
}

func TestDetectRevisionMissingLine(t *testing.T) {
	path := writeCPUInfo(t, "Hardware\t: BCM2835\n")
	if _, err := detectRevision(path); err != ErrNoPiVersion {
		t.Fatalf("err = %v, want ErrNoPiVersion", err)
	}
}

func TestFamilyPhysicalBase(t *testing.T) {
	cases := []struct {
		f    Family
		want uint64
	}{
		{FamilyBCM2835, 0x20000000},
		{FamilyBCM2837, 0x3F000000},
		{FamilyBCM2711, 0xFE000000},
	}
	for _, c := range cases {
		if got := c.f.physicalBase(); got != c.want {
			t.Errorf("%v.physicalBase() = %#x, want %#x", c.f, got, c.want)
		}
	}
}

func TestBusAddr(t *testing.T) {
	p := &Peripherals{}
	if got := p.BusAddr(0x3F200000); got != 0x7E200000 {
		t.Fatalf("BusAddr(0x3F200000) = %#x, want 0x7E200000", got)
	}
	if got := p.BusAddr(0xFE20C000); got != 0x7E20C000 {
		t.Fatalf("BusAddr(0xFE20C000) = %#x, want 0x7E20C000", got)
	}
}

func TestDMAChannelOffset(t *testing.T) {
	if got := DMAChannelOffset(10); got != 0xA00 {
		t.Fatalf("DMAChannelOffset(10) = %#x, want 0xA00", got)
	}
}
