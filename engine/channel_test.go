package engine

import "testing"

// TestChannelPoolCyclingScenario3 is spec.md §8 scenario 3: the first
// request returns slot 0; the second returns slot 1; after freeing slot 0
// the next request returns slot 0 again. allocateChannel itself touches
// /dev/mem through the uncached memory provider, so this exercises just
// the slot-selection bookkeeping firstFreeSlot/RequestChannel share, with
// e.channels mutated directly the way allocateChannel would on success.
func TestChannelPoolCyclingScenario3(t *testing.T) {
	e := &Engine{logger: noopLogger(), cfg: Config{ChannelTable: DefaultChannelTable}}

	slot, phys, ok := e.firstFreeSlot()
	if !ok || slot != 0 || phys != DefaultChannelTable[0] {
		t.Fatalf("first request: slot=%d phys=%d ok=%v, want 0/%d/true", slot, phys, ok, DefaultChannelTable[0])
	}
	e.channels[slot].requested = true

	slot, phys, ok = e.firstFreeSlot()
	if !ok || slot != 1 || phys != DefaultChannelTable[1] {
		t.Fatalf("second request: slot=%d phys=%d ok=%v, want 1/%d/true", slot, phys, ok, DefaultChannelTable[1])
	}
	e.channels[slot].requested = true

	e.channels[0] = channel{}
	slot, _, ok = e.firstFreeSlot()
	if !ok || slot != 0 {
		t.Fatalf("after freeing slot 0: slot=%d ok=%v, want 0/true", slot, ok)
	}
}

func TestFirstFreeSlotExhausted(t *testing.T) {
	e := &Engine{cfg: Config{ChannelTable: DefaultChannelTable}}
	for i := range e.channels {
		e.channels[i].requested = true
	}
	if _, _, ok := e.firstFreeSlot(); ok {
		t.Fatal("firstFreeSlot() ok = true, want false when every slot is taken")
	}
}

func TestChannelRefValidation(t *testing.T) {
	e := &Engine{}
	if _, err := e.channelRef(0); err != ErrInvalidChannel {
		t.Fatalf("err = %v, want ErrInvalidChannel for unrequested slot", err)
	}
	if _, err := e.channelRef(7); err != ErrInvalidChannel {
		t.Fatalf("err = %v, want ErrInvalidChannel for out-of-range slot", err)
	}
	e.channels[2].requested = true
	if _, err := e.channelRef(2); err != nil {
		t.Fatalf("channelRef(2): %v", err)
	}
}

// TestEnableBeforeSetFails is scenario 6's first half: enable_pwm on a
// channel with seq_built=0 returns ErrPWMNotSet.
func TestEnableBeforeSetFails(t *testing.T) {
	e := &Engine{logger: noopLogger()}
	e.channels[0].requested = true
	if err := e.EnablePWM(0); err != ErrPWMNotSet {
		t.Fatalf("err = %v, want ErrPWMNotSet", err)
	}
}

// TestDisableUnrequestedChannelFails is scenario 6's second half:
// disable_pwm on an unrequested channel returns ErrInvalidChannel.
func TestDisableUnrequestedChannelFails(t *testing.T) {
	e := &Engine{logger: noopLogger()}
	if err := e.DisablePWM(0); err != ErrInvalidChannel {
		t.Fatalf("err = %v, want ErrInvalidChannel", err)
	}
}
