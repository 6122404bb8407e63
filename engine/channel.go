package engine

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/besp9510/dma-pwm/board"
	"github.com/besp9510/dma-pwm/memory"
)

// channel is one slot of the fixed seven-entry pool (spec.md §3). Index 0
// in e.channels always maps to e.cfg.ChannelTable[0], the physical DMA
// index tried first.
type channel struct {
	physicalIndex int
	dmaOffset     int // byte offset of this channel's register window within board.DMA

	buf       [2]*memory.Block // double-buffered CB rings, page-aligned
	setMask   [2]*memory.Block // one 32-bit uncached word per buffer
	clearMask [2]*memory.Block

	requested   bool
	enabled     bool
	selectedBuf int // 0 or 1; the *active* buffer
	seqBuilt    bool

	gpios []int

	reqFreqHz, reqDutyPct           float64
	achievedFreqHz, achievedDutyPct float64
	dutyResolutionPct               float64
	subcyclePeriodUS                float64
	seqNum, setNum, clrNum          int
}

// RequestChannel implements request_pwm (spec.md §4.5). The first call
// triggers the engine's one-time clock/PWM hardware bring-up (spec.md
// §4.3); subsequent calls skip it.
func (e *Engine) RequestChannel() (int, error) {
	if err := e.ensureHardware(); err != nil {
		return -1, err
	}

	i, physIdx, ok := e.firstFreeSlot()
	if !ok {
		return -1, ErrNoFreeChannel
	}
	if err := e.allocateChannel(i, physIdx); err != nil {
		return -1, err
	}
	e.logger.Info("channel requested", zap.Int("channel", i), zap.Int("physical_dma", physIdx))
	return i, nil
}

// firstFreeSlot scans the channel table in its documented preference
// order (physical channel 10 first) and returns the first unrequested
// slot (spec.md §4.5: "the table order prefers physical channel 10
// first").
func (e *Engine) firstFreeSlot() (slot, physIdx int, ok bool) {
	for i, p := range e.cfg.ChannelTable {
		if !e.channels[i].requested {
			return i, p, true
		}
	}
	return 0, 0, false
}

// allocateChannel reserves slot i against physical DMA channel physIdx:
// both CB ring buffers and both 32-bit mask words, through the uncached
// memory provider (spec.md §4.5).
func (e *Engine) allocateChannel(i, physIdx int) (err error) {
	ch := &e.channels[i]
	bufSize := e.cfg.Pages * memory.PageSize

	blocks := make([]*memory.Block, 0, 6)
	defer func() {
		if err != nil {
			for _, b := range blocks {
				_ = b.Close()
			}
		}
	}()

	alloc := func(size, align int) (*memory.Block, error) {
		b, aerr := memory.Alloc(e.mb, size, align)
		if aerr != nil {
			return nil, aerr
		}
		blocks = append(blocks, b)
		return b, nil
	}

	var buf, setMask, clearMask [2]*memory.Block
	for b := 0; b < 2; b++ {
		if buf[b], err = alloc(bufSize, memory.PageSize); err != nil {
			return errors.Wrap(err, "engine: allocate cb buffer")
		}
		if setMask[b], err = alloc(4, 4); err != nil {
			return errors.Wrap(err, "engine: allocate set mask")
		}
		if clearMask[b], err = alloc(4, 4); err != nil {
			return errors.Wrap(err, "engine: allocate clear mask")
		}
	}

	ch.physicalIndex = physIdx
	ch.dmaOffset = board.DMAChannelOffset(physIdx)
	ch.buf = buf
	ch.setMask = setMask
	ch.clearMask = clearMask
	ch.requested = true
	ch.enabled = false
	ch.selectedBuf = 1
	ch.seqBuilt = false
	return nil
}

// channelRef validates ch and returns the pool slot, the way every other
// operation in spec.md §6 validates EINVCHNL first.
func (e *Engine) channelRef(ch int) (*channel, error) {
	if ch < 0 || ch >= len(e.channels) || !e.channels[ch].requested {
		return nil, ErrInvalidChannel
	}
	return &e.channels[ch], nil
}

// FreePWM implements free_pwm (spec.md §4.9): disables first, then frees
// both buffers and both mask words and resets the slot. Idempotent-safe:
// calling it twice on an already-free channel returns ErrInvalidChannel,
// matching the original's EINVCHNL on an unrequested channel.
func (e *Engine) FreePWM(ch int) error {
	if _, err := e.channelRef(ch); err != nil {
		return err
	}
	return e.freePWM(ch)
}

// freePWM is the unexported release path Close() also uses to drain every
// requested slot without re-validating each index.
func (e *Engine) freePWM(ch int) error {
	c := &e.channels[ch]
	var err error
	if c.enabled {
		e.disablePWM(ch)
	}
	for b := 0; b < 2; b++ {
		for _, blk := range []*memory.Block{c.buf[b], c.setMask[b], c.clearMask[b]} {
			if blk == nil {
				continue
			}
			if cerr := blk.Close(); cerr != nil {
				err = joinErr(err, cerr)
			}
		}
	}
	*c = channel{}
	e.logger.Info("channel freed", zap.Int("channel", ch))
	return err
}

// AchievedFrequency returns the last achieved frequency set_pwm computed
// for ch (spec.md §6 "Accessors").
func (e *Engine) AchievedFrequency(ch int) (float64, error) {
	c, err := e.channelRef(ch)
	if err != nil {
		return 0, err
	}
	return c.achievedFreqHz, nil
}

// AchievedDuty returns the last achieved duty cycle percentage set_pwm
// computed for ch.
func (e *Engine) AchievedDuty(ch int) (float64, error) {
	c, err := e.channelRef(ch)
	if err != nil {
		return 0, err
	}
	return c.achievedDutyPct, nil
}

// DutyResolution returns the finest duty-cycle step ch can represent at
// its current frequency (spec.md §4.6 step 6).
func (e *Engine) DutyResolution(ch int) (float64, error) {
	c, err := e.channelRef(ch)
	if err != nil {
		return 0, err
	}
	return c.dutyResolutionPct, nil
}

// SeqTotals returns (seqNum, setNum, clrNum) for ch, the CB-count
// bookkeeping spec.md §3's invariant 1 is checked against.
func (e *Engine) SeqTotals(ch int) (seqNum, setNum, clrNum int, err error) {
	c, err := e.channelRef(ch)
	if err != nil {
		return 0, 0, 0, err
	}
	return c.seqNum, c.setNum, c.clrNum, nil
}
