package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/besp9510/dma-pwm/memory"
)

// cbsPerPage is how many 32-byte control blocks fit in one uncached page.
const cbsPerPage = memory.PageSize / cbSize

// SetPWM implements set_pwm (spec.md §4.6), the heart of the engine:
// derives a CB ring from the requested frequency and duty, writes it into
// the channel's inactive buffer, and — if the channel is already enabled —
// immediately live-updates the DMA engine onto it.
func (e *Engine) SetPWM(ch int, gpios []int, freqHz, dutyPercent float64) error {
	c, err := e.channelRef(ch)
	if err != nil {
		return err
	}
	if len(gpios) == 0 {
		return ErrInvalidGPIO
	}
	for _, g := range gpios {
		if g < 0 || g > 31 {
			return ErrInvalidGPIO
		}
	}
	if dutyPercent < 0 || dutyPercent > 100 {
		return ErrInvalidDuty
	}
	if freqHz <= 0 {
		return ErrFrequencyNotMet
	}

	pulseWidth := e.pulseWidthUS

	// 1-3: subcycle period, candidate CB count, attainability.
	tSub := 1e6 / freqHz
	seq := int(math.Floor(tSub/pulseWidth)) / 2
	if seq == 0 {
		return ErrFrequencyNotMet
	}

	// 4: page budget.
	requiredPages := int(math.Ceil(float64(seq) / float64(cbsPerPage)))
	if requiredPages > e.cfg.Pages {
		return ErrOutOfMemory
	}

	// 5-7: achieved frequency, duty resolution, snapped achieved duty.
	achievedFreq := 1 / (float64(seq) * pulseWidth * 2e-6)
	res := 100 / float64(seq)
	var achievedDuty float64
	switch dutyPercent {
	case 0, 100:
		achievedDuty = dutyPercent
	default:
		achievedDuty = math.Round(dutyPercent/res) * res
	}

	// 8-9: set/clear CB counts, final ring length.
	setN := int(math.Floor((tSub / pulseWidth) * (achievedDuty / 100) / 2))
	clrN := int(math.Abs(float64(seq - setN)))
	trivial := achievedDuty == 0 || achievedDuty == 100
	seqTotal := seq + 1
	if !trivial {
		seqTotal = seq + 2
	}

	// Build into the inactive buffer; arming (here or via EnablePWM) is
	// what makes it the active one.
	nextBuf := 1 - c.selectedBuf

	mask := gpioMask(gpios)
	c.setMask[nextBuf].View().Store32(0, mask)
	c.clearMask[nextBuf].View().Store32(0, mask)
	e.driveOutputs(gpios)

	if err := e.emitRing(c, nextBuf, seqTotal, setN, achievedDuty, trivial); err != nil {
		return err
	}

	c.gpios = append(c.gpios[:0], gpios...)
	c.reqFreqHz, c.reqDutyPct = freqHz, dutyPercent
	c.achievedFreqHz, c.achievedDutyPct = achievedFreq, achievedDuty
	c.dutyResolutionPct = res
	c.subcyclePeriodUS = tSub
	c.seqNum, c.setNum, c.clrNum = seqTotal, setN, clrN
	c.seqBuilt = true

	if c.enabled {
		if err := e.armChannel(ch); err != nil {
			return err
		}
	}

	e.logger.Debug("pwm set",
		zap.Int("channel", ch),
		zap.Float64("freq_hz", achievedFreq),
		zap.Float64("duty_pct", achievedDuty),
		zap.Int("seq_total", seqTotal),
	)
	return nil
}

// emitRing writes seqTotal control blocks into buf's region of c's buffer
// bufIdx, closing the ring at the end (spec.md §4.6's CB-emission rules).
func (e *Engine) emitRing(c *channel, bufIdx, seqTotal, setN int, achievedDuty float64, trivial bool) error {
	block := c.buf[bufIdx]
	view := block.View()

	bus := func(i int) (uint32, error) { return block.VirtToBus(i * cbSize) }

	setMaskBus := c.setMask[bufIdx].BusAddr()
	clearMaskBus := c.clearMask[bufIdx].BusAddr()
	gpSetBus := e.gpSetBusAddr()
	gpClearBus := e.gpClearBusAddr()
	dummyBus := e.dummyWord.BusAddr()
	fifoBus := uint32(e.board.BusAddr(e.board.PWMBase + regPWMFIFO))

	for i := 0; i < seqTotal; i++ {
		var cb controlBlock
		switch {
		case i == 0:
			if achievedDuty != 0 {
				cb = controlBlock{Info: uint32(cbInfoBase), Src: setMaskBus, Dst: gpSetBus, Length: 4}
			} else {
				cb = controlBlock{Info: uint32(cbInfoBase), Src: clearMaskBus, Dst: gpClearBus, Length: 4}
			}
		case !trivial && i == setN+1:
			cb = controlBlock{Info: uint32(cbInfoBase), Src: clearMaskBus, Dst: gpClearBus, Length: 4}
		default:
			cb = controlBlock{Info: uint32(cbInfoPaced), Src: dummyBus, Dst: fifoBus, Length: 4}
		}

		var next uint32
		var err error
		if i == seqTotal-1 {
			next, err = bus(0)
		} else {
			next, err = bus(i + 1)
		}
		if err != nil {
			return ErrOutOfMemory
		}
		cb.Next = next
		cb.writeTo(view, i)
	}
	return nil
}
