package engine

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// armChannel implements the abort/reset/reload/activate dance (spec.md
// §4.7) against whichever buffer was most recently built but not yet
// selected — 1-selectedBuf, which set_pwm always builds into. Used both by
// the public EnablePWM and by set_pwm's live-update path, so selectedBuf
// toggles exactly once per successful arm regardless of caller (spec.md
// §8: "after a successful live set_pwm, selected_buf toggles exactly
// once").
func (e *Engine) armChannel(ch int) error {
	c := &e.channels[ch]
	bufIdx := 1 - c.selectedBuf
	dma := e.board.DMA
	csOff := c.dmaOffset + regDMACS
	conblkOff := c.dmaOffset + regDMAConblkAD

	dma.SetBits32(csOff, uint32(dmaAbort))
	time.Sleep(registerSleep)
	dma.ClearBits32(csOff, uint32(dmaActive))
	dma.SetBits32(csOff, uint32(dmaEnd))
	dma.SetBits32(csOff, uint32(dmaReset))
	time.Sleep(registerSleep)

	headBus, err := c.buf[bufIdx].VirtToBus(0)
	if err != nil {
		return errors.Wrap(err, "engine: arm channel")
	}
	dma.Store32(conblkOff, headBus)
	dma.Store32(csOff, uint32(dmaArmCS))
	dma.SetBits32(csOff, uint32(dmaActive))

	c.selectedBuf = bufIdx
	c.enabled = true
	return nil
}

// EnablePWM implements enable_pwm (spec.md §4.7): arms the DMA channel
// against its most recently built ring. Requires set_pwm to have run at
// least once.
func (e *Engine) EnablePWM(ch int) error {
	c, err := e.channelRef(ch)
	if err != nil {
		return err
	}
	if !c.seqBuilt {
		return ErrPWMNotSet
	}
	if err := e.armChannel(ch); err != nil {
		return err
	}
	e.logger.Info("channel enabled", zap.Int("channel", ch))
	return nil
}

// DisablePWM implements disable_pwm (spec.md §4.8): halts the DMA channel
// and clears any GPIO pins the ring may have left high.
func (e *Engine) DisablePWM(ch int) error {
	if _, err := e.channelRef(ch); err != nil {
		return err
	}
	e.disablePWM(ch)
	return nil
}

// disablePWM is the unexported halt path freePWM also uses, skipping the
// channel-index revalidation FreePWM already did.
func (e *Engine) disablePWM(ch int) {
	c := &e.channels[ch]
	dma := e.board.DMA
	csOff := c.dmaOffset + regDMACS

	dma.SetBits32(csOff, uint32(dmaAbort))
	time.Sleep(registerSleep)
	dma.ClearBits32(csOff, uint32(dmaActive))
	dma.SetBits32(csOff, uint32(dmaReset))

	if c.setMask[c.selectedBuf] != nil {
		mask := c.setMask[c.selectedBuf].View().Load32(0)
		e.clearPins(mask)
	}

	c.enabled = false
	e.logger.Info("channel disabled", zap.Int("channel", ch))
}
