package engine

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/besp9510/dma-pwm/board"
	"github.com/besp9510/dma-pwm/mailbox"
	"github.com/besp9510/dma-pwm/memory"
)

// ensureHardware performs the engine's process-wide, one-time hardware
// bring-up on first channel request (spec.md §3: "lazily initialized on
// first channel request"). Safe to call repeatedly; only the first call
// after New does anything.
func (e *Engine) ensureHardware() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}

	brd, err := board.Open()
	if err != nil {
		if errors.Is(err, board.ErrNoPiVersion) {
			return ErrNoPiVersion
		}
		return wrapf(ErrMapFailed, "open peripherals: %v", err)
	}

	mb, err := mailbox.Open(e.logger)
	if err != nil {
		_ = brd.Close()
		return wrapf(ErrMapFailed, "open mailbox: %v", err)
	}

	e.board = brd
	e.mb = mb

	dummy, err := memory.Alloc(mb, 4, 4)
	if err != nil {
		_ = mb.Close()
		_ = brd.Close()
		return wrapf(ErrMapFailed, "allocate dummy word: %v", err)
	}
	e.dummyWord = dummy

	e.initClockAndPWM()

	if err := e.installSignalHandler(); err != nil {
		return wrapf(ErrSignalHandlerFailed, "%v", err)
	}

	e.initialized = true
	e.logger.Info("hardware initialized",
		zap.String("revision", revisionName(brd.Revision)),
		zap.Int("clock_divisor", e.clockDivisor),
		zap.Int("pwm_range", e.pwmRange),
	)
	return nil
}

// initClockAndPWM implements spec.md §4.3's clock-manager and PWM
// controller bring-up sequence, each step followed by the datasheet's
// required settle time.
func (e *Engine) initClockAndPWM() {
	settle := func() { time.Sleep(registerSleep) }

	// 1. Reset PWM controller.
	e.board.PWM.Store32(regPWMCTL, 0)
	settle()

	// 2. Select clock source PLLD (source = 6).
	e.board.Clock.Store32(regClockCTL, uint32(clockPassword|clockSrcPLLD))
	settle()

	// 3. Set integer divisor.
	e.board.Clock.Store32(regClockDIV, uint32(clockDivPassword)|uint32(e.clockDivisor)<<clockDiviShift)
	settle()

	// 4. Enable clock.
	e.board.Clock.Store32(regClockCTL, uint32(clockPassword|clockSrcPLLD|clockEnable))
	settle()

	// 5. Set range1.
	e.board.PWM.Store32(regPWMRNG1, uint32(e.pwmRange))
	settle()

	// 6. Enable DMA from PWM.
	e.board.PWM.Store32(regPWMDMAC, uint32(pwmDMAEnable)|pwmDReqThresh|pwmPanicThresh)
	settle()

	// 7. Clear FIFO.
	e.board.PWM.Store32(regPWMCTL, uint32(pwmClearFIFO))
	settle()

	// 8. Engage.
	e.board.PWM.Store32(regPWMCTL, uint32(pwmUseFIFO1|pwmEnable1))
	settle()
}

func revisionName(r board.Revision) string {
	switch r {
	case board.RevisionZero:
		return "zero"
	case board.RevisionBCM2835:
		return "bcm2835"
	case board.RevisionPi2:
		return "pi2"
	case board.RevisionPi3:
		return "pi3"
	case board.RevisionPi4:
		return "pi4"
	default:
		return "unknown"
	}
}
