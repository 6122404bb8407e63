// Package engine is the process-wide PWM engine: channel pool, DMA control
// block sequence generator, and the clock/PWM hardware bring-up that paces
// it. It is the Go port of the original dma_pwm library's core (spec.md
// §1-§5), grounded on host/bcm283x/{dma,clock,pwm}.go for register layout
// and host/pmem for the uncached-memory model.
package engine

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/besp9510/dma-pwm/board"
	"github.com/besp9510/dma-pwm/memory"
)

// memProvider is the subset of *mailbox.Mailbox the engine actually calls:
// the uncached-memory lifecycle memory.Alloc needs, plus Close. Declaring
// it locally (rather than depending on memory's own unexported allocator
// interface) keeps the engine package's test doubles independent of both
// mailbox and memory internals.
type memProvider interface {
	Allocate(size, alignment, flags uint32) (uint32, error)
	Lock(handle uint32) (uint32, error)
	Unlock(handle uint32) error
	Release(handle uint32) error
	Close() error
}

// registerSleep is the minimum settle time the datasheet requires after a
// clock/PWM/DMA register mutation (spec.md §4.3, §4.7, §4.8).
const registerSleep = 10 * time.Microsecond

// sourceClockHz is declared in registers.go; pulseWidthBounds come from
// spec.md §4.4.
const (
	minPulseWidthUS = 0.4
	maxPulseWidthUS = 3.5175782146e10
)

// DefaultChannelTable is the pool's physical DMA channel order, channel 10
// tried first as the documented safe default (spec.md §3). Exposed as a
// Config field rather than a package constant so a caller on a kernel with
// different reserved DMA channels can override it (spec.md §9 OQ3).
var DefaultChannelTable = [7]int{10, 8, 9, 11, 12, 13, 14}

// Config holds the knobs config_pwm exposes plus the channel table
// override (spec.md §4.4, §9 OQ3). Zero value is not valid; use NewConfig.
type Config struct {
	Pages        int
	PulseWidthUS float64
	ChannelTable [7]int
}

// NewConfig returns a Config with the documented default channel table and
// the given pages/pulse-width, without validating them — validation
// happens in ConfigurePWM, which is the only place the original library
// checks these bounds.
func NewConfig(pages int, pulseWidthUS float64) Config {
	return Config{Pages: pages, PulseWidthUS: pulseWidthUS, ChannelTable: DefaultChannelTable}
}

// Engine is the process-wide singleton owning the channel pool, the
// peripheral mappings, and the clock/PWM configuration (spec.md §3, §5:
// "the channel pool, the peripheral mappings, and the clock/PWM
// configuration are process-wide singletons").
type Engine struct {
	mu sync.Mutex // serializes only the lazy hardware bring-up, per spec.md §5

	logger *zap.Logger

	cfg          Config
	clockDivisor int
	pwmRange     int
	pulseWidthUS float64

	board       *board.Peripherals
	mb          memProvider
	initialized bool

	// dummyWord is the source operand for every paced (DREQ-gated) CB: its
	// content is never inspected, only its presence drains the PWM FIFO's
	// DREQ at the configured range, so one allocation is shared by every
	// channel rather than one per channel per buffer.
	dummyWord *memory.Block

	channels [7]channel

	closeOnce sync.Once
	signalCh  chan struct{}
}

// New constructs an Engine with cfg, validating it the same way
// ConfigurePWM does. logger may be nil, in which case nothing is logged
// (spec.md §1: logging format is out of scope for this engine; the library
// surface itself never prints without an injected logger).
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{logger: logger}
	if err := e.ConfigurePWM(cfg.Pages, cfg.PulseWidthUS); err != nil {
		return nil, err
	}
	e.cfg.ChannelTable = cfg.ChannelTable
	if e.cfg.ChannelTable == ([7]int{}) {
		e.cfg.ChannelTable = DefaultChannelTable
	}
	return e, nil
}

// ConfigurePWM implements config_pwm (spec.md §4.4): sets the engine's
// pulse-width quantum and CB-buffer page budget. Fails ErrChannelRequested
// if any channel is currently requested, and ErrInvalidPulseWidth if no
// divisor/range pair can represent the requested pulse width.
func (e *Engine) ConfigurePWM(pages int, pulseWidthUS float64) error {
	for i := range e.channels {
		if e.channels[i].requested {
			return ErrChannelRequested
		}
	}
	if pulseWidthUS < minPulseWidthUS || pulseWidthUS > maxPulseWidthUS {
		return ErrInvalidPulseWidth
	}

	// Keep pwm_rng constant (whatever the previous ConfigurePWM call left,
	// or 1000 from the zero-value start) and solve for divisor; spec.md
	// §4.4's formula.
	rng := e.pwmRange
	if rng == 0 {
		rng = 1000
	}
	divisor := (pulseWidthUS / 1e6) * sourceClockHz / float64(rng)

	clamped := divisor
	switch {
	case clamped < 1:
		clamped = 1
	case clamped > 4095:
		clamped = 4095
	}
	if clamped != divisor {
		divisor = clamped
		rng = int((pulseWidthUS / 1e6) * (sourceClockHz / divisor))
		if rng < 1 {
			return ErrInvalidPulseWidth
		}
	}

	e.clockDivisor = int(divisor)
	e.pwmRange = rng
	e.pulseWidthUS = (float64(rng) / (sourceClockHz / float64(e.clockDivisor))) * 1e6
	e.cfg.Pages, e.cfg.PulseWidthUS = pages, pulseWidthUS
	e.logger.Debug("configured pwm engine",
		zap.Int("pages", pages),
		zap.Int("clock_divisor", e.clockDivisor),
		zap.Int("pwm_range", e.pwmRange),
		zap.Float64("pulse_width_us", e.pulseWidthUS),
	)
	return nil
}

// PulseWidthUS returns the engine's currently achieved pulse width, the
// quantum every channel's CB timing is computed against.
func (e *Engine) PulseWidthUS() float64 { return e.pulseWidthUS }

// Close releases every requested channel and unmaps the peripheral
// windows. Idempotent: safe to call more than once, and safe to call from
// the signal handler goroutine installed by installSignalHandler.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.closeChannels()
		if e.board != nil {
			if cerr := e.board.Close(); cerr != nil {
				err = joinErr(err, errors.Wrap(cerr, "engine: close peripheral windows"))
			}
		}
		if e.dummyWord != nil {
			if cerr := e.dummyWord.Close(); cerr != nil {
				err = joinErr(err, errors.Wrap(cerr, "engine: close dummy word"))
			}
		}
		if e.mb != nil {
			if cerr := e.mb.Close(); cerr != nil {
				err = joinErr(err, errors.Wrap(cerr, "engine: close mailbox"))
			}
		}
		e.logger.Info("engine closed")
	})
	return err
}

// closeChannels calls freePWM on every requested slot, combining any
// failures with multierr the way viamrobotics-rdk's pi board Close()
// aggregates teardown errors instead of stopping at the first one.
func (e *Engine) closeChannels() error {
	var err error
	for i := range e.channels {
		if !e.channels[i].requested {
			continue
		}
		if ferr := e.freePWM(i); ferr != nil {
			err = joinErr(err, ferr)
		}
	}
	return err
}
