package engine

import "fmt"

// Kind is one of the scalar error kinds spec.md §6/§7 defines. The numeric
// values match spec.md's table exactly so a caller that still wants the
// classic negated-integer contract can recover it with Errno().
type Kind int

const (
	_ Kind = iota
	ErrChannelRequested
	ErrInvalidPulseWidth
	ErrNoFreeChannel
	ErrInvalidChannel
	ErrInvalidDuty
	ErrInvalidGPIO
	ErrFrequencyNotMet
	ErrPWMNotSet
	ErrNoPiVersion
	ErrMapFailed
	ErrSignalHandlerFailed
	// ErrOutOfMemory covers spec.md §4.6 step 4's "required pages exceeds
	// allocated_pages" condition. The original spec.md §6 error table only
	// enumerates 11 named codes but separately lists "out-of-memory" among
	// set_pwm's failure modes without assigning it a number; this extends
	// the enum rather than overloading one of the 11 canonical values.
	ErrOutOfMemory
)

var kindNames = map[Kind]string{
	ErrChannelRequested:    "at least one channel has already been requested",
	ErrInvalidPulseWidth:   "invalid pulse width",
	ErrNoFreeChannel:       "no free DMA channels available to request",
	ErrInvalidChannel:      "invalid or non-requested channel",
	ErrInvalidDuty:         "invalid duty cycle",
	ErrInvalidGPIO:         "invalid GPIO pin",
	ErrFrequencyNotMet:     "desired frequency cannot be met at the configured pulse width",
	ErrPWMNotSet:           "PWM signal on the requested channel has not been set",
	ErrNoPiVersion:         "could not determine raspberry pi board revision",
	ErrMapFailed:           "peripheral memory mapping failed",
	ErrSignalHandlerFailed: "signal handler failed to set up",
	ErrOutOfMemory:         "cb sequence exceeds the channel's allocated pages",
}

// Error implements the error interface; Kind values can be returned
// directly as an error or wrapped with additional context via wrapf.
func (k Kind) Error() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("engine: unknown error kind %d", int(k))
}

// Errno returns spec.md §6's raw positive error-number contract
// (ECHNLREQ=1, …), for callers bridging to the original C API's negated
// return-value convention.
func (k Kind) Errno() int { return int(k) }

// class buckets a Kind into the taxonomy spec.md §7 lays out. Nothing in
// this package consults it (logging levels are chosen per call site);
// callers should compare against the Kind constants directly, not this
// classification.
type class int

const (
	classValidation class = iota
	classResource
	classCapability
	classState
)

func (k Kind) class() class {
	switch k {
	case ErrInvalidChannel, ErrInvalidDuty, ErrInvalidGPIO, ErrInvalidPulseWidth:
		return classValidation
	case ErrNoFreeChannel, ErrOutOfMemory:
		return classResource
	case ErrNoPiVersion, ErrMapFailed, ErrSignalHandlerFailed:
		return classCapability
	case ErrChannelRequested, ErrPWMNotSet, ErrFrequencyNotMet:
		return classState
	default:
		return classValidation
	}
}

// wrapped pairs a Kind with additional context while still comparing equal
// to the bare Kind via errors.Is (it implements Unwrap).
type wrapped struct {
	kind Kind
	msg  string
}

func (w *wrapped) Error() string { return w.kind.Error() + ": " + w.msg }
func (w *wrapped) Unwrap() error { return w.kind }
func (w *wrapped) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == w.kind
}

func wrapf(kind Kind, format string, args ...interface{}) error {
	return &wrapped{kind: kind, msg: fmt.Sprintf(format, args...)}
}
