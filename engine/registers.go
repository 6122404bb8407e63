package engine

// Register bit layouts for the BCM283x DMA controller, PWM controller, and
// PWM clock manager. Ported from host/bcm283x/{dma,clock,pwm}.go, trimmed to
// the bits this engine actually sets — spec.md §4.3/§4.7/§4.8 names all of
// them.

// dmaStatus is the DMA channel's CS register (datasheet pages 47-50).
type dmaStatus uint32

const (
	dmaReset                    dmaStatus = 1 << 31 // RESET
	dmaAbort                    dmaStatus = 1 << 30 // ABORT
	dmaDisableDebug             dmaStatus = 1 << 29 // DISDEBUG
	dmaWaitForOutstandingWrites dmaStatus = 1 << 28 // WAIT_FOR_OUTSTANDING_WRITES
	dmaPanicPriorityShift                 = 20      // PANIC_PRIORITY, 23:20
	dmaPriorityShift                      = 16      // PRIORITY, 19:16
	dmaEnd                      dmaStatus = 1 << 1  // END
	dmaActive                   dmaStatus = 1 << 0  // ACTIVE
)

// dmaTransferInfo is a control block's TI field (datasheet pages 50-52).
type dmaTransferInfo uint32

const (
	dmaNoWideBursts dmaTransferInfo = 1 << 26 // NO_WIDE_BURSTS
	dmaPerMapShift                  = 16      // PERMAP, 20:16
	dmaPWMPerMap    dmaTransferInfo = 5 << dmaPerMapShift
	dmaDReq         dmaTransferInfo = 1 << 6 // DEST_DREQ
	dmaWaitResp     dmaTransferInfo = 1 << 3 // WAIT_RESP
)

// cbInfo is the control-block transfer info this engine ever emits: every
// CB this engine builds both waits for the AXI write response and disables
// wide bursts (spec.md §3); paced CBs additionally gate on the PWM DREQ.
const cbInfoBase = dmaNoWideBursts | dmaWaitResp
const cbInfoPaced = cbInfoBase | dmaDReq | dmaPWMPerMap

// DMA controller register byte offsets within a channel's 0x100-wide
// window (datasheet page 40).
const (
	regDMACS       = 0x00 // control & status
	regDMAConblkAD = 0x04 // control block address
)

// dmaCS field helpers, spec.md §4.7/§4.8.
const (
	dmaPanicPrio7                 = 7 << dmaPanicPriorityShift
	dmaPrio7                      = 7 << dmaPriorityShift
	dmaWaitOutstanding            = dmaWaitForOutstandingWrites
	dmaArmCS                      = dmaStatus(dmaPanicPrio7) | dmaStatus(dmaPrio7) | dmaWaitOutstanding
)

// clockCtl controls the PWM clock manager's CTL register (datasheet page
// 107). Must not be changed while busy is set.
type clockCtl uint32

const (
	clockPassword     clockCtl = 0x5A << 24 // PASSWD
	clockEnable       clockCtl = 1 << 4     // ENAB
	clockSrcMask      clockCtl = 0xF
	clockSrcPLLD      clockCtl = 6 // 500MHz
)

// clockDiv is the clock manager's DIV register, a 12.12 fixed point value
// (datasheet page 108).
type clockDiv uint32

const (
	clockDivPassword clockDiv = 0x5A << 24 // PASSWD
	clockDiviShift            = 12
)

// Clock manager register byte offsets (CM_PWMCTL / CM_PWMDIV, datasheet
// page 107; both are at the base of the PWM clock manager window this
// engine maps, since /dev/mem is given only that one peripheral's base).
const (
	regClockCTL = 0x00
	regClockDIV = 0x04
)

// pwmControl is the PWM controller's CTL register (datasheet pages 141-143).
type pwmControl uint32

const (
	pwmClearFIFO pwmControl = 1 << 6 // CLRF1
	pwmUseFIFO1  pwmControl = 1 << 5 // USEF1
	pwmEnable1   pwmControl = 1 << 0 // PWEN1
)

// pwmDMACfg is the PWM controller's DMAC register (datasheet page 145).
type pwmDMACfg uint32

const (
	pwmDMAEnable    pwmDMACfg = 1 << 31 // ENAB
	pwmPanicThresh            = 15 << 8 // PANIC default threshold
	pwmDReqThresh             = 15      // DREQ default threshold
)

// PWM controller register byte offsets (datasheet pages 138 onward).
const (
	regPWMCTL   = 0x00
	regPWMDMAC  = 0x08
	regPWMRNG1  = 0x10
	regPWMFIFO  = 0x18
)

// GPIO register byte offsets (datasheet pages 90-91). Function-select
// registers are 3 bits per pin, 10 pins per 32-bit word; set/clear are
// write-1-to-act registers covering GPIO0-31 at word offset 7/10 within the
// peripheral, i.e. byte offsets 0x1C and 0x28 — confirmed against
// _examples/original_source/include/gpio.h's GPIO_SET/GPIO_CLEAR macros
// (word index 7 and 10 from the mapped base).
const (
	regGPFSEL0 = 0x00
	regGPSET0  = 0x1C
	regGPCLR0  = 0x28
)

// gpioFunctionSelectOutput is the 3-bit pattern selecting "output" mode
// (datasheet page 92: 001).
const gpioFunctionSelectOutput = 0x1

// sourceClockHz is the PLLD frequency used as the PWM clock source
// (spec.md §3 invariant, §4.3 step 2: source = 6 selects PLLD).
const sourceClockHz = 500000000

// pwmDREQPerMapIndex documents where dmaPWMPerMap's "5" comes from:
// peripheral index 5 = PWM, per spec.md §3 and the GLOSSARY.
const pwmDREQPerMapIndex = 5
