package engine

// gpioMask ORs together 1<<gpio for every pin in gpios (spec.md §4.6:
// "set_mask = clear_mask = ⋃ (1 << gpio[i])").
func gpioMask(gpios []int) uint32 {
	var mask uint32
	for _, g := range gpios {
		mask |= 1 << uint(g)
	}
	return mask
}

// driveOutputs sets every pin's function-select bits to output (spec.md
// §4.6: "drive each GPIO pin's function-select bits to output"). The
// function-select registers pack 10 pins per 32-bit word, 3 bits each,
// per bcm283x datasheet pages 90-91.
func (e *Engine) driveOutputs(gpios []int) {
	for _, pin := range gpios {
		regOffset := regGPFSEL0 + 4*(pin/10)
		shift := uint(pin%10) * 3
		mask := uint32(0x7) << shift
		e.board.GPIO.Store32(regOffset, (e.board.GPIO.Load32(regOffset)&^mask)|(uint32(gpioFunctionSelectOutput)<<shift))
	}
}

// gpSetBusAddr and gpClearBusAddr return the bus address of GPSET0/GPCLR0,
// the destinations every leading/boundary CB writes to (spec.md §4.6).
func (e *Engine) gpSetBusAddr() uint32 {
	return uint32(e.board.BusAddr(e.board.GPIOBase + regGPSET0))
}

func (e *Engine) gpClearBusAddr() uint32 {
	return uint32(e.board.BusAddr(e.board.GPIOBase + regGPCLR0))
}

// clearPins writes GPCLR0 = (1<<pin) once per set bit in mask (spec.md
// §4.8: "walk the set-mask bits and emit GPCLR0 = (1<<pin) for each set
// bit"). A single combined write would have the identical hardware effect,
// but the per-bit form matches the original's literal walk and makes the
// generated MMIO traffic match a datasheet trace 1:1.
func (e *Engine) clearPins(mask uint32) {
	for pin := 0; pin < 32; pin++ {
		if mask&(1<<uint(pin)) != 0 {
			e.board.GPIO.Store32(regGPCLR0, 1<<uint(pin))
		}
	}
}
