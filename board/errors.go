package board

import "errors"

// ErrNoPiVersion is returned when /proc/cpuinfo's revision string does not
// match any entry in revisionTable. Mirrors spec.md's ENOPIVER; the engine
// package maps it onto its own error Kind so callers classify it alongside
// every other engine error without a type switch into this package.
var ErrNoPiVersion = errors.New("board: could not determine raspberry pi board revision")
