package backend

import "math"

// doubleBitsOf and float32Bits give the report's wire encoder a fixed-width
// integer view of the floating point fields (local time, RTT/jitter/loss)
// without pulling in a text-based numeric format.
func doubleBitsOf(f float64) uint64 { return math.Float64bits(f) }

func float32Bits(f float32) uint32 { return math.Float32bits(f) }
