package metadata

const (
	InvalidID       uint32 = 4294967295
	InvalidIDUint16 uint16 = 65535
)

func GetAlignedRange(offset, size, granularity uint64) *MemoryRange {
	return &MemoryRange{
		Offset: GetAligned(offset, granularity),
		Size:   GetAligned(size, granularity),
	}
}

// GetAligned rounds operand up to the next multiple of granularity (a power of two).
func GetAligned(operand, granularity uint64) uint64 {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}
