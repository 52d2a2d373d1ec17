package metadata

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer is used for uniform data. */
	RENDERBUFFER_TYPE_UNIFORM
	/** @brief Buffer is used for staging purposes (i.e. from host-visible to device-local memory) */
	RENDERBUFFER_TYPE_STAGING
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_UNIFORM:
		return "uniform"
	case RENDERBUFFER_TYPE_STAGING:
		return "staging"
	default:
		return "unknown"
	}
}

/** @brief Where the memory backing a buffer lives and how the host may touch it. */
type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
)

func (f MemoryPropertyFlags) Has(flag MemoryPropertyFlags) bool {
	return f&flag == flag
}

/**
 * @brief A GPU buffer together with its backing memory. The renderer
 * backend stores its API handles in InternalData.
 */
type RenderBuffer struct {
	/** @brief The type of buffer, which typically determines its use. */
	RenderBufferType RenderBufferType
	/** @brief The total size of the buffer in bytes. */
	TotalSize uint64
	/** @brief Memory visibility requested at creation. */
	MemoryProperties MemoryPropertyFlags
	/** @brief Contains internal data for the renderer-API-specific buffer. */
	InternalData interface{}
}

type MemoryRange struct {
	Offset uint64
	Size   uint64
}
