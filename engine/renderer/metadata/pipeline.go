package metadata

import (
	"fmt"
	"strings"
)

type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	CullModeFrontAndBack
)

func (c *CullMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "none", "":
		*c = CullModeNone
	case "front":
		*c = CullModeFront
	case "back":
		*c = CullModeBack
	case "front_and_back":
		*c = CullModeFrontAndBack
	default:
		return fmt.Errorf("unknown cull mode `%s`", text)
	}
	return nil
}

/**
 * @brief Configuration for a graphics pipeline. The first block is read
 * from a pipeline config file; the second is filled in by the system
 * creating the pipeline.
 */
type PipelineConfig struct {
	Name           string   `toml:"name"`
	VertexShader   string   `toml:"vertex_shader"`
	FragmentShader string   `toml:"fragment_shader"`
	CullMode       CullMode `toml:"cull_mode"`
	Wireframe      bool     `toml:"wireframe"`
	DepthTest      bool     `toml:"depth_test"`
	DepthWrite     bool     `toml:"depth_write"`

	/** @brief Layout of the vertex buffers bound to this pipeline. */
	VertexLayout VertexLayout `toml:"-"`
	/** @brief Maximum number of draws that can be queued per frame. */
	MaxDraws uint32 `toml:"-"`
	/** @brief Size in bytes of the per-draw uniform block. */
	UniformSize uint32 `toml:"-"`
	IndexType   IndexType `toml:"-"`
	/** @brief Number of in-flight frames; per-frame resources are sized by it. */
	ChainLength uint32 `toml:"-"`
	/** @brief SPIR-V code, resolved from VertexShader/FragmentShader. */
	VertexShaderCode   []uint32 `toml:"-"`
	FragmentShaderCode []uint32 `toml:"-"`
}
