package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

// PipelineConfigLoader decodes TOML pipeline descriptions.
type PipelineConfigLoader struct{}

func (pl *PipelineConfigLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := ParsePipelineConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &metadata.Resource{
		Name:     config.Name,
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     config,
	}, nil
}

func (pl *PipelineConfigLoader) Unload(*metadata.Resource) error {
	return nil
}

func ParsePipelineConfig(data []byte) (*metadata.PipelineConfig, error) {
	config := &metadata.PipelineConfig{
		CullMode:   metadata.CullModeBack,
		DepthTest:  true,
		DepthWrite: true,
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParseFailed, err)
	}
	if config.VertexShader == "" || config.FragmentShader == "" {
		return nil, fmt.Errorf("%w: pipeline `%s` needs both vertex_shader and fragment_shader", core.ErrParseFailed, config.Name)
	}
	return config, nil
}
