package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationSection struct {
	Name        string `toml:"name"`
	StartPosX   uint32 `toml:"start_pos_x"`
	StartPosY   uint32 `toml:"start_pos_y"`
	StartWidth  uint32 `toml:"start_width"`
	StartHeight uint32 `toml:"start_height"`
	LogLevel    string `toml:"log_level"`
	// Enables the graphics API validation layers.
	Validation bool `toml:"validation"`
}

type MeshSection struct {
	MaxMeshes uint32 `toml:"max_meshes"`
}

type EntitySection struct {
	MaxEntities uint32 `toml:"max_entities"`
}

type TextureSection struct {
	MaxTextures uint32 `toml:"max_textures"`
	DefaultPath string `toml:"default_path"`
}

type JobSection struct {
	Workers   uint32 `toml:"workers"`
	QueueSize uint32 `toml:"queue_size"`
}

type PipelineSection struct {
	ConfigPath string `toml:"config_path"`
}

// EngineConfig is the on-disk engine configuration (assets/config/engine.toml).
type EngineConfig struct {
	Application ApplicationSection `toml:"application"`
	Mesh        MeshSection        `toml:"mesh"`
	Entity      EntitySection      `toml:"entity"`
	Texture     TextureSection     `toml:"texture"`
	Pipeline    PipelineSection    `toml:"pipeline"`
	Jobs        JobSection         `toml:"jobs"`
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Application: ApplicationSection{
			Name:        "Anima3D",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
			LogLevel:    "info",
		},
		Mesh:     MeshSection{MaxMeshes: 1024},
		Entity:   EntitySection{MaxEntities: 1024},
		Texture:  TextureSection{MaxTextures: 256, DefaultPath: "images/default.png"},
		Pipeline: PipelineSection{ConfigPath: "config/model_pipeline.toml"},
		Jobs:     JobSection{Workers: 2, QueueSize: 64},
	}
}

// LoadEngineConfig decodes a TOML file on top of DefaultEngineConfig, so
// keys missing from the file keep their default value.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err := fmt.Errorf("failed to read engine config `%s`: %w", path, err)
		LogError(err.Error())
		return nil, err
	}
	return ParseEngineConfig(data)
}

func ParseEngineConfig(data []byte) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		err := fmt.Errorf("failed to decode engine config: %w", err)
		LogError(err.Error())
		return nil, err
	}
	return cfg, nil
}
