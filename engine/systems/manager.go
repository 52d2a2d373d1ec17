package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

/** @brief Asset access shared by every system. */
type AssetLoader interface {
	GeometryLoader
	ImageLoader
	LoadPipelineConfig(name string) (*metadata.PipelineConfig, error)
}

type SystemManager struct {
	config *core.EngineConfig
	assets AssetLoader

	jobSystem     *JobSystem
	cameraSystem  *CameraSystem
	textureSystem *TextureSystem
	meshSystem    *MeshSystem
	entitySystem  *EntitySystem
}

func NewSystemManager(config *core.EngineConfig, backend renderer.RendererBackend, assets AssetLoader) (*SystemManager, error) {
	js, err := NewJobSystem(int(config.Jobs.Workers), int(config.Jobs.QueueSize))
	if err != nil {
		return nil, err
	}
	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 16,
	})
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount:    config.Texture.MaxTextures,
		DefaultTexturePath: config.Texture.DefaultPath,
	}, assets, backend)
	if err != nil {
		return nil, err
	}
	ms, err := NewMeshSystem(&MeshSystemConfig{
		MaxMeshCount:       config.Mesh.MaxMeshes,
		DefaultTexturePath: config.Texture.DefaultPath,
	}, backend, ts, assets, cs.GetDefault())
	if err != nil {
		return nil, err
	}
	es, err := NewEntitySystem(&EntitySystemConfig{
		MaxEntities: config.Entity.MaxEntities,
	}, ms, ts)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		config:        config,
		assets:        assets,
		jobSystem:     js,
		cameraSystem:  cs,
		textureSystem: ts,
		meshSystem:    ms,
		entitySystem:  es,
	}, nil
}

// Initialize creates the GPU-side state. The renderer backend must be initialized first.
func (sm *SystemManager) Initialize() error {
	pipelineConfig, err := sm.assets.LoadPipelineConfig(sm.config.Pipeline.ConfigPath)
	if err != nil {
		err = fmt.Errorf("failed to load model pipeline config '%s': %w", sm.config.Pipeline.ConfigPath, err)
		core.LogError(err.Error())
		return err
	}
	sm.meshSystem.Config.PipelineConfig = pipelineConfig

	if err := sm.textureSystem.Initialize(); err != nil {
		return err
	}
	if err := sm.meshSystem.Initialize(); err != nil {
		return err
	}
	return nil
}

// Update delivers finished background jobs. Called once per frame.
func (sm *SystemManager) Update() {
	sm.jobSystem.Update()
}

func (sm *SystemManager) OnResize(width, height uint32) {
	sm.cameraSystem.OnResize(width, height)
}

func (sm *SystemManager) Shutdown() error {
	return errors.Join(
		sm.jobSystem.Shutdown(),
		sm.entitySystem.Shutdown(),
		sm.meshSystem.Shutdown(),
		sm.textureSystem.Shutdown(),
		sm.cameraSystem.Shutdown(),
	)
}

func (sm *SystemManager) Jobs() *JobSystem {
	return sm.jobSystem
}

func (sm *SystemManager) Cameras() *CameraSystem {
	return sm.cameraSystem
}

func (sm *SystemManager) Textures() *TextureSystem {
	return sm.textureSystem
}

func (sm *SystemManager) Meshes() *MeshSystem {
	return sm.meshSystem
}

func (sm *SystemManager) Entities() *EntitySystem {
	return sm.entitySystem
}
