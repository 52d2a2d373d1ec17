package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/components"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

type CameraSystem struct {
	Config  *CameraSystemConfig
	Lookup  map[string]uint16
	Cameras []components.CameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of cameras that can be managed by
	 * the system.
	 */
	MaxCameraCount uint16
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config == nil || config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount: %w", core.ErrZeroCapacity)
		core.LogError(err.Error())
		return nil, err
	}
	cs := &CameraSystem{
		Config:        config,
		Cameras:       make([]components.CameraLookup, config.MaxCameraCount),
		Lookup:        make(map[string]uint16, config.MaxCameraCount),
		DefaultCamera: components.NewCamera(),
	}
	for i := range cs.Cameras {
		cs.Cameras[i].ID = metadata.InvalidIDUint16
	}
	return cs, nil
}

func (cs *CameraSystem) Shutdown() error {
	clear(cs.Lookup)
	for i := range cs.Cameras {
		cs.Cameras[i] = components.CameraLookup{ID: metadata.InvalidIDUint16}
	}
	return nil
}

/**
 * @brief Acquires a pointer to a camera by name.
 * If one is not found, a new one is created and retuned.
 * Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	id, ok := cs.Lookup[name]
	if !ok {
		id = metadata.InvalidIDUint16
		for i := range cs.Cameras {
			if cs.Cameras[i].ID == metadata.InvalidIDUint16 {
				id = uint16(i)
				break
			}
		}
		if id == metadata.InvalidIDUint16 {
			err := fmt.Errorf("camera system cannot hold '%s', adjust configuration to allow more: %w", name, core.ErrPoolExhausted)
			core.LogError(err.Error())
			return nil, err
		}

		core.LogDebug("creating new camera named '%s'", name)
		cs.Cameras[id] = components.CameraLookup{ID: id, Camera: components.NewCamera()}
		cs.Lookup[name] = id
	}
	cs.Cameras[id].ReferenceCount++
	return cs.Cameras[id].Camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented. If this reaches 0, the camera is reset,
 * and the slot is usable by a new camera.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		core.LogDebug("cannot release default camera, nothing was done")
		return
	}
	id, ok := cs.Lookup[name]
	if !ok {
		core.LogWarn("release of unknown camera '%s', nothing was done", name)
		return
	}
	cs.Cameras[id].ReferenceCount--
	if cs.Cameras[id].ReferenceCount == 0 {
		cs.Cameras[id] = components.CameraLookup{ID: metadata.InvalidIDUint16}
		delete(cs.Lookup, name)
	}
}

func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}

// OnResize keeps the aspect ratio of every live camera in sync with the window.
func (cs *CameraSystem) OnResize(width, height uint32) {
	cs.DefaultCamera.SetViewport(width, height)
	for i := range cs.Cameras {
		if cs.Cameras[i].Camera != nil {
			cs.Cameras[i].Camera.SetViewport(width, height)
		}
	}
}
