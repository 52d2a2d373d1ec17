package systems

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

// Thinker makes decisions once per frame, before any entity is updated.
type Thinker interface {
	Think(e *Entity)
}

// Updater applies the results of thinking, scaled by the frame delta.
type Updater interface {
	Update(e *Entity, deltaTime float64)
}

// Drawer replaces the default mesh draw of an entity.
type Drawer interface {
	Draw(e *Entity, meshes EntityMeshes)
}

// Freer is notified right before its entity slot is cleared.
type Freer interface {
	Free(e *Entity)
}

/** @brief What the entity system needs from the mesh system. */
type EntityMeshes interface {
	Draw(mesh *metadata.Mesh, model math.Mat4, color math.Color, texture *metadata.Texture)
	Release(mesh *metadata.Mesh)
}

/** @brief What the entity system needs from the texture system. */
type EntityTextures interface {
	Release(texture *metadata.Texture)
}

/**
 * @brief A game object drawn with one mesh. Behavior may implement any of
 * Thinker, Updater, Drawer and Freer; the entity system calls whichever
 * it implements.
 */
type Entity struct {
	ID        uuid.UUID
	Name      string
	Mesh      *metadata.Mesh
	Texture   *metadata.Texture
	Color     math.Color
	Transform *math.Transform
	Bounds    math.Extents3D
	Behavior  any

	inUse bool
}

// Matrix is the model matrix built from the entity transform.
func (e *Entity) Matrix() math.Mat4 {
	return e.Transform.GetWorld()
}

type EntitySystemConfig struct {
	MaxEntities uint32
}

/** @brief Owns a fixed pool of entities and drives them every frame. */
type EntitySystem struct {
	Config *EntitySystemConfig

	entities []Entity
	count    uint32
	meshes   EntityMeshes
	textures EntityTextures
}

func NewEntitySystem(config *EntitySystemConfig, meshes EntityMeshes, textures EntityTextures) (*EntitySystem, error) {
	if config == nil || config.MaxEntities == 0 {
		err := fmt.Errorf("func NewEntitySystem - config.MaxEntities: %w", core.ErrZeroCapacity)
		core.LogError(err.Error())
		return nil, err
	}
	if meshes == nil || textures == nil {
		err := errors.New("func NewEntitySystem - mesh and texture systems are required")
		core.LogError(err.Error())
		return nil, err
	}
	return &EntitySystem{
		Config:   config,
		entities: make([]Entity, config.MaxEntities),
		meshes:   meshes,
		textures: textures,
	}, nil
}

// New returns the first free entity, white, unit scaled and placed at the origin.
func (es *EntitySystem) New() (*Entity, error) {
	for i := range es.entities {
		if es.entities[i].inUse {
			continue
		}
		e := &es.entities[i]
		*e = Entity{
			ID:        uuid.New(),
			Color:     math.ColorWhite,
			Transform: math.TransformCreate(),
			inUse:     true,
		}
		es.count++
		return e, nil
	}
	err := fmt.Errorf("no space for new entities (%d): %w", len(es.entities), core.ErrPoolExhausted)
	core.LogWarn(err.Error())
	return nil, err
}

/**
 * @brief Releases the mesh and texture held by e and returns its slot to
 * the pool.
 */
func (es *EntitySystem) Free(e *Entity) {
	if e == nil || !e.inUse {
		return
	}
	if f, ok := e.Behavior.(Freer); ok {
		f.Free(e)
	}
	if e.Mesh != nil {
		es.meshes.Release(e.Mesh)
	}
	if e.Texture != nil {
		es.textures.Release(e.Texture)
	}
	*e = Entity{}
	es.count--
}

func (es *EntitySystem) Count() uint32 {
	return es.count
}

func (es *EntitySystem) ThinkAll() {
	for i := range es.entities {
		e := &es.entities[i]
		if !e.inUse {
			continue
		}
		if t, ok := e.Behavior.(Thinker); ok {
			t.Think(e)
		}
	}
}

func (es *EntitySystem) UpdateAll(deltaTime float64) {
	for i := range es.entities {
		e := &es.entities[i]
		if !e.inUse {
			continue
		}
		if u, ok := e.Behavior.(Updater); ok {
			u.Update(e, deltaTime)
		}
	}
}

func (es *EntitySystem) DrawAll() {
	for i := range es.entities {
		if es.entities[i].inUse {
			es.Draw(&es.entities[i])
		}
	}
}

// Draw queues e with its mesh unless its behavior draws it itself.
func (es *EntitySystem) Draw(e *Entity) {
	if e == nil || !e.inUse {
		return
	}
	if d, ok := e.Behavior.(Drawer); ok {
		d.Draw(e, es.meshes)
		return
	}
	if e.Mesh == nil {
		return
	}
	es.meshes.Draw(e.Mesh, e.Matrix(), e.Color, e.Texture)
}

func (es *EntitySystem) Shutdown() error {
	for i := range es.entities {
		es.Free(&es.entities[i])
	}
	return nil
}
