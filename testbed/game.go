package testbed

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/anima3d/engine"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/renderer/components"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/spaghettifunk/anima3d/engine/systems"
)

const (
	cubeModel  = "models/cube.obj"
	cubeCount  = 64
	spawnRange = 12.0
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	cube     *metadata.Mesh
	entities []*systems.Entity
	elapsed  float64
}

// spinner rotates its entity around the Y axis and bobs it up and down.
type spinner struct {
	speed  float32
	phase  float32
	baseY  float32
	height float32
	time   float32
}

func (s *spinner) Update(e *systems.Entity, deltaTime float64) {
	s.time += float32(deltaTime)
	e.Transform.Rotate(math.NewVec3(0, s.speed*float32(deltaTime), 0))
	position := e.Transform.Position
	position.Y = s.baseY + s.height*float32(gomath.Sin(float64(s.time+s.phase)))
	e.Transform.SetPosition(position)
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:   100,
				StartPosY:   100,
				StartWidth:  1280,
				StartHeight: 720,
				Name:        "Anima3D Testbed",
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}

	state := g.State.(*gameState)
	state.WorldCamera = g.SystemManager.Cameras().GetDefault()
	state.WorldCamera.SetPosition(math.NewVec3(0, 6.0, 28.0))
	state.WorldCamera.SetEulerRotation(math.NewVec3(math.DegToRad(-10), 0, 0))

	// the cube is parsed on a worker; entities are spawned once it is uploaded
	return g.SystemManager.Meshes().LoadAsync(g.SystemManager.Jobs(), cubeModel, func(mesh *metadata.Mesh, err error) {
		if err != nil {
			core.LogError("failed to load '%s': %s", cubeModel, err.Error())
			return
		}
		state.cube = mesh
		g.spawnCubes(state)
	})
}

func (g *TestGame) spawnCubes(state *gameState) {
	entities := g.SystemManager.Entities()
	for i := 0; i < cubeCount; i++ {
		e, err := entities.New()
		if err != nil {
			break
		}
		// every entity holds its own reference to the mesh
		if i > 0 {
			if err := g.SystemManager.Meshes().AddRef(state.cube); err != nil {
				entities.Free(e)
				break
			}
		}
		e.Name = fmt.Sprintf("cube_%d", i)
		e.Mesh = state.cube
		e.Color = math.NewColor(math.RandomInRange(0.3, 1), math.RandomInRange(0.3, 1), math.RandomInRange(0.3, 1), 1)
		position := math.NewVec3(
			math.RandomInRange(-spawnRange, spawnRange),
			math.RandomInRange(-spawnRange/2, spawnRange/2),
			math.RandomInRange(-spawnRange, spawnRange),
		)
		e.Transform.SetPosition(position)
		e.Transform.SetScale(math.NewVec3(0.5, 0.5, 0.5))
		e.Behavior = &spinner{
			speed:  math.RandomInRange(0.5, 2.0),
			phase:  math.RandomInRange(0, 2*math.K_PI),
			baseY:  position.Y,
			height: math.RandomInRange(0.1, 0.6),
		}
		state.entities = append(state.entities, e)
	}
	core.LogInfo("spawned %d entities", len(state.entities))
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	// slow orbit so every side of the field is visible
	state.WorldCamera.Yaw(float32(0.05 * deltaTime))
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	if g.SystemManager == nil {
		return nil
	}
	state := g.State.(*gameState)
	entities := g.SystemManager.Entities()
	for _, e := range state.entities {
		entities.Free(e)
	}
	state.entities = nil
	state.cube = nil
	return nil
}
