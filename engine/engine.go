package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima3d/engine/assets"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/platform"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima3d/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// time given back to the OS per loop iteration while minimized
const suspendedSleep = 100 * time.Millisecond

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.EngineConfig
	assetsDir     string
	isRunning     atomic.Bool
	isSuspended   bool
	platform      *platform.Platform
	assetManager  *assets.AssetManager
	renderer      renderer.RendererBackend
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.FrameMetrics
	lastTime      float64

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		err := errors.New("a game with an application config is required")
		core.LogError(err.Error())
		return nil, err
	}

	dir, err := g.ApplicationConfig.assetsDir()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	config := resolveEngineConfig(g.ApplicationConfig, dir)
	core.SetLogLevel(core.ParseLogLevel(config.Application.LogLevel))

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       config,
		assetsDir:    dir,
		platform:     platform.New(),
		assetManager: am,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		width:        config.Application.StartWidth,
		height:       config.Application.StartHeight,
	}, nil
}

/**
 * @brief Brings up the window, the asset manager, the renderer and the
 * systems, in this order, then runs the game initialization.
 */
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return core.ErrAlreadyInitialized
	}
	e.currentStage = EngineStageInitializing
	app := e.config.Application

	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}
	e.platform.SetResizeCallback(e.onResized)
	e.width, e.height = e.platform.FramebufferSize()

	if err := e.assetManager.Initialize(e.assetsDir); err != nil {
		return err
	}

	vr := vulkan.New(e.platform, app.Validation)
	if err := vr.Initialize(app.Name, e.width, e.height); err != nil {
		return err
	}
	e.renderer = vr

	sm, err := systems.NewSystemManager(e.config, e.renderer, e.assetManager)
	if err != nil {
		return err
	}
	e.systemManager = sm
	if err := e.systemManager.Initialize(); err != nil {
		return err
	}
	e.systemManager.OnResize(e.width, e.height)
	e.gameInstance.SystemManager = e.systemManager

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized (%dx%d)", app.Name, e.width, e.height)
	return nil
}

// Run drives the frame loop until the window closes, Stop is called or a frame fails.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		if e.isSuspended {
			time.Sleep(suspendedSleep)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if err := e.update(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err.Error())
			return err
		}
		if err := e.drawFrame(delta); err != nil {
			core.LogError("frame failed, shutting down: %s", err.Error())
			return err
		}

		e.metrics.Update(e.platform.GetAbsoluteTime() - frameStartTime)
		e.lastTime = currentTime
	}

	fps, frameTime := e.metrics.Frame()
	core.LogInfo("main loop stopped (%.0f fps, %.3f ms per frame)", fps, frameTime)
	return nil
}

func (e *Engine) update(delta float64) error {
	e.systemManager.Update()
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return err
		}
	}
	entities := e.systemManager.Entities()
	entities.ThinkAll()
	entities.UpdateAll(delta)
	return nil
}

/**
 * @brief Renders one frame. A frame skipped while the swapchain is
 * being rebuilt is not an error.
 */
func (e *Engine) drawFrame(delta float64) error {
	if err := e.renderer.BeginFrame(delta); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return nil
		}
		return err
	}

	e.systemManager.Entities().DrawAll()
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(delta); err != nil {
			// the frame is still submitted so the frame fences stay balanced
			return errors.Join(err, e.renderer.EndFrame(delta))
		}
	}
	return e.renderer.EndFrame(delta)
}

// Stop asks the main loop to exit. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown tears everything down in reverse initialization order. Only the first call does any work.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.currentStage = EngineStageShuttingDown
		var errs []error
		// game and system teardown destroy buffers the last frames may still read
		if e.renderer != nil {
			errs = append(errs, e.renderer.WaitIdle())
		}
		if e.gameInstance.FnShutdown != nil {
			errs = append(errs, e.gameInstance.FnShutdown())
		}
		if e.systemManager != nil {
			errs = append(errs, e.systemManager.Shutdown())
		}
		if e.renderer != nil {
			errs = append(errs, e.renderer.Shutdown())
		}
		errs = append(errs, e.assetManager.Shutdown(), e.platform.Shutdown())
		e.shutdownErr = errors.Join(errs...)
		e.currentStage = EngineStageUninitialized
		if e.shutdownErr != nil {
			core.LogError("shutdown finished with errors: %s", e.shutdownErr.Error())
		}
	})
	return e.shutdownErr
}

// GetFramebufferSize returns the width and height (in this order) of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onResized(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}

	if e.renderer != nil {
		if err := e.renderer.Resized(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.systemManager != nil {
		e.systemManager.OnResize(width, height)
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
}
