package engine

import (
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima3d/engine/core"
)

// Set to any value to turn on the renderer validation layers.
const validationEnv = "ANIMA3D_VALIDATION"

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name string
	// One of debug, info, warn, error, fatal. Empty keeps the configured level.
	LogLevel string
	// Directory holding config/, models/, images/ and shaders/. Defaults to ./assets
	AssetsPath string
	// Turns on the renderer validation layers.
	Validation bool
}

func (ac *ApplicationConfig) assetsDir() (string, error) {
	if ac.AssetsPath != "" {
		return ac.AssetsPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, "assets"), nil
}

/**
 * @brief Loads <assets>/config/engine.toml, falling back to the defaults
 * when the file cannot be read. Values set on the application config
 * take precedence over the file.
 */
func resolveEngineConfig(ac *ApplicationConfig, assetsDir string) *core.EngineConfig {
	path := filepath.Join(assetsDir, "config", "engine.toml")
	config, err := core.LoadEngineConfig(path)
	if err != nil {
		core.LogWarn("using the default engine configuration: %s", err.Error())
		config = core.DefaultEngineConfig()
	}
	if os.Getenv(validationEnv) != "" {
		config.Application.Validation = true
	}
	if ac == nil {
		return config
	}

	app := &config.Application
	if ac.Name != "" {
		app.Name = ac.Name
	}
	if ac.StartPosX != 0 {
		app.StartPosX = ac.StartPosX
	}
	if ac.StartPosY != 0 {
		app.StartPosY = ac.StartPosY
	}
	if ac.StartWidth != 0 {
		app.StartWidth = ac.StartWidth
	}
	if ac.StartHeight != 0 {
		app.StartHeight = ac.StartHeight
	}
	if ac.LogLevel != "" {
		app.LogLevel = ac.LogLevel
	}
	if ac.Validation {
		app.Validation = true
	}
	return config
}
