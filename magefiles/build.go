//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const (
	shaderDir = "assets/shaders"
	binary    = "bin/anima3d"
)

var shaderSources = []string{"model.vert", "model.frag"}

type Build mg.Namespace

// Compiles the GLSL sources under assets/shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	for _, name := range shaderSources {
		src := filepath.Join(shaderDir, name)
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Building engine...")
	_, err := executeCmd("go", withArgs("build", "-o", binary, "."), withStream())
	return err
}

// Runs go mod tidy.
func (Build) Tidy() error {
	_, err := executeCmd("go", withArgs("mod", "tidy"))
	if err != nil {
		return fmt.Errorf("failed to run go mod tidy: %w", err)
	}
	return nil
}
