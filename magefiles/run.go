//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed with the validation layers turned on.
func (Run) Debug() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("run", "."), withEnv("ANIMA3D_VALIDATION=1"), withStream())
	return err
}

type Test mg.Namespace

// Runs every unit test.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
