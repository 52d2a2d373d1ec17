package testbed

import (
	"testing"

	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/systems"
	"github.com/stretchr/testify/assert"
)

func TestSpinnerRotatesAndBobs(t *testing.T) {
	e := &systems.Entity{Transform: math.TransformFromPosition(math.NewVec3(1, 2, 3))}
	s := &spinner{speed: 2, baseY: 2, height: 0.5}

	s.Update(e, 0.25)
	assert.InDelta(t, 0.5, e.Transform.Rotation.Y, 1e-6)
	assert.InDelta(t, 1.0, e.Transform.Position.X, 1e-6)
	assert.InDelta(t, 3.0, e.Transform.Position.Z, 1e-6)
	assert.InDelta(t, 2.0, e.Transform.Position.Y, 0.5+1e-6)
	assert.NotEqual(t, float32(2.0), e.Transform.Position.Y)
}
