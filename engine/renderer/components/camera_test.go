package components

import (
	"testing"

	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/stretchr/testify/assert"
)

func TestCameraViewIsInverseOfPlacement(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.NewVec3(0, 0, 10))

	view := c.GetView()
	assert.InDelta(t, -10, view.Data[14], 1e-5)

	// A point at the camera position lands on the view-space origin.
	placement := math.NewMat4Translation(c.GetPosition())
	assert.True(t, placement.Mul(view).Compare(math.NewMat4Identity(), 1e-5))
}

func TestCameraProjectionFollowsViewport(t *testing.T) {
	c := NewCamera()
	c.SetViewport(800, 400)
	assert.Equal(t, float32(2), c.AspectRatio)

	p := c.GetProjection()
	assert.Equal(t, float32(-1), p.Data[11])
	assert.InDelta(t, p.Data[5]/2, p.Data[0], 1e-5)

	c.SetViewport(800, 0)
	assert.Equal(t, float32(2), c.AspectRatio)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	assert.InDelta(t, 1.55334306, c.GetEulerRotation().X, 1e-6)
}

func TestCameraMoveUp(t *testing.T) {
	c := NewCamera()
	c.MoveUp(3)
	assert.Equal(t, math.NewVec3(0, 3, 0), c.GetPosition())
}
