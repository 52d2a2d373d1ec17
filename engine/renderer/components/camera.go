package components

import (
	"github.com/spaghettifunk/anima3d/engine/math"
)

/**
 * @brief Represents a camera used for rendering. It provides the view
 * and projection matrices consumed by the mesh pipeline. Ideally, these
 * are created and managed by the camera system.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetEulerRotation() instead.
	 */
	EulerRotation math.Vec3
	/** @brief Vertical field of view in radians. */
	FOV float32
	/** @brief Width divided by height of the render target. */
	AspectRatio float32
	NearClip    float32
	FarClip     float32

	viewDirty       bool
	projectionDirty bool
	viewMatrix      math.Mat4
	projection      math.Mat4
}

type CameraLookup struct {
	ID             uint16
	ReferenceCount uint16
	Camera         *Camera
}

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.FOV = math.DegToRad(45.0)
	c.AspectRatio = 16.0 / 9.0
	c.NearClip = 0.1
	c.FarClip = 1000.0
	c.viewDirty = false
	c.viewMatrix = math.NewMat4Identity()
	c.projectionDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.viewDirty = true
}

func (c *Camera) GetEulerRotation() math.Vec3 {
	return c.EulerRotation
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.viewDirty = true
}

// SetViewport updates the aspect ratio from the framebuffer size. A zero
// height (minimised window) is ignored.
func (c *Camera) SetViewport(width, height uint32) {
	if height == 0 {
		return
	}
	c.AspectRatio = float32(width) / float32(height)
	c.projectionDirty = true
}

func (c *Camera) SetPerspective(fovRadians, nearClip, farClip float32) {
	c.FOV = fovRadians
	c.NearClip = nearClip
	c.FarClip = farClip
	c.projectionDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.viewDirty {
		rotation := math.NewMat4EulerXYZ(c.EulerRotation.X, c.EulerRotation.Y, c.EulerRotation.Z)
		translation := math.NewMat4Translation(c.Position)
		c.viewMatrix = rotation.Mul(translation).Inverse()
		c.viewDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	if c.projectionDirty {
		c.projection = math.NewMat4Perspective(c.FOV, c.AspectRatio, c.NearClip, c.FarClip)
		c.projectionDirty = false
	}
	return c.projection
}

func (c *Camera) Forward() math.Vec3 {
	view := c.GetView()
	return view.Forward()
}

func (c *Camera) Backward() math.Vec3 {
	view := c.GetView()
	return view.Backward()
}

func (c *Camera) Left() math.Vec3 {
	view := c.GetView()
	return view.Left()
}

func (c *Camera) Right() math.Vec3 {
	view := c.GetView()
	return view.Right()
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
	c.viewDirty = true
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward(), amount)
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Backward(), amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.Left(), amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.Right(), amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.move(math.NewVec3Up(), amount)
}

func (c *Camera) MoveDown(amount float32) {
	c.move(math.NewVec3Down(), amount)
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.viewDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X += amount

	// Clamp to avoid Gimbal lock.
	limit := float32(1.55334306) // 89 degrees
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -limit, limit)

	c.viewDirty = true
}
