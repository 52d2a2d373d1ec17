package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMat4InverseRoundTrip(t *testing.T) {
	m := NewMat4Scale(NewVec3(2, 3, 4)).
		Mul(NewMat4EulerXYZ(0.3, -0.7, 1.1)).
		Mul(NewMat4Translation(NewVec3(5, -2, 9)))

	assert.True(t, m.Mul(m.Inverse()).Compare(NewMat4Identity(), 1e-4))
}

func TestMat4Transposed(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	tr := m.Transposed()
	assert.Equal(t, float32(1), tr.Data[3])
	assert.Equal(t, float32(2), tr.Data[7])
	assert.Equal(t, float32(3), tr.Data[11])
	assert.Equal(t, m, tr.Transposed())
}

func TestTransformLocal(t *testing.T) {
	tf := TransformFromPosition(NewVec3(1, 2, 3))
	local := tf.GetLocal()
	assert.False(t, tf.IsDirty)
	assert.Equal(t, NewMat4Translation(NewVec3(1, 2, 3)), local)

	tf.SetScale(NewVec3(2, 2, 2))
	assert.True(t, tf.IsDirty)
	local = tf.GetLocal()
	assert.Equal(t, float32(2), local.Data[0])
	assert.Equal(t, float32(1), local.Data[12])
}

func TestTransformWorldWithParent(t *testing.T) {
	parent := TransformFromPosition(NewVec3(10, 0, 0))
	child := TransformFromPosition(NewVec3(0, 5, 0))
	child.Parent = parent

	world := child.GetWorld()
	assert.Equal(t, float32(10), world.Data[12])
	assert.Equal(t, float32(5), world.Data[13])
}

func TestColorToVec4(t *testing.T) {
	assert.Equal(t, NewVec4(1, 1, 1, 1), ColorWhite.ToVec4())
	c := NewColor8(255, 0, 51, 255)
	assert.InDelta(t, 0.2, c.ToVec4().Z, 1e-6)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(-1), Clamp(float32(-4), -1, 1))
}

func TestRandomInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := RandomInRange(-2, 2)
		assert.GreaterOrEqual(t, v, float32(-2))
		assert.Less(t, v, float32(2))
		n := RandomIntInRange(1, 3)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 3)
	}
}
