package math

var (
	ColorWhite = Color{R: 1, G: 1, B: 1, A: 1}
	ColorBlack = Color{A: 1}
)

func NewColor(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// NewColor8 builds a colour from 0-255 channel values.
func NewColor8(r, g, b, a uint8) Color {
	return Color{
		R: float32(r) / 255.0,
		G: float32(g) / 255.0,
		B: float32(b) / 255.0,
		A: float32(a) / 255.0,
	}
}

// ToVec4 packs the colour into the layout shaders expect for a vec4 uniform.
func (c Color) ToVec4() Vec4 {
	return Vec4{X: c.R, Y: c.G, Z: c.B, W: c.A}
}
