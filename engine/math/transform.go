package math

func TransformCreate() *Transform {
	return TransformFromPositionRotationScale(NewVec3Zero(), NewVec3Zero(), NewVec3One())
}

func TransformFromPosition(position Vec3) *Transform {
	return TransformFromPositionRotationScale(position, NewVec3Zero(), NewVec3One())
}

func TransformFromPositionRotationScale(position, rotation, scale Vec3) *Transform {
	t := &Transform{}
	t.Reset()
	t.SetPositionRotationScale(position, rotation, scale)
	return t
}

// Reset puts the transform back to the origin with unit scale and no parent.
func (t *Transform) Reset() {
	t.Position = NewVec3Zero()
	t.Rotation = NewVec3Zero()
	t.Scale = NewVec3One()
	t.Local = NewMat4Identity()
	t.Parent = nil
	t.IsDirty = false
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation Vec3) {
	t.Rotation = rotation
	t.IsDirty = true
}

// Rotate adds the euler delta (radians) to the current rotation.
func (t *Transform) Rotate(delta Vec3) {
	t.Rotation = t.Rotation.Add(delta)
	t.IsDirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

func (t *Transform) SetPositionRotationScale(position, rotation, scale Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	t.IsDirty = true
}

/**
 * @brief Retrieves the local transformation matrix, rebuilding it as
 * scale, then rotation, then translation when dirty.
 */
func (t *Transform) GetLocal() Mat4 {
	if t.IsDirty {
		s := NewMat4Scale(t.Scale)
		r := NewMat4EulerXYZ(t.Rotation.X, t.Rotation.Y, t.Rotation.Z)
		tr := NewMat4Translation(t.Position)
		t.Local = s.Mul(r).Mul(tr)
		t.IsDirty = false
	}
	return t.Local
}

/** @brief Returns the world matrix, taking the parent chain into account. */
func (t *Transform) GetWorld() Mat4 {
	l := t.GetLocal()
	if t.Parent != nil {
		return l.Mul(t.Parent.GetWorld())
	}
	return l
}
