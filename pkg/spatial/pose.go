package spatial

import "github.com/go-gl/mathgl/mgl64"

// Pose is a rigid local transform: a translation plus a fixed-axis RPY
// rotation. Every link origin, joint origin, and geometry offset in the
// model is a Pose.
type Pose struct {
	XYZ mgl64.Vec3
	RPY Euler
}

// Quat returns the pose's rotation as a quaternion.
func (p Pose) Quat() mgl64.Quat {
	return p.RPY.Quat()
}

// Mat4 returns the pose as a homogeneous transform.
func (p Pose) Mat4() mgl64.Mat4 {
	return Compose(p.XYZ, p.RPY.Quat())
}

// IsZero reports whether the pose is the identity transform.
func (p Pose) IsZero() bool {
	return p.XYZ == (mgl64.Vec3{}) && p.RPY.IsZero()
}

// PoseFrom rebuilds a Pose from a translation and rotation.
func PoseFrom(pos mgl64.Vec3, rot mgl64.Quat) Pose {
	return Pose{XYZ: pos, RPY: EulerFromQuat(rot)}
}

// Compose builds a homogeneous transform from a translation and rotation.
func Compose(pos mgl64.Vec3, rot mgl64.Quat) mgl64.Mat4 {
	m := rot.Normalize().Mat4()
	m.SetCol(3, mgl64.Vec4{pos.X(), pos.Y(), pos.Z(), 1})
	return m
}

// Decompose splits a rigid homogeneous transform back into translation
// and rotation. Inputs are expected to be rigid; scale and shear are
// not preserved.
func Decompose(m mgl64.Mat4) (mgl64.Vec3, mgl64.Quat) {
	pos := mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	rot := mgl64.Mat4ToQuat(m)
	return pos, rot.Normalize()
}
