// Package spatial provides the geometric primitives shared by the robot
// model: Euler angles, rigid poses, transform composition, and inertia
// tensors. Everything builds on mgl64 so results feed straight into
// downstream transform math.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Euler holds fixed-axis (extrinsic) X-Y-Z rotation angles in radians,
// the roll-pitch-yaw convention robot description files use. Rotations
// compose as Rz(yaw) * Ry(pitch) * Rx(roll).
type Euler struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// Quat returns the rotation as a unit quaternion. The Z*Y*X composition
// order matches the file-format convention; changing it changes the
// meaning of every orientation in the model.
func (e Euler) Quat() mgl64.Quat {
	qz := mgl64.QuatRotate(e.Yaw, mgl64.Vec3{0, 0, 1})
	qy := mgl64.QuatRotate(e.Pitch, mgl64.Vec3{0, 1, 0})
	qx := mgl64.QuatRotate(e.Roll, mgl64.Vec3{1, 0, 0})
	return qz.Mul(qy).Mul(qx)
}

// Mat4 returns the rotation as a homogeneous transform.
func (e Euler) Mat4() mgl64.Mat4 {
	return e.Quat().Mat4()
}

// IsZero reports whether all three angles are exactly zero.
func (e Euler) IsZero() bool {
	return e.Roll == 0 && e.Pitch == 0 && e.Yaw == 0
}

// EulerFromQuat extracts fixed-axis X-Y-Z angles from a quaternion,
// inverting Euler.Quat. At the pitch singularity (|pitch| = pi/2) the
// roll/yaw split is ambiguous; yaw is set to zero there.
func EulerFromQuat(q mgl64.Quat) Euler {
	m := q.Normalize().Mat4()

	sp := -m.At(2, 0)
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch := math.Asin(sp)

	const gimbal = 1 - 1e-9
	if sp >= gimbal {
		return Euler{Roll: math.Atan2(m.At(0, 1), m.At(1, 1)), Pitch: math.Pi / 2}
	}
	if sp <= -gimbal {
		return Euler{Roll: math.Atan2(-m.At(0, 1), m.At(1, 1)), Pitch: -math.Pi / 2}
	}

	return Euler{
		Roll:  math.Atan2(m.At(2, 1), m.At(2, 2)),
		Pitch: pitch,
		Yaw:   math.Atan2(m.At(1, 0), m.At(0, 0)),
	}
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeAxis returns a unit-length rotation axis. A zero-length input
// falls back to +Z so degenerate documents still rotate about something.
func NormalizeAxis(v mgl64.Vec3) mgl64.Vec3 {
	if v.Len() < 1e-12 {
		return mgl64.Vec3{0, 0, 1}
	}
	return v.Normalize()
}
