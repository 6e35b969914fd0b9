package spatial

import "github.com/go-gl/mathgl/mgl64"

// Tensor is a symmetric 3x3 inertia tensor stored as its six independent
// components, the form description files serialize.
type Tensor struct {
	XX, YY, ZZ float64
	XY, XZ, YZ float64
}

// TensorFromDiagonal builds a tensor from principal moments with no
// off-diagonal coupling.
func TensorFromDiagonal(d mgl64.Vec3) Tensor {
	return Tensor{XX: d.X(), YY: d.Y(), ZZ: d.Z()}
}

// TensorFromMat3 reads tensor components back out of a full matrix.
// The matrix is assumed symmetric; only the upper triangle is read.
func TensorFromMat3(m mgl64.Mat3) Tensor {
	return Tensor{
		XX: m.At(0, 0), YY: m.At(1, 1), ZZ: m.At(2, 2),
		XY: m.At(0, 1), XZ: m.At(0, 2), YZ: m.At(1, 2),
	}
}

// Mat3 expands the tensor into a full symmetric matrix.
func (t Tensor) Mat3() mgl64.Mat3 {
	return mgl64.Mat3{
		t.XX, t.XY, t.XZ,
		t.XY, t.YY, t.YZ,
		t.XZ, t.YZ, t.ZZ,
	}
}

// Rotated returns the tensor expressed in a frame rotated by q:
// I' = R * I * Rt. Used to fold principal-axis inertia declarations
// into the link frame.
func (t Tensor) Rotated(q mgl64.Quat) Tensor {
	r := q.Normalize().Mat4().Mat3()
	return TensorFromMat3(r.Mul3(t.Mat3()).Mul3(r.Transpose()))
}

// IsZero reports whether every component is exactly zero.
func (t Tensor) IsZero() bool {
	return t == Tensor{}
}
