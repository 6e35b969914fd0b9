package model

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/spatial"
)

// SetJointValue applies values to one joint and returns whether anything
// changed. Values beyond the joint type's DOF are ignored; a NaN entry
// leaves that axis at its current value. The joint's rest frame is
// captured on the first call and every later update is computed against
// it, so repeated calls with the same values are no-ops.
//
// Joints mimicking this one are updated first, each receiving
// value*Multiplier + Offset through its own type rules.
func (r *Robot) SetJointValue(jointID string, values ...float64) bool {
	j := r.Joints[jointID]
	if j == nil {
		return false
	}
	return r.setJointValue(j, values, map[string]bool{})
}

// SetJointValues applies several joints in one pass, by sorted id for
// determinism, and reports whether any joint changed.
func (r *Robot) SetJointValues(values map[string][]float64) bool {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	changed := false
	for _, id := range ids {
		j := r.Joints[id]
		if j == nil {
			continue
		}
		if r.setJointValue(j, values[id], map[string]bool{}) {
			changed = true
		}
	}
	return changed
}

// ResetJointValues returns every joint to its rest frame and zeroes the
// stored values. Captured rest frames are kept.
func (r *Robot) ResetJointValues() {
	for _, j := range r.Joints {
		j.Values = [6]float64{}
		if j.rest != nil {
			j.Position = j.rest.position
			j.Orientation = j.rest.orientation
		}
	}
}

func (r *Robot) setJointValue(j *Joint, values []float64, visited map[string]bool) bool {
	// Prevent runaway recursion through mimic chains.
	if visited[j.ID] {
		return false
	}
	visited[j.ID] = true

	// Dependents first, so each one captures its rest frame before this
	// joint commits.
	changed := false
	for _, depID := range j.dependents {
		dep := r.Joints[depID]
		if dep == nil || dep.Mimic == nil {
			continue
		}
		scaled := make([]float64, len(values))
		for i, v := range values {
			scaled[i] = v*dep.Mimic.Multiplier + dep.Mimic.Offset
		}
		if r.setJointValue(dep, scaled, visited) {
			changed = true
		}
	}
	if j.apply(values) {
		changed = true
	}
	return changed
}

// apply merges values into the joint and recomputes its live frame
// against the rest frame. Reports whether the stored values changed.
func (j *Joint) apply(values []float64) bool {
	j.captureRest()

	dof := j.Type.DOF()
	if dof == 0 {
		return false
	}
	merged := j.Values
	n := dof
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		merged[i] = values[i]
	}
	j.clamp(&merged)
	if merged == j.Values {
		return false
	}
	j.Values = merged
	j.recompute()
	return true
}

func (j *Joint) captureRest() {
	if j.rest != nil {
		return
	}
	j.rest = &restFrame{position: j.Position, orientation: j.Orientation}
}

// clamp bounds revolute and prismatic values to the joint limit. A
// degenerate range (upper not above lower) means unlimited, as does
// IgnoreLimits. Continuous, planar and floating joints never clamp.
func (j *Joint) clamp(vals *[6]float64) {
	if j.IgnoreLimits || j.Limit.Upper <= j.Limit.Lower {
		return
	}
	switch j.Type {
	case JointRevolute, JointPrismatic:
		if vals[0] < j.Limit.Lower {
			vals[0] = j.Limit.Lower
		}
		if vals[0] > j.Limit.Upper {
			vals[0] = j.Limit.Upper
		}
	}
}

// recompute rebuilds the live frame from the stored values and the rest
// frame.
func (j *Joint) recompute() {
	axis := spatial.NormalizeAxis(j.Axis)
	switch j.Type {
	case JointRevolute, JointContinuous:
		// Rotation premultiplies the rest orientation; the joint spins
		// about its own origin, so position is untouched.
		q := mgl64.QuatRotate(j.Values[0], axis)
		j.Orientation = q.Mul(j.rest.orientation).Normalize()

	case JointPrismatic:
		// The axis slides in the link's current rotated frame.
		dir := j.Orientation.Rotate(axis)
		j.Position = j.rest.position.Add(dir.Mul(j.Values[0]))

	case JointPlanar:
		inc := mgl64.Translate3D(j.Values[0], j.Values[1], 0)
		inc = inc.Mul4(mgl64.HomogRotate3D(j.Values[2], axis))
		final := inc.Mul4(spatial.Compose(j.rest.position, j.rest.orientation))
		j.Position, j.Orientation = spatial.Decompose(final)

	case JointFloating:
		rot := spatial.Euler{Roll: j.Values[3], Pitch: j.Values[4], Yaw: j.Values[5]}
		inc := mgl64.Translate3D(j.Values[0], j.Values[1], j.Values[2])
		inc = inc.Mul4(rot.Mat4())
		final := inc.Mul4(spatial.Compose(j.rest.position, j.rest.orientation))
		j.Position, j.Orientation = spatial.Decompose(final)
	}
}
