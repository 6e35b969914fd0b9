package assets

import "sync"

const (
	// Bounding-box dimensions above this are taken as evidence the mesh
	// is authored in millimeters.
	scaleLockThreshold = 10.0

	// The millimeter-to-meter factor applied once locked.
	lockedScaleFactor = 0.001
)

// ScaleSession holds one load session's unit auto-detection state.
// Meshes report their bounding-box max dimension through Observe; the
// first dimension over the threshold locks a 0.001 factor for the rest
// of the session, starting with the mesh that triggered it. If no mesh
// ever triggers, the session stays at 1.0 throughout.
//
// Concurrent mesh loads race for the lock in completion order. That is
// accepted: whichever bounding box arrives first decides, and the
// decision is irreversible within the session.
type ScaleSession struct {
	mu     sync.Mutex
	locked bool
	factor float64
}

// NewScaleSession starts an undecided session.
func NewScaleSession() *ScaleSession {
	return &ScaleSession{factor: 1.0}
}

// Observe samples one mesh's bounding-box max dimension and returns the
// scale factor to apply to that mesh.
func (s *ScaleSession) Observe(maxDim float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return s.factor
	}
	if maxDim > scaleLockThreshold {
		s.locked = true
		s.factor = lockedScaleFactor
	}
	return s.factor
}

// Disable pins the session at 1.0 so no later mesh can trigger the
// millimeter heuristic. Irreversible, like a lock.
func (s *ScaleSession) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		s.locked = true
		s.factor = 1.0
	}
}

// Locked reports whether the session has committed to a scale.
func (s *ScaleSession) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Factor returns the current scale without sampling.
func (s *ScaleSession) Factor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factor
}
