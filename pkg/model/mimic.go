package model

import "fmt"

// WireMimics resolves every mimic declaration into a dependent
// back-reference on its target joint and rejects cyclic chains. Call it
// once after all joints exist; CRUD operations that touch joints call it
// again themselves.
//
// A mimic naming a joint that does not exist is left unwired: the
// declaration is kept for round-tripping but never receives updates.
func (r *Robot) WireMimics() error {
	for _, j := range r.Joints {
		j.dependents = nil
	}
	for _, id := range r.JointIDs() {
		j := r.Joints[id]
		if j.Mimic == nil {
			continue
		}
		target := r.Joints[j.Mimic.Joint]
		if target == nil || target == j {
			continue
		}
		target.dependents = append(target.dependents, id)
	}
	for _, id := range r.JointIDs() {
		if err := r.checkMimicChain(id); err != nil {
			return err
		}
	}
	return nil
}

// checkMimicChain follows mimic targets transitively from the given
// joint; revisiting a joint means the chain loops.
func (r *Robot) checkMimicChain(id string) error {
	seen := map[string]bool{}
	for cur := id; ; {
		if seen[cur] {
			return fmt.Errorf("%w: via joint %q", ErrMimicCycle, cur)
		}
		seen[cur] = true
		j := r.Joints[cur]
		if j == nil || j.Mimic == nil {
			return nil
		}
		cur = j.Mimic.Joint
	}
}
