package model

import (
	"github.com/tiendc/go-deepcopy"
)

// Clone returns an independent deep copy of the robot, including live
// joint frames and captured rest frames, with mimic wiring rebuilt. The
// copy shares nothing with the original.
func (r *Robot) Clone() (*Robot, error) {
	dst := &Robot{}
	if err := deepcopy.Copy(dst, r); err != nil {
		return nil, err
	}
	// Unexported runtime state is not copied generically; carry the rest
	// frames over and rebuild dependent wiring.
	for id, j := range dst.Joints {
		if src := r.Joints[id]; src != nil && src.rest != nil {
			j.rest = &restFrame{position: src.rest.position, orientation: src.rest.orientation}
		}
		j.dependents = nil
	}
	if err := dst.WireMimics(); err != nil {
		return nil, err
	}
	return dst, nil
}
