package model

import "fmt"

// RemoveLink deletes a link together with every joint that references
// it on either side. When the root goes away a new one is detected from
// the remaining links.
func (r *Robot) RemoveLink(id string) error {
	if _, ok := r.Links[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLink, id)
	}
	delete(r.Links, id)
	for jid, j := range r.Joints {
		if j.Parent == id || j.Child == id {
			delete(r.Joints, jid)
		}
	}
	if r.Root == id {
		r.DetectRoot(nil)
	}
	return r.WireMimics()
}

// RemoveJoint deletes a joint. Mimic declarations naming it are kept
// but become unwired; the subtree below its child link stays in the
// document as an orphan.
func (r *Robot) RemoveJoint(id string) error {
	if _, ok := r.Joints[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJoint, id)
	}
	delete(r.Joints, id)
	return r.WireMimics()
}

// RenameLink changes a link's id and name and rewrites every joint
// reference and the root marker.
func (r *Robot) RenameLink(oldID, newID string) error {
	l, ok := r.Links[oldID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLink, oldID)
	}
	if oldID == newID {
		return nil
	}
	if _, ok := r.Links[newID]; ok {
		return fmt.Errorf("%w: link %q", ErrDuplicateID, newID)
	}
	delete(r.Links, oldID)
	l.ID = newID
	l.Name = newID
	r.Links[newID] = l
	for _, j := range r.Joints {
		if j.Parent == oldID {
			j.Parent = newID
		}
		if j.Child == oldID {
			j.Child = newID
		}
	}
	if r.Root == oldID {
		r.Root = newID
	}
	return nil
}

// RenameJoint changes a joint's id and name and rewrites mimic
// declarations pointing at it.
func (r *Robot) RenameJoint(oldID, newID string) error {
	j, ok := r.Joints[oldID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJoint, oldID)
	}
	if oldID == newID {
		return nil
	}
	if _, ok := r.Joints[newID]; ok {
		return fmt.Errorf("%w: joint %q", ErrDuplicateID, newID)
	}
	delete(r.Joints, oldID)
	j.ID = newID
	j.Name = newID
	r.Joints[newID] = j
	for _, other := range r.Joints {
		if other.Mimic != nil && other.Mimic.Joint == oldID {
			other.Mimic.Joint = newID
		}
	}
	return r.WireMimics()
}
