package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/spatial"
)

// RootCandidates returns the links never referenced as a wired joint's
// child, in the given order. Links absent from order come last, sorted.
func (r *Robot) RootCandidates(order []string) []string {
	isChild := map[string]bool{}
	for _, j := range r.Joints {
		if r.wired(j) {
			isChild[j.Child] = true
		}
	}
	var out []string
	seen := map[string]bool{}
	for _, id := range order {
		if _, ok := r.Links[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		if !isChild[id] {
			out = append(out, id)
		}
	}
	for _, id := range r.LinkIDs() {
		if !seen[id] && !isChild[id] {
			out = append(out, id)
		}
	}
	return out
}

// DetectRoot sets Root to the first candidate in order, falling back to
// the first link when nothing qualifies. It reports whether a real
// candidate existed; callers treat the fallback as a warning, not an
// error.
func (r *Robot) DetectRoot(order []string) (string, bool) {
	if cands := r.RootCandidates(order); len(cands) > 0 {
		r.Root = cands[0]
		return r.Root, true
	}
	for _, id := range order {
		if _, ok := r.Links[id]; ok {
			r.Root = id
			return r.Root, false
		}
	}
	if ids := r.LinkIDs(); len(ids) > 0 {
		r.Root = ids[0]
		return r.Root, false
	}
	r.Root = ""
	return "", false
}

// WorldTransform composes joint frames from the root down to the given
// link and returns its world matrix. The bool is false for unknown
// links; links not reachable from the root resolve against whatever
// chain exists above them.
func (r *Robot) WorldTransform(linkID string) (mgl64.Mat4, bool) {
	if _, ok := r.Links[linkID]; !ok {
		return mgl64.Ident4(), false
	}
	world := mgl64.Ident4()
	visited := map[string]bool{}
	for cur := linkID; ; {
		if visited[cur] {
			break
		}
		visited[cur] = true
		j := r.ParentJoint(cur)
		if j == nil {
			break
		}
		world = spatial.Compose(j.Position, j.Orientation).Mul4(world)
		cur = j.Parent
	}
	return world, true
}

// Walk visits every link reachable from the root, parents before
// children, siblings by joint id. fn receives the link and its depth;
// returning false stops the walk.
func (r *Robot) Walk(fn func(l *Link, depth int) bool) {
	root := r.Links[r.Root]
	if root == nil {
		return
	}
	visited := map[string]bool{}
	var walk func(l *Link, depth int) bool
	walk = func(l *Link, depth int) bool {
		if visited[l.ID] {
			return true
		}
		visited[l.ID] = true
		if !fn(l, depth) {
			return false
		}
		for _, j := range r.ChildJoints(l.ID) {
			child := r.Links[j.Child]
			if child == nil {
				continue
			}
			if !walk(child, depth+1) {
				return false
			}
		}
		return true
	}
	walk(root, 0)
}

// SplitCollision materializes an extra geometry pair as a synthesized
// massless child of the given link, joined by a fixed joint; the
// geometry keeps its own origin offset. n numbers the child starting at
// 1, yielding link "{id}_collision_{n}" and joint
// "{id}_collision_{n}_joint".
func (r *Robot) SplitCollision(linkID string, visual, collision Geometry, n int) (*Link, error) {
	parent := r.Links[linkID]
	if parent == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLink, linkID)
	}
	id := fmt.Sprintf("%s_collision_%d", linkID, n)
	child := &Link{
		ID:          id,
		Name:        id,
		Visual:      visual,
		Collision:   collision,
		Synthesized: true,
	}
	if err := r.AddLink(child); err != nil {
		return nil, err
	}
	j := &Joint{
		ID:          id + "_joint",
		Name:        id + "_joint",
		Type:        JointFixed,
		Parent:      linkID,
		Child:       id,
		Synthesized: true,
	}
	if err := r.AddJoint(j); err != nil {
		delete(r.Links, id)
		return nil, err
	}
	return child, nil
}
