// Package model holds the canonical robot document every format parser
// produces and every generator consumes: a named tree of links joined by
// typed joints, plus the runtime joint state that drives kinematics.
package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/spatial"
)

// Model errors.
var (
	ErrUnknownLink  = errors.New("unknown link")
	ErrUnknownJoint = errors.New("unknown joint")
	ErrDuplicateID  = errors.New("duplicate id")
	ErrMimicCycle   = errors.New("mimic joints form a cycle")
)

// JointType classifies how a joint moves.
type JointType int

const (
	JointFixed JointType = iota
	JointRevolute
	JointContinuous
	JointPrismatic
	JointPlanar
	JointFloating
)

// String returns the joint type's wire name.
func (t JointType) String() string {
	switch t {
	case JointFixed:
		return "fixed"
	case JointRevolute:
		return "revolute"
	case JointContinuous:
		return "continuous"
	case JointPrismatic:
		return "prismatic"
	case JointPlanar:
		return "planar"
	case JointFloating:
		return "floating"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// DOF returns how many joint values the type carries: none for fixed,
// one angle or displacement, three for planar (x, y, rotation) and six
// for floating (translation plus roll-pitch-yaw).
func (t JointType) DOF() int {
	switch t {
	case JointRevolute, JointContinuous, JointPrismatic:
		return 1
	case JointPlanar:
		return 3
	case JointFloating:
		return 6
	default:
		return 0
	}
}

// JointTypeFromString maps a wire name to its JointType.
func JointTypeFromString(s string) (JointType, bool) {
	switch s {
	case "fixed":
		return JointFixed, true
	case "revolute":
		return JointRevolute, true
	case "continuous":
		return JointContinuous, true
	case "prismatic":
		return JointPrismatic, true
	case "planar":
		return JointPlanar, true
	case "floating":
		return JointFloating, true
	default:
		return JointFixed, false
	}
}

// Shape classifies a geometry primitive.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeBox
	ShapeSphere
	ShapeCylinder
	ShapeCapsule
	ShapeMesh
)

// String returns a human-readable shape name.
func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	case ShapeCapsule:
		return "capsule"
	case ShapeMesh:
		return "mesh"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// Geometry describes one visual or collision shape. Dimension fields are
// shape-specific: Size holds full box extents, Radius/Length serve
// spheres, cylinders, and capsules, and MeshPath/MeshScale serve meshes.
// MeshPath stays an opaque string until asset resolution.
type Geometry struct {
	Shape     Shape
	Size      mgl64.Vec3
	Radius    float64
	Length    float64
	MeshPath  string
	MeshScale mgl64.Vec3
	Origin    spatial.Pose
	Color     *Color
}

// IsNone reports whether no geometry is present.
func (g Geometry) IsNone() bool {
	return g.Shape == ShapeNone
}

// Inertial holds a link's mass properties.
type Inertial struct {
	Mass    float64
	Origin  spatial.Pose
	Inertia spatial.Tensor
}

// Link is one rigid body in the robot. A link carries at most one
// collision shape; sources with more are split into synthesized child
// links at parse time.
type Link struct {
	ID        string
	Name      string
	Visual    Geometry
	Collision Geometry
	Inertial  Inertial

	// Synthesized marks links materialized during parsing (extra
	// collision shapes) rather than authored in the source document.
	Synthesized bool
}

// Limit bounds a joint's motion.
type Limit struct {
	Lower    float64
	Upper    float64
	Effort   float64
	Velocity float64
}

// Dynamics holds joint friction parameters.
type Dynamics struct {
	Damping  float64
	Friction float64
}

// Mimic couples a joint to a target joint: on every update of the target
// the mimicking joint receives value*Multiplier + Offset.
type Mimic struct {
	Joint      string
	Multiplier float64
	Offset     float64
}

// Hardware carries non-standard actuator metadata round-tripped through
// the extended generator mode.
type Hardware struct {
	MotorType string
	MotorID   int
	Direction int
	Armature  float64
}

// Joint connects a parent link to a child link. Parent or Child may be
// empty when the source document referenced a link that does not exist;
// such joints are kept but never wired into the tree.
type Joint struct {
	ID       string
	Name     string
	Type     JointType
	Parent   string
	Child    string
	Origin   spatial.Pose
	Axis     mgl64.Vec3
	Limit    Limit
	Dynamics Dynamics
	Mimic    *Mimic
	Hardware *Hardware

	// Synthesized marks fixed joints materialized for split collision
	// shapes.
	Synthesized bool

	// IgnoreLimits disables revolute/prismatic clamping.
	IgnoreLimits bool

	// Live local frame relative to the parent link, initialized from
	// Origin and updated by SetJointValue. Renderers consume these.
	Position    mgl64.Vec3
	Orientation mgl64.Quat

	// Values holds the runtime joint values; only the first DOF()
	// entries are meaningful for the joint's type.
	Values [6]float64

	rest       *restFrame
	dependents []string
}

// restFrame is the immutable frame captured on the first value set.
type restFrame struct {
	position    mgl64.Vec3
	orientation mgl64.Quat
}

// ResetFrame resets the live frame to the authored origin and clears the
// captured rest state.
func (j *Joint) ResetFrame() {
	j.Position = j.Origin.XYZ
	j.Orientation = j.Origin.Quat()
	j.rest = nil
}

// Dependents returns the ids of joints mimicking this one, resolved by
// WireMimics.
func (j *Joint) Dependents() []string {
	out := make([]string, len(j.dependents))
	copy(out, j.dependents)
	return out
}

// Robot is the canonical document: links and joints keyed by id plus the
// root link of the kinematic tree. Map ordering is not meaningful;
// consumers needing determinism sort ids.
type Robot struct {
	Name   string
	Links  map[string]*Link
	Joints map[string]*Joint
	Root   string
}

// NewRobot returns an empty robot document.
func NewRobot(name string) *Robot {
	return &Robot{
		Name:   name,
		Links:  make(map[string]*Link),
		Joints: make(map[string]*Joint),
	}
}

// Link returns the link with the given id, or nil.
func (r *Robot) Link(id string) *Link {
	return r.Links[id]
}

// Joint returns the joint with the given id, or nil.
func (r *Robot) Joint(id string) *Joint {
	return r.Joints[id]
}

// AddLink inserts a link, rejecting duplicate ids.
func (r *Robot) AddLink(l *Link) error {
	if _, ok := r.Links[l.ID]; ok {
		return fmt.Errorf("%w: link %q", ErrDuplicateID, l.ID)
	}
	r.Links[l.ID] = l
	return nil
}

// AddJoint inserts a joint, rejecting duplicate ids. The joint's live
// frame is reset to its origin.
func (r *Robot) AddJoint(j *Joint) error {
	if _, ok := r.Joints[j.ID]; ok {
		return fmt.Errorf("%w: joint %q", ErrDuplicateID, j.ID)
	}
	j.ResetFrame()
	r.Joints[j.ID] = j
	return nil
}

// LinkIDs returns all link ids sorted.
func (r *Robot) LinkIDs() []string {
	ids := make([]string, 0, len(r.Links))
	for id := range r.Links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// JointIDs returns all joint ids sorted.
func (r *Robot) JointIDs() []string {
	ids := make([]string, 0, len(r.Joints))
	for id := range r.Joints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// wired reports whether both of a joint's link references resolve.
func (r *Robot) wired(j *Joint) bool {
	if j.Parent == "" || j.Child == "" {
		return false
	}
	_, pok := r.Links[j.Parent]
	_, cok := r.Links[j.Child]
	return pok && cok
}

// ChildJoints returns the wired joints whose parent is the given link,
// sorted by id.
func (r *Robot) ChildJoints(linkID string) []*Joint {
	var out []*Joint
	for _, id := range r.JointIDs() {
		j := r.Joints[id]
		if j.Parent == linkID && r.wired(j) {
			out = append(out, j)
		}
	}
	return out
}

// ParentJoint returns the wired joint whose child is the given link, or
// nil for the root and orphaned links.
func (r *Robot) ParentJoint(linkID string) *Joint {
	for _, id := range r.JointIDs() {
		j := r.Joints[id]
		if j.Child == linkID && r.wired(j) {
			return j
		}
	}
	return nil
}
