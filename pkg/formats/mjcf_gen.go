package formats

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
	"github.com/Faultbox/robokit/pkg/spatial"
)

// mjcfWriter accumulates one MJCF document. Mesh geoms are collected
// into named assets up front; asset names key on path plus scale so
// the same file used at two scales gets two assets.
type mjcfWriter struct {
	robot    *model.Robot
	b        strings.Builder
	meshName map[string]string
	assets   []mjcfAssetEntry
}

type mjcfAssetEntry struct {
	name  string
	file  string
	scale mgl64.Vec3
}

// GenerateMJCF renders the robot as MuJoCo MJCF XML. The body tree
// nests from the root, fixed joints disappear into plain nesting, and
// links split off for extra collision shapes fold back into their
// parent as additional geoms so a re-parse reproduces the same split.
// A root link named world unfolds into the worldbody itself. The
// extended flag adds an actuator block carrying motor metadata.
func GenerateMJCF(r *model.Robot, extended bool) string {
	w := &mjcfWriter{robot: r, meshName: map[string]string{}}
	w.collectMeshes()

	fmt.Fprintf(&w.b, "<mujoco model=\"%s\">\n", xmlEscaper.Replace(r.Name))
	w.b.WriteString("  <compiler angle=\"radian\"/>\n")
	w.writeAssets()

	w.b.WriteString("  <worldbody>\n")
	tops := w.tops()
	if len(tops) > 0 && tops[0] == r.Root {
		if root := r.Links[r.Root]; root != nil && root.Name == "world" {
			if !root.Visual.IsNone() {
				w.writeGeom(root.Visual, root.Name+"_visual", true, "    ")
			}
			if !root.Collision.IsNone() {
				w.writeGeom(root.Collision, root.Name+"_collision", false, "    ")
			}
			w.writeChildren(r.Root, "    ")
			tops = tops[1:]
		}
	}
	for _, top := range tops {
		w.writeBody(top, nil, "    ")
	}
	w.b.WriteString("  </worldbody>\n")

	if extended {
		w.writeActuators()
	}
	w.b.WriteString("</mujoco>\n")
	return w.b.String()
}

// tops returns the root first, then every other link with no wired
// parent joint, sorted. Orphaned links become extra top-level bodies
// rather than dropping out of the document.
func (w *mjcfWriter) tops() []string {
	var out []string
	if _, ok := w.robot.Links[w.robot.Root]; ok {
		out = append(out, w.robot.Root)
	}
	for _, id := range w.robot.LinkIDs() {
		if id != w.robot.Root && w.robot.ParentJoint(id) == nil {
			out = append(out, id)
		}
	}
	return out
}

func (w *mjcfWriter) writeBody(linkID string, via *model.Joint, indent string) {
	l := w.robot.Links[linkID]
	if l == nil {
		return
	}
	fmt.Fprintf(&w.b, "%s<body name=\"%s\"", indent, xmlEscaper.Replace(l.Name))
	if via != nil {
		writeMJCFPose(&w.b, via.Origin)
	}
	w.b.WriteString(">\n")
	in := indent + "  "
	if via != nil {
		w.writeJoint(via, in)
	}
	w.writeInertial(l, in)
	if !l.Visual.IsNone() {
		w.writeGeom(l.Visual, l.Name+"_visual", true, in)
	}
	if !l.Collision.IsNone() {
		w.writeGeom(l.Collision, l.Name+"_collision", false, in)
	}
	w.writeChildren(linkID, in)
	w.b.WriteString(indent + "</body>\n")
}

// writeChildren recurses into child bodies, folding synthesized
// collision-split links back into inline geoms.
func (w *mjcfWriter) writeChildren(linkID, indent string) {
	for _, j := range w.robot.ChildJoints(linkID) {
		if child := w.robot.Links[j.Child]; child != nil && w.foldable(j, child, linkID) {
			w.writeSplitGeoms(child, j, indent)
			continue
		}
		w.writeBody(j.Child, j, indent)
	}
}

// foldable reports whether a child link is a collision split of the
// given parent and can be written as inline geoms.
func (w *mjcfWriter) foldable(j *model.Joint, child *model.Link, parentID string) bool {
	return j.Synthesized && child.Synthesized && j.Type == model.JointFixed &&
		strings.HasPrefix(child.ID, parentID+"_collision_") &&
		len(w.robot.ChildJoints(child.ID)) == 0
}

func (w *mjcfWriter) writeSplitGeoms(child *model.Link, j *model.Joint, indent string) {
	if !child.Visual.IsNone() {
		g := child.Visual
		g.Origin = composePoses(j.Origin, g.Origin)
		w.writeGeom(g, child.Name+"_visual", true, indent)
	}
	if !child.Collision.IsNone() {
		g := child.Collision
		g.Origin = composePoses(j.Origin, g.Origin)
		w.writeGeom(g, child.Name+"_collision", false, indent)
	}
}

func (w *mjcfWriter) writeJoint(j *model.Joint, indent string) {
	switch j.Type {
	case model.JointFixed:
		return
	case model.JointFloating:
		fmt.Fprintf(&w.b, "%s<freejoint name=\"%s\"/>\n", indent, xmlEscaper.Replace(j.Name))
		return
	case model.JointPlanar:
		u, v := planarBasis(j.Axis)
		fmt.Fprintf(&w.b, "%s<joint name=\"%s_x\" type=\"slide\" axis=\"%s\"/>\n", indent, xmlEscaper.Replace(j.Name), fmtVec3(u))
		fmt.Fprintf(&w.b, "%s<joint name=\"%s_y\" type=\"slide\" axis=\"%s\"/>\n", indent, xmlEscaper.Replace(j.Name), fmtVec3(v))
		fmt.Fprintf(&w.b, "%s<joint name=\"%s\" type=\"hinge\" axis=\"%s\"/>\n", indent, xmlEscaper.Replace(j.Name), fmtVec3(j.Axis))
		return
	}
	typ := "hinge"
	if j.Type == model.JointPrismatic {
		typ = "slide"
	}
	fmt.Fprintf(&w.b, "%s<joint name=\"%s\" type=\"%s\"", indent, xmlEscaper.Replace(j.Name), typ)
	if j.Axis != (mgl64.Vec3{0, 0, 1}) && j.Axis != (mgl64.Vec3{}) {
		fmt.Fprintf(&w.b, " axis=\"%s\"", fmtVec3(j.Axis))
	}
	if j.Limit.Lower != 0 || j.Limit.Upper != 0 {
		fmt.Fprintf(&w.b, " range=\"%s %s\" limited=\"true\"", ftoa(j.Limit.Lower), ftoa(j.Limit.Upper))
	}
	if j.Dynamics.Damping != 0 {
		fmt.Fprintf(&w.b, " damping=\"%s\"", ftoa(j.Dynamics.Damping))
	}
	if j.Dynamics.Friction != 0 {
		fmt.Fprintf(&w.b, " frictionloss=\"%s\"", ftoa(j.Dynamics.Friction))
	}
	if j.Hardware != nil && j.Hardware.Armature != 0 {
		fmt.Fprintf(&w.b, " armature=\"%s\"", ftoa(j.Hardware.Armature))
	}
	w.b.WriteString("/>\n")
}

// writeInertial rotates the tensor into the body frame so it can be
// written as the six fullinertia components alongside a bare pos.
func (w *mjcfWriter) writeInertial(l *model.Link, indent string) {
	in := l.Inertial
	if in.Mass == 0 && in.Inertia.IsZero() {
		return
	}
	t := in.Inertia
	if !in.Origin.RPY.IsZero() {
		t = t.Rotated(in.Origin.RPY.Quat())
	}
	fmt.Fprintf(&w.b, "%s<inertial pos=\"%s\" mass=\"%s\" fullinertia=\"%s %s %s %s %s %s\"/>\n",
		indent, fmtVec3(in.Origin.XYZ), ftoa(in.Mass),
		ftoa(t.XX), ftoa(t.YY), ftoa(t.ZZ), ftoa(t.XY), ftoa(t.XZ), ftoa(t.YZ))
}

func (w *mjcfWriter) writeGeom(g model.Geometry, name string, visual bool, indent string) {
	fmt.Fprintf(&w.b, "%s<geom name=\"%s\"", indent, xmlEscaper.Replace(name))
	switch g.Shape {
	case model.ShapeBox:
		fmt.Fprintf(&w.b, " type=\"box\" size=\"%s\"", fmtVec3(g.Size.Mul(0.5)))
	case model.ShapeSphere:
		fmt.Fprintf(&w.b, " type=\"sphere\" size=\"%s\"", ftoa(g.Radius))
	case model.ShapeCylinder:
		fmt.Fprintf(&w.b, " type=\"cylinder\" size=\"%s %s\"", ftoa(g.Radius), ftoa(g.Length/2))
	case model.ShapeCapsule:
		fmt.Fprintf(&w.b, " type=\"capsule\" size=\"%s %s\"", ftoa(g.Radius), ftoa(g.Length/2))
	case model.ShapeMesh:
		fmt.Fprintf(&w.b, " type=\"mesh\" mesh=\"%s\"", xmlEscaper.Replace(w.meshName[meshKey(g)]))
	}
	writeMJCFPose(&w.b, g.Origin)
	if visual {
		w.b.WriteString(` group="1" contype="0" conaffinity="0"`)
	}
	if c := g.Color; c != nil {
		fmt.Fprintf(&w.b, " rgba=\"%s %s %s %s\"", ftoa(c.R), ftoa(c.G), ftoa(c.B), ftoa(c.A))
	}
	w.b.WriteString("/>\n")
}

func (w *mjcfWriter) writeAssets() {
	if len(w.assets) == 0 {
		return
	}
	w.b.WriteString("  <asset>\n")
	for _, a := range w.assets {
		fmt.Fprintf(&w.b, "    <mesh name=\"%s\" file=\"%s\"", xmlEscaper.Replace(a.name), xmlEscaper.Replace(a.file))
		if a.scale != (mgl64.Vec3{1, 1, 1}) {
			fmt.Fprintf(&w.b, " scale=\"%s\"", fmtVec3(a.scale))
		}
		w.b.WriteString("/>\n")
	}
	w.b.WriteString("  </asset>\n")
}

func (w *mjcfWriter) writeActuators() {
	var joints []*model.Joint
	for _, id := range w.robot.JointIDs() {
		j := w.robot.Joints[id]
		if j.Hardware != nil && (j.Hardware.MotorType != "" || j.Hardware.Direction != 0) {
			joints = append(joints, j)
		}
	}
	if len(joints) == 0 {
		return
	}
	w.b.WriteString("  <actuator>\n")
	for _, j := range joints {
		name := j.Hardware.MotorType
		if name == "" {
			name = j.Name + "_motor"
		}
		fmt.Fprintf(&w.b, "    <motor name=\"%s\" joint=\"%s\"", xmlEscaper.Replace(name), xmlEscaper.Replace(j.Name))
		if j.Hardware.Direction != 0 {
			fmt.Fprintf(&w.b, " gear=\"%d\"", j.Hardware.Direction)
		}
		w.b.WriteString("/>\n")
	}
	w.b.WriteString("  </actuator>\n")
}

// collectMeshes registers an asset for every mesh geometry, walking
// links in sorted order so naming is deterministic. Basename clashes
// get a numeric suffix.
func (w *mjcfWriter) collectMeshes() {
	used := map[string]bool{}
	add := func(g model.Geometry) {
		if g.Shape != model.ShapeMesh || g.MeshPath == "" {
			return
		}
		key := meshKey(g)
		if _, ok := w.meshName[key]; ok {
			return
		}
		name := assetMeshName(g.MeshPath)
		if name == "" {
			name = "mesh"
		}
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s_%d", assetMeshName(g.MeshPath), i)
		}
		used[name] = true
		w.meshName[key] = name
		w.assets = append(w.assets, mjcfAssetEntry{name: name, file: g.MeshPath, scale: normMeshScale(g.MeshScale)})
	}
	for _, id := range w.robot.LinkIDs() {
		l := w.robot.Links[id]
		add(l.Visual)
		add(l.Collision)
	}
}

// meshKey identifies one mesh asset: same file at a different scale is
// a different asset.
func meshKey(g model.Geometry) string {
	return g.MeshPath + "|" + fmtVec3(normMeshScale(g.MeshScale))
}

func normMeshScale(s mgl64.Vec3) mgl64.Vec3 {
	if s == (mgl64.Vec3{}) {
		return mgl64.Vec3{1, 1, 1}
	}
	return s
}

func writeMJCFPose(b *strings.Builder, p spatial.Pose) {
	if p.XYZ != (mgl64.Vec3{}) {
		fmt.Fprintf(b, " pos=\"%s\"", fmtVec3(p.XYZ))
	}
	if !p.RPY.IsZero() {
		q := p.RPY.Quat()
		fmt.Fprintf(b, " quat=\"%s %s %s %s\"", ftoa(q.W), ftoa(q.V[0]), ftoa(q.V[1]), ftoa(q.V[2]))
	}
}

func composePoses(a, b spatial.Pose) spatial.Pose {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	pos, q := spatial.Decompose(a.Mat4().Mul4(b.Mat4()))
	return spatial.PoseFrom(pos, q)
}

// planarBasis builds two in-plane translation axes perpendicular to the
// plane normal.
func planarBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	n = spatial.NormalizeAxis(n)
	ref := mgl64.Vec3{0, 0, 1}
	if n.Dot(ref) > 0.9 || n.Dot(ref) < -0.9 {
		ref = mgl64.Vec3{1, 0, 0}
	}
	u := n.Cross(ref).Normalize()
	v := n.Cross(u).Normalize()
	return u, v
}
