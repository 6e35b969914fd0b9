package formats

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
	"github.com/Faultbox/robokit/pkg/spatial"
)

// GenerateURDF renders the robot as URDF XML. Fields matching their
// parse-time defaults are left out to keep the output readable. The
// extended flag adds the <hardware> vendor block carrying motor
// metadata. Links synthesized for extra collision shapes are written as
// ordinary links; they are not folded back into their parent.
func GenerateURDF(r *model.Robot, extended bool) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n")
	fmt.Fprintf(&b, "<robot name=\"%s\">\n", xmlEscaper.Replace(r.Name))
	for _, id := range r.LinkIDs() {
		writeURDFLink(&b, r.Links[id])
	}
	for _, id := range r.JointIDs() {
		writeURDFJoint(&b, r.Joints[id], extended)
	}
	b.WriteString("</robot>\n")
	return b.String()
}

func writeURDFLink(b *strings.Builder, l *model.Link) {
	in := l.Inertial
	hasInertial := in.Mass != 0 || !in.Inertia.IsZero() || !in.Origin.IsZero()
	if l.Visual.IsNone() && l.Collision.IsNone() && !hasInertial {
		fmt.Fprintf(b, "  <link name=\"%s\"/>\n", xmlEscaper.Replace(l.Name))
		return
	}
	fmt.Fprintf(b, "  <link name=\"%s\">\n", xmlEscaper.Replace(l.Name))
	if hasInertial {
		b.WriteString("    <inertial>\n")
		writeOrigin(b, "      ", in.Origin)
		fmt.Fprintf(b, "      <mass value=\"%s\"/>\n", ftoa(in.Mass))
		t := in.Inertia
		fmt.Fprintf(b, "      <inertia ixx=\"%s\" ixy=\"%s\" ixz=\"%s\" iyy=\"%s\" iyz=\"%s\" izz=\"%s\"/>\n",
			ftoa(t.XX), ftoa(t.XY), ftoa(t.XZ), ftoa(t.YY), ftoa(t.YZ), ftoa(t.ZZ))
		b.WriteString("    </inertial>\n")
	}
	if !l.Visual.IsNone() {
		b.WriteString("    <visual>\n")
		writeOrigin(b, "      ", l.Visual.Origin)
		writeURDFGeometry(b, "      ", l.Visual)
		if c := l.Visual.Color; c != nil {
			fmt.Fprintf(b, "      <material name=\"%s_material\">\n", xmlEscaper.Replace(l.Name))
			fmt.Fprintf(b, "        <color rgba=\"%s %s %s %s\"/>\n", ftoa(c.R), ftoa(c.G), ftoa(c.B), ftoa(c.A))
			b.WriteString("      </material>\n")
		}
		b.WriteString("    </visual>\n")
	}
	if !l.Collision.IsNone() {
		b.WriteString("    <collision>\n")
		writeOrigin(b, "      ", l.Collision.Origin)
		writeURDFGeometry(b, "      ", l.Collision)
		b.WriteString("    </collision>\n")
	}
	b.WriteString("  </link>\n")
}

func writeURDFJoint(b *strings.Builder, j *model.Joint, extended bool) {
	fmt.Fprintf(b, "  <joint name=\"%s\" type=\"%s\">\n", xmlEscaper.Replace(j.Name), j.Type)
	writeOrigin(b, "    ", j.Origin)
	fmt.Fprintf(b, "    <parent link=\"%s\"/>\n", xmlEscaper.Replace(j.Parent))
	fmt.Fprintf(b, "    <child link=\"%s\"/>\n", xmlEscaper.Replace(j.Child))
	if urdfWantsAxis(j) {
		fmt.Fprintf(b, "    <axis xyz=\"%s\"/>\n", fmtVec3(j.Axis))
	}
	if j.Limit != (model.Limit{}) {
		b.WriteString("    <limit")
		if j.Limit.Lower != 0 {
			fmt.Fprintf(b, " lower=\"%s\"", ftoa(j.Limit.Lower))
		}
		if j.Limit.Upper != 0 {
			fmt.Fprintf(b, " upper=\"%s\"", ftoa(j.Limit.Upper))
		}
		if j.Limit.Effort != 0 {
			fmt.Fprintf(b, " effort=\"%s\"", ftoa(j.Limit.Effort))
		}
		if j.Limit.Velocity != 0 {
			fmt.Fprintf(b, " velocity=\"%s\"", ftoa(j.Limit.Velocity))
		}
		b.WriteString("/>\n")
	}
	if j.Dynamics != (model.Dynamics{}) {
		b.WriteString("    <dynamics")
		if j.Dynamics.Damping != 0 {
			fmt.Fprintf(b, " damping=\"%s\"", ftoa(j.Dynamics.Damping))
		}
		if j.Dynamics.Friction != 0 {
			fmt.Fprintf(b, " friction=\"%s\"", ftoa(j.Dynamics.Friction))
		}
		b.WriteString("/>\n")
	}
	if j.Mimic != nil {
		fmt.Fprintf(b, "    <mimic joint=\"%s\"", xmlEscaper.Replace(j.Mimic.Joint))
		if j.Mimic.Multiplier != 1 {
			fmt.Fprintf(b, " multiplier=\"%s\"", ftoa(j.Mimic.Multiplier))
		}
		if j.Mimic.Offset != 0 {
			fmt.Fprintf(b, " offset=\"%s\"", ftoa(j.Mimic.Offset))
		}
		b.WriteString("/>\n")
	}
	if extended && j.Hardware != nil {
		writeURDFHardware(b, j.Hardware)
	}
	b.WriteString("  </joint>\n")
}

// urdfWantsAxis reports whether the joint's axis differs from the
// dialect default (1 0 0) on a type that uses one.
func urdfWantsAxis(j *model.Joint) bool {
	switch j.Type {
	case model.JointRevolute, model.JointContinuous, model.JointPrismatic, model.JointPlanar:
		return j.Axis != (mgl64.Vec3{1, 0, 0}) && j.Axis != (mgl64.Vec3{})
	}
	return false
}

func writeURDFHardware(b *strings.Builder, h *model.Hardware) {
	b.WriteString("    <hardware>\n")
	if h.MotorType != "" || h.MotorID != 0 || h.Direction != 0 {
		b.WriteString("      <motor")
		if h.MotorType != "" {
			fmt.Fprintf(b, " type=\"%s\"", xmlEscaper.Replace(h.MotorType))
		}
		if h.MotorID != 0 {
			fmt.Fprintf(b, " id=\"%d\"", h.MotorID)
		}
		if h.Direction != 0 {
			fmt.Fprintf(b, " direction=\"%d\"", h.Direction)
		}
		b.WriteString("/>\n")
	}
	if h.Armature != 0 {
		fmt.Fprintf(b, "      <armature value=\"%s\"/>\n", ftoa(h.Armature))
	}
	b.WriteString("    </hardware>\n")
}

func writeOrigin(b *strings.Builder, indent string, p spatial.Pose) {
	if p.IsZero() {
		return
	}
	b.WriteString(indent + "<origin")
	if p.XYZ != (mgl64.Vec3{}) {
		fmt.Fprintf(b, " xyz=\"%s\"", fmtVec3(p.XYZ))
	}
	if !p.RPY.IsZero() {
		fmt.Fprintf(b, " rpy=\"%s %s %s\"", ftoa(p.RPY.Roll), ftoa(p.RPY.Pitch), ftoa(p.RPY.Yaw))
	}
	b.WriteString("/>\n")
}

func writeURDFGeometry(b *strings.Builder, indent string, g model.Geometry) {
	b.WriteString(indent + "<geometry>\n")
	switch g.Shape {
	case model.ShapeBox:
		fmt.Fprintf(b, "%s  <box size=\"%s\"/>\n", indent, fmtVec3(g.Size))
	case model.ShapeSphere:
		fmt.Fprintf(b, "%s  <sphere radius=\"%s\"/>\n", indent, ftoa(g.Radius))
	case model.ShapeCylinder:
		fmt.Fprintf(b, "%s  <cylinder radius=\"%s\" length=\"%s\"/>\n", indent, ftoa(g.Radius), ftoa(g.Length))
	case model.ShapeCapsule:
		fmt.Fprintf(b, "%s  <capsule radius=\"%s\" length=\"%s\"/>\n", indent, ftoa(g.Radius), ftoa(g.Length))
	case model.ShapeMesh:
		fmt.Fprintf(b, "%s  <mesh filename=\"%s\"", indent, xmlEscaper.Replace(g.MeshPath))
		if g.MeshScale != (mgl64.Vec3{1, 1, 1}) && g.MeshScale != (mgl64.Vec3{}) {
			fmt.Fprintf(b, " scale=\"%s\"", fmtVec3(g.MeshScale))
		}
		b.WriteString("/>\n")
	}
	b.WriteString(indent + "</geometry>\n")
}
