package formats

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
	"github.com/Faultbox/robokit/pkg/spatial"
)

// gazeboPalette maps the named Gazebo materials to their colors. Links
// tagged with one of these through a <gazebo> extension pick the color
// up when no URDF material applies.
var gazeboPalette = map[string]model.Color{
	"Gazebo/Black":      {R: 0, G: 0, B: 0, A: 1},
	"Gazebo/FlatBlack":  {R: 0.1, G: 0.1, B: 0.1, A: 1},
	"Gazebo/DarkGrey":   {R: 0.3, G: 0.3, B: 0.3, A: 1},
	"Gazebo/Grey":       {R: 0.7, G: 0.7, B: 0.7, A: 1},
	"Gazebo/White":      {R: 1, G: 1, B: 1, A: 1},
	"Gazebo/Red":        {R: 1, G: 0, B: 0, A: 1},
	"Gazebo/RedBright":  {R: 0.87, G: 0.26, B: 0.07, A: 1},
	"Gazebo/Green":      {R: 0, G: 1, B: 0, A: 1},
	"Gazebo/Blue":       {R: 0, G: 0, B: 1, A: 1},
	"Gazebo/SkyBlue":    {R: 0.13, G: 0.44, B: 0.7, A: 1},
	"Gazebo/Yellow":     {R: 1, G: 1, B: 0, A: 1},
	"Gazebo/ZincYellow": {R: 0.99, G: 0.91, B: 0.31, A: 1},
	"Gazebo/Orange":     {R: 1, G: 0.51, B: 0.05, A: 1},
	"Gazebo/Gold":       {R: 0.75, G: 0.6, B: 0.22, A: 1},
	"Gazebo/Purple":     {R: 1, G: 0, B: 1, A: 1},
	"Gazebo/Turquoise":  {R: 0, G: 0.78, B: 0.78, A: 1},
	"Gazebo/Indigo":     {R: 0.29, G: 0, B: 0.51, A: 1},
}

type urdfDoc struct {
	Name      string         `xml:"name,attr"`
	Materials []urdfMaterial `xml:"material"`
	Links     []urdfLink     `xml:"link"`
	Joints    []urdfJoint    `xml:"joint"`
	Gazebos   []urdfGazebo   `xml:"gazebo"`
}

type urdfMaterial struct {
	Name  string     `xml:"name,attr"`
	Color *urdfColor `xml:"color"`
}

type urdfColor struct {
	RGBA string `xml:"rgba,attr"`
}

type urdfGazebo struct {
	Reference string `xml:"reference,attr"`
	Material  string `xml:"material"`
}

type urdfOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type urdfGeometry struct {
	Box      *urdfBox      `xml:"box"`
	Sphere   *urdfSphere   `xml:"sphere"`
	Cylinder *urdfCylinder `xml:"cylinder"`
	Capsule  *urdfCapsule  `xml:"capsule"`
	Mesh     *urdfMesh     `xml:"mesh"`
}

type urdfBox struct {
	Size string `xml:"size,attr"`
}

type urdfSphere struct {
	Radius float64 `xml:"radius,attr"`
}

type urdfCylinder struct {
	Radius float64 `xml:"radius,attr"`
	Length float64 `xml:"length,attr"`
}

type urdfCapsule struct {
	Radius float64 `xml:"radius,attr"`
	Length float64 `xml:"length,attr"`
}

type urdfMesh struct {
	Filename string `xml:"filename,attr"`
	Scale    string `xml:"scale,attr"`
}

type urdfVisual struct {
	Origin   *urdfOrigin   `xml:"origin"`
	Geometry *urdfGeometry `xml:"geometry"`
	Material *urdfMaterial `xml:"material"`
}

type urdfCollision struct {
	Origin   *urdfOrigin   `xml:"origin"`
	Geometry *urdfGeometry `xml:"geometry"`
}

type urdfInertial struct {
	Origin  *urdfOrigin  `xml:"origin"`
	Mass    *urdfMass    `xml:"mass"`
	Inertia *urdfInertia `xml:"inertia"`
}

type urdfMass struct {
	Value float64 `xml:"value,attr"`
}

type urdfInertia struct {
	IXX float64 `xml:"ixx,attr"`
	IXY float64 `xml:"ixy,attr"`
	IXZ float64 `xml:"ixz,attr"`
	IYY float64 `xml:"iyy,attr"`
	IYZ float64 `xml:"iyz,attr"`
	IZZ float64 `xml:"izz,attr"`
}

type urdfLink struct {
	Name       string          `xml:"name,attr"`
	Inertial   *urdfInertial   `xml:"inertial"`
	Visuals    []urdfVisual    `xml:"visual"`
	Collisions []urdfCollision `xml:"collision"`
}

type urdfJoint struct {
	Name     string        `xml:"name,attr"`
	Type     string        `xml:"type,attr"`
	Origin   *urdfOrigin   `xml:"origin"`
	Parent   *urdfLinkRef  `xml:"parent"`
	Child    *urdfLinkRef  `xml:"child"`
	Axis     *urdfAxis     `xml:"axis"`
	Limit    *urdfLimit    `xml:"limit"`
	Dynamics *urdfDynamics `xml:"dynamics"`
	Mimic    *urdfMimic    `xml:"mimic"`
	Hardware *urdfHardware `xml:"hardware"`
}

type urdfLinkRef struct {
	Link string `xml:"link,attr"`
}

type urdfAxis struct {
	XYZ string `xml:"xyz,attr"`
}

type urdfLimit struct {
	Lower    float64 `xml:"lower,attr"`
	Upper    float64 `xml:"upper,attr"`
	Effort   float64 `xml:"effort,attr"`
	Velocity float64 `xml:"velocity,attr"`
}

type urdfDynamics struct {
	Damping  float64 `xml:"damping,attr"`
	Friction float64 `xml:"friction,attr"`
}

type urdfMimic struct {
	Joint      string   `xml:"joint,attr"`
	Multiplier *float64 `xml:"multiplier,attr"`
	Offset     *float64 `xml:"offset,attr"`
}

// urdfHardware is the vendor extension block carrying actuator metadata
// the standard schema has no place for.
type urdfHardware struct {
	Motor    *urdfMotor    `xml:"motor"`
	Armature *urdfArmature `xml:"armature"`
}

type urdfMotor struct {
	Type      string `xml:"type,attr"`
	ID        int    `xml:"id,attr"`
	Direction int    `xml:"direction,attr"`
}

type urdfArmature struct {
	Value float64 `xml:"value,attr"`
}

// ParseURDF parses a URDF robot description. Materials resolve before
// links so a reference works no matter where in the document the
// declaration sits; joints with unresolved link references are kept but
// left out of the tree.
func ParseURDF(data []byte, opts *ParseOptions) (*Document, error) {
	dec := newXMLDecoder(data)
	start, err := rootElement(dec)
	if err != nil {
		return nil, err
	}
	if start.Name.Local != "robot" {
		return nil, fmt.Errorf("%w: expected <robot>, found <%s>", ErrMissingRoot, start.Name.Local)
	}
	var raw urdfDoc
	if err := dec.DecodeElement(&raw, &start); err != nil {
		return nil, wrapXMLError(err)
	}

	doc := &Document{Dialect: DialectURDF}
	name := raw.Name
	if name == "" {
		doc.warnf("robot element has no name attribute")
		name = "robot"
	}
	r := model.NewRobot(name)
	doc.Robot = r

	materials := map[string]*model.Color{}
	for _, m := range raw.Materials {
		if m.Name == "" || m.Color == nil {
			continue
		}
		materials[m.Name] = parseRGBA(m.Color.RGBA)
	}
	gazebo := map[string]*model.Color{}
	for _, g := range raw.Gazebos {
		if g.Reference == "" {
			continue
		}
		if c, ok := gazeboPalette[strings.TrimSpace(g.Material)]; ok {
			cc := c
			gazebo[g.Reference] = &cc
		}
	}

	linkOrder := make([]string, 0, len(raw.Links))
	for i := range raw.Links {
		rl := &raw.Links[i]
		if rl.Name == "" {
			return nil, fmt.Errorf("%w: link name", ErrMissingAttribute)
		}
		link := &model.Link{ID: rl.Name, Name: rl.Name}
		where := "link " + rl.Name
		if len(rl.Visuals) > 0 {
			v := &rl.Visuals[0]
			link.Visual = doc.readURDFGeometry(v.Geometry, opts, where)
			link.Visual.Origin = parsePose(v.Origin)
			link.Visual.Color = visualColor(v, materials, gazebo[rl.Name])
			if len(rl.Visuals) > 1 {
				doc.warnf("%s: %d extra visual elements ignored", where, len(rl.Visuals)-1)
			}
		}
		if len(rl.Collisions) > 0 {
			c := &rl.Collisions[0]
			link.Collision = doc.readURDFGeometry(c.Geometry, opts, where)
			link.Collision.Origin = parsePose(c.Origin)
		}
		if rl.Inertial != nil {
			link.Inertial = readURDFInertial(rl.Inertial)
		}
		if err := r.AddLink(link); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		linkOrder = append(linkOrder, link.ID)

		// Extra collision shapes become synthesized children.
		for n := 1; n < len(rl.Collisions); n++ {
			c := &rl.Collisions[n]
			geom := doc.readURDFGeometry(c.Geometry, opts, where)
			geom.Origin = parsePose(c.Origin)
			if _, err := r.SplitCollision(link.ID, model.Geometry{}, geom, n); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
	}

	for i := range raw.Joints {
		rj := &raw.Joints[i]
		if rj.Name == "" {
			return nil, fmt.Errorf("%w: joint name", ErrMissingAttribute)
		}
		if rj.Type == "" {
			return nil, fmt.Errorf("%w: joint %q type", ErrMissingAttribute, rj.Name)
		}
		jt, known := model.JointTypeFromString(rj.Type)
		if !known {
			doc.warnf("joint %q: unknown type %q treated as fixed", rj.Name, rj.Type)
		}
		j := &model.Joint{
			ID:     rj.Name,
			Name:   rj.Name,
			Type:   jt,
			Origin: parsePose(rj.Origin),
			Axis:   mgl64.Vec3{1, 0, 0},
		}
		if rj.Axis != nil {
			j.Axis = spatial.NormalizeAxis(parseVec3(rj.Axis.XYZ, mgl64.Vec3{1, 0, 0}))
		}
		if rj.Parent != nil {
			j.Parent = rj.Parent.Link
		}
		if rj.Child != nil {
			j.Child = rj.Child.Link
		}
		if rj.Limit != nil {
			j.Limit = model.Limit{
				Lower:    rj.Limit.Lower,
				Upper:    rj.Limit.Upper,
				Effort:   rj.Limit.Effort,
				Velocity: rj.Limit.Velocity,
			}
		}
		if rj.Dynamics != nil {
			j.Dynamics = model.Dynamics{Damping: rj.Dynamics.Damping, Friction: rj.Dynamics.Friction}
		}
		if rj.Mimic != nil {
			if rj.Mimic.Joint == "" {
				doc.warnf("joint %q: mimic without a joint attribute ignored", rj.Name)
			} else {
				m := &model.Mimic{Joint: rj.Mimic.Joint, Multiplier: 1}
				if rj.Mimic.Multiplier != nil {
					m.Multiplier = *rj.Mimic.Multiplier
				}
				if rj.Mimic.Offset != nil {
					m.Offset = *rj.Mimic.Offset
				}
				j.Mimic = m
			}
		}
		j.Hardware = readURDFHardware(rj.Hardware)
		if err := r.AddJoint(j); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		doc.checkJointRefs(r, j)
	}

	if err := r.WireMimics(); err != nil {
		return nil, err
	}
	for _, id := range r.JointIDs() {
		j := r.Joints[id]
		if j.Mimic != nil && r.Joints[j.Mimic.Joint] == nil {
			doc.warnf("joint %q: mimic target %q not found", id, j.Mimic.Joint)
		}
	}
	if len(r.Links) == 0 {
		doc.warnf("document has no links")
	} else if _, ok := r.DetectRoot(linkOrder); !ok {
		doc.warnf("no link qualifies as root; falling back to %q", r.Root)
	}
	return doc, nil
}

// checkJointRefs warns about parent/child references that do not
// resolve. Such joints stay in the document but never join the tree.
func (doc *Document) checkJointRefs(r *model.Robot, j *model.Joint) {
	if j.Parent == "" || j.Child == "" {
		doc.warnf("joint %q: missing parent or child element; joint left unwired", j.ID)
		return
	}
	if r.Links[j.Parent] == nil {
		doc.warnf("joint %q: parent link %q not found; joint left unwired", j.ID, j.Parent)
	}
	if r.Links[j.Child] == nil {
		doc.warnf("joint %q: child link %q not found; joint left unwired", j.ID, j.Child)
	}
}

// readURDFGeometry converts one <geometry> block.
func (doc *Document) readURDFGeometry(g *urdfGeometry, opts *ParseOptions, where string) model.Geometry {
	if g == nil {
		return model.Geometry{}
	}
	switch {
	case g.Box != nil:
		return model.Geometry{Shape: model.ShapeBox, Size: parseVec3(g.Box.Size, mgl64.Vec3{})}
	case g.Sphere != nil:
		return model.Geometry{Shape: model.ShapeSphere, Radius: g.Sphere.Radius}
	case g.Cylinder != nil:
		return model.Geometry{Shape: model.ShapeCylinder, Radius: g.Cylinder.Radius, Length: g.Cylinder.Length}
	case g.Capsule != nil:
		return model.Geometry{Shape: model.ShapeCapsule, Radius: g.Capsule.Radius, Length: g.Capsule.Length}
	case g.Mesh != nil:
		if g.Mesh.Filename == "" {
			doc.warnf("%s: mesh without a filename skipped", where)
			return model.Geometry{}
		}
		return model.Geometry{
			Shape:     model.ShapeMesh,
			MeshPath:  resolveMeshPath(g.Mesh.Filename, opts),
			MeshScale: parseMeshScale(g.Mesh.Scale),
		}
	default:
		doc.warnf("%s: empty geometry element", where)
		return model.Geometry{}
	}
}

// visualColor applies the three-tier material precedence: an inline
// <color> wins, then a named material declared anywhere in the
// document, then a Gazebo material override on the link.
func visualColor(v *urdfVisual, materials map[string]*model.Color, gazebo *model.Color) *model.Color {
	if v.Material != nil {
		if v.Material.Color != nil {
			return parseRGBA(v.Material.Color.RGBA)
		}
		if c, ok := materials[v.Material.Name]; ok {
			cc := *c
			return &cc
		}
	}
	if gazebo != nil {
		cc := *gazebo
		return &cc
	}
	return nil
}

func readURDFInertial(in *urdfInertial) model.Inertial {
	out := model.Inertial{Origin: parsePose(in.Origin)}
	if in.Mass != nil {
		out.Mass = in.Mass.Value
	}
	if in.Inertia != nil {
		out.Inertia = spatial.Tensor{
			XX: in.Inertia.IXX, YY: in.Inertia.IYY, ZZ: in.Inertia.IZZ,
			XY: in.Inertia.IXY, XZ: in.Inertia.IXZ, YZ: in.Inertia.IYZ,
		}
	}
	return out
}

func readURDFHardware(h *urdfHardware) *model.Hardware {
	if h == nil {
		return nil
	}
	out := &model.Hardware{}
	if h.Motor != nil {
		out.MotorType = h.Motor.Type
		out.MotorID = h.Motor.ID
		out.Direction = h.Motor.Direction
	}
	if h.Armature != nil {
		out.Armature = h.Armature.Value
	}
	if *out == (model.Hardware{}) {
		return nil
	}
	return out
}

// parsePose reads an <origin xyz rpy> element into a Pose.
func parsePose(o *urdfOrigin) spatial.Pose {
	if o == nil {
		return spatial.Pose{}
	}
	rpy := parseVec3(o.RPY, mgl64.Vec3{})
	return spatial.Pose{
		XYZ: parseVec3(o.XYZ, mgl64.Vec3{}),
		RPY: spatial.Euler{Roll: rpy[0], Pitch: rpy[1], Yaw: rpy[2]},
	}
}
