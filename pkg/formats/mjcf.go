package formats

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
	"github.com/Faultbox/robokit/pkg/spatial"
)

type mjcfDoc struct {
	Model     string         `xml:"model,attr"`
	Compiler  *mjcfCompiler  `xml:"compiler"`
	Assets    []mjcfAsset    `xml:"asset"`
	Worldbody *mjcfBody      `xml:"worldbody"`
	Actuators []mjcfActuator `xml:"actuator"`
}

type mjcfCompiler struct {
	Angle   string `xml:"angle,attr"`
	MeshDir string `xml:"meshdir,attr"`
}

type mjcfAsset struct {
	Meshes    []mjcfAssetMesh     `xml:"mesh"`
	Materials []mjcfAssetMaterial `xml:"material"`
}

type mjcfAssetMesh struct {
	Name  string `xml:"name,attr"`
	File  string `xml:"file,attr"`
	Scale string `xml:"scale,attr"`
}

type mjcfAssetMaterial struct {
	Name string `xml:"name,attr"`
	RGBA string `xml:"rgba,attr"`
}

type mjcfBody struct {
	Name       string        `xml:"name,attr"`
	Pos        string        `xml:"pos,attr"`
	Quat       string        `xml:"quat,attr"`
	Euler      string        `xml:"euler,attr"`
	Joints     []mjcfJoint   `xml:"joint"`
	Freejoints []mjcfNamed   `xml:"freejoint"`
	Geoms      []mjcfGeom    `xml:"geom"`
	Inertial   *mjcfInertial `xml:"inertial"`
	Bodies     []mjcfBody    `xml:"body"`
}

type mjcfNamed struct {
	Name string `xml:"name,attr"`
}

type mjcfJoint struct {
	Name         string  `xml:"name,attr"`
	Type         string  `xml:"type,attr"`
	Axis         string  `xml:"axis,attr"`
	Range        string  `xml:"range,attr"`
	Damping      float64 `xml:"damping,attr"`
	Frictionloss float64 `xml:"frictionloss,attr"`
	Armature     float64 `xml:"armature,attr"`
}

type mjcfGeom struct {
	Name        string `xml:"name,attr"`
	Type        string `xml:"type,attr"`
	Mesh        string `xml:"mesh,attr"`
	Size        string `xml:"size,attr"`
	FromTo      string `xml:"fromto,attr"`
	Pos         string `xml:"pos,attr"`
	Quat        string `xml:"quat,attr"`
	Euler       string `xml:"euler,attr"`
	RGBA        string `xml:"rgba,attr"`
	Material    string `xml:"material,attr"`
	Group       *int   `xml:"group,attr"`
	Contype     *int   `xml:"contype,attr"`
	Conaffinity *int   `xml:"conaffinity,attr"`
}

type mjcfInertial struct {
	Pos         string  `xml:"pos,attr"`
	Quat        string  `xml:"quat,attr"`
	Mass        float64 `xml:"mass,attr"`
	DiagInertia string  `xml:"diaginertia,attr"`
	FullInertia string  `xml:"fullinertia,attr"`
}

type mjcfActuator struct {
	Motors []mjcfMotor `xml:"motor"`
}

type mjcfMotor struct {
	Name  string `xml:"name,attr"`
	Joint string `xml:"joint,attr"`
	Gear  string `xml:"gear,attr"`
}

// mjcfParser carries the per-document state shared by the recursive
// body walk.
type mjcfParser struct {
	doc       *Document
	robot     *model.Robot
	opts      *ParseOptions
	degrees   bool
	meshFiles map[string]string
	meshScale map[string]mgl64.Vec3
	materials map[string]*model.Color
	unnamed   int
}

// ParseMJCF parses a MuJoCo MJCF model. Bodies nest recursively into
// the link tree; a body's joint declaration becomes the joint to its
// parent, and bodies without one weld on with a fixed joint. Angles are
// degrees unless the compiler element says radian.
func ParseMJCF(data []byte, opts *ParseOptions) (*Document, error) {
	dec := newXMLDecoder(data)
	start, err := rootElement(dec)
	if err != nil {
		return nil, err
	}
	if start.Name.Local != "mujoco" {
		return nil, fmt.Errorf("%w: expected <mujoco>, found <%s>", ErrMissingRoot, start.Name.Local)
	}
	var raw mjcfDoc
	if err := dec.DecodeElement(&raw, &start); err != nil {
		return nil, wrapXMLError(err)
	}

	name := raw.Model
	if name == "" {
		name = "mujoco"
	}
	p := &mjcfParser{
		doc:       &Document{Dialect: DialectMJCF},
		robot:     model.NewRobot(name),
		opts:      opts,
		degrees:   true,
		meshFiles: map[string]string{},
		meshScale: map[string]mgl64.Vec3{},
		materials: map[string]*model.Color{},
	}
	p.doc.Robot = p.robot

	meshDir := ""
	if raw.Compiler != nil {
		if strings.EqualFold(raw.Compiler.Angle, "radian") {
			p.degrees = false
		}
		meshDir = raw.Compiler.MeshDir
	}
	for _, a := range raw.Assets {
		for _, m := range a.Meshes {
			p.addMeshAsset(m, meshDir)
		}
		for _, m := range a.Materials {
			if m.Name == "" || m.RGBA == "" {
				continue
			}
			p.materials[m.Name] = parseRGBA(m.RGBA)
		}
	}

	if raw.Worldbody == nil {
		return nil, fmt.Errorf("%w: mujoco element has no worldbody", ErrMissingRoot)
	}
	rootID, err := p.buildTree(raw.Worldbody)
	if err != nil {
		return nil, err
	}
	p.robot.Root = rootID

	for _, a := range raw.Actuators {
		for _, m := range a.Motors {
			p.applyMotor(m)
		}
	}
	return p.doc, nil
}

// buildTree converts the worldbody. A single jointless top-level body
// becomes the root directly; worldbody geometry, multiple top-level
// bodies, or a top body with its own joint get a synthesized world link
// to anchor them, since a root link has no parent joint to carry the
// motion.
func (p *mjcfParser) buildTree(wb *mjcfBody) (string, error) {
	if len(wb.Geoms) == 0 && len(wb.Bodies) == 1 && !bodyHasJoint(&wb.Bodies[0]) {
		return p.walkBody(&wb.Bodies[0], "")
	}
	world := &model.Link{ID: "world", Name: "world", Synthesized: true}
	if wb.Inertial != nil {
		world.Inertial = p.readInertial(wb.Inertial)
	}
	if err := p.robot.AddLink(world); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p.attachGeoms(world, wb.Geoms)
	for i := range wb.Bodies {
		if _, err := p.walkBody(&wb.Bodies[i], world.ID); err != nil {
			return "", err
		}
	}
	return world.ID, nil
}

// walkBody adds one body as a link, wires it to its parent, and
// recurses into nested bodies.
func (p *mjcfParser) walkBody(b *mjcfBody, parentID string) (string, error) {
	name := b.Name
	if name == "" {
		p.unnamed++
		name = fmt.Sprintf("body_%d", p.unnamed)
		p.doc.warnf("unnamed body stored as %q", name)
	}
	link := &model.Link{ID: name, Name: name}
	if b.Inertial != nil {
		link.Inertial = p.readInertial(b.Inertial)
	}
	if err := p.robot.AddLink(link); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p.attachGeoms(link, b.Geoms)

	if parentID != "" {
		j := p.bodyJoint(b, parentID, name)
		if err := p.robot.AddJoint(j); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	for i := range b.Bodies {
		if _, err := p.walkBody(&b.Bodies[i], name); err != nil {
			return "", err
		}
	}
	return name, nil
}

// attachGeoms pairs the body's geoms, puts the first pair on the link,
// and splits the rest into synthesized child links.
func (p *mjcfParser) attachGeoms(link *model.Link, geoms []mjcfGeom) {
	pairs := p.pairGeoms(geoms, link.ID)
	if len(pairs) == 0 {
		return
	}
	link.Visual = pairs[0].visual
	link.Collision = pairs[0].collision
	for n, pair := range pairs[1:] {
		if _, err := p.robot.SplitCollision(link.ID, pair.visual, pair.collision, n+1); err != nil {
			p.doc.warnf("body %q: %v", link.ID, err)
		}
	}
}

type geomPair struct {
	visual    model.Geometry
	collision model.Geometry
}

// pairGeoms splits geoms into visual and collision sets and matches
// them up. Geoms with group 1 and both contact masks zeroed are
// visual; matching prefers a shared mesh, then a shared name, then
// pairs the first unmatched visual with the first unused collision.
func (p *mjcfParser) pairGeoms(geoms []mjcfGeom, bodyName string) []geomPair {
	type classified struct {
		geom model.Geometry
		mesh string
		name string
		used bool
	}
	var visuals, collisions []classified
	for i := range geoms {
		g := &geoms[i]
		c := classified{geom: p.readGeom(g, bodyName), mesh: g.Mesh, name: g.Name}
		if c.geom.IsNone() {
			continue
		}
		if intOr(g.Group, 0) == 1 && intOr(g.Contype, 1) == 0 && intOr(g.Conaffinity, 1) == 0 {
			visuals = append(visuals, c)
		} else {
			collisions = append(collisions, c)
		}
	}

	var pairs []geomPair
	for i := range visuals {
		v := &visuals[i]
		for j := range collisions {
			c := &collisions[j]
			if c.used {
				continue
			}
			if (v.mesh != "" && v.mesh == c.mesh) || (v.name != "" && v.name == c.name) {
				v.used, c.used = true, true
				pairs = append(pairs, geomPair{visual: v.geom, collision: c.geom})
				break
			}
		}
	}
	for i := range visuals {
		v := &visuals[i]
		if v.used {
			continue
		}
		pair := geomPair{visual: v.geom}
		for j := range collisions {
			c := &collisions[j]
			if !c.used {
				c.used = true
				pair.collision = c.geom
				break
			}
		}
		pairs = append(pairs, pair)
	}
	for j := range collisions {
		if !collisions[j].used {
			pairs = append(pairs, geomPair{collision: collisions[j].geom})
		}
	}
	return pairs
}

// bodyJoint converts a body's joint declaration into the canonical
// joint connecting it to its parent. The body frame offset becomes the
// joint origin; bodies without a joint weld on fixed.
func (p *mjcfParser) bodyJoint(b *mjcfBody, parentID, childID string) *model.Joint {
	j := &model.Joint{
		Type:   model.JointFixed,
		Parent: parentID,
		Child:  childID,
		Origin: p.readPose(b.Pos, b.Quat, b.Euler),
		Axis:   mgl64.Vec3{0, 0, 1},
	}
	switch {
	case len(b.Freejoints) > 0:
		j.Type = model.JointFloating
		j.ID = b.Freejoints[0].Name
	case len(b.Joints) > 0:
		mj := &b.Joints[0]
		if len(b.Joints) > 1 {
			p.doc.warnf("body %q: %d extra joint elements ignored", childID, len(b.Joints)-1)
		}
		j.ID = mj.Name
		j.Axis = spatial.NormalizeAxis(parseVec3(mj.Axis, mgl64.Vec3{0, 0, 1}))
		j.Dynamics = model.Dynamics{Damping: mj.Damping, Friction: mj.Frictionloss}
		if mj.Armature != 0 {
			j.Hardware = &model.Hardware{Armature: mj.Armature}
		}
		lo, hi, limited := jointRange(mj.Range)
		switch mj.Type {
		case "", "hinge":
			if limited {
				if p.degrees {
					lo, hi = spatial.Radians(lo), spatial.Radians(hi)
				}
				j.Type = model.JointRevolute
				j.Limit = model.Limit{Lower: lo, Upper: hi}
			} else {
				j.Type = model.JointContinuous
			}
		case "slide":
			j.Type = model.JointPrismatic
			if limited {
				j.Limit = model.Limit{Lower: lo, Upper: hi}
			}
		case "free":
			j.Type = model.JointFloating
		case "ball":
			p.doc.warnf("body %q: ball joint %q approximated as continuous", childID, mj.Name)
			j.Type = model.JointContinuous
		default:
			p.doc.warnf("body %q: unknown joint type %q treated as fixed", childID, mj.Type)
			j.Type = model.JointFixed
		}
	}
	if j.ID == "" {
		if j.Type == model.JointFixed {
			j.ID = childID + "_fixed"
		} else {
			j.ID = childID + "_joint"
		}
	}
	j.Name = j.ID
	return j
}

// readGeom converts one geom, inferring the type when the attribute is
// absent: a mesh reference wins, then a 6-component fromto means
// capsule, then the size arity decides sphere, capsule, or ellipsoid.
func (p *mjcfParser) readGeom(g *mjcfGeom, bodyName string) model.Geometry {
	size := parseFloats(g.Size)
	fromto := parseFloats(g.FromTo)
	typ := g.Type
	if typ == "" {
		switch {
		case g.Mesh != "":
			typ = "mesh"
		case len(fromto) == 6:
			typ = "capsule"
		case len(size) == 1:
			typ = "sphere"
		case len(size) == 2:
			typ = "capsule"
		case len(size) >= 3:
			typ = "ellipsoid"
		default:
			typ = "sphere"
		}
	}

	out := model.Geometry{Origin: p.readPose(g.Pos, g.Quat, g.Euler)}
	if g.RGBA != "" {
		out.Color = parseRGBA(g.RGBA)
	} else if c, ok := p.materials[g.Material]; ok {
		cc := *c
		out.Color = &cc
	}

	switch typ {
	case "mesh":
		out.Shape = model.ShapeMesh
		out.MeshScale = mgl64.Vec3{1, 1, 1}
		if file, ok := p.meshFiles[g.Mesh]; ok {
			out.MeshPath = file
			out.MeshScale = p.meshScale[g.Mesh]
		} else {
			p.doc.warnf("body %q: geom references unknown mesh asset %q", bodyName, g.Mesh)
			out.MeshPath = g.Mesh
		}
	case "sphere":
		out.Shape = model.ShapeSphere
		out.Radius = floatAt(size, 0)
	case "capsule", "cylinder":
		out.Shape = model.ShapeCapsule
		if typ == "cylinder" {
			out.Shape = model.ShapeCylinder
		}
		out.Radius = floatAt(size, 0)
		if len(fromto) == 6 {
			a := mgl64.Vec3{fromto[0], fromto[1], fromto[2]}
			b := mgl64.Vec3{fromto[3], fromto[4], fromto[5]}
			out.Length = b.Sub(a).Len()
			out.Origin.XYZ = a.Add(b).Mul(0.5)
			dir := spatial.NormalizeAxis(b.Sub(a))
			out.Origin.RPY = spatial.EulerFromQuat(mgl64.QuatBetweenVectors(mgl64.Vec3{0, 0, 1}, dir))
		} else {
			out.Length = 2 * floatAt(size, 1)
		}
	case "box":
		out.Shape = model.ShapeBox
		out.Size = mgl64.Vec3{2 * floatAt(size, 0), 2 * floatAt(size, 1), 2 * floatAt(size, 2)}
	case "ellipsoid":
		r := math.Max(floatAt(size, 0), math.Max(floatAt(size, 1), floatAt(size, 2)))
		p.doc.warnf("body %q: ellipsoid geom approximated as sphere of radius %s", bodyName, ftoa(r))
		out.Shape = model.ShapeSphere
		out.Radius = r
	default:
		p.doc.warnf("body %q: unsupported geom type %q skipped", bodyName, typ)
	}
	return out
}

// readInertial folds a diagonal inertia plus its optional orientation
// into the full tensor: I = R * diag(d) * Rt.
func (p *mjcfParser) readInertial(in *mjcfInertial) model.Inertial {
	out := model.Inertial{
		Mass:   in.Mass,
		Origin: spatial.Pose{XYZ: parseVec3(in.Pos, mgl64.Vec3{})},
	}
	if full := parseFloats(in.FullInertia); len(full) >= 6 {
		out.Inertia = spatial.Tensor{
			XX: full[0], YY: full[1], ZZ: full[2],
			XY: full[3], XZ: full[4], YZ: full[5],
		}
		return out
	}
	diag := parseFloats(in.DiagInertia)
	if len(diag) < 3 {
		return out
	}
	t := spatial.TensorFromDiagonal(mgl64.Vec3{diag[0], diag[1], diag[2]})
	if q := parseFloats(in.Quat); len(q) >= 4 {
		t = t.Rotated(mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}})
	}
	out.Inertia = t
	return out
}

// readPose reads a pos attribute plus either a quat (w x y z) or an
// euler triple. Euler angles honor the compiler angle mode; quaternions
// never do.
func (p *mjcfParser) readPose(pos, quat, euler string) spatial.Pose {
	out := spatial.Pose{XYZ: parseVec3(pos, mgl64.Vec3{})}
	switch {
	case quat != "":
		if v := parseFloats(quat); len(v) >= 4 {
			q := mgl64.Quat{W: v[0], V: mgl64.Vec3{v[1], v[2], v[3]}}
			out.RPY = spatial.EulerFromQuat(q)
		}
	case euler != "":
		v := parseVec3(euler, mgl64.Vec3{})
		if p.degrees {
			v = mgl64.Vec3{spatial.Radians(v[0]), spatial.Radians(v[1]), spatial.Radians(v[2])}
		}
		out.RPY = spatial.Euler{Roll: v[0], Pitch: v[1], Yaw: v[2]}
	}
	return out
}

// addMeshAsset registers one asset mesh. An unnamed mesh takes its file
// basename, matching the MJCF default.
func (p *mjcfParser) addMeshAsset(m mjcfAssetMesh, meshDir string) {
	if m.Name == "" && m.File == "" {
		return
	}
	name := m.Name
	if name == "" {
		name = assetMeshName(m.File)
	}
	file := m.File
	if meshDir != "" && file != "" {
		file = path.Join(meshDir, file)
	}
	p.meshFiles[name] = resolveMeshPath(file, p.opts)
	p.meshScale[name] = parseMeshScale(m.Scale)
}

// applyMotor maps an actuator motor back onto its joint's hardware
// block: the motor name records the type and the gear sign the
// direction.
func (p *mjcfParser) applyMotor(m mjcfMotor) {
	if m.Joint == "" {
		return
	}
	j := p.robot.Joint(m.Joint)
	if j == nil {
		p.doc.warnf("actuator motor %q references unknown joint %q", m.Name, m.Joint)
		return
	}
	if j.Hardware == nil {
		j.Hardware = &model.Hardware{}
	}
	j.Hardware.MotorType = m.Name
	if g := parseFloats(m.Gear); len(g) > 0 {
		j.Hardware.Direction = int(g[0])
	}
}

func bodyHasJoint(b *mjcfBody) bool {
	return len(b.Joints) > 0 || len(b.Freejoints) > 0
}

// jointRange reads a "lo hi" range attribute; a missing or all-zero
// range means unlimited.
func jointRange(s string) (lo, hi float64, limited bool) {
	v := parseFloats(s)
	if len(v) < 2 || (v[0] == 0 && v[1] == 0) {
		return 0, 0, false
	}
	return v[0], v[1], true
}

// assetMeshName strips the directory and extension from a mesh file
// reference.
func assetMeshName(file string) string {
	base := path.Base(strings.ReplaceAll(file, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
