package formats

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
	"github.com/Faultbox/robokit/pkg/spatial"
)

// usdFrame is one open prim scope. Prim types that do not materialize a
// link (Scope, Material and friends) push a transparent frame that
// inherits the nearest ancestor link.
type usdFrame struct {
	depth   int
	linkID  string
	ownLink bool
	joint   *model.Joint
}

// usdPending is a def header seen before its opening brace; the
// reference capture window stays open until the body starts.
type usdPending struct {
	primType string
	name     string
	ref      string
}

type usdParser struct {
	doc     *Document
	robot   *model.Robot
	opts    *ParseOptions
	stack   []usdFrame
	pending *usdPending
	depth   int
	sawDef  bool
	tops    []string
	topMove map[string]mgl64.Vec3
}

// ParseUSDA parses an ASCII USD stage with a line scanner rather than a
// full SDF composition engine: def blocks become links, nesting becomes
// fixed joints, and the handful of attributes that shape geometry are
// read in place. Binary crate files are rejected; a real USD loader
// owns those.
func ParseUSDA(data []byte, opts *ParseOptions) (*Document, error) {
	if bytes.HasPrefix(data, []byte("PXR-USDC")) {
		return nil, fmt.Errorf("%w: binary usd crate content", ErrMalformed)
	}
	p := &usdParser{
		doc:     &Document{Dialect: DialectUSDA},
		robot:   model.NewRobot("stage"),
		opts:    opts,
		topMove: map[string]mgl64.Vec3{},
	}
	p.doc.Robot = p.robot

	sc := bufio.NewScanner(bytes.NewReader(trimBOM(data)))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !p.sawDef {
		return nil, fmt.Errorf("%w: no prim definitions found", ErrMissingRoot)
	}
	p.finish()
	return p.doc, nil
}

func (p *usdParser) line(raw string) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "" || strings.HasPrefix(trimmed, "#"):
		return
	case strings.HasPrefix(trimmed, "def ") || trimmed == "def":
		if d := readUSDDef(trimmed); d != nil {
			p.pending = d
			p.sawDef = true
		}
	case p.pending != nil:
		// Still inside the def's metadata parens; pick up an asset
		// reference if one shows up before the body opens.
		if p.pending.ref == "" {
			p.pending.ref = usdAssetRef(trimmed)
		}
	default:
		p.attr(trimmed)
	}
	for _, c := range trimmed {
		switch c {
		case '{':
			p.depth++
			if p.pending != nil {
				p.addPrim(p.pending)
				p.pending = nil
			}
		case '}':
			p.depth--
			for len(p.stack) > 0 && p.stack[len(p.stack)-1].depth > p.depth {
				p.stack = p.stack[:len(p.stack)-1]
			}
		}
	}
}

func (p *usdParser) frame() *usdFrame {
	if len(p.stack) == 0 {
		return nil
	}
	return &p.stack[len(p.stack)-1]
}

// addPrim materializes the pending def at the current depth.
func (p *usdParser) addPrim(d *usdPending) {
	parentLink := ""
	if f := p.frame(); f != nil {
		parentLink = f.linkID
	}
	geom, isLink := usdGeometry(d.primType)
	if !isLink {
		p.stack = append(p.stack, usdFrame{depth: p.depth, linkID: parentLink})
		return
	}
	if geom.Shape == model.ShapeMesh {
		geom.MeshPath = resolveMeshPath(d.ref, p.opts)
		geom.MeshScale = mgl64.Vec3{1, 1, 1}
	}

	id := p.uniqueLinkID(d.name, parentLink)
	if id != d.name {
		p.doc.warnf("duplicate prim name %q stored as %q", d.name, id)
	}
	link := &model.Link{ID: id, Name: id, Visual: geom}
	if err := p.robot.AddLink(link); err != nil {
		p.doc.warnf("prim %q dropped: %v", d.name, err)
		p.stack = append(p.stack, usdFrame{depth: p.depth, linkID: parentLink})
		return
	}

	f := usdFrame{depth: p.depth, linkID: id, ownLink: true}
	if parentLink != "" {
		j := &model.Joint{
			ID:     id + "_fixed",
			Name:   id + "_fixed",
			Type:   model.JointFixed,
			Parent: parentLink,
			Child:  id,
		}
		if err := p.robot.AddJoint(j); err != nil {
			p.doc.warnf("joint %q dropped: %v", j.ID, err)
		} else {
			f.joint = j
		}
	} else {
		p.tops = append(p.tops, id)
	}
	p.stack = append(p.stack, f)
}

// attr applies one attribute line to the enclosing prim. Stage metadata
// at depth zero only contributes the defaultPrim name.
func (p *usdParser) attr(line string) {
	if p.depth == 0 {
		if strings.HasPrefix(line, "defaultPrim") {
			if s := quotedString(line); s != "" {
				p.robot.Name = s
			}
		}
		return
	}
	f := p.frame()
	if f == nil || !f.ownLink {
		return
	}
	name, rhs, ok := usdAttrParts(line)
	if !ok {
		return
	}
	l := p.robot.Links[f.linkID]
	switch name {
	case "xformOp:translate":
		if v := usdFloats(rhs); len(v) >= 3 {
			xyz := mgl64.Vec3{v[0], v[1], v[2]}
			if f.joint != nil {
				f.joint.Origin.XYZ = xyz
				f.joint.ResetFrame()
			} else {
				p.topMove[f.linkID] = xyz
			}
		}
	case "size":
		if l.Visual.Shape == model.ShapeBox {
			if v := usdFloats(rhs); len(v) > 0 {
				l.Visual.Size = mgl64.Vec3{v[0], v[0], v[0]}
			}
		}
	case "radius":
		if v := usdFloats(rhs); len(v) > 0 {
			l.Visual.Radius = v[0]
		}
	case "height":
		if v := usdFloats(rhs); len(v) > 0 {
			l.Visual.Length = v[0]
		}
	case "primvars:displayColor":
		if v := usdFloats(rhs); len(v) >= 3 {
			l.Visual.Color = &model.Color{R: v[0], G: v[1], B: v[2], A: 1}
		}
	case "references", "payload":
		if l.Visual.Shape == model.ShapeMesh && l.Visual.MeshPath == "" {
			if r := usdAssetRef(rhs); r != "" {
				l.Visual.MeshPath = resolveMeshPath(r, p.opts)
			}
		}
	}
}

// finish picks the root. Multiple top-level prims are anchored under a
// synthesized world link carrying their stage offsets.
func (p *usdParser) finish() {
	switch {
	case len(p.tops) > 1:
		worldID := p.uniqueLinkID("world", "")
		world := &model.Link{ID: worldID, Name: worldID, Synthesized: true}
		if err := p.robot.AddLink(world); err != nil {
			p.doc.warnf("world link dropped: %v", err)
			p.robot.Root = p.tops[0]
			return
		}
		for _, top := range p.tops {
			j := &model.Joint{
				ID:          top + "_fixed",
				Name:        top + "_fixed",
				Type:        model.JointFixed,
				Parent:      worldID,
				Child:       top,
				Origin:      spatial.Pose{XYZ: p.topMove[top]},
				Synthesized: true,
			}
			if err := p.robot.AddJoint(j); err != nil {
				p.doc.warnf("joint %q dropped: %v", j.ID, err)
			}
		}
		p.robot.Root = worldID
		p.doc.warnf("%d top-level prims anchored under synthesized link %q", len(p.tops), worldID)
	case len(p.tops) == 1:
		p.robot.Root = p.tops[0]
	default:
		p.doc.warnf("document defines no links")
	}
}

func (p *usdParser) uniqueLinkID(name, parentLink string) string {
	if p.robot.Link(name) == nil {
		return name
	}
	if parentLink != "" {
		if id := parentLink + "_" + name; p.robot.Link(id) == nil {
			return id
		}
	}
	for i := 2; ; i++ {
		if id := fmt.Sprintf("%s_%d", name, i); p.robot.Link(id) == nil {
			return id
		}
	}
}

// usdGeometry maps a prim type to its default geometry, per the USD
// schema defaults: unit cube of size 2, unit sphere, cylinder of radius
// 1 and height 2, capsule of radius 0.5 and height 1. The second result
// is false for prim types that do not become links.
func usdGeometry(primType string) (model.Geometry, bool) {
	switch primType {
	case "Xform", "":
		return model.Geometry{}, true
	case "Mesh":
		return model.Geometry{Shape: model.ShapeMesh}, true
	case "Cube":
		return model.Geometry{Shape: model.ShapeBox, Size: mgl64.Vec3{2, 2, 2}}, true
	case "Sphere":
		return model.Geometry{Shape: model.ShapeSphere, Radius: 1}, true
	case "Cylinder":
		return model.Geometry{Shape: model.ShapeCylinder, Radius: 1, Length: 2}, true
	case "Capsule":
		return model.Geometry{Shape: model.ShapeCapsule, Radius: 0.5, Length: 1}, true
	default:
		return model.Geometry{}, false
	}
}

// readUSDDef splits a def header into prim type and quoted name. A def
// without a quoted name is ignored.
func readUSDDef(line string) *usdPending {
	rest := strings.TrimPrefix(line, "def")
	name := quotedString(rest)
	if name == "" {
		return nil
	}
	typ := rest
	if i := strings.IndexByte(typ, '"'); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.IndexByte(typ, '('); i >= 0 {
		typ = typ[:i]
	}
	return &usdPending{primType: strings.TrimSpace(typ), name: name, ref: usdAssetRef(line)}
}

// usdAttrParts splits an attribute line at its equals sign; the
// attribute name is the last token of the left side, so type prefixes
// and qualifiers like prepend fall away.
func usdAttrParts(line string) (name, rhs string, ok bool) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	fields := strings.Fields(lhs)
	if len(fields) == 0 {
		return "", "", false
	}
	return fields[len(fields)-1], rhs, true
}

// usdFloats reads every number from a tuple or array literal.
func usdFloats(s string) []float64 {
	return parseFloats(usdValueCleaner.Replace(s))
}

var usdValueCleaner = strings.NewReplacer("(", " ", ")", " ", "[", " ", "]", " ", ",", " ")

// quotedString returns the first double-quoted substring.
func quotedString(s string) string {
	i := strings.IndexByte(s, '"')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(s[i+1:], '"')
	if j < 0 {
		return ""
	}
	return s[i+1 : i+1+j]
}

// usdAssetRef returns the first @-delimited asset path.
func usdAssetRef(s string) string {
	i := strings.IndexByte(s, '@')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(s[i+1:], '@')
	if j < 0 {
		return ""
	}
	return s[i+1 : i+1+j]
}
