package formats

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
)

// wheelURDF is a two-link robot with one continuous joint.
const wheelURDF = `<?xml version="1.0"?>
<robot name="cart">
  <link name="base_link">
    <visual><geometry><box size="0.4 0.3 0.1"/></geometry></visual>
  </link>
  <link name="wheel_link">
    <visual><geometry><cylinder radius="0.1" length="0.05"/></geometry></visual>
  </link>
  <joint name="wheel_joint" type="continuous">
    <origin xyz="0 0 0.1"/>
    <parent link="base_link"/>
    <child link="wheel_link"/>
    <axis xyz="0 0 1"/>
  </joint>
</robot>`

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func hasWarning(doc *Document, substr string) bool {
	for _, w := range doc.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestParseURDF_WheelExample(t *testing.T) {
	doc, err := ParseURDF([]byte(wheelURDF), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	r := doc.Robot

	if r.Name != "cart" {
		t.Errorf("expected robot name 'cart', got %q", r.Name)
	}
	if r.Root != "base_link" {
		t.Errorf("expected root 'base_link', got %q", r.Root)
	}
	j := r.Joint("wheel_joint")
	if j == nil {
		t.Fatal("joint 'wheel_joint' not found")
	}
	if j.Type != model.JointContinuous {
		t.Errorf("expected continuous joint, got %v", j.Type)
	}
	if j.Axis != (mgl64.Vec3{0, 0, 1}) {
		t.Errorf("expected axis (0 0 1), got %v", j.Axis)
	}

	if !r.SetJointValue("wheel_joint", 1.5708) {
		t.Error("first SetJointValue should report a change")
	}
	if !closeTo(j.Values[0], 1.5708) {
		t.Errorf("expected joint value 1.5708, got %v", j.Values[0])
	}
	if r.SetJointValue("wheel_joint", 1.5708) {
		t.Error("repeated SetJointValue with the same value should be a no-op")
	}

	base, ok := r.WorldTransform("base_link")
	if !ok {
		t.Fatal("WorldTransform failed for base_link")
	}
	if base != mgl64.Ident4() {
		t.Error("base_link must not move when the wheel turns")
	}
}

func TestParseURDF_MaterialPrecedence(t *testing.T) {
	// The shared material is declared after the links that reference it;
	// the gazebo override applies only where nothing else does.
	urdf := `<robot name="m">
  <link name="inline_wins">
    <visual>
      <geometry><box size="1 1 1"/></geometry>
      <material name="shared"><color rgba="1 0 0 1"/></material>
    </visual>
  </link>
  <link name="named_ref">
    <visual>
      <geometry><box size="1 1 1"/></geometry>
      <material name="shared"/>
    </visual>
  </link>
  <link name="gazebo_only">
    <visual><geometry><box size="1 1 1"/></geometry></visual>
  </link>
  <material name="shared"><color rgba="0 1 0 1"/></material>
  <gazebo reference="gazebo_only"><material>Gazebo/Blue</material></gazebo>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}

	tests := []struct {
		link     string
		expected model.Color
	}{
		{"inline_wins", model.Color{R: 1, G: 0, B: 0, A: 1}},
		{"named_ref", model.Color{R: 0, G: 1, B: 0, A: 1}},
		{"gazebo_only", model.Color{R: 0, G: 0, B: 1, A: 1}},
	}
	for _, tc := range tests {
		c := doc.Robot.Link(tc.link).Visual.Color
		if c == nil {
			t.Errorf("%s: expected a color, got nil", tc.link)
			continue
		}
		if *c != tc.expected {
			t.Errorf("%s: expected color %v, got %v", tc.link, tc.expected, *c)
		}
	}
}

func TestParseURDF_MultiCollisionSplit(t *testing.T) {
	urdf := `<robot name="r">
  <link name="trunk">
    <collision><geometry><box size="1 1 1"/></geometry></collision>
    <collision>
      <origin xyz="0 0 0.5"/>
      <geometry><sphere radius="0.2"/></geometry>
    </collision>
  </link>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	r := doc.Robot

	if len(r.Links) != 2 {
		t.Fatalf("expected 2 links after split, got %d", len(r.Links))
	}
	split := r.Link("trunk_collision_1")
	if split == nil {
		t.Fatal("link 'trunk_collision_1' not found")
	}
	if !split.Synthesized {
		t.Error("split link should be marked synthesized")
	}
	if split.Inertial.Mass != 0 {
		t.Errorf("split link should be massless, got mass %v", split.Inertial.Mass)
	}
	if split.Collision.Shape != model.ShapeSphere {
		t.Errorf("expected sphere collision, got %v", split.Collision.Shape)
	}
	if split.Collision.Origin.XYZ != (mgl64.Vec3{0, 0, 0.5}) {
		t.Errorf("expected collision origin (0 0 0.5), got %v", split.Collision.Origin.XYZ)
	}

	j := r.Joint("trunk_collision_1_joint")
	if j == nil {
		t.Fatal("joint 'trunk_collision_1_joint' not found")
	}
	if j.Type != model.JointFixed || !j.Synthesized {
		t.Errorf("expected synthesized fixed joint, got type %v synthesized %v", j.Type, j.Synthesized)
	}
	if j.Parent != "trunk" || j.Child != "trunk_collision_1" {
		t.Errorf("expected trunk -> trunk_collision_1, got %s -> %s", j.Parent, j.Child)
	}
}

func TestParseURDF_MimicPropagation(t *testing.T) {
	urdf := `<robot name="gripper">
  <link name="base"/>
  <link name="left"/>
  <link name="right"/>
  <joint name="left_joint" type="revolute">
    <parent link="base"/>
    <child link="left"/>
    <axis xyz="0 0 1"/>
    <limit lower="-3.14" upper="3.14" effort="10" velocity="1"/>
  </joint>
  <joint name="right_joint" type="revolute">
    <parent link="base"/>
    <child link="right"/>
    <axis xyz="0 0 1"/>
    <limit lower="-3.14" upper="3.14" effort="10" velocity="1"/>
    <mimic joint="left_joint" multiplier="2" offset="0.1"/>
  </joint>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	r := doc.Robot

	if !r.SetJointValue("left_joint", 0.5) {
		t.Fatal("SetJointValue reported no change")
	}
	got := r.Joint("right_joint").Values[0]
	if !closeTo(got, 0.5*2+0.1) {
		t.Errorf("expected mimic value 1.1, got %v", got)
	}
}

func TestParseURDF_MimicCycle(t *testing.T) {
	urdf := `<robot name="r">
  <link name="base"/>
  <link name="a"/><link name="b"/><link name="c"/>
  <joint name="ja" type="revolute">
    <parent link="base"/><child link="a"/>
    <mimic joint="jb"/>
  </joint>
  <joint name="jb" type="revolute">
    <parent link="base"/><child link="b"/>
    <mimic joint="jc"/>
  </joint>
  <joint name="jc" type="revolute">
    <parent link="base"/><child link="c"/>
    <mimic joint="ja"/>
  </joint>
</robot>`

	_, err := ParseURDF([]byte(urdf), nil)
	if !errors.Is(err, model.ErrMimicCycle) {
		t.Errorf("expected ErrMimicCycle, got %v", err)
	}
}

func TestParseURDF_OrphanJointKept(t *testing.T) {
	urdf := `<robot name="r">
  <link name="base"/>
  <joint name="ghost_joint" type="fixed">
    <parent link="base"/>
    <child link="phantom"/>
  </joint>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	r := doc.Robot

	if r.Joint("ghost_joint") == nil {
		t.Error("orphan joint should be kept in the document")
	}
	if len(r.ChildJoints("base")) != 0 {
		t.Error("orphan joint must not wire into the tree")
	}
	if !hasWarning(doc, "phantom") {
		t.Errorf("expected a warning about the missing link, got %v", doc.Warnings)
	}
	if r.Root != "base" {
		t.Errorf("expected root 'base', got %q", r.Root)
	}
}

func TestParseURDF_FallbackRoot(t *testing.T) {
	// Every link is some joint's child, so no link qualifies as root.
	urdf := `<robot name="loop">
  <link name="a"/>
  <link name="b"/>
  <joint name="j1" type="fixed"><parent link="a"/><child link="b"/></joint>
  <joint name="j2" type="fixed"><parent link="b"/><child link="a"/></joint>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	if doc.Robot.Root != "a" {
		t.Errorf("expected fallback root 'a', got %q", doc.Robot.Root)
	}
	if !hasWarning(doc, "no link qualifies as root") {
		t.Errorf("expected fallback root warning, got %v", doc.Warnings)
	}
}

func TestParseURDF_MissingAttributes(t *testing.T) {
	tests := []struct {
		name string
		urdf string
	}{
		{"link name", `<robot name="r"><link/></robot>`},
		{"joint name", `<robot name="r"><link name="a"/><joint type="fixed"/></robot>`},
		{"joint type", `<robot name="r"><link name="a"/><joint name="j"/></robot>`},
	}

	for _, tc := range tests {
		_, err := ParseURDF([]byte(tc.urdf), nil)
		if !errors.Is(err, ErrMissingAttribute) {
			t.Errorf("%s: expected ErrMissingAttribute, got %v", tc.name, err)
		}
	}
}

func TestParseURDF_WrongRootElement(t *testing.T) {
	_, err := ParseURDF([]byte(`<notrobot/>`), nil)
	if !errors.Is(err, ErrMissingRoot) {
		t.Errorf("expected ErrMissingRoot, got %v", err)
	}
}

func TestParseURDF_MeshScale(t *testing.T) {
	urdf := `<robot name="r">
  <link name="uniform">
    <visual><geometry><mesh filename="a.stl" scale="2"/></geometry></visual>
  </link>
  <link name="vector">
    <visual><geometry><mesh filename="b.stl" scale="1 2 3"/></geometry></visual>
  </link>
  <link name="default">
    <visual><geometry><mesh filename="c.stl"/></geometry></visual>
  </link>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}

	tests := []struct {
		link     string
		expected mgl64.Vec3
	}{
		{"uniform", mgl64.Vec3{2, 2, 2}},
		{"vector", mgl64.Vec3{1, 2, 3}},
		{"default", mgl64.Vec3{1, 1, 1}},
	}
	for _, tc := range tests {
		got := doc.Robot.Link(tc.link).Visual.MeshScale
		if got != tc.expected {
			t.Errorf("%s: expected scale %v, got %v", tc.link, tc.expected, got)
		}
	}
}

func TestParseURDF_HardwareBlock(t *testing.T) {
	urdf := `<robot name="r">
  <link name="base"/>
  <link name="arm"/>
  <joint name="shoulder" type="revolute">
    <parent link="base"/>
    <child link="arm"/>
    <hardware>
      <motor type="dynamixel" id="3" direction="-1"/>
      <armature value="0.02"/>
    </hardware>
  </joint>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}

	h := doc.Robot.Joint("shoulder").Hardware
	if h == nil {
		t.Fatal("expected hardware block, got nil")
	}
	expected := model.Hardware{MotorType: "dynamixel", MotorID: 3, Direction: -1, Armature: 0.02}
	if *h != expected {
		t.Errorf("expected hardware %+v, got %+v", expected, *h)
	}
}

func TestParseURDF_UnknownJointType(t *testing.T) {
	urdf := `<robot name="r">
  <link name="a"/><link name="b"/>
  <joint name="j" type="helical"><parent link="a"/><child link="b"/></joint>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	if doc.Robot.Joint("j").Type != model.JointFixed {
		t.Errorf("unknown joint type should fall back to fixed, got %v", doc.Robot.Joint("j").Type)
	}
	if !hasWarning(doc, "helical") {
		t.Errorf("expected a warning naming the unknown type, got %v", doc.Warnings)
	}
}

func TestParseURDF_JointOriginAndAxis(t *testing.T) {
	urdf := `<robot name="r">
  <link name="a"/><link name="b"/>
  <joint name="j" type="prismatic">
    <origin xyz="0.1 0.2 0.3" rpy="0 0 1.5707963"/>
    <parent link="a"/>
    <child link="b"/>
    <axis xyz="0 0 2"/>
  </joint>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	j := doc.Robot.Joint("j")

	if j.Origin.XYZ != (mgl64.Vec3{0.1, 0.2, 0.3}) {
		t.Errorf("expected origin (0.1 0.2 0.3), got %v", j.Origin.XYZ)
	}
	if !closeTo(j.Origin.RPY.Yaw, 1.5707963) {
		t.Errorf("expected yaw 1.5707963, got %v", j.Origin.RPY.Yaw)
	}
	if j.Axis != (mgl64.Vec3{0, 0, 1}) {
		t.Errorf("expected normalized axis (0 0 1), got %v", j.Axis)
	}
	if j.Position != j.Origin.XYZ {
		t.Errorf("live frame should start at the origin, got %v", j.Position)
	}
}

func TestParseURDF_InertialTensor(t *testing.T) {
	urdf := `<robot name="r">
  <link name="base">
    <inertial>
      <origin xyz="0 0 0.05"/>
      <mass value="2.5"/>
      <inertia ixx="0.1" ixy="0.01" ixz="0.02" iyy="0.2" iyz="0.03" izz="0.3"/>
    </inertial>
  </link>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	in := doc.Robot.Link("base").Inertial

	if in.Mass != 2.5 {
		t.Errorf("expected mass 2.5, got %v", in.Mass)
	}
	if in.Origin.XYZ != (mgl64.Vec3{0, 0, 0.05}) {
		t.Errorf("expected inertial origin (0 0 0.05), got %v", in.Origin.XYZ)
	}
	tensor := in.Inertia
	if tensor.XX != 0.1 || tensor.XY != 0.01 || tensor.XZ != 0.02 ||
		tensor.YY != 0.2 || tensor.YZ != 0.03 || tensor.ZZ != 0.3 {
		t.Errorf("tensor components wrong: %+v", tensor)
	}
}

func TestParseURDF_ExtraVisualIgnored(t *testing.T) {
	urdf := `<robot name="r">
  <link name="base">
    <visual><geometry><box size="1 1 1"/></geometry></visual>
    <visual><geometry><sphere radius="0.5"/></geometry></visual>
  </link>
</robot>`

	doc, err := ParseURDF([]byte(urdf), nil)
	if err != nil {
		t.Fatalf("ParseURDF failed: %v", err)
	}
	if doc.Robot.Link("base").Visual.Shape != model.ShapeBox {
		t.Errorf("expected first visual kept, got %v", doc.Robot.Link("base").Visual.Shape)
	}
	if !hasWarning(doc, "extra visual") {
		t.Errorf("expected extra-visual warning, got %v", doc.Warnings)
	}
}

func TestParseURDF_DuplicateLinkName(t *testing.T) {
	urdf := `<robot name="r"><link name="base"/><link name="base"/></robot>`

	_, err := ParseURDF([]byte(urdf), nil)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for duplicate link, got %v", err)
	}
}
