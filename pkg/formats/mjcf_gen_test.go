package formats

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/model"
	"github.com/Faultbox/robokit/pkg/spatial"
)

func TestGenerateMJCF_Structure(t *testing.T) {
	out := GenerateMJCF(createTestArm(), false)

	for _, want := range []string{
		`<mujoco model="arm">`,
		`<compiler angle="radian"/>`,
		`<body name="base_link">`,
		`<inertial pos="0 0 0" mass="1.5" fullinertia="0.01 0.01 0.02 0 0 0"/>`,
		`<geom name="base_link_visual" type="box" size="0.1 0.1 0.05" group="1" contype="0" conaffinity="0" rgba="0.2 0.2 0.2 1"/>`,
		`<body name="arm_link" pos="0 0 0.1">`,
		`<joint name="shoulder" type="hinge" axis="0 1 0" range="-1.6 1.6" limited="true" damping="0.1" armature="0.02"/>`,
		`<geom name="arm_link_collision" type="cylinder" size="0.05 0.2"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s", want)
		}
	}
	if strings.Contains(out, "<actuator>") {
		t.Error("actuator block must only appear in extended mode")
	}
}

func TestGenerateMJCF_ExtendedActuators(t *testing.T) {
	out := GenerateMJCF(createTestArm(), true)

	if !strings.Contains(out, "<actuator>") {
		t.Fatal("extended output missing actuator block")
	}
	if !strings.Contains(out, `<motor name="dxl_64" joint="shoulder" gear="-1"/>`) {
		t.Error("motor element not written from hardware metadata")
	}
}

func TestGenerateMJCF_FixedJointNests(t *testing.T) {
	r := model.NewRobot("welded")
	r.AddLink(&model.Link{ID: "a", Name: "a"})
	r.AddLink(&model.Link{ID: "b", Name: "b"})
	r.AddJoint(&model.Joint{
		ID: "b_fixed", Name: "b_fixed", Type: model.JointFixed,
		Parent: "a", Child: "b",
		Origin: spatial.Pose{XYZ: mgl64.Vec3{0, 0, 0.5}},
	})
	r.Root = "a"

	out := GenerateMJCF(r, false)

	if !strings.Contains(out, `<body name="b" pos="0 0 0.5">`) {
		t.Error("fixed joint should become plain body nesting with the joint origin as body pos")
	}
	if strings.Contains(out, "<joint") || strings.Contains(out, "<freejoint") {
		t.Error("fixed joint must not produce a joint element")
	}
}

func TestGenerateMJCF_FloatingJoint(t *testing.T) {
	r := model.NewRobot("drone")
	r.AddLink(&model.Link{ID: "world", Name: "world", Synthesized: true})
	r.AddLink(&model.Link{ID: "hull", Name: "hull"})
	r.AddJoint(&model.Joint{ID: "hull_float", Name: "hull_float", Type: model.JointFloating, Parent: "world", Child: "hull"})
	r.Root = "world"

	out := GenerateMJCF(r, false)

	if !strings.Contains(out, `<freejoint name="hull_float"/>`) {
		t.Error("floating joint should become a freejoint")
	}
}

func TestGenerateMJCF_PlanarComposite(t *testing.T) {
	r := model.NewRobot("slider")
	r.AddLink(&model.Link{ID: "base", Name: "base"})
	r.AddLink(&model.Link{ID: "pad", Name: "pad"})
	r.AddJoint(&model.Joint{
		ID: "pad_joint", Name: "pad_joint", Type: model.JointPlanar,
		Parent: "base", Child: "pad", Axis: mgl64.Vec3{0, 0, 1},
	})
	r.Root = "base"

	out := GenerateMJCF(r, false)

	for _, want := range []string{
		`<joint name="pad_joint_x" type="slide" axis="0 1 0"/>`,
		`<joint name="pad_joint_y" type="slide" axis="-1 0 0"/>`,
		`<joint name="pad_joint" type="hinge" axis="0 0 1"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("planar composite missing %s", want)
		}
	}
}

func TestGenerateMJCF_SplitGeomsFoldBack(t *testing.T) {
	r := createTestArm()
	if _, err := r.SplitCollision("arm_link", model.Geometry{}, model.Geometry{Shape: model.ShapeSphere, Radius: 0.1}, 1); err != nil {
		t.Fatalf("SplitCollision failed: %v", err)
	}

	out := GenerateMJCF(r, false)

	if strings.Contains(out, `<body name="arm_link_collision_1"`) {
		t.Error("collision split should fold back into the parent body")
	}
	if !strings.Contains(out, `<geom name="arm_link_collision_1_collision" type="sphere" size="0.1"/>`) {
		t.Error("folded split should appear as an inline geom")
	}
}

func TestGenerateMJCF_WorldRootUnfolds(t *testing.T) {
	r := model.NewRobot("scene")
	r.AddLink(&model.Link{ID: "world", Name: "world", Synthesized: true})
	r.AddLink(&model.Link{ID: "table", Name: "table", Collision: model.Geometry{Shape: model.ShapeBox, Size: mgl64.Vec3{1, 1, 0.1}}})
	r.AddJoint(&model.Joint{
		ID: "table_fixed", Name: "table_fixed", Type: model.JointFixed,
		Parent: "world", Child: "table",
		Origin:      spatial.Pose{XYZ: mgl64.Vec3{1, 0, 0}},
		Synthesized: true,
	})
	r.Root = "world"

	out := GenerateMJCF(r, false)

	if strings.Contains(out, `<body name="world"`) {
		t.Error("world root should unfold into the worldbody, not become a body")
	}
	if !strings.Contains(out, `<body name="table" pos="1 0 0">`) {
		t.Error("children of world should become top-level bodies")
	}
}

func TestGenerateMJCF_MeshAssets(t *testing.T) {
	r := model.NewRobot("m")
	small := model.Geometry{Shape: model.ShapeMesh, MeshPath: "meshes/part.stl", MeshScale: mgl64.Vec3{0.001, 0.001, 0.001}}
	r.AddLink(&model.Link{ID: "a", Name: "a", Visual: small, Collision: small})
	r.AddLink(&model.Link{
		ID: "b", Name: "b",
		Visual: model.Geometry{Shape: model.ShapeMesh, MeshPath: "meshes/part.stl", MeshScale: mgl64.Vec3{1, 1, 1}},
	})
	r.Root = "a"

	out := GenerateMJCF(r, false)

	if n := strings.Count(out, `<mesh name="part" file="meshes/part.stl" scale="0.001 0.001 0.001"/>`); n != 1 {
		t.Errorf("expected one scaled asset entry, got %d", n)
	}
	if !strings.Contains(out, `<mesh name="part_2" file="meshes/part.stl"/>`) {
		t.Error("same file at unit scale should become a second asset without a scale attribute")
	}
	if !strings.Contains(out, `type="mesh" mesh="part"`) {
		t.Error("geom should reference the asset by name")
	}
}

func TestGenerateMJCF_OrphanLinkBecomesTopBody(t *testing.T) {
	r := createTestArm()
	r.AddLink(&model.Link{ID: "loose", Name: "loose", Collision: model.Geometry{Shape: model.ShapeSphere, Radius: 0.2}})

	out := GenerateMJCF(r, false)

	if !strings.Contains(out, `<body name="loose">`) {
		t.Error("parentless link should still be written as a top-level body")
	}
}
