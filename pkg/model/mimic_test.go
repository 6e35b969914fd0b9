package model

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// buildGripper wires finger_joint to mimic drive_joint with the given
// multiplier and offset.
func buildGripper(t *testing.T, multiplier, offset float64) *Robot {
	t.Helper()
	r := NewRobot("gripper")
	for _, id := range []string{"palm", "drive", "finger"} {
		r.AddLink(&Link{ID: id, Name: id})
	}
	r.AddJoint(&Joint{
		ID: "drive_joint", Type: JointRevolute,
		Parent: "palm", Child: "drive",
		Axis:  mgl64.Vec3{0, 0, 1},
		Limit: Limit{Lower: -10, Upper: 10},
	})
	r.AddJoint(&Joint{
		ID: "finger_joint", Type: JointRevolute,
		Parent: "palm", Child: "finger",
		Axis:  mgl64.Vec3{0, 0, 1},
		Limit: Limit{Lower: -10, Upper: 10},
		Mimic: &Mimic{Joint: "drive_joint", Multiplier: multiplier, Offset: offset},
	})
	if err := r.WireMimics(); err != nil {
		t.Fatalf("WireMimics: %v", err)
	}
	return r
}

func TestMimicPropagation(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		offset     float64
		value      float64
		want       float64
	}{
		{"identity", 1, 0, 0.7, 0.7},
		{"scaled", 2, 0, 0.5, 1.0},
		{"scaled with offset", 2, 0.5, 1.0, 2.5},
		{"inverted", -1, 0, 0.3, -0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buildGripper(t, tt.multiplier, tt.offset)
			r.SetJointValue("drive_joint", tt.value)
			got := r.Joint("finger_joint").Values[0]
			if !approx(got, tt.want) {
				t.Fatalf("finger value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMimicClampsPerOwnLimits(t *testing.T) {
	r := buildGripper(t, 4, 0)
	r.Joint("finger_joint").Limit = Limit{Lower: -1, Upper: 1}
	r.SetJointValue("drive_joint", 2)
	if got := r.Joint("finger_joint").Values[0]; !approx(got, 1) {
		t.Fatalf("finger value = %v, want clamp at 1", got)
	}
}

func TestMimicChain(t *testing.T) {
	r := NewRobot("chain")
	for _, id := range []string{"l0", "l1", "l2", "l3"} {
		r.AddLink(&Link{ID: id})
	}
	r.AddJoint(&Joint{ID: "a", Type: JointContinuous, Parent: "l0", Child: "l1", Axis: mgl64.Vec3{0, 0, 1}})
	r.AddJoint(&Joint{
		ID: "b", Type: JointContinuous, Parent: "l0", Child: "l2", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "a", Multiplier: 2},
	})
	r.AddJoint(&Joint{
		ID: "c", Type: JointContinuous, Parent: "l0", Child: "l3", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "b", Multiplier: 3, Offset: 1},
	})
	if err := r.WireMimics(); err != nil {
		t.Fatalf("WireMimics: %v", err)
	}

	r.SetJointValue("a", 0.5)
	if got := r.Joint("b").Values[0]; !approx(got, 1.0) {
		t.Fatalf("b = %v, want 1.0", got)
	}
	// c sees b's transformed value, scaled again through its own mimic.
	if got := r.Joint("c").Values[0]; !approx(got, 4.0) {
		t.Fatalf("c = %v, want 4.0", got)
	}
}

func TestMimicCycleDetected(t *testing.T) {
	r := NewRobot("cycle")
	for _, id := range []string{"l0", "la", "lb", "lc"} {
		r.AddLink(&Link{ID: id})
	}
	r.AddJoint(&Joint{
		ID: "A", Type: JointContinuous, Parent: "l0", Child: "la", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "B", Multiplier: 1},
	})
	r.AddJoint(&Joint{
		ID: "B", Type: JointContinuous, Parent: "l0", Child: "lb", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "C", Multiplier: 1},
	})
	r.AddJoint(&Joint{
		ID: "C", Type: JointContinuous, Parent: "l0", Child: "lc", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "A", Multiplier: 1},
	})
	err := r.WireMimics()
	if !errors.Is(err, ErrMimicCycle) {
		t.Fatalf("err = %v, want ErrMimicCycle", err)
	}
}

func TestMimicSelfCycleDetected(t *testing.T) {
	r := NewRobot("self")
	r.AddLink(&Link{ID: "l0"})
	r.AddLink(&Link{ID: "l1"})
	r.AddJoint(&Joint{
		ID: "j", Type: JointContinuous, Parent: "l0", Child: "l1", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "j", Multiplier: 1},
	})
	if err := r.WireMimics(); !errors.Is(err, ErrMimicCycle) {
		t.Fatalf("err = %v, want ErrMimicCycle", err)
	}
}

func TestMimicDanglingTargetIgnored(t *testing.T) {
	r := NewRobot("dangling")
	r.AddLink(&Link{ID: "l0"})
	r.AddLink(&Link{ID: "l1"})
	r.AddJoint(&Joint{
		ID: "j", Type: JointContinuous, Parent: "l0", Child: "l1", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "ghost", Multiplier: 2},
	})
	if err := r.WireMimics(); err != nil {
		t.Fatalf("WireMimics: %v", err)
	}
	r.SetJointValue("j", 1)
	if got := r.Joint("j").Values[0]; !approx(got, 1) {
		t.Fatalf("value = %v, want direct set to win", got)
	}
}

func TestFixedMimicTargetStillPropagates(t *testing.T) {
	r := NewRobot("fixedtarget")
	for _, id := range []string{"l0", "l1", "l2"} {
		r.AddLink(&Link{ID: id})
	}
	r.AddJoint(&Joint{ID: "anchor", Type: JointFixed, Parent: "l0", Child: "l1"})
	r.AddJoint(&Joint{
		ID: "follower", Type: JointContinuous, Parent: "l0", Child: "l2", Axis: mgl64.Vec3{0, 0, 1},
		Mimic: &Mimic{Joint: "anchor", Multiplier: 1, Offset: 0.25},
	})
	if err := r.WireMimics(); err != nil {
		t.Fatalf("WireMimics: %v", err)
	}

	if !r.SetJointValue("anchor", 1) {
		t.Fatal("propagation through a fixed target should change the follower")
	}
	if got := r.Joint("follower").Values[0]; !approx(got, 1.25) {
		t.Fatalf("follower = %v, want 1.25", got)
	}
	if got := r.Joint("anchor").Values[0]; got != 0 {
		t.Fatalf("fixed joint stored a value: %v", got)
	}
}

func TestMimicNaNStaysNaN(t *testing.T) {
	r := buildGripper(t, 2, 0.5)
	r.SetJointValue("drive_joint", 1)
	r.SetJointValue("drive_joint", math.NaN())
	// NaN scales to NaN, so the follower keeps its previous value too.
	if got := r.Joint("finger_joint").Values[0]; !approx(got, 2.5) {
		t.Fatalf("finger = %v, want 2.5", got)
	}
}
