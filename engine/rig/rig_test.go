package rig

import (
	"errors"
	"testing"
)

const testRig = `{
  "Version": 1,
  "Canvas": {"Width": 4, "Height": 4},
  "Parameters": [
    {"Id": "ParamAngleX", "Min": -30, "Max": 30, "Default": 0},
    {"Id": "ParamEyeLOpen", "Min": 0, "Max": 1, "Default": 1}
  ],
  "Parts": [{"Id": "PartHead", "Opacity": 1}],
  "Drawables": [
    {"Id": "Face", "Texture": 0, "Part": "PartHead", "Order": 2, "Bounds": [1, 2, 3, 4],
     "Bindings": [{"Parameter": "ParamAngleX", "X": 0.1, "Y": 0}]},
    {"Id": "Body", "Texture": 0, "Order": 1, "Bounds": [0, 0, 4, 2]}
  ]
}`

func TestParseJSON(t *testing.T) {
	r, err := ParseJSON([]byte(testRig))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if r.DrawableCount() != 2 || r.DrawableID(0) != "Face" {
		t.Fatalf("unexpected drawables: %d %q", r.DrawableCount(), r.DrawableID(0))
	}
	if got := r.Drawables()[0].ID; got != "Body" {
		t.Errorf("first drawable in draw order = %q, want Body", got)
	}
	if !r.IsHit("Face", 2, 3) || r.IsHit("Face", 0.5, 3) {
		t.Error("Face hit test mismatch before deformation")
	}

	r.Parameters().SetValue("ParamAngleX", 10, 1)
	r.Update()
	if !r.IsHit("Face", 3.5, 3) {
		t.Error("Face should have moved right by 1 unit")
	}

	r.Parts().SetOpacity("PartHead", 0)
	r.Update()
	if r.IsHit("Face", 3.5, 3) {
		t.Error("invisible drawable must not be hit")
	}
}

func TestParseJSONErrors(t *testing.T) {
	if _, err := ParseJSON(nil); !errors.Is(err, ErrEmptyRig) {
		t.Errorf("empty data err = %v, want ErrEmptyRig", err)
	}
	if _, err := ParseJSON([]byte(`{"Canvas":{"Width":0,"Height":1}}`)); err == nil {
		t.Error("expected error for zero canvas")
	}
	if _, err := ParseJSON([]byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestParameterBuffer(t *testing.T) {
	pb := NewParameterBuffer([]ParameterDefinition{
		{ID: "A", Min: -10, Max: 10, Default: 0},
		{ID: "B", Min: 0, Max: 1, Default: 1},
	})

	pb.SetValue("A", 50, 1)
	if pb.Value("A") != 10 {
		t.Errorf("A = %v, want clamped 10", pb.Value("A"))
	}
	pb.SetValue("A", 0, 0.5)
	if pb.Value("A") != 5 {
		t.Errorf("A = %v, want 5 after half-weight blend", pb.Value("A"))
	}
	pb.AddValue("A", 2, 0.5)
	if pb.Value("A") != 6 {
		t.Errorf("A = %v, want 6", pb.Value("A"))
	}
	pb.MultiplyValue("B", 0.5, 1)
	if pb.Value("B") != 0.5 {
		t.Errorf("B = %v, want 0.5", pb.Value("B"))
	}
	if pb.SetValue("missing", 1, 1) || pb.Value("missing") != 0 {
		t.Error("unknown ids must be ignored")
	}

	pb.Save()
	pb.SetValue("A", -3, 1)
	pb.Load()
	if pb.Value("A") != 6 {
		t.Errorf("Load restored %v, want 6", pb.Value("A"))
	}
	pb.Reset()
	if pb.Value("A") != 0 || pb.Value("B") != 1 {
		t.Errorf("Reset = %v", pb.Snapshot())
	}
}
