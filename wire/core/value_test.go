package core

import (
	"math"
	"testing"
	"time"
)

func TestObjectKeepsInsertionOrder(t *testing.T) {
	obj := NewObject(0).Set("b", 1).Set("a", 2).Set("b", 3)
	if got := obj.Keys(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("unexpected key order %v", got)
	}
	if v, _ := obj.Get("b"); v != 3 {
		t.Fatalf("expected re-set value 3, got %v", v)
	}

	obj.Delete("b")
	if obj.Has("b") || obj.Len() != 1 {
		t.Fatalf("expected b to be removed, keys %v", obj.Keys())
	}

	var zero Object
	zero.Set("x", true)
	if !zero.Has("x") {
		t.Fatalf("expected zero Object to be usable")
	}

	var nilObj *Object
	if nilObj.Len() != 0 || nilObj.Has("x") || nilObj.Keys() != nil {
		t.Fatalf("expected nil Object to read as empty")
	}
}

func TestIsDirectlyRepresentable(t *testing.T) {
	type celsius float64
	for _, v := range []any{nil, true, 1, int8(2), uint64(3), 1.5, "s", celsius(3)} {
		if !IsDirectlyRepresentable(v) {
			t.Fatalf("expected %T to be directly representable", v)
		}
	}
	for _, v := range []any{[]int{1}, map[string]int{}, struct{}{}, &struct{}{}, time.Time{}, complex(1, 2)} {
		if IsDirectlyRepresentable(v) {
			t.Fatalf("expected %T not to be directly representable", v)
		}
	}
}

func TestEncodeOrderedTree(t *testing.T) {
	tree := NewObject(4).
		Set("z", int64(1)).
		Set("a", []any{"x", nil, true}).
		Set("nan", math.NaN()).
		Set("empty", NewObject(0))

	out, err := Encode(tree, false)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	want := `{"z":1,"a":["x",null,true],"nan":"NaN","empty":{}}`
	if string(out) != want {
		t.Fatalf("unexpected encoding\n got: %s\nwant: %s", out, want)
	}

	marshalled, err := tree.MarshalJSON()
	if err != nil || string(marshalled) != want {
		t.Fatalf("MarshalJSON disagrees with Encode: %s (%v)", marshalled, err)
	}
}

func TestResultWire(t *testing.T) {
	res := Result{
		TypeName:   "scene.GameObject",
		Status:     StatusFallback,
		Value:      NewObject(1).Set("type", "scene.GameObject"),
		Serialized: []string{"name"},
		Failed:     []MemberError{{Member: "transform", Path: "transform", Kind: FailureMember, Message: "stale"}},
		PassID:     "p1",
	}
	wire := res.Wire()
	want := []string{"type", "status", "data", "serialized_members", "failed_members", "pass_id"}
	got := wire.Keys()
	if len(got) != len(want) {
		t.Fatalf("unexpected wire keys %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected wire keys %v", got)
		}
	}
	if !res.Degraded() {
		t.Fatalf("expected result with failures to be degraded")
	}

	circular := Result{TypeName: "x", Status: StatusCircular, ReferencePath: "root"}.Wire()
	if path, ok := IsCircularMarker(circular); !ok || path != "root" {
		t.Fatalf("expected circular envelope to carry the marker, got %v", circular.Keys())
	}
	if circular.Has("data") {
		t.Fatalf("circular envelope must not carry data")
	}
}
