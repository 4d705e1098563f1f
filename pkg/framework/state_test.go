package framework

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchemaMerge_Policies(t *testing.T) {
	sc := Schema{"items": Append, "options": Merge}
	base := NewState(map[string]any{
		"name":    "old",
		"items":   []string{"a"},
		"options": map[string]bool{"x": true},
	})

	got := sc.Merge(base, Update{
		"name":    "new",
		"items":   []string{"b", "c"},
		"options": map[string]bool{"y": true},
	})

	if got.str("name") != "new" {
		t.Errorf("name = %q, want new", got.str("name"))
	}
	items, _ := Value[[]string](got, "items")
	if diff := cmp.Diff([]string{"a", "b", "c"}, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	opts, _ := Value[map[string]bool](got, "options")
	if diff := cmp.Diff(map[string]bool{"x": true, "y": true}, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaMerge_NilKeepsOld(t *testing.T) {
	sc := Schema{"items": Append}
	base := NewState(map[string]any{"name": "kept", "items": []int{1}})
	got := sc.Merge(base, Update{"name": nil, "items": nil})

	if got.str("name") != "kept" {
		t.Errorf("name = %q, want kept", got.str("name"))
	}
	items, _ := Value[[]int](got, "items")
	if diff := cmp.Diff([]int{1}, items); diff != "" {
		t.Errorf("items mismatch:\n%s", diff)
	}
}

func TestSchemaMerge_MissingOldTakesNew(t *testing.T) {
	sc := Schema{"items": Append, "opts": Merge}
	got := sc.Merge(NewState(nil), Update{"items": []string{"a"}, "opts": map[string]int{"k": 1}})

	items, _ := Value[[]string](got, "items")
	if diff := cmp.Diff([]string{"a"}, items); diff != "" {
		t.Errorf("items mismatch:\n%s", diff)
	}
	if !got.Has("opts") {
		t.Error("opts should be set")
	}
}

func TestSchemaMerge_TypeMismatchOverrides(t *testing.T) {
	sc := Schema{"items": Append, "opts": Merge}
	base := NewState(map[string]any{"items": []string{"a"}, "opts": map[string]int{"k": 1}})
	got := sc.Merge(base, Update{"items": 42, "opts": "flat"})

	if v, _ := Value[int](got, "items"); v != 42 {
		t.Errorf("items = %v, want 42", got.fields["items"])
	}
	if got.str("opts") != "flat" {
		t.Errorf("opts = %v, want flat", got.fields["opts"])
	}
}

func TestSchemaMerge_DoesNotMutateInput(t *testing.T) {
	sc := Schema{"items": Append}
	oldItems := []string{"a"}
	oldMeta := map[string]any{"k": "v"}
	base := NewState(map[string]any{"items": oldItems, KeyMetadata: oldMeta})

	_ = sc.Merge(base, Update{"items": []string{"b"}, KeyMetadata: map[string]any{"k2": "v2"}, "extra": 1})

	if base.Has("extra") {
		t.Error("base state gained a field")
	}
	if diff := cmp.Diff([]string{"a"}, oldItems); diff != "" {
		t.Errorf("old slice mutated:\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"k": "v"}, oldMeta); diff != "" {
		t.Errorf("old metadata mutated:\n%s", diff)
	}
}

func TestSchemaMerge_SystemFieldsAlwaysMerge(t *testing.T) {
	sc := Schema{KeyMetadata: Override}
	base := NewState(map[string]any{
		KeyMetadata: map[string]any{"a": 1},
		KeyRetries:  map[string]int{"fetch": 1},
	})
	got := sc.Merge(base, Update{
		KeyMetadata: map[string]any{"b": 2},
		KeyRetries:  map[string]int{"poll": 2},
	})

	if diff := cmp.Diff(map[string]any{"a": 1, "b": 2}, got.Metadata()); diff != "" {
		t.Errorf("metadata mismatch:\n%s", diff)
	}
	if got.Retries("fetch") != 1 || got.Retries("poll") != 2 {
		t.Errorf("retries = %v", got.fields[KeyRetries])
	}
}

func TestState_Accessors(t *testing.T) {
	s := NewState(map[string]any{KeyStage: "compare", KeyTraceID: "t-1", KeyResult: 7})

	if s.Stage() != "compare" {
		t.Errorf("Stage() = %q", s.Stage())
	}
	if s.TraceID() != "t-1" {
		t.Errorf("TraceID() = %q", s.TraceID())
	}
	if s.Err() != "" {
		t.Errorf("Err() = %q, want empty", s.Err())
	}
	if s.Result() != 7 {
		t.Errorf("Result() = %v", s.Result())
	}
	if s.Metadata() == nil {
		t.Error("Metadata() must never be nil")
	}
	if _, ok := Value[string](s, KeyResult); ok {
		t.Error("Value[string] on an int field should report false")
	}
	if s.Retries("missing") != 0 {
		t.Error("Retries on empty state should be 0")
	}
}

func TestPolicy_String(t *testing.T) {
	for p, want := range map[Policy]string{Override: "override", Append: "append", Merge: "merge"} {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", p, p.String(), want)
		}
	}
}
