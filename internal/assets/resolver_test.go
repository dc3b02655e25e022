package assets

import (
	"context"
	"errors"
	"testing"
)

func existing(paths ...string) ExistsFunc {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(_ context.Context, p string) (bool, error) {
		return set[p], nil
	}
}

func TestResolve_OwnerKeepsName(t *testing.T) {
	ctx := context.Background()
	exists := existing("input/input.png")

	a := Resolve(ctx, "a", "input", []string{"input.png"}, map[string]bool{"input.png": true}, exists)
	if got := a.Actual("input.png"); got != "input.png" {
		t.Errorf("owner resolved to %q, want input.png", got)
	}

	b := Resolve(ctx, "b", "input", []string{"input.png"}, nil, exists)
	if got := b.Actual("input.png"); got != "b_input.png" {
		t.Errorf("non-owner resolved to %q, want b_input.png", got)
	}
	if !b.Renamed() || a.Renamed() {
		t.Error("Renamed flags are wrong")
	}
}

func TestResolve_AbsentKeepsName(t *testing.T) {
	res := Resolve(context.Background(), "b", "input", []string{"new.mp4"}, nil, existing())
	if got := res.Actual("new.mp4"); got != "new.mp4" {
		t.Errorf("got %q, want new.mp4", got)
	}
}

func TestResolve_LookupErrorPrefixes(t *testing.T) {
	failing := func(context.Context, string) (bool, error) { return false, errors.New("boom") }
	res := Resolve(context.Background(), "t", "input", []string{"x.png"}, nil, failing)
	if got := res.Actual("x.png"); got != "t_x.png" {
		t.Errorf("got %q, want t_x.png", got)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", res.Warnings)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	exists := existing("input/a.png")
	first := Resolve(context.Background(), "t", "input", []string{"a.png", "b.png"}, nil, exists)
	second := Resolve(context.Background(), "t", "input", []string{"a.png", "b.png"}, nil, exists)
	for k, v := range first.Mapping {
		if second.Mapping[k] != v {
			t.Errorf("%s: %s vs %s", k, v, second.Mapping[k])
		}
	}
}

func TestResolve_ReportsCollision(t *testing.T) {
	// t_a.png is free, but a.png is taken and gets renamed onto it.
	exists := existing("input/a.png")
	res := Resolve(context.Background(), "t", "input", []string{"a.png", "t_a.png"}, nil, exists)
	if res.Actual("a.png") != "t_a.png" || res.Actual("t_a.png") != "t_a.png" {
		t.Fatalf("mapping = %v", res.Mapping)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one collision", res.Warnings)
	}
}

func TestOldName(t *testing.T) {
	owned := map[string]bool{"old.png": true}
	if got := OldName("t", "old.png", owned); got != "old.png" {
		t.Errorf("owned old name = %q", got)
	}
	if got := OldName("t", "other.png", owned); got != "t_other.png" {
		t.Errorf("unowned old name = %q", got)
	}
}
