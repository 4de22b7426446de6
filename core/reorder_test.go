package core

import (
	"errors"
	"testing"

	"pkt.systems/chimerax/schema"
)

func TestReorderMovesForward(t *testing.T) {
	order := []schema.TabID{"a", "b", "c"}
	out, err := reorderIDs(order, 0, 2)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	want := []schema.TabID{"b", "c", "a"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestReorderMovesBackward(t *testing.T) {
	order := []schema.TabID{"a", "b", "c"}
	out, err := reorderIDs(order, 2, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	want := []schema.TabID{"c", "a", "b"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestReorderSamePositionReturnsCopy(t *testing.T) {
	order := []schema.TabID{"a", "b", "c"}
	out, err := reorderIDs(order, 1, 1)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if len(out) != 3 || out[0] != "a" || out[1] != "b" || out[2] != "c" {
		t.Fatalf("expected unchanged order, got %v", out)
	}
	out[0] = "x"
	if order[0] != "a" {
		t.Fatalf("expected input untouched, got %v", order)
	}
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	order := []schema.TabID{"a", "b", "c", "d"}
	if _, err := reorderIDs(order, 3, 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	want := []schema.TabID{"a", "b", "c", "d"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected input untouched, got %v", order)
		}
	}
}

func TestReorderRejectsOutOfRange(t *testing.T) {
	order := []schema.TabID{"a", "b", "c"}
	cases := []struct {
		from, to int
	}{
		{-1, 0},
		{3, 0},
		{0, -1},
		{0, 3},
	}
	for _, tc := range cases {
		if _, err := reorderIDs(order, tc.from, tc.to); !errors.Is(err, schema.ErrInvalidReorder) {
			t.Fatalf("expected ErrInvalidReorder for from=%d to=%d, got %v", tc.from, tc.to, err)
		}
	}
}

func TestReorderRejectsEmptyOrder(t *testing.T) {
	if _, err := reorderIDs(nil, 0, 0); !errors.Is(err, schema.ErrInvalidReorder) {
		t.Fatalf("expected ErrInvalidReorder, got %v", err)
	}
}
