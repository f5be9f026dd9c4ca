package repository

import (
	"fmt"
	"testing"
	"time"
)

func TestTreap_InOrderIsChronological(t *testing.T) {
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	var root *node
	// insert in a scrambled order
	for _, i := range []int{5, 1, 9, 3, 7, 0, 8, 2, 6, 4} {
		root = insert(root, gameKey{end: base.Add(time.Duration(i) * time.Minute), id: fmt.Sprintf("g%d", i)})
	}
	if nsize(root) != 10 {
		t.Fatalf("expected size 10, got %d", nsize(root))
	}

	var got []string
	ascend(root, gameKey{}, nil, func(k gameKey) bool {
		got = append(got, k.id)
		return true
	})
	for i, id := range got {
		if want := fmt.Sprintf("g%d", i); id != want {
			t.Errorf("position %d: expected %s, got %s", i, want, id)
		}
	}
}

func TestTreap_EqualEndTimesOrderByID(t *testing.T) {
	at := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	var root *node
	for _, id := range []string{"c", "a", "b"} {
		root = insert(root, gameKey{end: at, id: id})
	}
	var got []string
	ascend(root, gameKey{}, nil, func(k gameKey) bool {
		got = append(got, k.id)
		return true
	})
	if fmt.Sprint(got) != "[a b c]" {
		t.Errorf("expected [a b c], got %v", got)
	}
}

func TestTreap_WindowBoundsAreHalfOpen(t *testing.T) {
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	var root *node
	for i := 0; i < 6; i++ {
		root = insert(root, gameKey{end: base.Add(time.Duration(i) * time.Hour), id: fmt.Sprintf("g%d", i)})
	}

	end := base.Add(4 * time.Hour)
	lo, hi := windowBounds(base.Add(time.Hour), &end)
	var got []string
	ascend(root, lo, hi, func(k gameKey) bool {
		got = append(got, k.id)
		return true
	})
	if fmt.Sprint(got) != "[g1 g2 g3]" {
		t.Errorf("expected [g1 g2 g3], got %v", got)
	}

	lo, hi = windowBounds(base.Add(4*time.Hour), nil)
	got = nil
	ascend(root, lo, hi, func(k gameKey) bool {
		got = append(got, k.id)
		return true
	})
	if fmt.Sprint(got) != "[g4 g5]" {
		t.Errorf("expected [g4 g5], got %v", got)
	}
}

func TestTreap_AscendStopsEarly(t *testing.T) {
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	var root *node
	for i := 0; i < 50; i++ {
		root = insert(root, gameKey{end: base.Add(time.Duration(i) * time.Second), id: fmt.Sprintf("g%02d", i)})
	}
	visited := 0
	completed := ascend(root, gameKey{}, nil, func(gameKey) bool {
		visited++
		return visited < 3
	})
	if completed {
		t.Error("expected walk to report early stop")
	}
	if visited != 3 {
		t.Errorf("expected 3 visits, got %d", visited)
	}
}
