package repository

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// Treap index of games ordered by (end time ASC, game id ASC).
//
// In-order traversal yields games chronologically, so a window query is a
// range scan from the window start up to (excluding) its end. Priorities
// are derived from the game id hash, which keeps the tree shape
// deterministic for a given set of games.

type gameKey struct {
	end time.Time
	id  string
}

// before reports whether a sorts ahead of b.
func (a gameKey) before(b gameKey) bool {
	if !a.end.Equal(b.end) {
		return a.end.Before(b.end)
	}
	return a.id < b.id
}

type node struct {
	key   gameKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k gameKey) *node {
	if n == nil {
		return &node{key: k, prio: xxhash.Sum64String(k.id), size: 1}
	}
	if k.before(n.key) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// ascend visits keys >= lo and, when hi is non-nil, < hi in order. It stops
// when fn returns false and reports whether the walk ran to completion.
func ascend(n *node, lo gameKey, hi *gameKey, fn func(gameKey) bool) bool {
	if n == nil {
		return true
	}
	if n.key.before(lo) {
		return ascend(n.right, lo, hi, fn)
	}
	if !ascend(n.left, lo, hi, fn) {
		return false
	}
	if hi != nil && !n.key.before(*hi) {
		return false
	}
	if !fn(n.key) {
		return false
	}
	return ascend(n.right, lo, hi, fn)
}

// windowBounds converts a half-open window into index bounds. The empty id
// sorts before every real id, so lo includes games ending exactly at
// w.Start and hi excludes games ending exactly at w.End.
func windowBounds(startAt time.Time, endAt *time.Time) (gameKey, *gameKey) {
	lo := gameKey{end: startAt}
	if endAt == nil {
		return lo, nil
	}
	return lo, &gameKey{end: *endAt}
}
