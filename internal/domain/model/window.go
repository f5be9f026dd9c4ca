package model

import "time"

// Window is the half-open interval [Start, End). A nil End is unbounded.
type Window struct {
	Start time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	return w.End == nil || t.Before(*w.End)
}

// Bounded reports whether the window has an end.
func (w Window) Bounded() bool {
	return w.End != nil
}
