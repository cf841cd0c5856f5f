// Package layout implements an N-pane splitter with drag-resize.
//
// Pane sizes are percentages of the container along the orientation axis.
// They always sum to 100 and never drop below their configured minimums.
//
// A drag is modelled as a Gesture: an immutable snapshot of the sizes and
// the pointer coordinate taken when the drag starts. Every pointer move
// computes the next size vector from that snapshot with Resize, so moving
// the pointer back to where it started restores the original sizes.
package layout

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the tolerance used when comparing size sums.
const Epsilon = 1e-6

// DefaultMinimum is the minimum pane size used when none is configured.
const DefaultMinimum = 10.0

var (
	ErrGestureActive = errors.New("layout: gesture already active")
	ErrNoGesture     = errors.New("layout: no active gesture")
	ErrTooSmall      = errors.New("layout: minimum sizes exceed container")
	ErrBadHandle     = errors.New("layout: handle out of range")
)

// Orientation is the axis panes are laid out along.
type Orientation int

const (
	// Row places panes side by side; handles move horizontally.
	Row Orientation = iota
	// Column stacks panes; handles move vertically.
	Column
)

func (o Orientation) String() string {
	if o == Column {
		return "column"
	}
	return "row"
}

// Gesture is the snapshot taken when a drag begins.
type Gesture struct {
	Handle int
	Start  float64
	Sizes  []float64
}

// Splitter holds the size vector for a fixed number of panes.
type Splitter struct {
	orientation Orientation
	minimums    []float64
	sizes       []float64
	gesture     *Gesture
}

// New returns a Splitter for panes panes. Defaults whose length does not
// match fall back to an equal split; minimums whose length does not match
// fall back to DefaultMinimum each. Defaults are rescaled to sum to 100 and
// raised to their minimums.
func New(panes int, orientation Orientation, defaults, minimums []float64) (*Splitter, error) {
	if panes < 1 {
		return nil, fmt.Errorf("layout: need at least one pane, got %d", panes)
	}

	mins := make([]float64, panes)
	if len(minimums) == panes {
		copy(mins, minimums)
	} else {
		for i := range mins {
			mins[i] = DefaultMinimum
		}
	}
	if sum(mins) > 100+Epsilon {
		return nil, ErrTooSmall
	}

	sizes := make([]float64, panes)
	if len(defaults) == panes && sum(defaults) > 0 {
		copy(sizes, defaults)
	} else {
		for i := range sizes {
			sizes[i] = 100 / float64(panes)
		}
	}

	return &Splitter{
		orientation: orientation,
		minimums:    mins,
		sizes:       normalize(sizes, mins),
	}, nil
}

// Orientation returns the splitter's axis.
func (s *Splitter) Orientation() Orientation { return s.orientation }

// Panes returns the number of panes.
func (s *Splitter) Panes() int { return len(s.sizes) }

// Sizes returns a copy of the current size vector.
func (s *Splitter) Sizes() []float64 {
	out := make([]float64, len(s.sizes))
	copy(out, s.sizes)
	return out
}

// Minimums returns a copy of the minimum size vector.
func (s *Splitter) Minimums() []float64 {
	out := make([]float64, len(s.minimums))
	copy(out, s.minimums)
	return out
}

// Dragging reports whether a gesture is in progress.
func (s *Splitter) Dragging() bool { return s.gesture != nil }

// Begin starts a drag on handle, the boundary between pane handle and
// handle+1, with the pointer at pos.
func (s *Splitter) Begin(handle int, pos float64) error {
	if s.gesture != nil {
		return ErrGestureActive
	}
	if handle < 0 || handle >= len(s.sizes)-1 {
		return ErrBadHandle
	}
	s.gesture = &Gesture{Handle: handle, Start: pos, Sizes: s.Sizes()}
	return nil
}

// Move updates the size vector for a pointer at pos within a container of
// the given extent along the orientation axis.
func (s *Splitter) Move(pos, container float64) error {
	if s.gesture == nil {
		return ErrNoGesture
	}
	s.sizes = Resize(*s.gesture, s.minimums, pos, container)
	return nil
}

// End finishes the current gesture. Ending without a gesture is a no-op.
func (s *Splitter) End() {
	s.gesture = nil
}

// Nudge moves handle by delta percent in a single step.
func (s *Splitter) Nudge(handle int, delta float64) error {
	if err := s.Begin(handle, 0); err != nil {
		return err
	}
	defer s.End()
	return s.Move(delta, 100)
}

// Resize computes the size vector for a gesture with the pointer at pos.
// It does not modify g.
func Resize(g Gesture, minimums []float64, pos, container float64) []float64 {
	next := make([]float64, len(g.Sizes))
	copy(next, g.Sizes)
	if container <= 0 {
		return next
	}

	i, j := g.Handle, g.Handle+1
	a, b := g.Sizes[i], g.Sizes[j]
	minA, minB := minimums[i], minimums[j]

	// Both minimums binding: the container cannot honour them, so freeze.
	if minA+minB > a+b+Epsilon {
		return next
	}

	delta := (pos - g.Start) / container * 100
	delta = math.Max(delta, minA-a)
	delta = math.Min(delta, b-minB)

	next[i] = a + delta
	next[j] = b - delta

	drift := (100 - sum(next)) / 2
	next[i] += drift
	next[j] += drift
	return next
}

// normalize rescales sizes to sum to 100 and raises each to its minimum,
// taking the difference from panes that have room to give.
func normalize(sizes, mins []float64) []float64 {
	if total := sum(sizes); math.Abs(total-100) > Epsilon {
		for i := range sizes {
			sizes[i] = sizes[i] / total * 100
		}
	}

	var deficit float64
	for i := range sizes {
		if sizes[i] < mins[i] {
			deficit += mins[i] - sizes[i]
			sizes[i] = mins[i]
		}
	}
	for deficit > Epsilon {
		var slack float64
		for i := range sizes {
			slack += sizes[i] - mins[i]
		}
		if slack <= Epsilon {
			break
		}
		take := math.Min(deficit, slack)
		for i := range sizes {
			share := (sizes[i] - mins[i]) / slack * take
			sizes[i] -= share
		}
		deficit -= take
	}

	drift := 100 - sum(sizes)
	for i := range sizes {
		if sizes[i]+drift >= mins[i] {
			sizes[i] += drift
			break
		}
	}
	return sizes
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
