package layout

import (
	"math"
	"sort"
)

// Span is a half-open range [Start, Start+Size) of cells along the axis.
type Span struct {
	Start int
	Size  int
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.Start+s.Size
}

// Extents converts the size vector to whole cells summing to total, using
// the largest-remainder method.
func (s *Splitter) Extents(total int) []int {
	return apportion(s.sizes, total)
}

// Arrange lays out panes and handles across total cells, with each of the
// N-1 handles occupying handleSize cells. It returns the pane spans and the
// handle spans.
func (s *Splitter) Arrange(total, handleSize int) (panes, handles []Span) {
	n := len(s.sizes)
	avail := total - (n-1)*handleSize
	if avail < 0 {
		avail = 0
	}
	extents := apportion(s.sizes, avail)

	pos := 0
	for i, e := range extents {
		panes = append(panes, Span{Start: pos, Size: e})
		pos += e
		if i < n-1 {
			handles = append(handles, Span{Start: pos, Size: handleSize})
			pos += handleSize
		}
	}
	return panes, handles
}

// HandleAt returns the index of the handle under pos, or -1.
func (s *Splitter) HandleAt(pos, total, handleSize int) int {
	_, handles := s.Arrange(total, handleSize)
	for i, h := range handles {
		if h.Contains(pos) {
			return i
		}
	}
	return -1
}

func apportion(sizes []float64, total int) []int {
	out := make([]int, len(sizes))
	if total <= 0 {
		return out
	}

	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(sizes))
	assigned := 0
	for i, p := range sizes {
		exact := p * float64(total) / 100
		whole := math.Floor(exact)
		out[i] = int(whole)
		assigned += out[i]
		rems[i] = rem{idx: i, frac: exact - whole}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac > rems[b].frac
	})
	for k := 0; assigned < total; k = (k + 1) % len(rems) {
		out[rems[k].idx]++
		assigned++
	}
	return out
}
