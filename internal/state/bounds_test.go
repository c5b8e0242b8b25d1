package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	pts := []Point{{X: 10, Y: 20}, {X: 30, Y: 5}, {X: -4, Y: 12}}
	r := Bounds(pts, 2)
	assert.Equal(t, Rect{X: -6, Y: 3, Width: 38, Height: 19}, r)
	assert.True(t, r.Contains(0, 10))
	assert.False(t, r.Contains(40, 10))
	assert.True(t, Bounds(nil, 5).Empty())
}

func TestSegments(t *testing.T) {
	pts := []Point{{IsNewSegment: true}, {X: 1}, {X: 5, IsNewSegment: true}, {X: 6}, {X: 7}}
	segs := Segments(pts)
	assert.Len(t, segs, 2)
	assert.Len(t, segs[0], 2)
	assert.Len(t, segs[1], 3)
	assert.Empty(t, Segments(nil))
}
