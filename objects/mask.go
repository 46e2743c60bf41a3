package objects

import (
	"image"
	"math/bits"
)

// Mask is the pixel footprint of one object, a row-major bitset positioned in
// source-image coordinates by its bounds.
type Mask struct {
	// Bounds locates the mask in source-image pixels.
	Bounds image.Rectangle

	stride int // words per row
	words  []uint64
}

// NewMask returns an empty mask covering bounds.
func NewMask(bounds image.Rectangle) *Mask {
	stride := (bounds.Dx() + 63) / 64
	return &Mask{
		Bounds: bounds,
		stride: stride,
		words:  make([]uint64, stride*bounds.Dy()),
	}
}

// Set marks the pixel at (x, y). Points outside the mask bounds are ignored,
// so callers can write clipped geometry without pre-checking.
func (m *Mask) Set(x, y int) {
	if !(image.Point{x, y}).In(m.Bounds) {
		return
	}
	dx := x - m.Bounds.Min.X
	dy := y - m.Bounds.Min.Y
	m.words[dy*m.stride+dx/64] |= 1 << uint(dx%64)
}

// SetRect marks every pixel of r that falls inside the mask bounds.
func (m *Mask) SetRect(r image.Rectangle) {
	r = r.Intersect(m.Bounds)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dy := y - m.Bounds.Min.Y
		for x := r.Min.X; x < r.Max.X; x++ {
			dx := x - m.Bounds.Min.X
			m.words[dy*m.stride+dx/64] |= 1 << uint(dx%64)
		}
	}
}

// At reports whether the pixel at (x, y) belongs to the mask. Points outside
// the bounds are not part of it.
func (m *Mask) At(x, y int) bool {
	if !(image.Point{x, y}).In(m.Bounds) {
		return false
	}
	dx := x - m.Bounds.Min.X
	dy := y - m.Bounds.Min.Y
	return m.words[dy*m.stride+dx/64]&(1<<uint(dx%64)) != 0
}

// Area counts the pixels in the mask.
func (m *Mask) Area() int {
	area := 0
	for _, w := range m.words {
		area += bits.OnesCount64(w)
	}
	return area
}

// IntersectionArea counts the pixels the two masks share.
func (m *Mask) IntersectionArea(other *Mask) int {
	common := m.Bounds.Intersect(other.Bounds)
	area := 0
	for y := common.Min.Y; y < common.Max.Y; y++ {
		for x := common.Min.X; x < common.Max.X; x++ {
			if m.At(x, y) && other.At(x, y) {
				area++
			}
		}
	}
	return area
}

// IntersectsRect reports whether any mask pixel falls inside r.
func (m *Mask) IntersectsRect(r image.Rectangle) bool {
	r = r.Intersect(m.Bounds)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.At(x, y) {
				return true
			}
		}
	}
	return false
}

// ContainedIn reports whether every mask pixel falls inside r.
func (m *Mask) ContainedIn(r image.Rectangle) bool {
	if m.Bounds.In(r) {
		return true
	}
	for y := m.Bounds.Min.Y; y < m.Bounds.Max.Y; y++ {
		for x := m.Bounds.Min.X; x < m.Bounds.Max.X; x++ {
			if m.At(x, y) && !(image.Point{x, y}).In(r) {
				return false
			}
		}
	}
	return true
}
