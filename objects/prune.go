package objects

import "image"

// PruneTileBoundary drops candidates that reach within boundary pixels of the
// edge of their originating tile's padded read area. Geometry that close to
// the read border was likely truncated by it, and the padded reads of
// neighboring tiles overlap well past the strip, so the same object is
// re-detected intact by a neighbor rather than patched together from
// fragments here. Candidates whose geometry stays clear of the strip pass
// through unchanged; the check is per candidate and commutes with tile order.
//
// Sides where the padded read runs into the image edge are exempt: nothing
// was truncated there and no neighbor exists beyond it, so objects at the
// true image border survive.
func PruneTileBoundary(cands []Candidate, boundary int, img image.Rectangle) []Candidate {
	if boundary < 0 {
		boundary = 0
	}
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Mask == nil {
			continue
		}
		safe := safeArea(c.Tile.Padded, boundary, img)
		if c.Mask.Bounds.In(safe) {
			kept = append(kept, c)
			continue
		}
		if !c.Mask.Bounds.Overlaps(safe) {
			continue
		}
		if c.Mask.ContainedIn(safe) {
			kept = append(kept, c)
		}
	}
	return kept
}

// safeArea is the rectangle a candidate must stay inside to survive pruning:
// the tile's padded read retreated by boundary on every side that stops short
// of the image edge.
func safeArea(read image.Rectangle, boundary int, img image.Rectangle) image.Rectangle {
	safe := read
	if read.Min.X > img.Min.X {
		safe.Min.X += boundary
	}
	if read.Min.Y > img.Min.Y {
		safe.Min.Y += boundary
	}
	if read.Max.X < img.Max.X {
		safe.Max.X -= boundary
	}
	if read.Max.Y < img.Max.Y {
		safe.Max.Y -= boundary
	}
	return safe
}
