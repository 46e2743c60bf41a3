// Package tiler computes overlapping tile grids over large image regions.
//
// A grid is described in model-input pixels (tile size and padding) while the
// region being tiled lives in full-resolution source pixels at some downsample
// factor. The tiler reconciles the two: tile inner areas exactly partition the
// region, and padded bounds overlap between neighbors to give the model context
// at tile seams.
package tiler

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
)

// Region is a rectangular area of a larger image at a given downsample factor.
// It is a value type; treat it as immutable once created.
type Region struct {
	X, Y       int
	W, H       int
	Downsample float64
}

// NewRegion returns a region covering the given rectangle of the source image.
func NewRegion(x, y, w, h int, downsample float64) (Region, error) {
	r := Region{X: x, Y: y, W: w, H: h, Downsample: downsample}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks the region dimensions and downsample factor.
func (r Region) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return errors.Errorf("region dimensions must be positive, got %dx%d", r.W, r.H)
	}
	if r.Downsample <= 0 {
		return errors.Errorf("region downsample must be positive, got %v", r.Downsample)
	}
	return nil
}

// Bounds returns the region rectangle in source-image pixels.
func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// A TileSpec is one tile of a grid. Inner is the tile's content area; the union
// of inner areas across a grid covers the region exactly once. Padded is the
// inner area inflated by the padding margin and is what gets read and fed to
// the model; padded areas of adjacent tiles overlap.
type TileSpec struct {
	Inner   image.Rectangle
	Padded  image.Rectangle
	Padding int
	Row     int
	Col     int
}

func (t TileSpec) String() string {
	return fmt.Sprintf("tile(%d,%d) inner=%v padded=%v", t.Col, t.Row, t.Inner, t.Padded)
}

// A Tiler computes an overlapping tiling of a region. Tile size and padding are
// given in model-input pixels; the grid produced is in source-image pixels.
type Tiler struct {
	tileSize    int
	padding     int
	alignCenter bool
	cropTiles   bool
}

// TilerOption configures a Tiler at construction time.
type TilerOption func(*Tiler)

// WithAlignCenter centers the grid on the region instead of anchoring it at the
// top-left, splitting remainder pixels across all tiles rather than leaving an
// asymmetric sliver at the far edges.
func WithAlignCenter(align bool) TilerOption {
	return func(t *Tiler) {
		t.alignCenter = align
	}
}

// WithCropTiles controls edge handling. When true, boundary tiles are shrunk
// and padded bounds clipped so nothing extends past the region. When false,
// tiles keep their full size and may overhang; readers clamp against actual
// image bounds.
func WithCropTiles(crop bool) TilerOption {
	return func(t *Tiler) {
		t.cropTiles = crop
	}
}

// NewTiler returns a tiler producing tiles of the given size with the given
// padding margin, both in model-input pixels. The content area of each tile is
// tileSize-padding, so that after inference and boundary handling the remaining
// output exactly tiles the region.
func NewTiler(tileSize, padding int, opts ...TilerOption) (*Tiler, error) {
	if tileSize <= 0 {
		return nil, errors.Errorf("tile size must be positive, got %d", tileSize)
	}
	if padding < 0 {
		return nil, errors.Errorf("padding cannot be negative, got %d", padding)
	}
	if padding >= tileSize {
		return nil, errors.Errorf("padding %d leaves no tile content for tile size %d", padding, tileSize)
	}
	t := &Tiler{tileSize: tileSize, padding: padding, alignCenter: true}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// innerSize is the tile content size projected into source pixels.
func (t *Tiler) innerSize(downsample float64) int {
	return int(math.Ceil(downsample * float64(t.tileSize-t.padding)))
}

// paddingSize is the padding margin projected into source pixels.
func (t *Tiler) paddingSize(downsample float64) int {
	return int(math.Ceil(downsample * float64(t.padding)))
}

// ForEachTile calls fn for every tile of the grid over region, in row-major
// scan order, until fn returns false. The sequence is computed lazily; call
// again to regenerate it.
func (t *Tiler) ForEachTile(region Region, fn func(TileSpec) bool) {
	inner := t.innerSize(region.Downsample)
	pad := t.paddingSize(region.Downsample)
	bounds := region.Bounds()

	xs := t.splitAxis(bounds.Min.X, region.W, inner)
	ys := t.splitAxis(bounds.Min.Y, region.H, inner)

	for row := 0; row < len(ys)-1; row++ {
		for col := 0; col < len(xs)-1; col++ {
			innerRect := image.Rect(xs[col], ys[row], xs[col+1], ys[row+1])
			padded := innerRect.Inset(-pad)
			if t.cropTiles {
				innerRect = innerRect.Intersect(bounds)
				padded = padded.Intersect(bounds)
			}
			spec := TileSpec{
				Inner:   innerRect,
				Padded:  padded,
				Padding: pad,
				Row:     row,
				Col:     col,
			}
			if !fn(spec) {
				return
			}
		}
	}
}

// Tiles collects the full grid over region into a slice.
func (t *Tiler) Tiles(region Region) []TileSpec {
	var tiles []TileSpec
	t.ForEachTile(region, func(spec TileSpec) bool {
		tiles = append(tiles, spec)
		return true
	})
	return tiles
}

// splitAxis returns the n+1 cut positions of one grid axis starting at origin
// over the given extent, for tiles of the given nominal inner size.
func (t *Tiler) splitAxis(origin, extent, size int) []int {
	if extent <= size {
		// Region smaller than one tile: a single tile equal to the region.
		return []int{origin, origin + extent}
	}
	if t.alignCenter {
		// Round to the nearest tile count and spread the remainder across all
		// tiles, so no edge ends up with a sliver tile.
		n := int(math.Round(float64(extent) / float64(size)))
		if n < 1 {
			n = 1
		}
		base := extent / n
		rem := extent % n
		cuts := make([]int, n+1)
		cuts[0] = origin
		for i := 0; i < n; i++ {
			w := base
			if i < rem {
				w++
			}
			cuts[i+1] = cuts[i] + w
		}
		return cuts
	}
	// Anchored at the origin with uniform tiles; the final tile is shrunk when
	// cropping, otherwise it overhangs the region edge.
	n := (extent + size - 1) / size
	cuts := make([]int, n+1)
	cuts[0] = origin
	for i := 1; i <= n; i++ {
		cuts[i] = origin + i*size
	}
	if t.cropTiles && cuts[n] > origin+extent {
		cuts[n] = origin + extent
	}
	return cuts
}
