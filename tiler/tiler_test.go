package tiler

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestNewTilerValidation(t *testing.T) {
	_, err := NewTiler(0, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "tile size")

	_, err = NewTiler(128, -1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "padding")

	_, err = NewTiler(64, 64)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no tile content")

	tlr, err := NewTiler(256, 32)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tlr, test.ShouldNotBeNil)
}

func TestRegionValidation(t *testing.T) {
	_, err := NewRegion(0, 0, 0, 100, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewRegion(0, 0, 100, 100, 0)
	test.That(t, err, test.ShouldNotBeNil)

	r, err := NewRegion(10, 20, 100, 50, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Bounds(), test.ShouldResemble, image.Rect(10, 20, 110, 70))
}

// The worked example from the processing pipeline: tile size 256 with padding
// 32 over a 512x256 region at full resolution yields a centered 2x1 grid whose
// inner areas split the width evenly, with padded bounds reaching 32px past
// each inner area and clipped at the region edges.
func TestCenteredGrid512x256(t *testing.T) {
	tlr, err := NewTiler(256, 32, WithAlignCenter(true), WithCropTiles(true))
	test.That(t, err, test.ShouldBeNil)
	region, err := NewRegion(0, 0, 512, 256, 1)
	test.That(t, err, test.ShouldBeNil)

	tiles := tlr.Tiles(region)
	test.That(t, tiles, test.ShouldHaveLength, 2)

	test.That(t, tiles[0].Inner, test.ShouldResemble, image.Rect(0, 0, 256, 256))
	test.That(t, tiles[1].Inner, test.ShouldResemble, image.Rect(256, 0, 512, 256))

	// Padded bounds extend up to 32px beyond the inner area, clipped at the
	// region edges.
	test.That(t, tiles[0].Padded, test.ShouldResemble, image.Rect(0, 0, 288, 256))
	test.That(t, tiles[1].Padded, test.ShouldResemble, image.Rect(224, 0, 512, 256))

	test.That(t, tiles[0].Padding, test.ShouldEqual, 32)
	test.That(t, tiles[0].Row, test.ShouldEqual, 0)
	test.That(t, tiles[0].Col, test.ShouldEqual, 0)
	test.That(t, tiles[1].Col, test.ShouldEqual, 1)
}

func TestCenteredGridUnclippedPadding(t *testing.T) {
	tlr, err := NewTiler(256, 32, WithCropTiles(false))
	test.That(t, err, test.ShouldBeNil)
	region, err := NewRegion(0, 0, 512, 256, 1)
	test.That(t, err, test.ShouldBeNil)

	tiles := tlr.Tiles(region)
	test.That(t, tiles, test.ShouldHaveLength, 2)
	// Without cropping the padded bounds overhang; readers clamp later.
	test.That(t, tiles[0].Padded, test.ShouldResemble, image.Rect(-32, -32, 288, 288))
}

func TestRegionSmallerThanTile(t *testing.T) {
	tlr, err := NewTiler(256, 32)
	test.That(t, err, test.ShouldBeNil)
	region, err := NewRegion(5, 7, 100, 60, 1)
	test.That(t, err, test.ShouldBeNil)

	tiles := tlr.Tiles(region)
	test.That(t, tiles, test.ShouldHaveLength, 1)
	test.That(t, tiles[0].Inner, test.ShouldResemble, region.Bounds())
	// Padding is still applied where available.
	test.That(t, tiles[0].Padded, test.ShouldResemble, region.Bounds().Inset(-32))
}

func TestAnchoredGrid(t *testing.T) {
	region, err := NewRegion(0, 0, 513, 224, 1)
	test.That(t, err, test.ShouldBeNil)

	// Cropped: the final column shrinks to the remainder.
	tlr, err := NewTiler(256, 32, WithAlignCenter(false), WithCropTiles(true))
	test.That(t, err, test.ShouldBeNil)
	tiles := tlr.Tiles(region)
	test.That(t, tiles, test.ShouldHaveLength, 3)
	test.That(t, tiles[0].Inner, test.ShouldResemble, image.Rect(0, 0, 224, 224))
	test.That(t, tiles[1].Inner, test.ShouldResemble, image.Rect(224, 0, 448, 224))
	test.That(t, tiles[2].Inner, test.ShouldResemble, image.Rect(448, 0, 513, 224))

	// Uncropped: the final column keeps its full size and overhangs.
	tlr, err = NewTiler(256, 32, WithAlignCenter(false), WithCropTiles(false))
	test.That(t, err, test.ShouldBeNil)
	tiles = tlr.Tiles(region)
	test.That(t, tiles, test.ShouldHaveLength, 3)
	test.That(t, tiles[2].Inner, test.ShouldResemble, image.Rect(448, 0, 672, 224))
}

func TestDownsampleScalesGrid(t *testing.T) {
	tlr, err := NewTiler(256, 32, WithCropTiles(true))
	test.That(t, err, test.ShouldBeNil)
	region, err := NewRegion(0, 0, 896, 448, 2)
	test.That(t, err, test.ShouldBeNil)

	// Inner size in source pixels is ceil(2*(256-32)) = 448 and the padding
	// margin ceil(2*32) = 64.
	tiles := tlr.Tiles(region)
	test.That(t, tiles, test.ShouldHaveLength, 2)
	test.That(t, tiles[0].Inner.Dx(), test.ShouldEqual, 448)
	test.That(t, tiles[0].Padding, test.ShouldEqual, 64)
}

// Inner areas must cover the region exactly once: no gaps, no double-covered
// pixels, for a spread of region sizes and both alignment policies.
func TestInnerAreasPartitionRegion(t *testing.T) {
	extents := []struct{ w, h int }{
		{512, 256}, {513, 255}, {1000, 1000}, {224, 224}, {225, 449}, {30, 2000},
	}
	for _, alignCenter := range []bool{true, false} {
		for _, e := range extents {
			tlr, err := NewTiler(256, 32, WithAlignCenter(alignCenter), WithCropTiles(true))
			test.That(t, err, test.ShouldBeNil)
			region, err := NewRegion(3, 9, e.w, e.h, 1)
			test.That(t, err, test.ShouldBeNil)

			tiles := tlr.Tiles(region)
			bounds := region.Bounds()
			for y := bounds.Min.Y; y < bounds.Max.Y; y += 7 {
				for x := bounds.Min.X; x < bounds.Max.X; x += 7 {
					pt := image.Point{x, y}
					covered := 0
					for _, tile := range tiles {
						if pt.In(tile.Inner) {
							covered++
						}
					}
					test.That(t, covered, test.ShouldEqual, 1)
				}
			}
		}
	}
}

func TestForEachTileStopsEarly(t *testing.T) {
	tlr, err := NewTiler(64, 0, WithCropTiles(true))
	test.That(t, err, test.ShouldBeNil)
	region, err := NewRegion(0, 0, 640, 640, 1)
	test.That(t, err, test.ShouldBeNil)

	seen := 0
	tlr.ForEachTile(region, func(TileSpec) bool {
		seen++
		return seen < 3
	})
	test.That(t, seen, test.ShouldEqual, 3)
}
