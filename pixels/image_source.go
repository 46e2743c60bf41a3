package pixels

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageSource serves region reads from an in-memory image, for tests and the
// demo binary. Channel indices 0 to 2 select red, green, and blue; values are
// scaled to [0, 1].
type ImageSource struct {
	img image.Image
}

// NewImageSource wraps an image as a pixel source.
func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

// Bounds reports the extent of the wrapped image.
func (s *ImageSource) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// ReadRegion crops the requested bounds out of the image, applies the
// downsample with a box filter, and assembles the selected channels into a
// channel-major block.
func (s *ImageSource) ReadRegion(
	ctx context.Context,
	bounds image.Rectangle,
	downsample float64,
	channels ChannelSpec,
) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if downsample < 1 {
		return nil, errors.Errorf("downsample must be at least 1, got %v", downsample)
	}
	if len(channels) == 0 {
		return nil, errors.New("channel selection is empty")
	}
	for _, sel := range channels {
		if sel.Index < 0 || sel.Index > 2 {
			return nil, errors.Errorf("channel index %d out of range for an RGB image", sel.Index)
		}
	}

	clamped := bounds.Intersect(s.img.Bounds())
	if clamped.Empty() {
		return nil, errors.Errorf("read bounds %v fall outside the image %v", bounds, s.img.Bounds())
	}

	cropped := imaging.Crop(s.img, clamped)
	w := clamped.Dx()
	h := clamped.Dy()
	if downsample != 1 {
		w = scaledDim(clamped.Dx(), downsample)
		h = scaledDim(clamped.Dy(), downsample)
		cropped = imaging.Resize(cropped, w, h, imaging.Box)
	}

	block := NewBlock(clamped, len(channels), w, h)
	for ci, sel := range channels {
		for y := 0; y < h; y++ {
			row := cropped.Pix[y*cropped.Stride:]
			for x := 0; x < w; x++ {
				block.Set(ci, x, y, float32(row[x*4+sel.Index])/255)
			}
		}
	}
	return block, nil
}

func scaledDim(d int, downsample float64) int {
	scaled := int(math.Round(float64(d) / downsample))
	if scaled < 1 {
		return 1
	}
	return scaled
}
