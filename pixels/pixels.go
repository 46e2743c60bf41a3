// Package pixels defines the pixel-source collaborator contract and the
// channel-major blocks the tile workers feed into a model.
package pixels

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/instanseg/instanseg-go/ml"
)

// ChannelSelector picks one channel of the source image by position, with an
// optional display name carried along for logging.
type ChannelSelector struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
}

// ChannelSpec is an ordered channel selection. The assembled model input has
// one plane per selector, in order.
type ChannelSpec []ChannelSelector

// RGB selects the usual three channels of a color image.
func RGB() ChannelSpec {
	return ChannelSpec{
		{Index: 0, Name: "red"},
		{Index: 1, Name: "green"},
		{Index: 2, Name: "blue"},
	}
}

// CompatibleWith checks the selection against the channel count a model
// declares. ml.AnyChannels accepts any non-empty selection.
func (cs ChannelSpec) CompatibleWith(modelChannels int) error {
	if len(cs) == 0 {
		return errors.New("channel selection is empty")
	}
	if modelChannels == ml.AnyChannels {
		return nil
	}
	if len(cs) != modelChannels {
		return errors.Errorf("model wants %d input channels but the channel selection has %d", modelChannels, len(cs))
	}
	return nil
}

// Block is a dense float32 pixel block in channel-major (CHW) order, the
// layout segmentation models consume. Bounds records which source pixels the
// block covers, at full resolution; W and H are the block's own (downsampled)
// dimensions.
type Block struct {
	Bounds   image.Rectangle
	Channels int
	W, H     int
	Data     []float32
}

// NewBlock allocates a zeroed block.
func NewBlock(bounds image.Rectangle, channels, w, h int) *Block {
	return &Block{
		Bounds:   bounds,
		Channels: channels,
		W:        w,
		H:        h,
		Data:     make([]float32, channels*w*h),
	}
}

// At returns the value of channel c at (x, y) in block coordinates.
func (b *Block) At(c, x, y int) float32 {
	return b.Data[(c*b.H+y)*b.W+x]
}

// Set writes the value of channel c at (x, y) in block coordinates.
func (b *Block) Set(c, x, y int, v float32) {
	b.Data[(c*b.H+y)*b.W+x] = v
}

// Tensor wraps the block as a (C, H, W) dense tensor sharing the block's
// backing slice.
func (b *Block) Tensor() *tensor.Dense {
	return tensor.New(tensor.WithShape(b.Channels, b.H, b.W), tensor.WithBacking(b.Data))
}

// PadBlock grows a block to at least w by h, zero-padding on the bottom and
// right, so an edge tile whose read came back short still matches the model's
// expected input size. A block already big enough comes back unchanged. The
// padded area has no source pixels behind it and Bounds is left alone.
func PadBlock(b *Block, w, h int) *Block {
	if b.W >= w && b.H >= h {
		return b
	}
	if w < b.W {
		w = b.W
	}
	if h < b.H {
		h = b.H
	}
	out := NewBlock(b.Bounds, b.Channels, w, h)
	for c := 0; c < b.Channels; c++ {
		for y := 0; y < b.H; y++ {
			src := b.Data[(c*b.H+y)*b.W:]
			dst := out.Data[(c*h+y)*w:]
			copy(dst[:b.W], src[:b.W])
		}
	}
	return out
}

// A Source supplies pixel data for rectangular areas of one large image.
// Implementations clamp requested bounds to the pixels they actually have and
// report the clamped bounds on the returned block.
type Source interface {
	// ReadRegion fetches the requested bounds at the given downsample,
	// assembling the selected channels into a block whose dimensions are the
	// downsampled size of the clamped bounds.
	ReadRegion(ctx context.Context, bounds image.Rectangle, downsample float64, channels ChannelSpec) (*Block, error)

	// Bounds reports the full extent of the source image.
	Bounds() image.Rectangle
}
