package ml

import (
	"strings"

	"github.com/pkg/errors"
)

// AnyChannels marks a model whose channel axis is unconstrained, so any number
// of input channels may be fed to it.
const AnyChannels = -1

// TensorInfo describes one named input or output tensor of a model.
type TensorInfo struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	// Axes names the dimensions in order, one letter per axis, e.g. "bcyx".
	Axes string `json:"axes"`
	// ShapeMin and ShapeStep describe the legal sizes per axis: a size is
	// valid when it equals min + k*step for some k >= 0. A step of zero pins
	// the axis at its minimum.
	ShapeMin  []int `json:"shape_min"`
	ShapeStep []int `json:"shape_step"`
}

// channelAxis returns the index of the channel axis, or -1 if the tensor has
// none.
func (ti TensorInfo) channelAxis() int {
	return strings.Index(strings.ToLower(ti.Axes), "c")
}

// Metadata describes a loaded segmentation model: the tensor contract it
// exposes and the pixel scale it was trained at.
type Metadata struct {
	Name       string             `json:"name"`
	Inputs     []TensorInfo       `json:"inputs"`
	Outputs    []TensorInfo       `json:"outputs"`
	PixelSizes map[string]float64 `json:"pixel_sizes,omitempty"`
}

// Validate checks that the metadata can drive inference setup.
func (md Metadata) Validate() error {
	if md.Name == "" {
		return errors.New("model metadata needs a name")
	}
	if len(md.Inputs) == 0 {
		return errors.New("model metadata has no input tensors")
	}
	for _, in := range md.Inputs {
		ind := in.channelAxis()
		if ind < 0 {
			return errors.Errorf("input %q has no channel axis in axes %q", in.Name, in.Axes)
		}
		if ind >= len(in.ShapeMin) || ind >= len(in.ShapeStep) {
			return errors.Errorf("input %q shape range does not cover axes %q", in.Name, in.Axes)
		}
	}
	return nil
}

// InputChannels reports how many channels the first model input expects.
// AnyChannels means the channel axis may grow freely and any count works.
func (md Metadata) InputChannels() int {
	if len(md.Inputs) == 0 {
		return AnyChannels
	}
	in := md.Inputs[0]
	ind := in.channelAxis()
	if ind < 0 || ind >= len(in.ShapeMin) {
		return AnyChannels
	}
	if ind < len(in.ShapeStep) && in.ShapeStep[ind] == 1 {
		return AnyChannels
	}
	return in.ShapeMin[ind]
}

// PixelSize returns the pixel scale the model was trained at, in physical
// units per pixel. Axes the metadata omits default to 1.0.
func (md Metadata) PixelSize() (x, y float64) {
	x, y = 1.0, 1.0
	if v, ok := md.PixelSizes["x"]; ok && v > 0 {
		x = v
	}
	if v, ok := md.PixelSizes["y"]; ok && v > 0 {
		y = v
	}
	return x, y
}
