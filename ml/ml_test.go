package ml

import (
	"testing"

	"go.viam.com/test"
	"gorgonia.org/tensor"
)

func TestTensorsNames(t *testing.T) {
	ts := Tensors{
		"image":  tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{0, 1})),
		"labels": tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{2, 3})),
	}
	names := ts.Names()
	test.That(t, names, test.ShouldHaveLength, 2)
	test.That(t, names, test.ShouldContain, "image")
	test.That(t, names, test.ShouldContain, "labels")
}

func TestToFloat64Slice(t *testing.T) {
	got, err := ToFloat64Slice([]float32{1.5, 2.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []float64{1.5, 2.5})

	got, err = ToFloat64Slice([]uint8{0, 128, 255})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []float64{0, 128, 255})

	got, err = ToFloat64Slice([]int32{-4, 9})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []float64{-4, 9})

	_, err = ToFloat64Slice("not a slice")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToFloat32Slice(t *testing.T) {
	got, err := ToFloat32Slice([]float64{0.5, 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []float32{0.5, 3})

	same := []float32{1, 2}
	got, err = ToFloat32Slice(same)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, same)
}

func TestNormalizeConfidencesPassthrough(t *testing.T) {
	in := []float64{0, 0.25, 1}
	test.That(t, NormalizeConfidences(in), test.ShouldResemble, in)
	test.That(t, NormalizeConfidences(nil), test.ShouldBeNil)
}

func TestNormalizeConfidencesLogits(t *testing.T) {
	out := NormalizeConfidences([]float64{2, -1})
	test.That(t, out, test.ShouldHaveLength, 2)
	test.That(t, out[0], test.ShouldAlmostEqual, 0.8807970779778823, 1e-9)
	test.That(t, out[1], test.ShouldAlmostEqual, 0.2689414213699951, 1e-9)
	for _, v := range out {
		test.That(t, v, test.ShouldBeBetweenOrEqual, 0, 1)
	}
}

func TestMetadataInputChannels(t *testing.T) {
	fixed := Metadata{
		Name: "nuclei",
		Inputs: []TensorInfo{{
			Name:      "input",
			Axes:      "bcyx",
			ShapeMin:  []int{1, 3, 64, 64},
			ShapeStep: []int{0, 0, 32, 32},
		}},
	}
	test.That(t, fixed.Validate(), test.ShouldBeNil)
	test.That(t, fixed.InputChannels(), test.ShouldEqual, 3)

	flexible := Metadata{
		Name: "cells",
		Inputs: []TensorInfo{{
			Name:      "input",
			Axes:      "bcyx",
			ShapeMin:  []int{1, 1, 64, 64},
			ShapeStep: []int{0, 1, 32, 32},
		}},
	}
	test.That(t, flexible.Validate(), test.ShouldBeNil)
	test.That(t, flexible.InputChannels(), test.ShouldEqual, AnyChannels)
}

func TestMetadataValidate(t *testing.T) {
	err := Metadata{Name: "m"}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no input tensors")

	err = Metadata{
		Name:   "m",
		Inputs: []TensorInfo{{Name: "input", Axes: "byx", ShapeMin: []int{1, 8, 8}, ShapeStep: []int{0, 0, 0}}},
	}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "channel axis")

	err = Metadata{}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMetadataPixelSize(t *testing.T) {
	x, y := Metadata{}.PixelSize()
	test.That(t, x, test.ShouldEqual, 1.0)
	test.That(t, y, test.ShouldEqual, 1.0)

	md := Metadata{PixelSizes: map[string]float64{"x": 0.5, "y": 0.25}}
	x, y = md.PixelSize()
	test.That(t, x, test.ShouldEqual, 0.5)
	test.That(t, y, test.ShouldEqual, 0.25)

	partial := Metadata{PixelSizes: map[string]float64{"x": 2}}
	x, y = partial.PixelSize()
	test.That(t, x, test.ShouldEqual, 2.0)
	test.That(t, y, test.ShouldEqual, 1.0)
}
