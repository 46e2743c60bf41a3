// Package ml holds the tensor primitives and model metadata shared by the
// inference pipeline.
package ml

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

// Tensors is the input and output map of named tensors fed into a predictor or
// produced by one.
type Tensors map[string]*tensor.Dense

// Names returns the tensor names in the map, in no particular order.
func (ts Tensors) Names() []string {
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}
	return names
}

// number covers the numeric element types model runtimes hand back.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

// ToFloat64Slice converts the backing data of a tensor into a []float64,
// whatever numeric type the runtime produced.
func ToFloat64Slice(data interface{}) ([]float64, error) {
	switch v := data.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int8:
		return convertNumberSlice[int8, float64](v), nil
	case []int16:
		return convertNumberSlice[int16, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	case []uint32:
		return convertNumberSlice[uint32, float64](v), nil
	case []uint64:
		return convertNumberSlice[uint64, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", data)
	}
}

// ToFloat32Slice converts the backing data of a tensor into a []float32.
func ToFloat32Slice(data interface{}) ([]float32, error) {
	if v, ok := data.([]float32); ok {
		return v, nil
	}
	v64, err := ToFloat64Slice(data)
	if err != nil {
		return nil, err
	}
	return convertNumberSlice[float64, float32](v64), nil
}
