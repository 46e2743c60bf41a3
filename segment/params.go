package segment

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/instanseg/instanseg-go/objects"
)

// Params are the run parameters of one segmentation pass. Tile size, padding,
// and boundary are in model-input pixels; the downsample relates those to
// source-image pixels.
type Params struct {
	// TileSize is the full tile edge fed to the model, padding included.
	TileSize int `json:"tile_size"`
	// Padding is the margin around each tile's content area, read for model
	// context and discarded from outputs.
	Padding int `json:"padding"`
	// Boundary is the margin inside each tile's content area whose detections
	// are pruned as seam artifacts.
	Boundary int `json:"boundary"`
	// Downsample is the resolution divisor between source image and model
	// input. 1 means full resolution.
	Downsample float64 `json:"downsample"`
	// Device selects the inference device, e.g. "cpu" or "cuda:0". It is
	// passed through to the model runtime.
	Device string `json:"device"`
	// OutputChannels is how many instance-label planes of the model output to
	// decode, e.g. 1 for nuclei or 2 for nuclei and cells.
	OutputChannels int `json:"output_channels"`
	// NumPredictors bounds concurrent inference calls. Zero means one.
	NumPredictors int `json:"num_predictors"`
	// Workers bounds concurrent tile tasks in the default task runner. Zero
	// means one per CPU.
	Workers int `json:"workers"`
	// OverlapThreshold is the overlap score above which two candidates from
	// different tiles are merged. Zero means the default of 0.5.
	OverlapThreshold float64 `json:"overlap_threshold"`
	// Metric picks the overlap score; empty means intersection-over-min-area.
	Metric objects.Metric `json:"merge_metric"`
	// Kind is the object type the finished set is stored as.
	Kind objects.ObjectKind `json:"object_kind"`
	// AlignCenter centers the tile grid on the region instead of anchoring it
	// top-left.
	AlignCenter bool `json:"align_center"`
	// CropTiles shrinks edge tiles to the region instead of letting reads
	// overhang and clamp.
	CropTiles bool `json:"crop_tiles"`
	// PadToInputSize zero-pads short edge-tile reads up to TileSize.
	PadToInputSize bool `json:"pad_to_input_size"`
}

// DefaultParams returns the standard run parameters.
func DefaultParams() Params {
	return Params{
		TileSize:         512,
		Padding:          32,
		Boundary:         16,
		Downsample:       1,
		Device:           "cpu",
		OutputChannels:   1,
		NumPredictors:    1,
		Workers:          0,
		OverlapThreshold: objects.DefaultOverlapThreshold,
		Metric:           objects.MetricIoMin,
		Kind:             objects.KindDetection,
		AlignCenter:      true,
		CropTiles:        false,
		PadToInputSize:   true,
	}
}

// Validate checks the parameters for a runnable combination.
func (p Params) Validate() error {
	if p.TileSize <= 0 {
		return errors.Errorf("tile size must be positive, got %d", p.TileSize)
	}
	if p.Padding < 0 {
		return errors.Errorf("padding cannot be negative, got %d", p.Padding)
	}
	if p.Padding >= p.TileSize {
		return errors.Errorf("padding %d leaves no tile content for tile size %d", p.Padding, p.TileSize)
	}
	if p.Boundary < 0 {
		return errors.Errorf("boundary cannot be negative, got %d", p.Boundary)
	}
	if p.Downsample < 1 {
		return errors.Errorf("downsample must be at least 1, got %v", p.Downsample)
	}
	if p.OutputChannels < 1 {
		return errors.Errorf("output channels must be at least 1, got %d", p.OutputChannels)
	}
	if p.NumPredictors < 0 {
		return errors.Errorf("predictor count cannot be negative, got %d", p.NumPredictors)
	}
	if p.Workers < 0 {
		return errors.Errorf("worker count cannot be negative, got %d", p.Workers)
	}
	if p.OverlapThreshold < 0 || p.OverlapThreshold > 1 {
		return errors.Errorf("overlap threshold must be within [0, 1], got %v", p.OverlapThreshold)
	}
	if err := p.Metric.Validate(); err != nil {
		return err
	}
	if p.Kind != "" {
		if err := p.Kind.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParamsFromAttributes fills run parameters from a loosely-typed attribute
// map, as handed over by config files or RPC payloads. Unset attributes keep
// their defaults.
func ParamsFromAttributes(attrs map[string]interface{}) (Params, error) {
	p := DefaultParams()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &p})
	if err != nil {
		return Params{}, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return Params{}, errors.Wrap(err, "error decoding run parameters")
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
