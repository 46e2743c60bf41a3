// Package segment runs a learned instance-segmentation model over arbitrarily
// large images. It decomposes a region into overlapping tiles, feeds the tiles
// through a bounded pool of warm predictors, prunes the unreliable detections
// near tile seams, and merges what remains into one consistent object set for
// the whole region.
package segment

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/instanseg/instanseg-go/ml"
)

// The files that make up a model directory.
const (
	// WeightsFileName is the serialized model an inference runtime loads.
	WeightsFileName = "instanseg.pt"
	// DescriptorFileName is the JSON descriptor holding the model's tensor
	// contract and pixel-size metadata.
	DescriptorFileName = "instanseg.json"
)

// Model is a resolved on-disk model artifact: a directory holding the weights
// file and the descriptor that tells the pipeline how to talk to it.
type Model struct {
	path string
	meta ml.Metadata
}

// IsValidModel reports whether path looks like a model directory, meaning a
// folder containing the weights file and its descriptor. Neither file's
// contents are checked.
func IsValidModel(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(path, WeightsFileName)); err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(path, DescriptorFileName)); err != nil {
		return false
	}
	return true
}

// NewModel wraps already-parsed metadata as a model handle, for runtimes that
// assemble their descriptor in code rather than loading it from a directory.
// On-disk models load with ModelFromPath.
func NewModel(path string, meta ml.Metadata) (*Model, error) {
	if meta.Name == "" {
		meta.Name = filepath.Base(path)
	}
	if err := meta.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model metadata")
	}
	return &Model{path: path, meta: meta}, nil
}

// ModelFromPath resolves a model directory into a usable handle, parsing and
// validating its descriptor. Models that cannot be resolved are fatal to any
// run that wanted them, so this is checked up front.
func ModelFromPath(path string) (*Model, error) {
	if !IsValidModel(path) {
		return nil, errors.Errorf("%s is not a model directory: want a folder holding %s and %s",
			path, WeightsFileName, DescriptorFileName)
	}
	//nolint:gosec
	descriptor, err := os.Open(filepath.Join(path, DescriptorFileName))
	if err != nil {
		return nil, errors.Wrap(err, "error opening model descriptor")
	}
	defer goutils.UncheckedErrorFunc(descriptor.Close)
	data, err := io.ReadAll(descriptor)
	if err != nil {
		return nil, errors.Wrap(err, "error reading model descriptor")
	}
	var meta ml.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "error parsing model descriptor")
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(path)
	}
	if err := meta.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid model descriptor in %s", path)
	}
	return &Model{path: path, meta: meta}, nil
}

// Name returns the model's declared name.
func (m *Model) Name() string { return m.meta.Name }

// Path returns the model directory.
func (m *Model) Path() string { return m.path }

// WeightsPath returns the weights file an inference runtime should load.
func (m *Model) WeightsPath() string { return filepath.Join(m.path, WeightsFileName) }

// Metadata returns the parsed descriptor.
func (m *Model) Metadata() ml.Metadata { return m.meta }

// InputChannels reports the channel count the model's input demands, or
// ml.AnyChannels when the channel axis is unconstrained.
func (m *Model) InputChannels() int { return m.meta.InputChannels() }

// PixelSize returns the physical pixel scale the model was trained at,
// defaulting to 1.0 per axis when the descriptor omits it.
func (m *Model) PixelSize() (x, y float64) { return m.meta.PixelSize() }

func (m *Model) String() string { return m.Name() }
