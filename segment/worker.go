package segment

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"

	"github.com/instanseg/instanseg-go/ml"
	"github.com/instanseg/instanseg-go/ml/inference"
	"github.com/instanseg/instanseg-go/objects"
	"github.com/instanseg/instanseg-go/pixels"
	"github.com/instanseg/instanseg-go/tiler"
)

// tileWorker turns one tile into object candidates: read the padded pixels,
// borrow a predictor, decode the output planes. A worker is stateless across
// tiles; the pool is the only shared resource it touches.
type tileWorker struct {
	src      pixels.Source
	pool     *inference.Pool
	channels pixels.ChannelSpec
	region   tiler.Region
	params   Params
}

// Process runs one tile through the model. Every error it returns is
// tile-local: the orchestrator counts it and moves on to other tiles.
func (w *tileWorker) Process(ctx context.Context, tile tiler.TileSpec) ([]objects.Candidate, error) {
	block, err := w.src.ReadRegion(ctx, tile.Padded, w.region.Downsample, w.channels)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", tile)
	}
	input := block
	if w.params.PadToInputSize {
		input = pixels.PadBlock(block, w.params.TileSize, w.params.TileSize)
	}

	pred, err := w.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "acquiring predictor for %v", tile)
	}
	out, err := pred.Infer(ctx, ml.Tensors{"input": input.Tensor()})
	if err != nil {
		// A failed inference call may have corrupted the session, so the
		// handle is dropped rather than returned, unless the run itself is
		// shutting down.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			w.pool.Release(pred)
		} else {
			w.pool.Discard(pred)
		}
		return nil, errors.Wrapf(err, "inference on %v", tile)
	}
	w.pool.Release(pred)

	cands, err := decodeOutput(out, block, tile, w.region, w.params.OutputChannels)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding output of %v", tile)
	}
	return cands, nil
}

// decodeOutput converts a model's output tensors into labeled candidates in
// source-image coordinates. The output is a (C, H, W) stack whose first
// outputChannels planes are instance-label maps: pixels sharing a positive
// integer label belong to one object. A further plane, when the model
// provides one, carries per-pixel confidence; a candidate's score is its mean
// confidence over the mask, normalized tile-wide.
func decodeOutput(
	out ml.Tensors,
	block *pixels.Block,
	tile tiler.TileSpec,
	region tiler.Region,
	outputChannels int,
) ([]objects.Candidate, error) {
	dense, err := outputTensor(out)
	if err != nil {
		return nil, err
	}
	shape := []int(dense.Shape())
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return nil, errors.Errorf("expected a (C, H, W) output tensor, got shape %v", shape)
	}
	nc, h, wd := shape[0], shape[1], shape[2]
	if nc < outputChannels {
		return nil, errors.Errorf("model produced %d output channels, want %d", nc, outputChannels)
	}
	if h < block.H || wd < block.W {
		return nil, errors.Errorf("output plane %dx%d smaller than tile content %dx%d", wd, h, block.W, block.H)
	}
	data, err := ml.ToFloat64Slice(dense.Data())
	if err != nil {
		return nil, errors.Wrap(err, "unusable output tensor data")
	}
	if len(data) < nc*h*wd {
		return nil, errors.Errorf("output tensor has %d values, want %d", len(data), nc*h*wd)
	}
	confPlane := -1
	if nc > outputChannels {
		confPlane = outputChannels
	}

	ds := region.Downsample
	var cands []objects.Candidate
	for c := 0; c < outputChannels; c++ {
		plane := data[c*h*wd : (c+1)*h*wd]
		if floats.Max(plane) < 0.5 {
			// Nothing labeled in this plane.
			continue
		}

		// First pass finds each label's bounding box in the output grid, so
		// masks can be allocated tight.
		boxes := make(map[int]image.Rectangle)
		for y := 0; y < block.H; y++ {
			for x := 0; x < block.W; x++ {
				label := int(math.Round(plane[y*wd+x]))
				if label <= 0 {
					continue
				}
				px := image.Rect(x, y, x+1, y+1)
				if b, ok := boxes[label]; ok {
					boxes[label] = b.Union(px)
				} else {
					boxes[label] = px
				}
			}
		}
		labels := make([]int, 0, len(boxes))
		for label := range boxes {
			labels = append(labels, label)
		}
		sort.Ints(labels)

		masks := make(map[int]*objects.Mask, len(labels))
		for _, label := range labels {
			masks[label] = objects.NewMask(sourceRect(boxes[label], block.Bounds, ds))
		}
		sums := make(map[int]float64, len(labels))
		counts := make(map[int]int, len(labels))
		for y := 0; y < block.H; y++ {
			for x := 0; x < block.W; x++ {
				label := int(math.Round(plane[y*wd+x]))
				if label <= 0 {
					continue
				}
				masks[label].SetRect(sourcePixel(x, y, block.Bounds, ds))
				if confPlane >= 0 {
					sums[label] += data[confPlane*h*wd+y*wd+x]
					counts[label]++
				}
			}
		}

		for _, label := range labels {
			score := 1.0
			if confPlane >= 0 && counts[label] > 0 {
				score = sums[label] / float64(counts[label])
			}
			cands = append(cands, objects.NewCandidate(label, c, score, masks[label], tile))
		}
	}

	if confPlane >= 0 && len(cands) > 0 {
		raw := make([]float64, len(cands))
		for i := range cands {
			raw[i] = cands[i].Score
		}
		for i, v := range ml.NormalizeConfidences(raw) {
			cands[i].Score = v
		}
	}
	return cands, nil
}

// outputTensor picks the plane stack out of the model's named outputs: the
// tensor named "output", or the only tensor when there is exactly one.
func outputTensor(out ml.Tensors) (*tensor.Dense, error) {
	if t, ok := out["output"]; ok && t != nil {
		return t, nil
	}
	if len(out) == 1 {
		for _, t := range out {
			if t != nil {
				return t, nil
			}
		}
	}
	return nil, errors.Errorf("cannot pick the output tensor among %v", out.Names())
}

// sourceSpan maps one output-grid coordinate to the span of source pixels it
// covers at the given downsample.
func sourceSpan(v, offset int, downsample float64) (int, int) {
	lo := offset + int(math.Round(float64(v)*downsample))
	hi := offset + int(math.Round(float64(v+1)*downsample))
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// sourcePixel is the source-pixel footprint of output pixel (x, y), clipped
// to the pixels the block actually covers.
func sourcePixel(x, y int, bounds image.Rectangle, downsample float64) image.Rectangle {
	x0, x1 := sourceSpan(x, bounds.Min.X, downsample)
	y0, y1 := sourceSpan(y, bounds.Min.Y, downsample)
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// sourceRect is the source-pixel footprint of an output-grid rectangle,
// clipped to the pixels the block actually covers.
func sourceRect(r, bounds image.Rectangle, downsample float64) image.Rectangle {
	x0, _ := sourceSpan(r.Min.X, bounds.Min.X, downsample)
	_, x1 := sourceSpan(r.Max.X-1, bounds.Min.X, downsample)
	y0, _ := sourceSpan(r.Min.Y, bounds.Min.Y, downsample)
	_, y1 := sourceSpan(r.Max.Y-1, bounds.Min.Y, downsample)
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}
