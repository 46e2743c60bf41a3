// Package main runs the tiled segmentation pipeline over one image file.
//
// The model is faked: a thresholding predictor turns bright connected blobs
// into instances, which is enough to watch tiling, pooled inference, seam
// pruning, and cross-tile merging work on a real picture without a torch
// runtime behind it.
package main

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gorgonia.org/tensor"

	"github.com/instanseg/instanseg-go/ml"
	"github.com/instanseg/instanseg-go/ml/inference"
	"github.com/instanseg/instanseg-go/objects"
	"github.com/instanseg/instanseg-go/pixels"
	"github.com/instanseg/instanseg-go/segment"
	"github.com/instanseg/instanseg-go/tiler"
)

var logger = golog.NewDevelopmentLogger("segrun")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Image      string  `flag:"0,required,usage=path to the image to segment"`
	Out        string  `flag:"out,default=segrun.png,usage=where to write the overlay image"`
	TileSize   int     `flag:"tile,usage=tile size fed to the model in pixels"`
	Padding    int     `flag:"padding,usage=context margin around each tile in pixels"`
	Boundary   int     `flag:"boundary,usage=seam strip pruned from each tile in pixels"`
	Workers    int     `flag:"workers,usage=parallel tile workers (0 = one per CPU)"`
	Predictors int     `flag:"predictors,usage=warm predictors bounding concurrent inference"`
	Threshold  float64 `flag:"thresh,usage=brightness above which a pixel joins an object"`
	MaxDim     int     `flag:"maxdim,usage=downscale the input so no side exceeds this"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.TileSize == 0 {
		argsParsed.TileSize = 256
	}
	if argsParsed.Padding == 0 {
		argsParsed.Padding = 32
	}
	if argsParsed.Boundary == 0 {
		argsParsed.Boundary = 16
	}
	if argsParsed.Predictors == 0 {
		argsParsed.Predictors = 2
	}
	if argsParsed.Threshold == 0 {
		argsParsed.Threshold = 0.5
	}
	if argsParsed.MaxDim == 0 {
		argsParsed.MaxDim = 2048
	}
	return runSegmentation(ctx, argsParsed, logger)
}

func runSegmentation(ctx context.Context, args Arguments, logger golog.Logger) error {
	img, err := imaging.Open(args.Image)
	if err != nil {
		return errors.Wrap(err, "could not open the input image")
	}
	if b := img.Bounds(); b.Dx() > args.MaxDim || b.Dy() > args.MaxDim {
		img = resize.Thumbnail(uint(args.MaxDim), uint(args.MaxDim), img, resize.Bilinear)
		logger.Infow("downscaled input", "from", b, "to", img.Bounds())
	}

	src := pixels.NewImageSource(img)
	bounds := src.Bounds()
	region, err := tiler.NewRegion(bounds.Min.X, bounds.Min.Y, bounds.Dx(), bounds.Dy(), 1)
	if err != nil {
		return err
	}

	model, err := segment.NewModel("builtin:threshold", thresholdMetadata())
	if err != nil {
		return err
	}
	rt := &inference.FakeRuntime{InferFn: thresholdInferFn(float32(args.Threshold))}
	defer utils.UncheckedErrorFunc(rt.Close)

	seg, err := segment.NewSegmenter(model, rt, logger)
	if err != nil {
		return err
	}

	params := segment.DefaultParams()
	params.TileSize = args.TileSize
	params.Padding = args.Padding
	params.Boundary = args.Boundary
	params.Workers = args.Workers
	params.NumPredictors = args.Predictors

	set, err := seg.Run(ctx, src, region, pixels.RGB(), nil, params, nil)
	if err != nil {
		return err
	}
	logger.Infow("segmentation finished",
		"objects", len(set.Objects), "failedTiles", seg.FailedTileCount())
	for i, obj := range set.Objects {
		if i == 10 {
			logger.Infof("... and %d more", len(set.Objects)-10)
			break
		}
		logger.Infof("object %d: %v", i, obj)
	}

	if err := imaging.Save(objects.RenderOverlay(img, set), args.Out); err != nil {
		return errors.Wrap(err, "could not write the overlay image")
	}
	logger.Infow("overlay written", "path", args.Out)
	return nil
}

// thresholdMetadata declares the fake model's contract: RGB in, one instance
// plane out.
func thresholdMetadata() ml.Metadata {
	return ml.Metadata{
		Name: "threshold-demo",
		Inputs: []ml.TensorInfo{{
			Name: "input", DataType: "float32", Axes: "cyx",
			ShapeMin: []int{3, 64, 64}, ShapeStep: []int{0, 32, 32},
		}},
		Outputs: []ml.TensorInfo{{
			Name: "output", DataType: "float32", Axes: "cyx",
			ShapeMin: []int{1, 64, 64}, ShapeStep: []int{0, 32, 32},
		}},
	}
}

// thresholdInferFn stands in for a real model: pixels whose mean brightness
// exceeds thresh are foreground, and each 4-connected foreground component
// becomes one instance label in the output plane.
func thresholdInferFn(thresh float32) func(context.Context, ml.Tensors) (ml.Tensors, error) {
	return func(_ context.Context, tensors ml.Tensors) (ml.Tensors, error) {
		in, ok := tensors["input"]
		if !ok {
			return nil, errors.New("no input tensor")
		}
		shape := in.Shape()
		if len(shape) != 3 {
			return nil, errors.Errorf("expected a (C, H, W) input, got %v", shape)
		}
		c, h, w := shape[0], shape[1], shape[2]
		data, err := ml.ToFloat32Slice(in.Data())
		if err != nil {
			return nil, err
		}

		fg := make([]bool, h*w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var sum float32
				for ch := 0; ch < c; ch++ {
					sum += data[(ch*h+y)*w+x]
				}
				fg[y*w+x] = sum/float32(c) > thresh
			}
		}

		return ml.Tensors{"output": tensor.New(
			tensor.WithShape(1, h, w),
			tensor.WithBacking(labelComponents(fg, w, h)),
		)}, nil
	}
}

// labelComponents assigns every 4-connected true component of fg its own
// positive integer label.
func labelComponents(fg []bool, w, h int) []float32 {
	plane := make([]float32, len(fg))
	var queue []int
	next := float32(0)
	for start := range fg {
		if !fg[start] || plane[start] != 0 {
			continue
		}
		next++
		plane[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			for _, pt := range []image.Point{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if pt.X < 0 || pt.X >= w || pt.Y < 0 || pt.Y >= h {
					continue
				}
				j := pt.Y*w + pt.X
				if fg[j] && plane[j] == 0 {
					plane[j] = next
					queue = append(queue, j)
				}
			}
		}
	}
	return plane
}
