package segment

import (
	"testing"

	"go.viam.com/test"

	"github.com/instanseg/instanseg-go/objects"
)

func TestDefaultParamsValidate(t *testing.T) {
	p := DefaultParams()
	test.That(t, p.Validate(), test.ShouldBeNil)
	test.That(t, p.TileSize, test.ShouldEqual, 512)
	test.That(t, p.Padding, test.ShouldEqual, 32)
	test.That(t, p.Boundary, test.ShouldEqual, 16)
	test.That(t, p.Metric, test.ShouldEqual, objects.MetricIoMin)
	test.That(t, p.Kind, test.ShouldEqual, objects.KindDetection)
	test.That(t, p.PadToInputSize, test.ShouldBeTrue)
}

func TestParamsValidateRejects(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Params)
		errMsg string
	}{
		{"zero tile size", func(p *Params) { p.TileSize = 0 }, "tile size"},
		{"negative padding", func(p *Params) { p.Padding = -1 }, "padding"},
		{"padding swallows tile", func(p *Params) { p.Padding = 512 }, "no tile content"},
		{"negative boundary", func(p *Params) { p.Boundary = -1 }, "boundary"},
		{"fractional downsample", func(p *Params) { p.Downsample = 0.5 }, "downsample"},
		{"zero output channels", func(p *Params) { p.OutputChannels = 0 }, "output channels"},
		{"negative predictors", func(p *Params) { p.NumPredictors = -1 }, "predictor count"},
		{"negative workers", func(p *Params) { p.Workers = -1 }, "worker count"},
		{"threshold out of range", func(p *Params) { p.OverlapThreshold = 1.5 }, "overlap threshold"},
		{"unknown metric", func(p *Params) { p.Metric = "dice" }, "overlap metric"},
		{"unknown kind", func(p *Params) { p.Kind = "blob" }, "object kind"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
}

func TestParamsFromAttributes(t *testing.T) {
	p, err := ParamsFromAttributes(map[string]interface{}{
		"tile_size":       256,
		"downsample":      2.0,
		"merge_metric":    "iou",
		"object_kind":     "annotation",
		"workers":         4,
		"output_channels": 2,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.TileSize, test.ShouldEqual, 256)
	test.That(t, p.Downsample, test.ShouldEqual, 2.0)
	test.That(t, p.Metric, test.ShouldEqual, objects.MetricIoU)
	test.That(t, p.Kind, test.ShouldEqual, objects.KindAnnotation)
	test.That(t, p.Workers, test.ShouldEqual, 4)
	test.That(t, p.OutputChannels, test.ShouldEqual, 2)
	// Unset attributes keep their defaults.
	test.That(t, p.Padding, test.ShouldEqual, 32)
	test.That(t, p.Boundary, test.ShouldEqual, 16)
}

func TestParamsFromAttributesRejects(t *testing.T) {
	_, err := ParamsFromAttributes(map[string]interface{}{"tile_size": "huge"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ParamsFromAttributes(map[string]interface{}{"merge_metric": "dice"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "overlap metric")

	_, err = ParamsFromAttributes(map[string]interface{}{"padding": 600})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no tile content")
}
