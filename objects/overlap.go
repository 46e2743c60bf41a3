package objects

import "github.com/pkg/errors"

// IoU returns the intersection-over-union of the two masks: shared area over
// combined area, between 0 and 1.
func IoU(a, b *Mask) float64 {
	inter := a.IntersectionArea(b)
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// IoMin returns the intersection-over-minimum-area of the two masks: shared
// area over the smaller mask's area. Unlike IoU it stays high when one mask is
// a truncated fragment of the other, which is exactly what tile seams produce,
// so it is the default metric for cross-tile merging.
func IoMin(a, b *Mask) float64 {
	inter := a.IntersectionArea(b)
	if inter == 0 {
		return 0
	}
	minArea := a.Area()
	if ba := b.Area(); ba < minArea {
		minArea = ba
	}
	if minArea <= 0 {
		return 0
	}
	return float64(inter) / float64(minArea)
}

// Metric names an overlap score used to decide whether two candidates are the
// same physical object.
type Metric string

// The supported overlap metrics. An empty Metric means MetricIoMin.
const (
	MetricIoMin Metric = "iomin"
	MetricIoU   Metric = "iou"
)

// Validate checks that the metric is a known one. The empty string is allowed
// and means the default.
func (m Metric) Validate() error {
	switch m {
	case MetricIoMin, MetricIoU, "":
		return nil
	default:
		return errors.Errorf("unknown overlap metric %q", string(m))
	}
}

// Score computes the metric over two masks.
func (m Metric) Score(a, b *Mask) float64 {
	if m == MetricIoU {
		return IoU(a, b)
	}
	return IoMin(a, b)
}
