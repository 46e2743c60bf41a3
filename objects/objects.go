// Package objects holds the detected-object side of the pipeline: the
// candidate geometries produced per tile, the boundary pruning and cross-tile
// merging that reconcile them, and the final object set handed to a store.
package objects

import (
	"context"

	"github.com/pkg/errors"

	"github.com/instanseg/instanseg-go/tiler"
)

// ObjectKind says what the objects of a finished set should become in the
// consuming application, e.g. countable detections or editable annotations.
type ObjectKind string

// The object kinds a store can be asked for.
const (
	KindDetection  ObjectKind = "detection"
	KindAnnotation ObjectKind = "annotation"
)

// Validate checks that the kind is one a store understands.
func (k ObjectKind) Validate() error {
	switch k {
	case KindDetection, KindAnnotation:
		return nil
	default:
		return errors.Errorf("unknown object kind %q", string(k))
	}
}

// Set is the final deduplicated object collection covering one region. No two
// members represent the same physical object.
type Set struct {
	Region  tiler.Region
	Kind    ObjectKind
	Objects []Candidate
}

// A Store receives finished object sets keyed to the region they cover. It is
// the persistence collaborator of the pipeline; the pipeline itself keeps
// nothing.
type Store interface {
	StoreObjects(ctx context.Context, set *Set) error
}
