package objects

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/instanseg/instanseg-go/tiler"
)

// Candidate is one detected object instance decoded from one tile, before
// boundary pruning and cross-tile merging have confirmed it. The tile it came
// from stays attached; pruning and merging decide with it.
type Candidate struct {
	ID      uuid.UUID
	Label   int // instance label within the output plane
	Channel int // output plane the instance came from
	Score   float64
	Mask    *Mask
	Tile    tiler.TileSpec
}

// NewCandidate builds a candidate with a fresh identity.
func NewCandidate(label, channel int, score float64, mask *Mask, tile tiler.TileSpec) Candidate {
	return Candidate{
		ID:      uuid.New(),
		Label:   label,
		Channel: channel,
		Score:   score,
		Mask:    mask,
		Tile:    tile,
	}
}

// Bounds returns the candidate's geometry bounds in source-image pixels.
func (c Candidate) Bounds() image.Rectangle {
	if c.Mask == nil {
		return image.Rectangle{}
	}
	return c.Mask.Bounds
}

func (c Candidate) String() string {
	return fmt.Sprintf("candidate(ch=%d label=%d bounds=%v score=%.3f)", c.Channel, c.Label, c.Bounds(), c.Score)
}
