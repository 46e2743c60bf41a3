package segment

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/instanseg/instanseg-go/ml/inference"
	"github.com/instanseg/instanseg-go/objects"
	"github.com/instanseg/instanseg-go/pixels"
	"github.com/instanseg/instanseg-go/tiler"
)

// RunStats summarizes one segmentation run.
type RunStats struct {
	// Tiles is how many tiles the run dispatched.
	Tiles int
	// FailedTiles is how many of them produced no objects because of an
	// error. Non-zero alongside a nil run error means partial output.
	FailedTiles int
}

// Segmenter drives segmentation runs of one model on one runtime. It is the
// pipeline's orchestrator: it owns tiling, the predictor pool, the per-tile
// workers, seam pruning, and the final merge, and it keeps individual tile
// failures from taking a run down.
type Segmenter struct {
	model   *Model
	runtime inference.ModelRuntime
	logger  golog.Logger

	mu    sync.Mutex
	stats RunStats
}

// NewSegmenter pairs a resolved model with the runtime that loaded it.
func NewSegmenter(model *Model, runtime inference.ModelRuntime, logger golog.Logger) (*Segmenter, error) {
	if model == nil {
		return nil, errors.New("segmenter needs a model")
	}
	if runtime == nil {
		return nil, errors.New("segmenter needs a model runtime")
	}
	if logger == nil {
		logger = golog.Global()
	}
	return &Segmenter{model: model, runtime: runtime, logger: logger}, nil
}

// Stats reports the most recent run. During a run it reflects the run's
// starting state, not live progress.
func (s *Segmenter) Stats() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// FailedTileCount reports how many tiles of the most recent run failed.
func (s *Segmenter) FailedTileCount() int {
	return s.Stats().FailedTiles
}

// Run segments one region of src and returns the merged object set, storing
// it in store when one is given. Tile-level failures are logged, counted, and
// skipped; the run carries on with the tiles that worked. An error return
// means the run as a whole produced nothing: bad arguments, a pool that could
// not be built, cancellation, or a store refusal.
//
// A nil runner gets a ParallelTaskRunner bounded by params.Workers.
func (s *Segmenter) Run(
	ctx context.Context,
	src pixels.Source,
	region tiler.Region,
	channels pixels.ChannelSpec,
	store objects.Store,
	params Params,
	runner TaskRunner,
) (*objects.Set, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if err := channels.CompatibleWith(s.model.InputChannels()); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("run needs a pixel source")
	}
	if runner == nil {
		runner = ParallelTaskRunner{Workers: params.Workers}
	}
	merger, err := objects.NewMerger(params.OverlapThreshold, params.Metric)
	if err != nil {
		return nil, err
	}
	kind := params.Kind
	if kind == "" {
		kind = objects.KindDetection
	}

	s.mu.Lock()
	s.stats = RunStats{}
	s.mu.Unlock()

	grid, err := tiler.NewTiler(params.TileSize, params.Padding,
		tiler.WithAlignCenter(params.AlignCenter), tiler.WithCropTiles(params.CropTiles))
	if err != nil {
		return nil, err
	}
	tiles := grid.Tiles(region)
	s.logger.Debugw("starting segmentation run",
		"model", s.model.Name(), "region", region.Bounds(), "downsample", region.Downsample, "tiles", len(tiles))

	pool, err := inference.NewPool(ctx, s.runtime, params.NumPredictors, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, "could not build the predictor pool")
	}
	// The drain has to finish even when the run context is already dead, or
	// warm sessions leak; in-flight borrowers hand their predictors back as
	// soon as their inference calls observe the cancellation.
	defer func() {
		if cerr := pool.Close(context.Background()); cerr != nil {
			s.logger.Errorw("failed to close predictor pool", "error", cerr)
		}
	}()

	worker := &tileWorker{
		src:      src,
		pool:     pool,
		channels: channels,
		region:   region,
		params:   params,
	}
	boundary := int(math.Ceil(region.Downsample * float64(params.Boundary)))
	imgBounds := src.Bounds()

	var failed int32
	var keptMu sync.Mutex
	kept := make([]objects.Candidate, 0, len(tiles))
	tasks := make([]func(context.Context), 0, len(tiles))
	for _, tile := range tiles {
		tile := tile
		tasks = append(tasks, func(tctx context.Context) {
			cands, err := worker.Process(tctx, tile)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				s.logger.Warnw("tile failed", "tile", tile.String(), "error", err)
				return
			}
			pruned := objects.PruneTileBoundary(cands, boundary, imgBounds)
			keptMu.Lock()
			kept = append(kept, pruned...)
			keptMu.Unlock()
		})
	}

	runErr := runner.RunTasks(ctx, tasks)

	failedTiles := int(atomic.LoadInt32(&failed))
	s.mu.Lock()
	s.stats = RunStats{Tiles: len(tiles), FailedTiles: failedTiles}
	s.mu.Unlock()

	if runErr != nil {
		return nil, errors.Wrap(runErr, "segmentation run aborted")
	}

	set := &objects.Set{Region: region, Kind: kind, Objects: merger.Merge(kept)}
	if store != nil {
		if err := store.StoreObjects(ctx, set); err != nil {
			return nil, errors.Wrap(err, "could not store the object set")
		}
	}
	if failedTiles > 0 {
		s.logger.Warnw("run finished with failed tiles", "failed", failedTiles, "tiles", len(tiles))
	}
	s.logger.Infow("segmentation run complete",
		"model", s.model.Name(), "tiles", len(tiles), "failed", failedTiles, "objects", len(set.Objects))
	return set, nil
}
