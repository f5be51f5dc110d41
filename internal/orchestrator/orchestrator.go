// Package orchestrator implements PipelineOrchestrator (spec.md 5): a
// bounded worker pool that drives every image through color
// deconvolution, vessel segmentation, nuclear segmentation, cell
// construction, feature extraction, and classification, writing results
// into a shared ROI store and reporting progress over an event channel.
// The worker-pool shape is adapted from the teacher's Engine.syncFiles
// (internal/sync/engine.go in scttfrdmn/cicada), replacing its raw
// semaphore-channel-plus-WaitGroup with golang.org/x/sync/errgroup's
// bounded group, which the rest of the retrieved pack also reaches for
// when it needs cancellation-aware fan-out.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sebastianmicu24/scipathj/internal/cellbuild"
	"github.com/sebastianmicu24/scipathj/internal/classify"
	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/deconv"
	"github.com/sebastianmicu24/scipathj/internal/features"
	"github.com/sebastianmicu24/scipathj/internal/nucleus"
	"github.com/sebastianmicu24/scipathj/internal/pipeline"
	"github.com/sebastianmicu24/scipathj/internal/roi"
	"github.com/sebastianmicu24/scipathj/internal/vessel"
)

// PipelineOrchestrator runs the full per-image pipeline over a batch of
// images (spec.md 5). It holds no per-run state of its own beyond what is
// passed to Run, so one orchestrator may run multiple batches sequentially.
type PipelineOrchestrator struct {
	Reader   pipeline.ImageReader
	Detector pipeline.NucleusDetector
	Model    *classify.Model
	Store    *roi.Store
	Settings *config.Settings
	Events   chan<- Event
}

// Run drives settings.Batch.Parallelism workers over imageKeys, writing
// every resulting ROI into o.Store and returning once all images have
// been attempted or ctx is cancelled.
func (o *PipelineOrchestrator) Run(ctx context.Context, imageKeys []string) (BatchReport, error) {
	inv, err := deconv.PrepareInverse(o.Settings.ColorDeconvolution)
	if err != nil {
		return BatchReport{}, fmt.Errorf("orchestrator: invalid stain matrix: %w", err)
	}

	rb := newReportBuilder(len(imageKeys))
	progress := newThrottle(time.Duration(o.Settings.Batch.ProgressCadenceMs) * time.Millisecond)

	o.emit(Event{Kind: BatchStarted, Total: len(imageKeys)})

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.Settings.Batch.Parallelism)

	retryCfg := pipeline.DefaultRetryConfig(o.Settings.Batch.RetryCount)

	for _, key := range imageKeys {
		key := key
		group.Go(func() error {
			imgCtx := gctx
			var cancel context.CancelFunc
			if o.Settings.Batch.PerImageTimeoutMs > 0 {
				imgCtx, cancel = context.WithTimeout(gctx, time.Duration(o.Settings.Batch.PerImageTimeoutMs)*time.Millisecond)
				defer cancel()
			}

			o.emit(Event{Kind: ImageStarted, ImageKey: key})

			runErr := pipeline.WithRetry(imgCtx, retryCfg, func() error {
				return o.processImage(imgCtx, key, inv, progress)
			})

			if runErr != nil {
				if gctx.Err() != nil {
					// The batch itself was cancelled: this image is left
					// unfinished and is not counted as failed.
					return runErr
				}
				rb.fail(key, runErr)
				o.emit(Event{Kind: ImageFailed, ImageKey: key, Err: runErr})
				if pipeline.KindOf(runErr) == pipeline.ErrCancelled || imgCtx.Err() != nil {
					return runErr
				}
				if !o.Settings.Batch.ContinueOnError {
					return runErr
				}
				return nil
			}

			rb.succeed()
			o.emit(Event{Kind: ImageCompleted, ImageKey: key})
			return nil
		})
	}

	waitErr := group.Wait()
	report := rb.snapshot()

	if waitErr != nil && ctx.Err() != nil {
		report.Cancelled = true
		rb.markCancelled()
		o.emit(Event{Kind: BatchCancelled, Done: report.Succeeded + report.Failed})
		return report, waitErr
	}

	o.emit(Event{Kind: BatchCompleted, Done: report.Succeeded + report.Failed})
	return report, nil
}

func (o *PipelineOrchestrator) emit(e Event) {
	if o.Events == nil {
		return
	}
	select {
	case o.Events <- e:
	default:
		// A full events channel must never stall the pipeline; the caller
		// is expected to drain it with a sufficiently large buffer or a
		// dedicated consumer goroutine.
	}
}

func (o *PipelineOrchestrator) progressEvent(key, stage string, throttleGate *throttle) {
	if !throttleGate.allow() {
		return
	}
	o.emit(Event{Kind: ImageProgress, ImageKey: key, Stage: stage})
}

// processImage runs one image through every pipeline stage (spec.md 2's
// data-flow diagram) and writes the resulting ROIs into the store.
func (o *PipelineOrchestrator) processImage(ctx context.Context, key string, inv deconv.Inverse, progress *throttle) error {
	if err := ctx.Err(); err != nil {
		return pipeline.NewError(pipeline.ErrCancelled, key, "cancelled before start", err)
	}

	img, err := o.Reader.Read(ctx, key)
	if err != nil {
		return pipeline.NewError(pipeline.ErrIO, key, "failed to read image", err)
	}

	o.progressEvent(key, "deconvolution", progress)
	channels, err := deconv.Deconvolve(img, inv)
	if err != nil {
		return pipeline.NewError(pipeline.ErrImageDecode, key, "deconvolution failed", err)
	}

	if err := ctx.Err(); err != nil {
		return pipeline.NewError(pipeline.ErrCancelled, key, "cancelled after deconvolution", err)
	}

	o.progressEvent(key, "vessel", progress)
	vesselResults := vessel.Segment(channels, o.Settings.VesselSegmentation)
	vesselIDs := make([]int, len(vesselResults))
	vesselPolys := make([]roi.Polygon, len(vesselResults))
	for i, v := range vesselResults {
		r := roi.ROI{Category: roi.Vessel, Name: fmt.Sprintf("vessel-%d", i), Geometry: roi.FromPolygon(v.Polygon)}
		vesselIDs[i] = o.Store.Add(key, r)
		vesselPolys[i] = v.Polygon
	}

	if err := ctx.Err(); err != nil {
		return pipeline.NewError(pipeline.ErrCancelled, key, "cancelled after vessel segmentation", err)
	}

	o.progressEvent(key, "nucleus", progress)
	nucleusInput := singleChannelImage(channels.Hematoxylin, channels.Width, channels.Height)
	detected, warnings, err := nucleus.Adapt(ctx, nucleusInput, o.Detector, o.Settings.NuclearSegmentation)
	if err != nil {
		return pipeline.NewError(pipeline.ErrDetector, key, "nucleus detection failed", err)
	}
	for range warnings {
		o.progressEvent(key, "nucleus_tile_warning", progress)
	}

	nucleusIDs := make([]int, len(detected))
	nucleusPolys := make([]roi.Polygon, len(detected))
	for i, n := range detected {
		r := roi.ROI{Category: roi.Nucleus, Name: fmt.Sprintf("nucleus-%d", i), Geometry: roi.FromPolygon(n.Polygon)}
		nucleusIDs[i] = o.Store.Add(key, r)
		nucleusPolys[i] = n.Polygon
	}

	if err := ctx.Err(); err != nil {
		return pipeline.NewError(pipeline.ErrCancelled, key, "cancelled after nucleus detection", err)
	}

	o.progressEvent(key, "cellbuild", progress)
	bounds := roi.Rectangle{X: 0, Y: 0, Width: float32(channels.Width), Height: float32(channels.Height)}
	cells := cellbuild.Construct(nucleusPolys, vesselPolys, bounds, o.Settings.CytoplasmSegmentation)

	cellEntries := make([]cellEntry, 0, len(cells))
	for i, c := range cells {
		if c.Degenerate {
			continue
		}
		cytoID := o.Store.Add(key, roi.ROI{Category: roi.Cytoplasm, Name: fmt.Sprintf("cytoplasm-%d", i), Geometry: roi.FromPolygon(c.Cytoplasm)})
		cellID := o.Store.Add(key, roi.ROI{
			Category: roi.Cell,
			Name:     fmt.Sprintf("cell-%d", i),
			Geometry: roi.FromPolygon(c.CellShape),
			Links:    &roi.CellLinks{NucleusID: nucleusIDs[i], CytoplasmID: cytoID},
		})
		cellEntries = append(cellEntries, cellEntry{cellID: cellID, cellShape: c.CellShape, cytoID: cytoID, cytoShape: c.Cytoplasm})
	}

	if err := ctx.Err(); err != nil {
		return pipeline.NewError(pipeline.ErrCancelled, key, "cancelled after cell construction", err)
	}

	o.progressEvent(key, "features", progress)
	channelSamples := []features.ChannelSample{
		{Name: "hematoxylin", Width: channels.Width, Height: channels.Height, Pixels: channels.Hematoxylin},
		{Name: "eosin", Width: channels.Width, Height: channels.Height, Pixels: channels.Eosin},
		{Name: "background", Width: channels.Width, Height: channels.Height, Pixels: channels.Background},
		{Name: "gray", Width: channels.Width, Height: channels.Height, Pixels: grayscale(img)},
	}

	// neighbor_count/nearest_neighbor_distance compare each ROI only
	// against other ROIs of its own category (spec.md 4.5), so each
	// category gets its own centroid slice rather than sharing one.
	vesselCentroids := make([]roi.Point, len(vesselPolys))
	for i, p := range vesselPolys {
		vesselCentroids[i] = roi.PolygonCentroid(p)
	}
	nucleusCentroids := make([]roi.Point, len(nucleusPolys))
	for i, p := range nucleusPolys {
		nucleusCentroids[i] = roi.PolygonCentroid(p)
	}
	cytoCentroids := make([]roi.Point, len(cellEntries))
	cellCentroids := make([]roi.Point, len(cellEntries))
	for i, entry := range cellEntries {
		cytoCentroids[i] = roi.PolygonCentroid(entry.cytoShape)
		cellCentroids[i] = roi.PolygonCentroid(entry.cellShape)
	}

	for i, id := range vesselIDs {
		r, ok := o.Store.Get(key, id)
		if !ok {
			continue
		}
		fctx := features.Context{Channels: channelSamples, AllCentroids: vesselCentroids, SelfIndex: i, Vessels: vesselPolys}
		fv := features.Extract(r.Geometry, fctx, o.Settings.FeatureExtraction)
		_ = o.Store.Update(key, id, func(existing roi.ROI) roi.ROI { return existing.WithFeatures(fv) })
	}

	for i, id := range nucleusIDs {
		r, ok := o.Store.Get(key, id)
		if !ok {
			continue
		}
		fctx := features.Context{Channels: channelSamples, AllCentroids: nucleusCentroids, SelfIndex: i, Vessels: vesselPolys}
		fv := features.Extract(r.Geometry, fctx, o.Settings.FeatureExtraction)
		_ = o.Store.Update(key, id, func(existing roi.ROI) roi.ROI { return existing.WithFeatures(fv) })
	}

	for i, entry := range cellEntries {
		fctx := features.Context{Channels: channelSamples, AllCentroids: cytoCentroids, SelfIndex: i, Vessels: vesselPolys}
		fv := features.Extract(roi.FromPolygon(entry.cytoShape), fctx, o.Settings.FeatureExtraction)
		_ = o.Store.Update(key, entry.cytoID, func(r roi.ROI) roi.ROI { return r.WithFeatures(fv) })
	}

	for i, entry := range cellEntries {
		fctx := features.Context{Channels: channelSamples, AllCentroids: cellCentroids, SelfIndex: i, Vessels: vesselPolys}
		fv := features.Extract(roi.FromPolygon(entry.cellShape), fctx, o.Settings.FeatureExtraction)
		_ = o.Store.Update(key, entry.cellID, func(r roi.ROI) roi.ROI { return r.WithFeatures(fv) })
	}

	if o.Model != nil {
		o.progressEvent(key, "classify", progress)
		for _, entry := range cellEntries {
			r, ok := o.Store.Get(key, entry.cellID)
			if !ok {
				continue
			}
			classification := classify.Classify(r.Features, o.Model, o.Settings.Classification)
			_ = o.Store.Update(key, entry.cellID, func(r roi.ROI) roi.ROI { return r.WithClassification(classification) })
		}
	}

	return nil
}

type cellEntry struct {
	cellID    int
	cellShape roi.Polygon
	cytoID    int
	cytoShape roi.Polygon
}

// grayscale derives the "original grayscale" intensity channel (spec.md
// 4.5) from the decoded RGB image via the standard Rec. 601 luminance
// weights, normalized to [0,1] by the image's bit depth.
func grayscale(img pipeline.Image) []float32 {
	out := make([]float32, img.Width*img.Height)
	max := img.MaxSampleValue()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var r, g, b float64
			if img.Channels >= 3 {
				r, g, b = img.At(x, y, 0), img.At(x, y, 1), img.At(x, y, 2)
			} else {
				r = img.At(x, y, 0)
				g, b = r, r
			}
			lum := 0.299*r + 0.587*g + 0.114*b
			out[y*img.Width+x] = float32(lum / max)
		}
	}
	return out
}

func singleChannelImage(data []float32, w, h int) pipeline.Image {
	img := pipeline.NewImage(w, h, 1, pipeline.Depth32Float)
	for i, v := range data {
		img.Pixels[i] = float64(v)
	}
	return img
}
