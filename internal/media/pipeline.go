package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/media-ingest/internal/metrics"
	"github.com/amillerrr/media-ingest/pkg/models"
)

var tracer = otel.Tracer("ingest-pipeline")

// Upload ceilings and accepted types.
const (
	MaxVideoBytes     = 1 << 30  // 1 GiB
	MaxThumbnailBytes = 10 << 20 // 10 MiB

	VideoContentType = "video/mp4"
)

// ObjectStore is the object storage surface the pipeline depends on.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key, contentType string) error
}

// AssetStore is the record store surface the pipeline depends on.
type AssetStore interface {
	GetAsset(ctx context.Context, assetID string) (*models.AssetRecord, error)
	SetAssetStatus(ctx context.Context, assetID string, status models.AssetStatus) error
	UpdateAssetVideo(ctx context.Context, assetID, videoKey string, classification models.Classification, sizeBytes int64) (*models.AssetRecord, error)
	UpdateAssetThumbnail(ctx context.Context, assetID, thumbnailKey string) (*models.AssetRecord, error)
}

// EventPublisher announces completed ingests. Publishing is best-effort.
type EventPublisher interface {
	PublishAssetIngested(ctx context.Context, event models.IngestEvent) error
}

// Pipeline sequences the upload stages: validate, stage to disk, probe,
// remux, upload to object storage, record. Every temp file created during
// a run is deleted before the run returns, on success and on every error
// path.
type Pipeline struct {
	temp    *TempStore
	prober  *Prober
	remuxer *Remuxer
	objects ObjectStore
	assets  AssetStore
	events  EventPublisher
	log     *slog.Logger
}

// PipelineConfig holds pipeline dependencies.
type PipelineConfig struct {
	TempStore *TempStore
	Prober    *Prober
	Remuxer   *Remuxer
	Objects   ObjectStore
	Assets    AssetStore
	Events    EventPublisher // optional
	Logger    *slog.Logger
}

// NewPipeline creates a Pipeline with the given dependencies.
func NewPipeline(cfg *PipelineConfig) *Pipeline {
	return &Pipeline{
		temp:    cfg.TempStore,
		prober:  cfg.Prober,
		remuxer: cfg.Remuxer,
		objects: cfg.Objects,
		assets:  cfg.Assets,
		events:  cfg.Events,
		log:     cfg.Logger,
	}
}

// authorize loads the asset and enforces ownership. It runs before any
// file is written.
func (p *Pipeline) authorize(ctx context.Context, ownerID, assetID string) (*models.AssetRecord, error) {
	if assetID == "" {
		return nil, fmt.Errorf("%w: asset id is required", models.ErrInvalidRequest)
	}

	asset, err := p.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: asset %s is not owned by caller", models.ErrForbidden, assetID)
	}
	return asset, nil
}

// IngestVideo runs the full video pipeline for an upload stream and
// returns the updated asset record.
func (p *Pipeline) IngestVideo(ctx context.Context, ownerID, assetID string, upload io.Reader, contentType string, declaredSize int64) (*models.AssetRecord, error) {
	ctx, span := tracer.Start(ctx, "ingest-video")
	defer span.End()
	span.SetAttributes(
		attribute.String("asset.id", assetID),
		attribute.Int64("upload.declared_size", declaredSize),
	)

	metrics.ActivePipelines.Inc()
	defer metrics.ActivePipelines.Dec()

	// Validation and ownership happen before any file I/O.
	if _, err := p.authorize(ctx, ownerID, assetID); err != nil {
		metrics.RecordUploadFailure("video")
		return nil, err
	}
	if declaredSize > MaxVideoBytes {
		metrics.RecordUploadFailure("video")
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", models.ErrPayloadTooLarge, declaredSize, int64(MaxVideoBytes))
	}
	if contentType != VideoContentType {
		metrics.RecordUploadFailure("video")
		return nil, fmt.Errorf("%w: %q (only %s is accepted)", models.ErrUnsupportedMediaType, contentType, VideoContentType)
	}

	// The asset is processing from the moment the stream starts staging
	// until the record update flips it to ready.
	if err := p.assets.SetAssetStatus(ctx, assetID, models.StatusProcessing); err != nil {
		metrics.RecordUploadFailure("video")
		return nil, err
	}

	asset, err := p.runVideoStages(ctx, assetID, upload, contentType)
	if err != nil {
		p.markFailed(ctx, assetID)
		metrics.RecordUploadFailure("video")
		return nil, err
	}

	metrics.RecordUploadSuccess("video")
	p.publishIngested(ctx, asset)

	return asset, nil
}

// runVideoStages executes the staged portion of the pipeline. Both temp
// files are removed via defers before it returns, whatever the outcome.
func (p *Pipeline) runVideoStages(ctx context.Context, assetID string, upload io.Reader, contentType string) (*models.AssetRecord, error) {
	rawPath, err := p.stageUpload(ctx, upload)
	if err != nil {
		return nil, err
	}
	defer p.temp.Remove(rawPath)

	classification, err := p.probeStage(ctx, rawPath)
	if err != nil {
		return nil, err
	}

	remuxedPath, err := p.remuxStage(ctx, rawPath)
	if err != nil {
		return nil, err
	}
	defer p.temp.Remove(remuxedPath)

	key, err := VideoKey(classification)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIO, err)
	}

	storedSize, err := p.uploadStage(ctx, remuxedPath, key, contentType)
	if err != nil {
		return nil, err
	}

	// The record's storage reference is only written after the object is
	// durably stored. A failure here leaves an orphaned object behind,
	// which is accepted and logged.
	start := time.Now()
	asset, err := p.assets.UpdateAssetVideo(ctx, assetID, key, classification, storedSize)
	metrics.StageDuration.WithLabelValues(metrics.StageRecordUpdate).Observe(time.Since(start).Seconds())
	if err != nil {
		p.log.ErrorContext(ctx, "Record update failed after object upload; object orphaned",
			"assetId", assetID,
			"key", key,
			"error", err,
		)
		return nil, err
	}

	p.log.InfoContext(ctx, "Video ingested",
		"assetId", assetID,
		"key", key,
		"classification", classification,
		"sizeBytes", storedSize,
	)

	return asset, nil
}

// IngestThumbnail validates and stores a thumbnail upload and returns the
// updated asset record.
func (p *Pipeline) IngestThumbnail(ctx context.Context, ownerID, assetID string, upload io.Reader, contentType string, declaredSize int64) (*models.AssetRecord, error) {
	ctx, span := tracer.Start(ctx, "ingest-thumbnail")
	defer span.End()
	span.SetAttributes(attribute.String("asset.id", assetID))

	metrics.ActivePipelines.Inc()
	defer metrics.ActivePipelines.Dec()

	if _, err := p.authorize(ctx, ownerID, assetID); err != nil {
		metrics.RecordUploadFailure("thumbnail")
		return nil, err
	}
	if declaredSize > MaxThumbnailBytes {
		metrics.RecordUploadFailure("thumbnail")
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", models.ErrPayloadTooLarge, declaredSize, int64(MaxThumbnailBytes))
	}
	if !IsAllowedThumbnailType(contentType) {
		metrics.RecordUploadFailure("thumbnail")
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedMediaType, contentType)
	}

	asset, err := p.runThumbnailStages(ctx, assetID, upload, contentType)
	if err != nil {
		metrics.RecordUploadFailure("thumbnail")
		return nil, err
	}

	metrics.RecordUploadSuccess("thumbnail")
	return asset, nil
}

func (p *Pipeline) runThumbnailStages(ctx context.Context, assetID string, upload io.Reader, contentType string) (*models.AssetRecord, error) {
	path, err := p.stageUpload(ctx, upload)
	if err != nil {
		return nil, err
	}
	defer p.temp.Remove(path)

	key, err := ThumbnailKey(contentType)
	if err != nil {
		return nil, err
	}

	if _, err := p.uploadStage(ctx, path, key, contentType); err != nil {
		return nil, err
	}

	asset, err := p.assets.UpdateAssetThumbnail(ctx, assetID, key)
	if err != nil {
		p.log.ErrorContext(ctx, "Record update failed after thumbnail upload; object orphaned",
			"assetId", assetID,
			"key", key,
			"error", err,
		)
		return nil, err
	}

	return asset, nil
}

// Pipeline stages

func (p *Pipeline) stageUpload(ctx context.Context, upload io.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "stage-temp-write")
	defer span.End()

	start := time.Now()
	path, err := p.temp.Save(upload)
	metrics.StageDuration.WithLabelValues(metrics.StageTempWrite).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return path, nil
}

func (p *Pipeline) probeStage(ctx context.Context, path string) (models.Classification, error) {
	ctx, span := tracer.Start(ctx, "stage-probe")
	defer span.End()

	start := time.Now()
	classification, err := p.prober.Probe(ctx, path)
	metrics.StageDuration.WithLabelValues(metrics.StageProbe).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("video.classification", string(classification)))
	return classification, nil
}

func (p *Pipeline) remuxStage(ctx context.Context, path string) (string, error) {
	ctx, span := tracer.Start(ctx, "stage-remux")
	defer span.End()

	start := time.Now()
	outPath, err := p.remuxer.Remux(ctx, path)
	metrics.StageDuration.WithLabelValues(metrics.StageRemux).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return outPath, nil
}

func (p *Pipeline) uploadStage(ctx context.Context, path, key, contentType string) (int64, error) {
	ctx, span := tracer.Start(ctx, "stage-object-upload")
	defer span.End()
	span.SetAttributes(attribute.String("object.key", key))

	size := fileSize(path)

	start := time.Now()
	err := p.objects.Upload(ctx, path, key, contentType)
	metrics.StageDuration.WithLabelValues(metrics.StageObjectUpload).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return size, nil
}

// fileSize returns the size of the file at path, or 0 if it cannot be
// determined. The stored object's true size is what S3 acknowledged, so a
// stat failure here only affects the recorded metadata.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// markFailed flips the asset to failed after a pipeline error. Best-effort:
// the pipeline error is what the client sees, not a failure to record it.
// The write survives cancellation of the request context, since a canceled
// request is one of the failure modes being recorded.
func (p *Pipeline) markFailed(ctx context.Context, assetID string) {
	ctx = context.WithoutCancel(ctx)
	if err := p.assets.SetAssetStatus(ctx, assetID, models.StatusFailed); err != nil {
		p.log.WarnContext(ctx, "Failed to mark asset failed",
			"assetId", assetID,
			"error", err,
		)
	}
}

// publishIngested announces a completed ingest. Failures are logged only;
// the upload has already succeeded from the client's point of view.
func (p *Pipeline) publishIngested(ctx context.Context, asset *models.AssetRecord) {
	if p.events == nil {
		return
	}

	event := models.IngestEvent{
		AssetID:        asset.AssetID,
		OwnerID:        asset.OwnerID,
		VideoKey:       asset.VideoKey,
		Classification: asset.Classification,
		SizeBytes:      asset.FileSizeBytes,
		IngestedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if err := p.events.PublishAssetIngested(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		p.log.WarnContext(ctx, "Failed to publish ingest event",
			"assetId", asset.AssetID,
			"error", err,
		)
		return
	}
	metrics.EventsPublished.WithLabelValues("success").Inc()
}
