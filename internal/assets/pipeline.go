package assets

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/store"
)

const (
	downloadFailedMessage = "Could not download file from storage"
	childVisionFailed     = "Vision analysis failed for extracted image"
	defaultConcurrency    = 4
)

// Pipeline turns pending uploads into described, ready assets.
type Pipeline struct {
	assets      store.AssetStore
	blobs       BlobStore
	vision      ImageAnalyzer
	extractors  *Extractors
	concurrency int
	log         *logger.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithConcurrency bounds how many assets are processed at once.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPipelineLogger overrides the logger.
func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline wires the pipeline. A nil analyzer falls back to NoVision and
// nil extractors to the built-in set.
func NewPipeline(assets store.AssetStore, blobs BlobStore, vision ImageAnalyzer, extractors *Extractors, opts ...PipelineOption) *Pipeline {
	if vision == nil {
		vision = NoVision{}
	}
	if extractors == nil {
		extractors = NewExtractors(nil)
	}
	p := &Pipeline{
		assets:      assets,
		blobs:       blobs,
		vision:      vision,
		extractors:  extractors,
		concurrency: defaultConcurrency,
		log:         logger.Global().WithPrefix("assets"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles every pending asset of a page and returns how many were
// processed successfully. A failing asset is marked failed and never stops
// the others.
func (p *Pipeline) Process(ctx context.Context, pageID, ownerID string) (int, error) {
	pending, err := p.assets.AssetsByStatus(ctx, pageID, store.AssetPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending assets: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var processed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range pending {
		asset := pending[i]
		g.Go(func() error {
			if p.processOne(gctx, &asset, ownerID) {
				processed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info("Processed %d/%d pending assets for page %s", processed.Load(), len(pending), pageID)
	return int(processed.Load()), nil
}

func (p *Pipeline) processOne(ctx context.Context, asset *store.Asset, ownerID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, asset, fmt.Sprint(r))
			ok = false
		}
	}()

	asset.Status = store.AssetProcessing
	if err := p.assets.UpdateAsset(ctx, asset); err != nil {
		p.log.Warn("Failed to mark asset %s processing: %v", asset.ID, err)
		return false
	}

	data, err := p.download(ctx, asset.StoragePath)
	if err != nil {
		p.log.Warn("Download of %s failed: %v", asset.StoragePath, err)
		p.fail(ctx, asset, downloadFailedMessage)
		return false
	}

	switch asset.AssetType {
	case store.AssetImage:
		err = p.processImage(ctx, asset, data)
	case store.AssetDocument:
		err = p.processDocument(ctx, asset, data, ownerID)
	default:
		err = fmt.Errorf("Unknown asset_type: %s", asset.AssetType)
	}
	if err != nil {
		p.fail(ctx, asset, err.Error())
		return false
	}
	return true
}

func (p *Pipeline) download(ctx context.Context, storagePath string) ([]byte, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("asset has no storage path")
	}
	data, err := p.blobs.Get(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("empty download")
	}
	return data, nil
}

func (p *Pipeline) fail(ctx context.Context, asset *store.Asset, reason string) {
	asset.Status = store.AssetFailed
	asset.Error = reason
	if err := p.assets.UpdateAsset(ctx, asset); err != nil {
		p.log.Error("Failed to mark asset %s failed: %v", asset.ID, err)
	}
}

// analyze skips the model for formats it cannot read.
func (p *Pipeline) analyze(ctx context.Context, data []byte, mimeType string) (VisionResult, error) {
	if !SupportsVision(mimeType) {
		return PlaceholderVision(), nil
	}
	return p.vision.Analyze(ctx, data, mimeType)
}

func applyVision(asset *store.Asset, v VisionResult) {
	asset.VisionDescription = v.Description
	asset.VisionTags = v.DetectedObjects
	asset.VisionSuggestedUse = v.SuggestedUse
	asset.VisionAltText = v.AltText
	asset.VisionContainsText = v.ContainsText
	asset.VisionExtractedText = v.ExtractedText
	asset.DominantColors = v.DominantColors
}

func (p *Pipeline) processImage(ctx context.Context, asset *store.Asset, data []byte) error {
	result, err := p.analyze(ctx, data, asset.FileType)
	if err != nil {
		return err
	}
	applyVision(asset, result)
	if asset.Width == 0 && asset.Height == 0 && SupportsVision(asset.FileType) {
		if w, h, ok := imageDimensions(data); ok {
			asset.Width, asset.Height = w, h
		}
	}
	if asset.FileSizeBytes == 0 {
		asset.FileSizeBytes = int64(len(data))
	}
	asset.Status = store.AssetReady
	asset.Error = ""
	return p.assets.UpdateAsset(ctx, asset)
}

func (p *Pipeline) processDocument(ctx context.Context, asset *store.Asset, data []byte, ownerID string) error {
	extraction, err := p.extractors.For(asset.FileType).Extract(ctx, data)
	if err != nil {
		// Extraction problems are surfaced to the agent as the document text.
		asset.ExtractedText = err.Error()
		asset.ExtractedSummary = err.Error()
		asset.Status = store.AssetReady
		return p.assets.UpdateAsset(ctx, asset)
	}

	asset.ExtractedText = extraction.Text
	asset.ExtractedSummary = extraction.Summary
	asset.Status = store.AssetReady
	asset.Error = ""
	if err := p.assets.UpdateAsset(ctx, asset); err != nil {
		return err
	}

	if len(extraction.Images) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, img := range extraction.Images {
		g.Go(func() error {
			p.processEmbedded(gctx, img, asset, ownerID)
			return nil
		})
	}
	return g.Wait()
}

// ExtractedFileName names an embedded image after a short random id and its
// MIME subtype.
func ExtractedFileName(mimeType string) string {
	ext := mimeType
	if i := strings.LastIndex(ext, "/"); i >= 0 {
		ext = ext[i+1:]
	}
	ext = strings.ReplaceAll(ext, "jpeg", "jpg")
	return fmt.Sprintf("extracted_%s.%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:8], ext)
}

func (p *Pipeline) processEmbedded(ctx context.Context, img EmbeddedImage, parent *store.Asset, ownerID string) {
	name := ExtractedFileName(img.MimeType)
	storagePath := ownerID + "/" + parent.PageID + "/" + name

	publicURL, err := p.blobs.Put(ctx, storagePath, img.Data, img.MimeType)
	if err != nil {
		p.log.Warn("Upload of extracted image %s failed: %v", storagePath, err)
		return
	}

	child := &store.Asset{
		PageID:           parent.PageID,
		OwnerID:          ownerID,
		ParentAssetID:    parent.ID,
		AssetType:        store.AssetExtractedImage,
		Status:           store.AssetProcessing,
		FileName:         name,
		OriginalFileName: name,
		FileType:         img.MimeType,
		StoragePath:      storagePath,
		PublicURL:        publicURL,
		Width:            img.Width,
		Height:           img.Height,
		FileSizeBytes:    int64(len(img.Data)),
	}
	if err := p.assets.InsertAsset(ctx, child); err != nil {
		p.log.Warn("Failed to record extracted image %s: %v", name, err)
		return
	}

	result, err := p.analyze(ctx, img.Data, img.MimeType)
	if err != nil {
		p.log.Warn("Vision failed for extracted image %s: %v", name, err)
		p.fail(ctx, child, childVisionFailed)
		return
	}
	applyVision(child, result)
	child.Status = store.AssetReady
	if err := p.assets.UpdateAsset(ctx, child); err != nil {
		p.log.Warn("Failed to store vision result for %s: %v", name, err)
	}
}
