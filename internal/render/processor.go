// Package render turns render requests into GIF artifacts on disk. It owns
// artifact naming, the bounded worker pool and the optional Redis index.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/koios/countdown-renderer/internal/config"
	"github.com/koios/countdown-renderer/internal/countdown"
	"github.com/koios/countdown-renderer/pkg/models"
	"go.uber.org/zap"
)

// Processor handles countdown render requests
type Processor struct {
	config   *config.RenderConfig
	logger   *zap.Logger
	pool     *WorkerPool
	index    *RenderIndex // nil when Redis is disabled
	location *time.Location
	timeout  time.Duration
}

// NewProcessor creates a processor rendering through pool. index may be nil.
func NewProcessor(cfg *config.RenderConfig, pool *WorkerPool, index *RenderIndex, logger *zap.Logger) (*Processor, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timeout := time.Duration(cfg.JobTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Processor{
		config:   cfg,
		logger:   logger,
		pool:     pool,
		index:    index,
		location: loc,
		timeout:  timeout,
	}, nil
}

// Prepare derives the artifact name and the normalized render configuration
// for params. Errors are *countdown.ConfigError.
func (p *Processor) Prepare(params map[string]string) (countdown.RenderConfig, error) {
	opts, err := countdown.ParseOptions(params)
	if err != nil {
		return countdown.RenderConfig{}, err
	}

	cfg, err := countdown.Normalize(opts, p.location)
	if err != nil {
		return countdown.RenderConfig{}, err
	}

	cfg.Name = ArtifactName(params)
	cfg.Encoding = countdown.EncodeOptions{
		LoopCount:   p.config.LoopCount,
		DelayMillis: p.config.FrameDelay,
		Quality:     p.config.Quality,
	}
	return cfg, nil
}

// Render renders the countdown described by request.Params and returns the
// location and metadata of the written artifact.
func (p *Processor) Render(ctx context.Context, request *models.RenderRequest) (*models.RenderResult, error) {
	cfg, err := p.Prepare(request.Params)
	if err != nil {
		return nil, err
	}

	renderCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	path := p.OutputPath(cfg.Name)
	start := time.Now()

	summary, err := p.pool.Submit(renderCtx, cfg, path)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", cfg.Name, err)
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	result := &models.RenderResult{
		Type:        models.RenderResultType,
		ID:          request.ID,
		Name:        cfg.Name,
		Path:        path,
		Passed:      summary.Passed,
		Frames:      summary.Frames,
		Width:       cfg.Width,
		Height:      cfg.Height,
		SizeBytes:   size,
		ProcessedAt: time.Now(),
	}

	p.logger.Debug("Countdown render completed",
		zap.String("name", cfg.Name),
		zap.String("request_id", request.ID),
		zap.Bool("passed", summary.Passed),
		zap.Int("frames", summary.Frames),
		zap.Int64("output_size", size),
		zap.Duration("duration", time.Since(start)))

	if p.index != nil {
		rec := &RenderRecord{
			Name:       cfg.Name,
			Path:       path,
			Passed:     summary.Passed,
			Frames:     summary.Frames,
			Width:      cfg.Width,
			Height:     cfg.Height,
			SizeBytes:  size,
			TargetTime: cfg.TargetTime,
			RenderedAt: result.ProcessedAt,
		}
		if err := p.index.Record(ctx, rec); err != nil {
			p.logger.Warn("Failed to record render in index", zap.String("name", cfg.Name), zap.Error(err))
		}
	}

	return result, nil
}

// OutputPath returns the artifact path for name.
func (p *Processor) OutputPath(name string) string {
	return filepath.Join(p.config.OutputPath, name+".gif")
}

// OutputDir returns the directory artifacts are written to.
func (p *Processor) OutputDir() string {
	return p.config.OutputPath
}

// Index returns the render index, or nil when none is configured.
func (p *Processor) Index() *RenderIndex {
	return p.index
}

// Close closes the processor and any associated resources
func (p *Processor) Close() error {
	if p.index != nil {
		return p.index.Close()
	}
	return nil
}
