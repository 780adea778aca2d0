package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/koios/countdown-renderer/internal/canvas"
	"github.com/koios/countdown-renderer/internal/countdown"
	"github.com/koios/countdown-renderer/internal/gifenc"
	"go.uber.org/zap"
)

// RenderJob represents a render request to be processed by a worker
type RenderJob struct {
	Config countdown.RenderConfig
	Path   string
	Result chan *JobResult
}

// JobResult contains the result of a render job
type JobResult struct {
	Summary countdown.Summary
	Error   error
}

// WorkerPool manages a pool of render workers for concurrent processing.
// Each job gets its own canvas and encoder; only the font registry and the
// stateless renderer are shared between workers.
type WorkerPool struct {
	workers  int
	jobQueue chan *RenderJob
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	fonts    canvas.FontSource
	renderer *countdown.Renderer

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int, fonts canvas.FontSource, renderer *countdown.Renderer, logger *zap.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 4 // default to 4 workers
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan *RenderJob, workers*2), // buffer for 2x workers
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		fonts:    fonts,
		renderer: renderer,
	}
}

// Start launches all worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info("Starting render worker pool",
		zap.Int("workers", wp.workers),
		zap.Int("queue_size", cap(wp.jobQueue)))

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop rejects new jobs, lets running renders finish and waits for the workers.
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping render worker pool")
	wp.cancel()

	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.logger.Info("Render worker pool stopped")
}

// Submit queues a render of cfg into path and waits for it. If ctx ends first
// Submit returns ctx.Err(); a job already picked up still runs to completion.
func (wp *WorkerPool) Submit(ctx context.Context, cfg countdown.RenderConfig, path string) (countdown.Summary, error) {
	resultChan := make(chan *JobResult, 1)

	job := &RenderJob{
		Config: cfg,
		Path:   path,
		Result: resultChan,
	}

	if err := ctx.Err(); err != nil {
		return countdown.Summary{}, err
	}

	wp.mu.RLock()
	if wp.stopped {
		wp.mu.RUnlock()
		return countdown.Summary{}, fmt.Errorf("worker pool is shutting down")
	}
	select {
	case wp.jobQueue <- job:
		// Job submitted
	case <-ctx.Done():
		wp.mu.RUnlock()
		return countdown.Summary{}, ctx.Err()
	case <-wp.ctx.Done():
		wp.mu.RUnlock()
		return countdown.Summary{}, fmt.Errorf("worker pool is shutting down")
	}
	wp.mu.RUnlock()

	select {
	case result := <-resultChan:
		return result.Summary, result.Error
	case <-ctx.Done():
		return countdown.Summary{}, ctx.Err()
	}
}

// worker is the main loop for a single worker. Queued jobs are drained
// before the worker exits.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug("Render worker started", zap.Int("worker_id", id))

	for job := range wp.jobQueue {
		wp.processJob(id, job)
	}
	wp.logger.Debug("Render worker stopping (queue closed)", zap.Int("worker_id", id))
}

// processJob handles a single render job
func (wp *WorkerPool) processJob(workerID int, job *RenderJob) {
	wp.logger.Debug("Worker processing job",
		zap.Int("worker_id", workerID),
		zap.String("name", job.Config.Name))

	summary, err := wp.render(job.Config, job.Path)

	job.Result <- &JobResult{
		Summary: summary,
		Error:   err,
	}
	close(job.Result)

	if err != nil {
		wp.logger.Debug("Worker completed job with error",
			zap.Int("worker_id", workerID),
			zap.String("name", job.Config.Name),
			zap.Error(err))
	} else {
		wp.logger.Debug("Worker completed job successfully",
			zap.Int("worker_id", workerID),
			zap.String("name", job.Config.Name))
	}
}

func (wp *WorkerPool) render(cfg countdown.RenderConfig, path string) (countdown.Summary, error) {
	surface := canvas.New(cfg.Width, cfg.Height, wp.fonts)
	defer surface.Close()

	sink := gifenc.NewFileEncoder(path, wp.logger)
	return wp.renderer.Render(cfg, surface, sink)
}
