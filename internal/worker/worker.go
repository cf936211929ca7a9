package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/production"
	"github.com/bobarin/director/internal/queue"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// JobTracker records job lifecycles. *db.DB implements it.
type JobTracker interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// Archiver uploads finished artifacts. *storage.Storage implements it.
type Archiver interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	GetPublicURL(objectPath string) string
	ProductionPath(productionID uuid.UUID, filename string) string
}

type Worker struct {
	controller *production.Controller
	queue      *queue.Queue // nil when jobs run in-process
	storage    Archiver     // nil = artifacts are not archived
	jobs       JobTracker   // nil = jobs are not recorded
	uploadSem  chan struct{}
	now        func() time.Time
}

func New(controller *production.Controller, q *queue.Queue, stor Archiver, jobs JobTracker) *Worker {
	return &Worker{
		controller: controller,
		queue:      q,
		storage:    stor,
		jobs:       jobs,
		uploadSem:  make(chan struct{}, 2), // Allow max 2 concurrent uploads
		now:        time.Now,
	}
}

// uploadWithLimit wraps an upload call with a semaphore so archive uploads never
// pile up against the storage API.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
		// Acquired slot
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start processes jobs from all Redis queues until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) error {
	if w.queue == nil {
		return fmt.Errorf("worker has no queue")
	}
	log.Printf("[Worker] Started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		for _, name := range queue.Queues {
			go w.processQueue(ctx, name)
		}
	}

	<-ctx.Done()
	log.Println("[Worker] Shutting down...")
	return nil
}

func (w *Worker) processQueue(ctx context.Context, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, 5*time.Second, queueName)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing from %s: %v", queueName, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			w.Process(ctx, job)
		}
	}
}

// Process runs one job and records its outcome.
func (w *Worker) Process(ctx context.Context, job *queue.Job) {
	log.Printf("[Worker] Processing job %s (type: %s, production: %s)", job.ID, job.Type, job.ProductionID)

	w.track(ctx, job)

	if err := w.Handle(ctx, job); err != nil {
		log.Printf("[Worker] Job %s failed: %v", job.ID, err)
		if w.jobs != nil {
			if err := w.jobs.UpdateJobError(context.WithoutCancel(ctx), job.ID, err.Error()); err != nil {
				log.Printf("[Worker] Failed to record job error: %v", err)
			}
		}
		return
	}

	log.Printf("[Worker] Job %s completed successfully", job.ID)
	if w.jobs != nil {
		if err := w.jobs.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, models.JobStatusSucceeded); err != nil {
			log.Printf("[Worker] Failed to update job status: %v", err)
		}
	}
}

func (w *Worker) track(ctx context.Context, job *queue.Job) {
	if w.jobs == nil {
		return
	}
	record := &models.Job{
		ID:           job.ID,
		ProductionID: job.ProductionID,
		Type:         job.Type,
		Status:       models.JobStatusQueued,
	}
	if err := w.jobs.CreateJob(ctx, record); err != nil {
		log.Printf("[Worker] Failed to record job %s: %v", job.ID, err)
		return
	}
	if err := w.jobs.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
		log.Printf("[Worker] Failed to update job status: %v", err)
	}
}

// Handle dispatches a job to its handler.
func (w *Worker) Handle(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeProduce:
		return w.handleProduce(ctx, job)
	case queue.JobTypeGenerateSeo:
		return w.handleGenerateSeo(ctx, job)
	case queue.JobTypeGenerateThumbnail:
		return w.handleGenerateThumbnail(ctx, job)
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

// handleProduce runs the batch loop, then archives the script and any thumbnail.
func (w *Worker) handleProduce(ctx context.Context, job *queue.Job) error {
	if err := w.controller.Run(ctx, job.ProductionID); err != nil {
		return fmt.Errorf("failed to generate script: %w", err)
	}
	return w.archive(ctx, job.ProductionID, true, false)
}

func (w *Worker) handleGenerateSeo(ctx context.Context, job *queue.Job) error {
	if err := w.controller.RunSeo(ctx, job.ProductionID); err != nil {
		return fmt.Errorf("failed to generate SEO assets: %w", err)
	}
	return w.archive(ctx, job.ProductionID, true, false)
}

func (w *Worker) handleGenerateThumbnail(ctx context.Context, job *queue.Job) error {
	if job.Thumbnail == nil {
		return fmt.Errorf("thumbnail request missing")
	}
	if err := w.controller.RunThumbnail(ctx, job.ProductionID, *job.Thumbnail); err != nil {
		return fmt.Errorf("failed to generate thumbnail: %w", err)
	}
	return w.archive(ctx, job.ProductionID, false, true)
}

// archive uploads the export document and/or the current thumbnail in parallel and
// records their public URLs.
func (w *Worker) archive(ctx context.Context, id uuid.UUID, script, thumbnail bool) error {
	if w.storage == nil {
		return nil
	}

	p, err := w.controller.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load production: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if script && len(p.State.Scenes) > 0 {
		g.Go(func() error {
			data, err := json.MarshalIndent(models.NewExportDocument(p, w.now()), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal export: %w", err)
			}
			path := w.storage.ProductionPath(id, director.ExportFilename(p.State.Title))
			if err := w.uploadWithLimit(gctx, "script.json", func() error {
				return w.storage.Upload(gctx, path, data, "application/json")
			}); err != nil {
				return fmt.Errorf("failed to upload script: %w", err)
			}
			return w.controller.RecordScriptURL(gctx, id, w.storage.GetPublicURL(path))
		})
	}

	if thumbnail && p.Thumbnail != nil {
		g.Go(func() error {
			mimeType, data, err := director.DecodeDataURI(p.Thumbnail.DataURI)
			if err != nil {
				return fmt.Errorf("failed to decode thumbnail: %w", err)
			}
			path := w.storage.ProductionPath(id, director.ThumbnailFilename(p.Thumbnail.Text))
			if err := w.uploadWithLimit(gctx, "thumbnail", func() error {
				return w.storage.Upload(gctx, path, data, mimeType)
			}); err != nil {
				return fmt.Errorf("failed to upload thumbnail: %w", err)
			}
			return w.controller.RecordThumbnailURL(gctx, id, w.storage.GetPublicURL(path))
		})
	}

	return g.Wait()
}
