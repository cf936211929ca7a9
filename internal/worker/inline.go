package worker

import (
	"context"
	"sync"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/queue"
	"github.com/google/uuid"
)

// Inline runs dispatched jobs in goroutines of this process. It is used when no
// Redis queue is configured.
type Inline struct {
	worker *Worker
	ctx    context.Context
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewInline creates an in-process dispatcher. Jobs run under ctx, at most
// concurrency at a time.
func NewInline(ctx context.Context, w *Worker, concurrency int) *Inline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Inline{worker: w, ctx: ctx, sem: make(chan struct{}, concurrency)}
}

func (d *Inline) DispatchProduction(_ context.Context, productionID uuid.UUID) error {
	d.run(&queue.Job{ID: uuid.New(), Type: queue.JobTypeProduce, ProductionID: productionID})
	return nil
}

func (d *Inline) DispatchSeo(_ context.Context, productionID uuid.UUID) error {
	d.run(&queue.Job{ID: uuid.New(), Type: queue.JobTypeGenerateSeo, ProductionID: productionID})
	return nil
}

func (d *Inline) DispatchThumbnail(_ context.Context, productionID uuid.UUID, req models.ThumbnailRequest) error {
	d.run(&queue.Job{ID: uuid.New(), Type: queue.JobTypeGenerateThumbnail, ProductionID: productionID, Thumbnail: &req})
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *Inline) Wait() {
	d.wg.Wait()
}

func (d *Inline) run(job *queue.Job) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		d.worker.Process(d.ctx, job)
	}()
}
