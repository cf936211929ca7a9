// Package production owns the production lifecycle: the sequential batch loop,
// the SEO and thumbnail actions and the in-flight guards around them.
package production

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/models"
	"github.com/google/uuid"
)

var (
	ErrProductionInFlight = errors.New("production has an action in flight")
	ErrEmptyTopic         = errors.New("topic is required")
	ErrNoScript           = errors.New("production has no completed script")
	ErrNoThumbnailPrompt  = errors.New("no thumbnail prompt available")
	ErrNotStarted         = errors.New("production is not generating")
)

type SceneGenerator interface {
	GenerateBatch(ctx context.Context, req director.BatchRequest) ([]models.Scene, error)
}

type AssetGenerator interface {
	GenerateSeoAssets(ctx context.Context, title string, scenes []models.Scene, lang models.Language) (*models.SeoData, error)
}

type ThumbnailGenerator interface {
	GenerateThumbnail(ctx context.Context, model, prompt, aspectRatio string) (string, error)
}

// Observer receives every published snapshot.
type Observer func(p *models.Production)

type Option func(*Controller)

// WithObserver registers a callback invoked after each state publish.
func WithObserver(fn Observer) Option {
	return func(c *Controller) { c.observe = fn }
}

// WithDefaultLanguage sets the language of productions created without one.
func WithDefaultLanguage(lang models.Language) Option {
	return func(c *Controller) { c.language = lang }
}

// WithThumbnailDefaults sets the model and aspect ratio used when a request leaves them empty.
func WithThumbnailDefaults(model, aspectRatio string) Option {
	return func(c *Controller) {
		c.imageModel = model
		c.aspectRatio = aspectRatio
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller drives productions held in a Store.
type Controller struct {
	store   Store
	scenes  SceneGenerator
	assets  AssetGenerator
	images  ThumbnailGenerator
	observe Observer

	language    models.Language
	imageModel  string
	aspectRatio string
	now         func() time.Time
}

func NewController(store Store, scenes SceneGenerator, assets AssetGenerator, images ThumbnailGenerator, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		scenes:   scenes,
		assets:   assets,
		images:   images,
		language: models.LanguageVietnamese,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create stores a new idle production.
func (c *Controller) Create(ctx context.Context, topic string, totalScenes int, lang models.Language) (*models.Production, error) {
	if lang == "" {
		lang = c.language
	}
	now := c.now()
	p := &models.Production{
		ID:       uuid.New(),
		Language: lang,
		State: models.ProductionState{
			Title:       strings.TrimSpace(topic),
			TotalScenes: models.ClampTotalScenes(totalScenes),
			Scenes:      []models.Scene{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create production: %w", err)
	}
	return p, nil
}

func (c *Controller) Get(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	return c.store.Get(ctx, id)
}

func (c *Controller) List(ctx context.Context, limit, offset int) ([]*models.Production, int, error) {
	return c.store.List(ctx, limit, offset)
}

// Start resets the production to a fresh generating state. It is refused while
// any action of the production is in flight; running work is never cancelled.
func (c *Controller) Start(ctx context.Context, id uuid.UUID, topic string, totalScenes int) (*models.Production, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyTopic
	}
	p, err := c.store.Update(ctx, id, func(p *models.Production) (*models.Production, error) {
		if busy(p) {
			return nil, ErrProductionInFlight
		}
		return started(p, topic, totalScenes), nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(p)
	return p, nil
}

// Run executes the batch loop of a started production. Batches are requested one
// after another because each prompt depends on the previous batch's last scene.
// The first failure halts the loop; scenes generated so far are kept.
func (c *Controller) Run(ctx context.Context, id uuid.UUID) error {
	p, err := c.store.Get(context.WithoutCancel(ctx), id)
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return c.halt(ctx, id, fmt.Errorf("failed to load production: %w", err))
	}
	if !p.State.IsGenerating {
		return ErrNotStarted
	}

	batches := models.BatchCount(p.State.TotalScenes)
	log.Printf("[Controller] Production %s: %d scenes in %d batches", id, p.State.TotalScenes, batches)

	for batch := p.State.CurrentBatch + 1; batch <= batches; batch++ {
		scenes, genErr := c.scenes.GenerateBatch(ctx, director.BatchRequest{
			Topic:          p.State.Title,
			TotalScenes:    p.State.TotalScenes,
			Batch:          batch,
			PreviousScenes: p.State.Scenes,
			Language:       p.Language,
		})
		if genErr != nil {
			log.Printf("[Controller] Production %s halted at batch %d/%d: %v", id, batch, batches, genErr)
			return c.halt(ctx, id, genErr)
		}

		// A batch in hand is stored even when ctx was cancelled meanwhile.
		p, err = c.store.Update(context.WithoutCancel(ctx), id, func(p *models.Production) (*models.Production, error) {
			next := p.Clone()
			next.State = ApplyBatch(p.State, scenes)
			return next, nil
		})
		if err != nil {
			return c.halt(ctx, id, fmt.Errorf("failed to store batch %d: %w", batch, err))
		}
		c.publish(p)
		log.Printf("[Controller] Production %s: batch %d/%d done (%d/%d scenes)", id, batch, batches, len(p.State.Scenes), p.State.TotalScenes)
	}

	if err := c.update(ctx, id, func(p *models.Production) *models.Production {
		next := p.Clone()
		next.State = Finish(p.State)
		return next
	}); err != nil {
		return fmt.Errorf("failed to finish production: %w", err)
	}
	log.Printf("[Controller] Production %s completed", id)
	return nil
}

// halt records cause as the production error and returns it. A production that
// is no longer generating is left as is.
func (c *Controller) halt(ctx context.Context, id uuid.UUID, cause error) error {
	if err := c.update(ctx, id, func(p *models.Production) *models.Production {
		if !p.State.IsGenerating {
			return p
		}
		next := p.Clone()
		next.State = Fail(p.State, cause.Error())
		return next
	}); err != nil {
		log.Printf("[Controller] Production %s: failed to record failure %q: %v", id, cause, err)
	}
	return cause
}

// RecoverInterrupted fails every action still flagged in flight. It is meant for
// startup when in-flight work died with the previous process.
func (c *Controller) RecoverInterrupted(ctx context.Context) (int, error) {
	productions, _, err := c.store.List(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list productions: %w", err)
	}

	recovered := 0
	for _, p := range productions {
		if !busy(p) {
			continue
		}
		if err := c.update(ctx, p.ID, interrupted); err != nil {
			return recovered, fmt.Errorf("failed to recover production %s: %w", p.ID, err)
		}
		log.Printf("[Controller] Production %s: interrupted action marked as failed", p.ID)
		recovered++
	}
	return recovered, nil
}

// Produce starts and runs a production in the calling goroutine.
func (c *Controller) Produce(ctx context.Context, id uuid.UUID, topic string, totalScenes int) error {
	if _, err := c.Start(ctx, id, topic, totalScenes); err != nil {
		return err
	}
	return c.Run(ctx, id)
}

// Reset discards the story and its assets ("new story").
func (c *Controller) Reset(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	p, err := c.store.Update(ctx, id, func(p *models.Production) (*models.Production, error) {
		if busy(p) {
			return nil, ErrProductionInFlight
		}
		return cleared(p), nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(p)
	return p, nil
}

// BeginSeo marks SEO generation as in flight. The script must be complete.
func (c *Controller) BeginSeo(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	p, err := c.store.Update(ctx, id, func(p *models.Production) (*models.Production, error) {
		if p.IsGeneratingSeo {
			return nil, ErrProductionInFlight
		}
		if p.State.IsGenerating || len(p.State.Scenes) == 0 {
			return nil, ErrNoScript
		}
		return seoStarted(p), nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(p)
	return p, nil
}

// RunSeo generates SEO assets for a production marked by BeginSeo. A failure is
// recorded in SeoError and returned; the script and previous SEO data stay.
func (c *Controller) RunSeo(ctx context.Context, id uuid.UUID) error {
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsGeneratingSeo {
		return ErrNotStarted
	}

	seo, genErr := c.assets.GenerateSeoAssets(ctx, p.State.Title, p.State.Scenes, p.Language)
	if err := c.update(ctx, id, func(p *models.Production) *models.Production {
		return seoFinished(p, seo, genErr)
	}); err != nil {
		return fmt.Errorf("failed to store SEO result: %w", err)
	}
	if genErr != nil {
		log.Printf("[Controller] Production %s: SEO generation failed: %v", id, genErr)
		return genErr
	}
	log.Printf("[Controller] Production %s: SEO assets ready", id)
	return nil
}

// GenerateSeo runs BeginSeo and RunSeo in the calling goroutine.
func (c *Controller) GenerateSeo(ctx context.Context, id uuid.UUID) error {
	if _, err := c.BeginSeo(ctx, id); err != nil {
		return err
	}
	return c.RunSeo(ctx, id)
}

// BeginThumbnail resolves the request against the SEO data and defaults and marks
// image generation as in flight. The resolved request is returned for RunThumbnail.
func (c *Controller) BeginThumbnail(ctx context.Context, id uuid.UUID, req models.ThumbnailRequest) (models.ThumbnailRequest, error) {
	var resolved models.ThumbnailRequest
	p, err := c.store.Update(ctx, id, func(p *models.Production) (*models.Production, error) {
		if p.IsGeneratingImage {
			return nil, ErrProductionInFlight
		}
		resolved = c.resolveThumbnail(p, req)
		if resolved.Prompt == "" {
			return nil, ErrNoThumbnailPrompt
		}
		return thumbnailStarted(p), nil
	})
	if err != nil {
		return models.ThumbnailRequest{}, err
	}
	c.publish(p)
	return resolved, nil
}

// RunThumbnail renders a thumbnail for a production marked by BeginThumbnail. On
// failure ImageError is set and the previous thumbnail is kept.
func (c *Controller) RunThumbnail(ctx context.Context, id uuid.UUID, req models.ThumbnailRequest) error {
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsGeneratingImage {
		return ErrNotStarted
	}

	finalPrompt := director.BuildThumbnailPrompt(req.Prompt, req.Text)
	uri, genErr := c.images.GenerateThumbnail(ctx, req.Model, finalPrompt, req.AspectRatio)

	var thumb *models.Thumbnail
	if genErr == nil {
		thumb = &models.Thumbnail{
			DataURI:     uri,
			Model:       req.Model,
			AspectRatio: req.AspectRatio,
			Text:        req.Text,
			Prompt:      req.Prompt,
			CreatedAt:   c.now(),
		}
	}
	if err := c.update(ctx, id, func(p *models.Production) *models.Production {
		return thumbnailFinished(p, thumb, genErr)
	}); err != nil {
		return fmt.Errorf("failed to store thumbnail result: %w", err)
	}
	if genErr != nil {
		log.Printf("[Controller] Production %s: thumbnail generation failed: %v", id, genErr)
		return genErr
	}
	log.Printf("[Controller] Production %s: thumbnail ready (%s, %s)", id, req.Model, req.AspectRatio)
	return nil
}

// GenerateThumbnail runs BeginThumbnail and RunThumbnail in the calling goroutine.
func (c *Controller) GenerateThumbnail(ctx context.Context, id uuid.UUID, req models.ThumbnailRequest) error {
	resolved, err := c.BeginThumbnail(ctx, id, req)
	if err != nil {
		return err
	}
	return c.RunThumbnail(ctx, id, resolved)
}

// Export snapshots the production as a download document.
func (c *Controller) Export(ctx context.Context, id uuid.UUID) (models.ExportDocument, error) {
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return models.ExportDocument{}, err
	}
	return models.NewExportDocument(p, c.now()), nil
}

// Action names one of the independently triggered actions of a production.
type Action string

const (
	ActionScript    Action = "script"
	ActionSeo       Action = "seo"
	ActionThumbnail Action = "thumbnail"
)

// Abort ends an action that was marked in flight but never ran, for example
// because its job could not be dispatched. The cause is recorded like a failure.
func (c *Controller) Abort(ctx context.Context, id uuid.UUID, action Action, cause error) error {
	log.Printf("[Controller] Production %s: aborting %s: %v", id, action, cause)
	return c.update(ctx, id, func(p *models.Production) *models.Production {
		switch action {
		case ActionSeo:
			return seoFinished(p, nil, cause)
		case ActionThumbnail:
			return thumbnailFinished(p, nil, cause)
		}
		next := p.Clone()
		next.State = Fail(p.State, cause.Error())
		return next
	})
}

// RecordScriptURL stores the archive location of the exported script.
func (c *Controller) RecordScriptURL(ctx context.Context, id uuid.UUID, url string) error {
	return c.update(ctx, id, func(p *models.Production) *models.Production {
		next := p.Clone()
		next.ScriptURL = &url
		return next
	})
}

// RecordThumbnailURL stores the archive location of the current thumbnail.
func (c *Controller) RecordThumbnailURL(ctx context.Context, id uuid.UUID, url string) error {
	return c.update(ctx, id, func(p *models.Production) *models.Production {
		next := p.Clone()
		next.ThumbnailURL = &url
		return next
	})
}

func (c *Controller) resolveThumbnail(p *models.Production, req models.ThumbnailRequest) models.ThumbnailRequest {
	out := models.ThumbnailRequest{
		Prompt:      strings.TrimSpace(req.Prompt),
		Text:        strings.TrimSpace(req.Text),
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
	}
	if p.Seo != nil {
		if out.Prompt == "" {
			out.Prompt = p.Seo.ThumbnailPrompt
		}
		if out.Text == "" && len(p.Seo.ThumbnailTextSuggestions) > 0 {
			out.Text = p.Seo.ThumbnailTextSuggestions[0]
		}
	}
	if out.Model == "" {
		out.Model = c.imageModel
	}
	if out.AspectRatio == "" {
		out.AspectRatio = c.aspectRatio
	}
	return out
}

// update stores a result even when ctx was cancelled, so no production is left
// flagged as in flight after its work ended.
func (c *Controller) update(ctx context.Context, id uuid.UUID, fn func(*models.Production) *models.Production) error {
	p, err := c.store.Update(context.WithoutCancel(ctx), id, func(p *models.Production) (*models.Production, error) {
		return fn(p), nil
	})
	if err != nil {
		return err
	}
	c.publish(p)
	return nil
}

func (c *Controller) publish(p *models.Production) {
	if c.observe != nil {
		c.observe(p.Clone())
	}
}
