package production

import (
	"errors"
	"sort"
	"strings"

	"github.com/bobarin/director/internal/models"
)

// State transitions. Each function returns a new value and never mutates its input.

// Begin returns the state of a freshly started production.
func Begin(title string, totalScenes int) models.ProductionState {
	return models.ProductionState{
		Title:        strings.TrimSpace(title),
		TotalScenes:  models.ClampTotalScenes(totalScenes),
		CurrentBatch: 0,
		Scenes:       []models.Scene{},
		IsGenerating: true,
	}
}

// ApplyBatch merges one successful batch. The batch is ordered by id first; scenes
// with an id above the total or not after the last known id are dropped, so ids
// stay unique and strictly increasing.
// CurrentBatch counts successful calls even when nothing was kept.
func ApplyBatch(s models.ProductionState, batch []models.Scene) models.ProductionState {
	next := s.Clone()
	if next.Scenes == nil {
		next.Scenes = []models.Scene{}
	}
	last := 0
	if n := len(next.Scenes); n > 0 {
		last = next.Scenes[n-1].ID
	}
	ordered := append([]models.Scene(nil), batch...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, scene := range ordered {
		if scene.ID <= last || scene.ID > next.TotalScenes {
			continue
		}
		next.Scenes = append(next.Scenes, scene)
		last = scene.ID
	}
	next.CurrentBatch++
	return next
}

// Finish marks the batch loop as completed.
func Finish(s models.ProductionState) models.ProductionState {
	next := s.Clone()
	next.IsGenerating = false
	next.Error = nil
	return next
}

// Fail halts the batch loop and keeps every scene generated so far.
func Fail(s models.ProductionState, msg string) models.ProductionState {
	next := s.Clone()
	next.IsGenerating = false
	next.Error = &msg
	return next
}

// Reset discards the story. The scene target is kept for the next run.
func Reset(s models.ProductionState) models.ProductionState {
	return models.ProductionState{
		TotalScenes: s.TotalScenes,
		Scenes:      []models.Scene{},
	}
}

// Production-level transitions.

func started(p *models.Production, title string, totalScenes int) *models.Production {
	next := p.Clone()
	next.State = Begin(title, totalScenes)
	next.Seo = nil
	next.SeoError = nil
	next.Thumbnail = nil
	next.ImageError = nil
	next.ScriptURL = nil
	next.ThumbnailURL = nil
	return next
}

func cleared(p *models.Production) *models.Production {
	next := p.Clone()
	next.State = Reset(p.State)
	next.Seo = nil
	next.SeoError = nil
	next.Thumbnail = nil
	next.ImageError = nil
	next.ScriptURL = nil
	next.ThumbnailURL = nil
	return next
}

func seoStarted(p *models.Production) *models.Production {
	next := p.Clone()
	next.IsGeneratingSeo = true
	next.SeoError = nil
	return next
}

// seoFinished replaces the SEO data on success. On failure the previous data stays.
func seoFinished(p *models.Production, seo *models.SeoData, err error) *models.Production {
	next := p.Clone()
	next.IsGeneratingSeo = false
	if err != nil {
		msg := err.Error()
		next.SeoError = &msg
		return next
	}
	next.Seo = seo
	next.SeoError = nil
	return next
}

func thumbnailStarted(p *models.Production) *models.Production {
	next := p.Clone()
	next.IsGeneratingImage = true
	next.ImageError = nil
	return next
}

// thumbnailFinished replaces the thumbnail on success. On failure the previous image stays.
func thumbnailFinished(p *models.Production, thumb *models.Thumbnail, err error) *models.Production {
	next := p.Clone()
	next.IsGeneratingImage = false
	if err != nil {
		msg := err.Error()
		next.ImageError = &msg
		return next
	}
	next.Thumbnail = thumb
	next.ThumbnailURL = nil
	next.ImageError = nil
	return next
}

// ErrInterrupted is recorded for actions that were in flight when the process stopped.
var ErrInterrupted = errors.New("interrupted by a server restart, please try again")

func interrupted(p *models.Production) *models.Production {
	next := p.Clone()
	if p.State.IsGenerating {
		next.State = Fail(p.State, ErrInterrupted.Error())
	}
	if p.IsGeneratingSeo {
		next = seoFinished(next, nil, ErrInterrupted)
	}
	if p.IsGeneratingImage {
		next = thumbnailFinished(next, nil, ErrInterrupted)
	}
	return next
}

// busy reports whether any action of the production is in flight.
func busy(p *models.Production) bool {
	return p.State.IsGenerating || p.IsGeneratingSeo || p.IsGeneratingImage
}
