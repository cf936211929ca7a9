// Package director generates BeamNG-style action scripts, their SEO assets and
// thumbnails on top of a structured-output model and an image model.
package director

import (
	"github.com/bobarin/director/internal/retry"
	"github.com/bobarin/director/internal/services"
)

// Config selects models and the retry policy applied to every model call.
type Config struct {
	ScriptModel string
	SeoModel    string
	ImageModel  string
	AspectRatio string

	// Retry is the base policy. Its Retryable predicate is replaced by the quota check.
	Retry retry.Policy
}

// Director owns the prompt construction, response validation and error
// classification for every generation step.
type Director struct {
	text   services.StructuredGenerator
	images services.ImageGenerator
	cfg    Config
}

// New creates a Director. images may be nil when thumbnails are not needed.
func New(text services.StructuredGenerator, images services.ImageGenerator, cfg Config) *Director {
	if cfg.ScriptModel == "" {
		cfg.ScriptModel = services.DefaultScriptModel
	}
	if cfg.SeoModel == "" {
		cfg.SeoModel = services.DefaultSeoModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = services.DefaultImageModel
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = services.DefaultAspectRatio
	}
	if cfg.Retry.MaxAttempts == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = retry.DefaultPolicy("", nil)
	}
	return &Director{text: text, images: images, cfg: cfg}
}

// ImageModel returns the default image model.
func (d *Director) ImageModel() string {
	return d.cfg.ImageModel
}

// AspectRatio returns the default thumbnail aspect ratio.
func (d *Director) AspectRatio() string {
	return d.cfg.AspectRatio
}

func (d *Director) policy(name string) retry.Policy {
	p := d.cfg.Retry
	p.Name = name
	p.Retryable = services.IsQuotaError
	return p
}
