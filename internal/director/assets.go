package director

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/retry"
	"github.com/bobarin/director/internal/services"
	"google.golang.org/genai"
)

var stringList = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

var seoSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":                    {Type: genai.TypeString},
		"description":              {Type: genai.TypeString},
		"hashtags":                 stringList,
		"keywords":                 {Type: genai.TypeString},
		"thumbnailPrompt":          {Type: genai.TypeString},
		"thumbnailTextSuggestions": stringList,
		"nextThemeSuggestions":     stringList,
	},
	Required: []string{"title", "description", "hashtags", "keywords", "thumbnailPrompt", "thumbnailTextSuggestions", "nextThemeSuggestions"},
}

// GenerateSeoAssets produces the SEO package for a finished script. Every call is
// a fresh request; the whole call is retried on quota failures.
func (d *Director) GenerateSeoAssets(ctx context.Context, title string, scenes []models.Scene, lang models.Language) (*models.SeoData, error) {
	sreq := services.StructuredRequest{
		Name:   "seo",
		Model:  d.cfg.SeoModel,
		Prompt: seoPrompt(title, scenes, lang),
		Schema: seoSchema,
	}

	log.Printf("[Director] Generating SEO assets for %q (%d scenes)", title, len(scenes))

	seo, err := retry.Do(ctx, d.policy("seo assets"), func(ctx context.Context) (*models.SeoData, error) {
		raw, err := d.text.GenerateStructured(ctx, sreq)
		if err != nil {
			return nil, err
		}
		return parseSeo(raw)
	})
	if err != nil {
		log.Printf("[Director] SEO generation failed: %v", err)
		return nil, wrapFailure("generate_seo", lang, err, msgSeoQuota, msgSeoFailure)
	}
	return seo, nil
}

func parseSeo(raw []byte) (*models.SeoData, error) {
	var seo models.SeoData
	if err := json.Unmarshal(raw, &seo); err != nil {
		return nil, fmt.Errorf("%w: failed to parse SEO data: %v", ErrMalformedResponse, err)
	}

	seo.Title = strings.TrimSpace(seo.Title)
	seo.Description = strings.TrimSpace(seo.Description)
	seo.Keywords = strings.TrimSpace(seo.Keywords)
	seo.ThumbnailPrompt = strings.TrimSpace(seo.ThumbnailPrompt)
	seo.Hashtags = compact(seo.Hashtags)
	seo.ThumbnailTextSuggestions = compact(seo.ThumbnailTextSuggestions)
	seo.NextThemeSuggestions = compact(seo.NextThemeSuggestions)

	var missing []string
	for field, empty := range map[string]bool{
		"title":                    seo.Title == "",
		"description":              seo.Description == "",
		"keywords":                 seo.Keywords == "",
		"thumbnailPrompt":          seo.ThumbnailPrompt == "",
		"hashtags":                 len(seo.Hashtags) == 0,
		"thumbnailTextSuggestions": len(seo.ThumbnailTextSuggestions) == 0,
		"nextThemeSuggestions":     len(seo.NextThemeSuggestions) == 0,
	} {
		if empty {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: SEO data missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}
	return &seo, nil
}

// compact trims entries and drops empty ones.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
