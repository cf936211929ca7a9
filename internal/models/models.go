package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageVietnamese Language = "vi"
)

// ParseLanguage accepts "en"/"vi" in any case. Unknown values return false.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish, true
	case LanguageVietnamese:
		return LanguageVietnamese, true
	}
	return "", false
}

// DisplayName is the language name used inside model prompts.
func (l Language) DisplayName() string {
	if l == LanguageVietnamese {
		return "Vietnamese"
	}
	return "English"
}

type ProductionStatus string

const (
	ProductionStatusIdle       ProductionStatus = "idle"
	ProductionStatusGenerating ProductionStatus = "generating"
	ProductionStatusCompleted  ProductionStatus = "completed"
	ProductionStatusFailed     ProductionStatus = "failed"
)

const (
	// ScenesPerBatch is the number of scene ids requested per model call.
	ScenesPerBatch = 5

	MinTotalScenes     = 1
	MaxTotalScenes     = 100
	DefaultTotalScenes = 38
)

// ClampTotalScenes forces a requested scene count into [MinTotalScenes, MaxTotalScenes].
func ClampTotalScenes(total int) int {
	if total < MinTotalScenes {
		return MinTotalScenes
	}
	if total > MaxTotalScenes {
		return MaxTotalScenes
	}
	return total
}

// BatchCount returns ceil(total/ScenesPerBatch).
func BatchCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + ScenesPerBatch - 1) / ScenesPerBatch
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Models

// Scene is one 8-second shot of the script. JSON keys match the model output schema
// and the export document.
type Scene struct {
	ID            int    `json:"id"`
	Prompt        string `json:"prompt"`
	SoundVoice    string `json:"soundVoice"`
	PhysicsDetail string `json:"physicsDetail"`
}

// SeoData holds the marketing assets derived from a finished script.
type SeoData struct {
	Title                    string   `json:"title"`
	Description              string   `json:"description"`
	Hashtags                 []string `json:"hashtags"`
	Keywords                 string   `json:"keywords"`
	ThumbnailPrompt          string   `json:"thumbnailPrompt"`
	ThumbnailTextSuggestions []string `json:"thumbnailTextSuggestions"`
	NextThemeSuggestions     []string `json:"nextThemeSuggestions"`
}

// ProductionState is the script generation state. It is only ever replaced as a whole.
type ProductionState struct {
	Title        string  `json:"title"`
	TotalScenes  int     `json:"total_scenes"`
	CurrentBatch int     `json:"current_batch"`
	Scenes       []Scene `json:"scenes"`
	IsGenerating bool    `json:"is_generating"`
	Error        *string `json:"error,omitempty"`
}

// Progress returns the share of generated scenes in percent.
func (s ProductionState) Progress() float64 {
	if s.TotalScenes <= 0 {
		return 0
	}
	return float64(len(s.Scenes)) / float64(s.TotalScenes) * 100
}

// Status derives a coarse status for listings.
func (s ProductionState) Status() ProductionStatus {
	switch {
	case s.IsGenerating:
		return ProductionStatusGenerating
	case s.Error != nil:
		return ProductionStatusFailed
	case s.CurrentBatch > 0 && s.CurrentBatch >= BatchCount(s.TotalScenes):
		return ProductionStatusCompleted
	}
	return ProductionStatusIdle
}

// Clone returns a deep copy so callers never share the scene slice.
func (s ProductionState) Clone() ProductionState {
	out := s
	if s.Scenes != nil {
		out.Scenes = make([]Scene, len(s.Scenes))
		copy(out.Scenes, s.Scenes)
	}
	out.Error = cloneString(s.Error)
	return out
}

// Thumbnail is a generated image kept as a data URI.
type Thumbnail struct {
	DataURI     string    `json:"data_uri"`
	Model       string    `json:"model"`
	AspectRatio string    `json:"aspect_ratio"`
	Text        string    `json:"text"`
	Prompt      string    `json:"prompt"`
	CreatedAt   time.Time `json:"created_at"`
}

// Production is a session: one script state plus the assets layered on top of it.
type Production struct {
	ID                uuid.UUID       `json:"id"`
	Language          Language        `json:"language"`
	State             ProductionState `json:"state"`
	Seo               *SeoData        `json:"seo,omitempty"`
	IsGeneratingSeo   bool            `json:"is_generating_seo"`
	SeoError          *string         `json:"seo_error,omitempty"`
	Thumbnail         *Thumbnail      `json:"thumbnail,omitempty"`
	IsGeneratingImage bool            `json:"is_generating_image"`
	ImageError        *string         `json:"image_error,omitempty"`
	ScriptURL         *string         `json:"script_url,omitempty"`    // Archived export JSON
	ThumbnailURL      *string         `json:"thumbnail_url,omitempty"` // Archived thumbnail PNG
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the production.
func (p *Production) Clone() *Production {
	if p == nil {
		return nil
	}
	out := *p
	out.State = p.State.Clone()
	if p.Seo != nil {
		seo := *p.Seo
		seo.Hashtags = append([]string(nil), p.Seo.Hashtags...)
		seo.ThumbnailTextSuggestions = append([]string(nil), p.Seo.ThumbnailTextSuggestions...)
		seo.NextThemeSuggestions = append([]string(nil), p.Seo.NextThemeSuggestions...)
		out.Seo = &seo
	}
	if p.Thumbnail != nil {
		thumb := *p.Thumbnail
		out.Thumbnail = &thumb
	}
	out.SeoError = cloneString(p.SeoError)
	out.ImageError = cloneString(p.ImageError)
	out.ScriptURL = cloneString(p.ScriptURL)
	out.ThumbnailURL = cloneString(p.ThumbnailURL)
	return &out
}

// Value stores the production as a JSONB document.
func (p Production) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan loads a production from a JSONB document.
func (p *Production) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("production document is null")
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported production document type %T", value)
	}
	return json.Unmarshal(data, p)
}

// Job records one background action of a production.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	ProductionID uuid.UUID  `json:"production_id"`
	Type         string     `json:"type"`
	Status       JobStatus  `json:"status"`
	Attempts     int        `json:"attempts"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ExportDocument is the downloadable script file.
type ExportDocument struct {
	Project     string    `json:"project"`
	TotalScenes int       `json:"totalScenes"`
	Timestamp   time.Time `json:"timestamp"`
	Scenes      []Scene   `json:"scenes"`
	Seo         *SeoData  `json:"seo"`
}

// NewExportDocument snapshots a production for download.
func NewExportDocument(p *Production, now time.Time) ExportDocument {
	c := p.Clone()
	scenes := c.State.Scenes
	if scenes == nil {
		scenes = []Scene{}
	}
	return ExportDocument{
		Project:     c.State.Title,
		TotalScenes: c.State.TotalScenes,
		Timestamp:   now.UTC(),
		Scenes:      scenes,
		Seo:         c.Seo,
	}
}

// ThumbnailRequest carries the user's choices for a thumbnail render.
// Empty fields fall back to the SEO data and configured defaults.
type ThumbnailRequest struct {
	Prompt      string `json:"prompt,omitempty"`
	Text        string `json:"text,omitempty"`
	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// DTOs for API requests and responses

type CreateProductionRequest struct {
	Topic       string  `json:"topic"`
	TotalScenes *int    `json:"total_scenes,omitempty"` // Default: 38
	Language    *string `json:"language,omitempty"`     // Default: env DEFAULT_LANGUAGE
}

type StartProductionRequest struct {
	Topic       string `json:"topic"`
	TotalScenes *int   `json:"total_scenes,omitempty"`
}

type CreateProductionResponse struct {
	ProductionID uuid.UUID        `json:"production_id"`
	Status       ProductionStatus `json:"status"`
}

// ProductionResponse is the snapshot returned to clients. The thumbnail payload is
// served separately so snapshots stay small.
type ProductionResponse struct {
	Production
	Status        ProductionStatus `json:"status"`
	Progress      float64          `json:"progress"`
	BatchCount    int              `json:"batch_count"`
	QuotaExceeded bool             `json:"quota_exceeded"`
	HasThumbnail  bool             `json:"has_thumbnail"`
}

type ProductionSummary struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Language    Language         `json:"language"`
	TotalScenes int              `json:"total_scenes"`
	SceneCount  int              `json:"scene_count"`
	Status      ProductionStatus `json:"status"`
	HasSeo      bool             `json:"has_seo"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ListProductionsResponse struct {
	Productions []ProductionSummary `json:"productions"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
