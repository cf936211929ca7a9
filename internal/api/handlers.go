package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/production"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Dispatcher hands started actions to a worker. *queue.Queue and *worker.Inline implement it.
type Dispatcher interface {
	DispatchProduction(ctx context.Context, productionID uuid.UUID) error
	DispatchSeo(ctx context.Context, productionID uuid.UUID) error
	DispatchThumbnail(ctx context.Context, productionID uuid.UUID, req models.ThumbnailRequest) error
}

// JobLister exposes recorded jobs. Only the Postgres store provides it.
type JobLister interface {
	ListProductionJobs(ctx context.Context, productionID uuid.UUID) ([]models.Job, error)
}

type HandlerConfig struct {
	DefaultLanguage    models.Language
	DefaultTotalScenes int
}

type Handler struct {
	controller *production.Controller
	dispatcher Dispatcher
	jobs       JobLister // nil = no job history
	cfg        HandlerConfig
}

func NewHandler(controller *production.Controller, dispatcher Dispatcher, jobs JobLister, cfg HandlerConfig) *Handler {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = models.LanguageVietnamese
	}
	if cfg.DefaultTotalScenes == 0 {
		cfg.DefaultTotalScenes = models.DefaultTotalScenes
	}
	return &Handler{
		controller: controller,
		dispatcher: dispatcher,
		jobs:       jobs,
		cfg:        cfg,
	}
}

// CreateProduction handles POST /v1/productions
func (h *Handler) CreateProduction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Topic) == "" {
		respondError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	lang := h.cfg.DefaultLanguage
	if req.Language != nil {
		parsed, ok := models.ParseLanguage(*req.Language)
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid language. Allowed: en, vi")
			return
		}
		lang = parsed
	}

	total := h.totalScenes(req.TotalScenes)

	p, err := h.controller.Create(r.Context(), req.Topic, total, lang)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create production")
		return
	}

	if !h.startProduction(w, r, p.ID, req.Topic, total) {
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateProductionResponse{
		ProductionID: p.ID,
		Status:       models.ProductionStatusGenerating,
	})
}

// StartProduction handles POST /v1/productions/{id}/start
func (h *Handler) StartProduction(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	var req models.StartProductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.startProduction(w, r, id, req.Topic, h.totalScenes(req.TotalScenes)) {
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateProductionResponse{
		ProductionID: id,
		Status:       models.ProductionStatusGenerating,
	})
}

func (h *Handler) startProduction(w http.ResponseWriter, r *http.Request, id uuid.UUID, topic string, total int) bool {
	if _, err := h.controller.Start(r.Context(), id, topic, total); err != nil {
		respondControllerError(w, err)
		return false
	}

	if err := h.dispatcher.DispatchProduction(r.Context(), id); err != nil {
		log.Printf("[API] Failed to dispatch production %s: %v", id, err)
		h.abort(r.Context(), id, production.ActionScript, err)
		respondError(w, http.StatusInternalServerError, "Failed to queue production")
		return false
	}
	return true
}

// ListProductions handles GET /v1/productions
func (h *Handler) ListProductions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	productions, total, err := h.controller.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list productions")
		return
	}

	// Lightweight summaries: no scenes, no thumbnail payload
	summaries := make([]models.ProductionSummary, 0, len(productions))
	for _, p := range productions {
		summaries = append(summaries, models.ProductionSummary{
			ID:          p.ID,
			Title:       p.State.Title,
			Language:    p.Language,
			TotalScenes: p.State.TotalScenes,
			SceneCount:  len(p.State.Scenes),
			Status:      p.State.Status(),
			HasSeo:      p.Seo != nil,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}

	respondJSON(w, http.StatusOK, models.ListProductionsResponse{
		Productions: summaries,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}

// GetProduction handles GET /v1/productions/{id}
func (h *Handler) GetProduction(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	p, err := h.controller.Get(r.Context(), id)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, buildProductionResponse(p))
}

// ResetProduction handles POST /v1/productions/{id}/reset
func (h *Handler) ResetProduction(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	p, err := h.controller.Reset(r.Context(), id)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, buildProductionResponse(p))
}

// GenerateSeo handles POST /v1/productions/{id}/seo
func (h *Handler) GenerateSeo(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	if _, err := h.controller.BeginSeo(r.Context(), id); err != nil {
		respondControllerError(w, err)
		return
	}

	if err := h.dispatcher.DispatchSeo(r.Context(), id); err != nil {
		log.Printf("[API] Failed to dispatch SEO for %s: %v", id, err)
		h.abort(r.Context(), id, production.ActionSeo, err)
		respondError(w, http.StatusInternalServerError, "Failed to queue SEO generation")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"production_id": id.String(), "status": "generating_seo"})
}

// GenerateThumbnail handles POST /v1/productions/{id}/thumbnail
func (h *Handler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	// An empty body asks for the defaults, whether or not its length was announced
	var req models.ThumbnailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resolved, err := h.controller.BeginThumbnail(r.Context(), id, req)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	if err := h.dispatcher.DispatchThumbnail(r.Context(), id, resolved); err != nil {
		log.Printf("[API] Failed to dispatch thumbnail for %s: %v", id, err)
		h.abort(r.Context(), id, production.ActionThumbnail, err)
		respondError(w, http.StatusInternalServerError, "Failed to queue thumbnail generation")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"production_id": id,
		"status":        "generating_image",
		"request":       resolved,
	})
}

// GetThumbnail handles GET /v1/productions/{id}/thumbnail
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	p, err := h.controller.Get(r.Context(), id)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	if p.Thumbnail == nil {
		respondError(w, http.StatusNotFound, "Thumbnail not ready")
		return
	}

	mimeType, data, err := director.DecodeDataURI(p.Thumbnail.DataURI)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Stored thumbnail is corrupt")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, director.ThumbnailFilename(p.Thumbnail.Text)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ExportProduction handles GET /v1/productions/{id}/export
func (h *Handler) ExportProduction(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	doc, err := h.controller.Export(r.Context(), id)
	if err != nil {
		respondControllerError(w, err)
		return
	}

	if len(doc.Scenes) == 0 {
		respondError(w, http.StatusNotFound, "Script not ready")
		return
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode export")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, director.ExportFilename(doc.Project)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetProductionJobs handles GET /v1/productions/{id}/debug/jobs
func (h *Handler) GetProductionJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := productionID(w, r)
	if !ok {
		return
	}

	if h.jobs == nil {
		respondError(w, http.StatusNotFound, "Job history is not recorded without a database")
		return
	}

	jobs, err := h.jobs.ListProductionJobs(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get jobs")
		return
	}

	respondJSON(w, http.StatusOK, jobs)
}

// Helper methods

func (h *Handler) totalScenes(requested *int) int {
	if requested == nil {
		return h.cfg.DefaultTotalScenes
	}
	return models.ClampTotalScenes(*requested)
}

func (h *Handler) abort(ctx context.Context, id uuid.UUID, action production.Action, cause error) {
	if err := h.controller.Abort(ctx, id, action, fmt.Errorf("failed to queue job: %w", cause)); err != nil {
		log.Printf("[API] Failed to abort %s for %s: %v", action, id, err)
	}
}

func productionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid production ID")
		return uuid.Nil, false
	}
	return id, true
}

// buildProductionResponse drops the thumbnail payload; it is served by GetThumbnail.
func buildProductionResponse(p *models.Production) models.ProductionResponse {
	out := p.Clone()
	hasThumbnail := out.Thumbnail != nil
	if hasThumbnail {
		out.Thumbnail.DataURI = ""
	}

	return models.ProductionResponse{
		Production:    *out,
		Status:        out.State.Status(),
		Progress:      out.State.Progress(),
		BatchCount:    models.BatchCount(out.State.TotalScenes),
		QuotaExceeded: out.State.Error != nil && director.IsQuotaMessage(*out.State.Error),
		HasThumbnail:  hasThumbnail,
	}
}

func respondControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, production.ErrNotFound):
		respondError(w, http.StatusNotFound, "Production not found")
	case errors.Is(err, production.ErrProductionInFlight):
		respondError(w, http.StatusConflict, "Production is busy: wait for the running action to finish")
	case errors.Is(err, production.ErrEmptyTopic):
		respondError(w, http.StatusBadRequest, "Topic is required")
	case errors.Is(err, production.ErrNoScript):
		respondError(w, http.StatusBadRequest, "Production has no completed script")
	case errors.Is(err, production.ErrNoThumbnailPrompt):
		respondError(w, http.StatusBadRequest, "No thumbnail prompt: provide one or generate SEO assets first")
	default:
		log.Printf("[API] Unexpected error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
