package director

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/retry"
	"github.com/bobarin/director/internal/services"
	"google.golang.org/genai"
)

// BatchRequest describes one batch of the script.
type BatchRequest struct {
	Topic          string
	TotalScenes    int
	Batch          int // 1-indexed
	PreviousScenes []models.Scene
	Language       models.Language
}

// BatchRange returns the inclusive scene id range of a 1-indexed batch.
func BatchRange(total, batch int) (start, end int) {
	start = (batch-1)*models.ScenesPerBatch + 1
	end = batch * models.ScenesPerBatch
	if end > total {
		end = total
	}
	return start, end
}

var sceneSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":            {Type: genai.TypeInteger},
			"prompt":        {Type: genai.TypeString},
			"soundVoice":    {Type: genai.TypeString},
			"physicsDetail": {Type: genai.TypeString},
		},
		Required: []string{"id", "prompt", "soundVoice", "physicsDetail"},
	},
}

// GenerateBatch requests the scenes of one batch. Scenes with an id above the
// total are dropped. Failures are returned as *GenerationError.
func (d *Director) GenerateBatch(ctx context.Context, req BatchRequest) ([]models.Scene, error) {
	if req.Batch < 1 {
		return nil, fmt.Errorf("invalid batch number %d", req.Batch)
	}
	if req.TotalScenes < models.MinTotalScenes || req.TotalScenes > models.MaxTotalScenes {
		return nil, fmt.Errorf("total scenes %d out of range [%d, %d]", req.TotalScenes, models.MinTotalScenes, models.MaxTotalScenes)
	}
	start, end := BatchRange(req.TotalScenes, req.Batch)
	if start > end {
		return nil, fmt.Errorf("batch %d is past the end of a %d-scene script", req.Batch, req.TotalScenes)
	}

	sreq := services.StructuredRequest{
		Name:              "scenes",
		Model:             d.cfg.ScriptModel,
		Prompt:            batchPrompt(req.Topic, req.TotalScenes, start, end, ContinuityHint(req.PreviousScenes), req.Language),
		SystemInstruction: SystemInstruction(req.Language),
		Schema:            sceneSchema,
	}

	log.Printf("[Director] Generating batch %d (scenes %d-%d of %d)", req.Batch, start, end, req.TotalScenes)

	scenes, err := retry.Do(ctx, d.policy(fmt.Sprintf("scene batch %d", req.Batch)), func(ctx context.Context) ([]models.Scene, error) {
		raw, err := d.text.GenerateStructured(ctx, sreq)
		if err != nil {
			return nil, err
		}
		return parseScenes(raw)
	})
	if err != nil {
		log.Printf("[Director] Batch %d failed: %v", req.Batch, err)
		return nil, wrapFailure("generate_scenes", req.Language, err, msgScriptQuota, msgScriptFailure)
	}

	kept := FilterScenes(scenes, req.TotalScenes)
	if dropped := len(scenes) - len(kept); dropped > 0 {
		log.Printf("[Director] Batch %d: dropped %d scenes beyond scene %d", req.Batch, dropped, req.TotalScenes)
	}
	return kept, nil
}

// FilterScenes keeps scenes whose id is within [1, total], in order.
func FilterScenes(scenes []models.Scene, total int) []models.Scene {
	kept := make([]models.Scene, 0, len(scenes))
	for _, s := range scenes {
		if s.ID >= 1 && s.ID <= total {
			kept = append(kept, s)
		}
	}
	return kept
}

type rawScene struct {
	ID            *float64 `json:"id"`
	Prompt        string   `json:"prompt"`
	SoundVoice    string   `json:"soundVoice"`
	PhysicsDetail string   `json:"physicsDetail"`
}

// parseScenes validates the model output against the scene schema.
func parseScenes(raw []byte) ([]models.Scene, error) {
	var items []rawScene
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: failed to parse scenes: %v", ErrMalformedResponse, err)
	}

	scenes := make([]models.Scene, 0, len(items))
	for i, item := range items {
		if item.ID == nil || *item.ID < 1 || *item.ID != math.Trunc(*item.ID) {
			return nil, fmt.Errorf("%w: scene %d has an invalid id", ErrMalformedResponse, i)
		}
		s := models.Scene{
			ID:            int(*item.ID),
			Prompt:        strings.TrimSpace(item.Prompt),
			SoundVoice:    strings.TrimSpace(item.SoundVoice),
			PhysicsDetail: strings.TrimSpace(item.PhysicsDetail),
		}
		if s.Prompt == "" || s.SoundVoice == "" || s.PhysicsDetail == "" {
			return nil, fmt.Errorf("%w: scene %d is missing required fields", ErrMalformedResponse, s.ID)
		}
		scenes = append(scenes, s)
	}
	return scenes, nil
}
