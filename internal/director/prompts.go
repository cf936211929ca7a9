package director

import (
	"fmt"
	"strings"

	"github.com/bobarin/director/internal/models"
)

const beginningHint = "This is the beginning of the script."

// SystemInstruction is the director persona sent with every batch request.
func SystemInstruction(lang models.Language) string {
	return `You are a world-class Virtual Action Movie Director and Veo 3 Prompt Engineer.
Your specialty is the "BeamNG.Drive" style (Jota Drive channel) characterized by:
- Soft-body physics (metal crumpling, parts flying off).
- Dark irony and mechanical failures.
- Realistic lighting and chaotic camera movements (POV, Chase, Handheld).
- 8-second scenes.

When generating scenes, ensure the car model, color, and damage state are consistent and progressive.
The car starts in good (or "falsely premium") condition and ends as a total wreck.

IMPORTANT: You must respond entirely in ` + lang.DisplayName() + `, except for the technical parts of the Veo 3 prompt which should remain in English to ensure compatibility with the video generation tool.

Structure each scene as:
SCENE [X]: Prompt: [Subject] + [Action/Physics] + [Environment/Context] + [Camera Style/Lighting]
Sound/Voice: (Description or short dialogue)`
}

// ContinuityHint describes where the story stands before the next batch.
func ContinuityHint(previous []models.Scene) string {
	if len(previous) == 0 {
		return beginningHint
	}
	return fmt.Sprintf("Previous progress: The car is currently %s.", previous[len(previous)-1].PhysicsDetail)
}

func batchPrompt(topic string, total, start, end int, hint string, lang models.Language) string {
	upper := strings.ToUpper(lang.DisplayName())
	return fmt.Sprintf(`Topic: %s
Total Script Length: %d scenes.
Batch: Scenes %d to %d (8 seconds each).
Context: %s

Please generate the next batch of scenes. Adjust the pacing of the story and mechanical failure progression so that it reaches a fitting climax at Scene %d.

Format required for EACH scene in JSON:
{
  "id": number,
  "prompt": "Full Veo 3 prompt string (IN ENGLISH)",
  "soundVoice": "Sound and voice guidance (IN %s)",
  "physicsDetail": "Short description of vehicle condition (IN %s)"
}`, topic, total, start, end, hint, total, upper, upper)
}

// ScriptSummary renders one "Scene N: <condition>" line per scene.
func ScriptSummary(scenes []models.Scene) string {
	lines := make([]string, len(scenes))
	for i, s := range scenes {
		lines[i] = fmt.Sprintf("Scene %d: %s", s.ID, s.PhysicsDetail)
	}
	return strings.Join(lines, "\n")
}

func seoPrompt(title string, scenes []models.Scene, lang models.Language) string {
	return fmt.Sprintf(`Based on the following BeamNG style action script titled "%s", generate SEO assets for YouTube/Social Media.

Script Summary:
%s

Requirements:
1. Title: Exactly or around 55 characters, clickbaity but relevant.
2. Description: Engaging, high-energy summary.
3. 3 Hashtags: Relevant to gaming/physics/chaos.
4. 5 Keywords: Separated by commas.
5. Thumbnail Prompt: Under 500 characters. Choose the most intense climax scene. Describe it for an image generator (IN ENGLISH).
6. Thumbnail Text Suggestions: Provide 4 short, bold, viral words or phrases (e.g., "THẤT BẠI!", "ĐIÊN RỒ", "TẠI SAO?", "HỎNG HẾT RỒI") that should appear on the thumbnail.
7. Next Theme Suggestions: Suggest 5 creative, ironic topics for the next video.

All text except the Thumbnail Prompt must be in %s.`, title, ScriptSummary(scenes), lang.DisplayName())
}

// BuildThumbnailPrompt appends the mandatory text-overlay instruction to an image prompt.
// An empty text leaves the prompt unchanged.
func BuildThumbnailPrompt(prompt, text string) string {
	prompt = strings.TrimSpace(prompt)
	text = strings.TrimSpace(text)
	if text == "" {
		return prompt
	}
	return fmt.Sprintf(`%s. MANDATORY: Include the text "%s" in large, bold, high-impact, cinematic English letters prominently on the image. Make it look like a viral YouTube thumbnail.`, prompt, text)
}
