package director

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/retry"
	"github.com/bobarin/director/internal/services"
)

type fakeText struct {
	calls     []services.StructuredRequest
	responses []func() ([]byte, error)
}

func (f *fakeText) GenerateStructured(_ context.Context, req services.StructuredRequest) ([]byte, error) {
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next()
}

func (f *fakeText) push(fn func() ([]byte, error)) {
	f.responses = append(f.responses, fn)
}

type fakeImages struct {
	img   *services.InlineImage
	err   error
	calls []services.ImageRequest
}

func (f *fakeImages) GenerateImage(_ context.Context, req services.ImageRequest) (*services.InlineImage, error) {
	f.calls = append(f.calls, req)
	return f.img, f.err
}

func jsonOf(v any) func() ([]byte, error) {
	return func() ([]byte, error) {
		data, err := json.Marshal(v)
		return data, err
	}
}

func failWith(err error) func() ([]byte, error) {
	return func() ([]byte, error) { return nil, err }
}

func newTestDirector(text services.StructuredGenerator, images services.ImageGenerator) (*Director, *[]time.Duration) {
	var slept []time.Duration
	policy := retry.DefaultPolicy("", nil)
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return New(text, images, Config{Retry: policy}), &slept
}

func scenesFor(start, end int) []models.Scene {
	var out []models.Scene
	for id := start; id <= end; id++ {
		out = append(out, models.Scene{
			ID:            id,
			Prompt:        fmt.Sprintf("prompt %d", id),
			SoundVoice:    fmt.Sprintf("sound %d", id),
			PhysicsDetail: fmt.Sprintf("damage level %d", id),
		})
	}
	return out
}

func TestBatchRange(t *testing.T) {
	cases := []struct {
		total, batch, start, end int
	}{
		{7, 1, 1, 5},
		{7, 2, 6, 7},
		{38, 8, 36, 38},
		{5, 1, 1, 5},
		{1, 1, 1, 1},
		{100, 20, 96, 100},
	}
	for _, c := range cases {
		start, end := BatchRange(c.total, c.batch)
		if start != c.start || end != c.end {
			t.Errorf("BatchRange(%d, %d) = [%d, %d], want [%d, %d]", c.total, c.batch, start, end, c.start, c.end)
		}
	}
}

func TestContinuityHint(t *testing.T) {
	if got := ContinuityHint(nil); got != beginningHint {
		t.Errorf("empty history hint = %q", got)
	}
	got := ContinuityHint(scenesFor(1, 3))
	if got != "Previous progress: The car is currently damage level 3." {
		t.Errorf("hint = %q", got)
	}
}

func TestGenerateBatchBuildsRequest(t *testing.T) {
	text := &fakeText{}
	text.push(jsonOf(scenesFor(6, 7)))
	d, _ := newTestDirector(text, nil)

	scenes, err := d.GenerateBatch(context.Background(), BatchRequest{
		Topic:          "Budget supercar brake test",
		TotalScenes:    7,
		Batch:          2,
		PreviousScenes: scenesFor(1, 5),
		Language:       models.LanguageVietnamese,
	})
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	if len(scenes) != 2 || scenes[0].ID != 6 || scenes[1].ID != 7 {
		t.Fatalf("unexpected scenes: %+v", scenes)
	}

	if len(text.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(text.calls))
	}
	req := text.calls[0]
	if req.Model != services.DefaultScriptModel {
		t.Errorf("model = %q", req.Model)
	}
	for _, want := range []string{
		"Topic: Budget supercar brake test",
		"Total Script Length: 7 scenes.",
		"Batch: Scenes 6 to 7",
		"The car is currently damage level 5.",
		"climax at Scene 7",
		"(IN VIETNAMESE)",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(req.SystemInstruction, "respond entirely in Vietnamese") {
		t.Errorf("system instruction missing language rule")
	}
	if req.Schema == nil || req.Schema.Items == nil {
		t.Errorf("expected array schema")
	}
}

func TestGenerateBatchFiltersOvergeneration(t *testing.T) {
	text := &fakeText{}
	text.push(jsonOf(scenesFor(6, 10)))
	d, _ := newTestDirector(text, nil)

	scenes, err := d.GenerateBatch(context.Background(), BatchRequest{Topic: "x", TotalScenes: 7, Batch: 2, Language: models.LanguageEnglish})
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	for _, s := range scenes {
		if s.ID > 7 {
			t.Errorf("scene %d exceeds total", s.ID)
		}
	}
	if len(scenes) != 2 {
		t.Errorf("expected 2 scenes, got %d", len(scenes))
	}
}

func TestGenerateBatchQuotaRetriesThenSucceeds(t *testing.T) {
	text := &fakeText{}
	text.push(failWith(errors.New("Error 429, Message: Resource has been exhausted")))
	text.push(failWith(errors.New("Error 429, Message: Resource has been exhausted")))
	text.push(jsonOf(scenesFor(1, 5)))
	d, slept := newTestDirector(text, nil)

	scenes, err := d.GenerateBatch(context.Background(), BatchRequest{Topic: "x", TotalScenes: 10, Batch: 1, Language: models.LanguageEnglish})
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	if len(scenes) != 5 {
		t.Errorf("expected 5 scenes, got %d", len(scenes))
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("slept %v, want %v", *slept, want)
	}
}

func TestGenerateBatchQuotaExhausted(t *testing.T) {
	for _, c := range []struct {
		lang models.Language
		want string
	}{
		{models.LanguageEnglish, "QUOTA_EXHAUSTED: You exceeded your current quota (Rate Limit). Please wait a minute or upgrade your API key."},
		{models.LanguageVietnamese, "QUOTA_EXHAUSTED: Bạn đã hết lượt sử dụng miễn phí (Rate Limit). Vui lòng đợi 1 phút hoặc nâng cấp API key."},
	} {
		text := &fakeText{}
		for i := 0; i < 3; i++ {
			text.push(failWith(errors.New("got 429 Too Many Requests")))
		}
		d, _ := newTestDirector(text, nil)

		_, err := d.GenerateBatch(context.Background(), BatchRequest{Topic: "x", TotalScenes: 10, Batch: 1, Language: c.lang})
		if err == nil {
			t.Fatalf("%s: expected error", c.lang)
		}
		if !IsQuotaExceeded(err) {
			t.Errorf("%s: expected quota error, got %v", c.lang, err)
		}
		if err.Error() != c.want {
			t.Errorf("%s: message = %q", c.lang, err.Error())
		}
		var genErr *GenerationError
		if !errors.As(err, &genErr) || !genErr.Retryable() {
			t.Errorf("%s: expected retryable GenerationError", c.lang)
		}
	}
}

func TestGenerateBatchTransportErrorNotRetried(t *testing.T) {
	text := &fakeText{}
	text.push(failWith(errors.New("connection reset by peer")))
	d, slept := newTestDirector(text, nil)

	_, err := d.GenerateBatch(context.Background(), BatchRequest{Topic: "x", TotalScenes: 10, Batch: 1, Language: models.LanguageEnglish})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsQuotaExceeded(err) {
		t.Errorf("transport error classified as quota")
	}
	if err.Error() != "Server error: connection reset by peer" {
		t.Errorf("message = %q", err.Error())
	}
	if len(text.calls) != 1 || len(*slept) != 0 {
		t.Errorf("expected a single call without waiting, got %d calls, %v sleeps", len(text.calls), *slept)
	}
}

func TestGenerateBatchMalformedResponse(t *testing.T) {
	cases := map[string]func() ([]byte, error){
		"not json":      func() ([]byte, error) { return []byte("SCENE 1: a car"), nil },
		"object root":   jsonOf(map[string]any{"id": 1}),
		"missing id":    jsonOf([]map[string]any{{"prompt": "p", "soundVoice": "s", "physicsDetail": "d"}}),
		"fractional id": jsonOf([]map[string]any{{"id": 1.5, "prompt": "p", "soundVoice": "s", "physicsDetail": "d"}}),
		"empty field":   jsonOf([]map[string]any{{"id": 1, "prompt": "p", "soundVoice": "", "physicsDetail": "d"}}),
	}

	for name, resp := range cases {
		text := &fakeText{}
		text.push(resp)
		d, _ := newTestDirector(text, nil)

		_, err := d.GenerateBatch(context.Background(), BatchRequest{Topic: "x", TotalScenes: 5, Batch: 1, Language: models.LanguageVietnamese})
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			t.Errorf("%s: expected GenerationError, got %v", name, err)
			continue
		}
		if genErr.Kind != KindMalformedResponse {
			t.Errorf("%s: kind = %s", name, genErr.Kind)
		}
		if !strings.HasPrefix(genErr.Message, "Lỗi máy chủ: ") {
			t.Errorf("%s: message = %q", name, genErr.Message)
		}
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%s: expected ErrMalformedResponse in chain", name)
		}
	}
}

func TestGenerateBatchMalformedProviderPayload(t *testing.T) {
	text := &fakeText{}
	text.push(failWith(fmt.Errorf("openai scenes: envelope missing \"items\": %w", services.ErrMalformedPayload)))
	d, slept := newTestDirector(text, nil)

	_, err := d.GenerateBatch(context.Background(), BatchRequest{Topic: "x", TotalScenes: 5, Batch: 1, Language: models.LanguageEnglish})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != KindMalformedResponse {
		t.Errorf("kind = %s, want %s", genErr.Kind, KindMalformedResponse)
	}
	if len(text.calls) != 1 || len(*slept) != 0 {
		t.Errorf("malformed payload must not be retried: %d calls", len(text.calls))
	}
}

func TestGenerateBatchRejectsInvalidInput(t *testing.T) {
	d, _ := newTestDirector(&fakeText{}, nil)
	for _, req := range []BatchRequest{
		{TotalScenes: 10, Batch: 0},
		{TotalScenes: 0, Batch: 1},
		{TotalScenes: 101, Batch: 1},
		{TotalScenes: 5, Batch: 2},
	} {
		if _, err := d.GenerateBatch(context.Background(), req); err == nil {
			t.Errorf("expected error for %+v", req)
		}
	}
}

func validSeo() models.SeoData {
	return models.SeoData{
		Title:                    "This $3,000 Supercar Had ZERO Brakes And It Showed",
		Description:              "Watch a bargain supercar fall apart.",
		Hashtags:                 []string{"#beamng", "#crash", "#physics"},
		Keywords:                 "beamng, crash, supercar, brakes, fail",
		ThumbnailPrompt:          "A crumpled orange supercar flying off a cliff at sunset",
		ThumbnailTextSuggestions: []string{"NO BRAKES!", "WHY?!", "TOTAL LOSS", "OOPS"},
		NextThemeSuggestions:     []string{"a", "b", "c", "d", "e"},
	}
}

func TestGenerateSeoAssets(t *testing.T) {
	text := &fakeText{}
	text.push(jsonOf(validSeo()))
	d, _ := newTestDirector(text, nil)

	seo, err := d.GenerateSeoAssets(context.Background(), "Supercar brakes", scenesFor(1, 3), models.LanguageEnglish)
	if err != nil {
		t.Fatalf("GenerateSeoAssets failed: %v", err)
	}
	if seo.Title != validSeo().Title || len(seo.Hashtags) != 3 {
		t.Errorf("unexpected seo: %+v", seo)
	}

	req := text.calls[0]
	if req.Model != services.DefaultSeoModel {
		t.Errorf("model = %q", req.Model)
	}
	for _, want := range []string{`titled "Supercar brakes"`, "Scene 1: damage level 1\nScene 2: damage level 2\nScene 3: damage level 3", "must be in English"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateSeoAssetsIndependentCalls(t *testing.T) {
	text := &fakeText{}
	first := validSeo()
	second := validSeo()
	second.Title = "Another take"
	text.push(jsonOf(first))
	text.push(jsonOf(second))
	d, _ := newTestDirector(text, nil)

	a, err := d.GenerateSeoAssets(context.Background(), "t", scenesFor(1, 2), models.LanguageEnglish)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	b, err := d.GenerateSeoAssets(context.Background(), "t", scenesFor(1, 2), models.LanguageEnglish)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if len(text.calls) != 2 {
		t.Errorf("expected 2 requests, got %d", len(text.calls))
	}
	if a == b || a.Title == b.Title {
		t.Errorf("expected independent values")
	}
	a.Hashtags[0] = "changed"
	if b.Hashtags[0] == "changed" {
		t.Errorf("results share memory")
	}
}

func TestGenerateSeoAssetsErrors(t *testing.T) {
	text := &fakeText{}
	for i := 0; i < 3; i++ {
		text.push(failWith(errors.New("429 RESOURCE_EXHAUSTED")))
	}
	d, _ := newTestDirector(text, nil)

	_, err := d.GenerateSeoAssets(context.Background(), "t", scenesFor(1, 2), models.LanguageVietnamese)
	if err == nil || err.Error() != "QUOTA_EXHAUSTED: Hết lượt sử dụng SEO. Vui lòng thử lại sau." {
		t.Errorf("unexpected quota error: %v", err)
	}

	incomplete := validSeo()
	incomplete.Hashtags = []string{" "}
	text = &fakeText{}
	text.push(jsonOf(incomplete))
	d, _ = newTestDirector(text, nil)

	_, err = d.GenerateSeoAssets(context.Background(), "t", scenesFor(1, 2), models.LanguageEnglish)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "SEO error: ") || !strings.Contains(err.Error(), "hashtags") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestGenerateThumbnail(t *testing.T) {
	images := &fakeImages{img: &services.InlineImage{MIMEType: "image/png", Data: []byte("png-bytes")}}
	d, _ := newTestDirector(&fakeText{}, images)

	uri, err := d.GenerateThumbnail(context.Background(), "", "a wreck", "")
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}
	if uri != "data:image/png;base64,cG5nLWJ5dGVz" {
		t.Errorf("uri = %q", uri)
	}
	req := images.calls[0]
	if req.Model != services.DefaultImageModel || req.AspectRatio != services.DefaultAspectRatio {
		t.Errorf("defaults not applied: %+v", req)
	}

	mimeType, data, err := DecodeDataURI(uri)
	if err != nil || mimeType != "image/png" || string(data) != "png-bytes" {
		t.Errorf("DecodeDataURI = %q, %q, %v", mimeType, data, err)
	}
}

func TestGenerateThumbnailNoImageData(t *testing.T) {
	images := &fakeImages{err: fmt.Errorf("gemini returned text instead of image: %w", services.ErrNoImageData)}
	d, slept := newTestDirector(&fakeText{}, images)

	_, err := d.GenerateThumbnail(context.Background(), "gemini-2.5-flash-image", "a wreck", "9:16")
	if !errors.Is(err, services.ErrNoImageData) {
		t.Fatalf("expected ErrNoImageData, got %v", err)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != KindMalformedResponse {
		t.Errorf("expected malformed response kind, got %v", err)
	}
	if len(images.calls) != 1 || len(*slept) != 0 {
		t.Errorf("no-image failure must not be retried")
	}
}

func TestBuildThumbnailPrompt(t *testing.T) {
	got := BuildThumbnailPrompt("A car on fire", "NO BRAKES!")
	want := `A car on fire. MANDATORY: Include the text "NO BRAKES!" in large, bold, high-impact, cinematic English letters prominently on the image. Make it look like a viral YouTube thumbnail.`
	if got != want {
		t.Errorf("prompt = %q", got)
	}
	if got := BuildThumbnailPrompt("A car on fire", ""); got != "A car on fire" {
		t.Errorf("prompt without text = %q", got)
	}
}

func TestDecodeDataURIInvalid(t *testing.T) {
	for _, uri := range []string{"", "http://x", "data:image/png,abc", "data:image/png;base64", "data:image/png;base64,!!"} {
		if _, _, err := DecodeDataURI(uri); !errors.Is(err, ErrInvalidDataURI) {
			t.Errorf("DecodeDataURI(%q) err = %v", uri, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"THẤT BẠI!":                 "that_bai",
		"Đường đua   tử thần":       "duong_dua_tu_than",
		"  No Brakes?! (Part 2)  ":  "no_brakes_part_2",
		strings.Repeat("ab ", 30):   strings.Repeat("ab_", 16) + "ab",
		"???":                       "",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ExportFilename("???"); got != "production_script.json" {
		t.Errorf("ExportFilename = %q", got)
	}
	if got := ThumbnailFilename("Tại sao?"); got != "tai_sao.png" {
		t.Errorf("ThumbnailFilename = %q", got)
	}
}
