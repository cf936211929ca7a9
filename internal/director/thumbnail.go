package director

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bobarin/director/internal/retry"
	"github.com/bobarin/director/internal/services"
)

// ErrInvalidDataURI is returned by DecodeDataURI for anything but a base64 data URI.
var ErrInvalidDataURI = errors.New("invalid data URI")

// GenerateThumbnail renders prompt with the given image model and returns the image
// as a data URI. Empty model or aspect ratio fall back to the configured defaults.
// Image errors are reported in English; the image model has no language.
func (d *Director) GenerateThumbnail(ctx context.Context, model, prompt, aspectRatio string) (string, error) {
	if d.images == nil {
		return "", errors.New("image generation is not configured")
	}
	if model == "" {
		model = d.cfg.ImageModel
	}
	if aspectRatio == "" {
		aspectRatio = d.cfg.AspectRatio
	}

	req := services.ImageRequest{Model: model, Prompt: prompt, AspectRatio: aspectRatio}
	img, err := retry.Do(ctx, d.policy("thumbnail"), func(ctx context.Context) (*services.InlineImage, error) {
		return d.images.GenerateImage(ctx, req)
	})
	if err != nil {
		log.Printf("[Director] Thumbnail generation failed: %v", err)
		return "", wrapFailure("generate_thumbnail", "", err, msgImageQuota, msgImageFailure)
	}
	if img == nil || len(img.Data) == 0 {
		return "", wrapFailure("generate_thumbnail", "", services.ErrNoImageData, msgImageQuota, msgImageFailure)
	}

	return EncodeDataURI(img.MIMEType, img.Data), nil
}

// EncodeDataURI builds data:<mime>;base64,<payload>.
func EncodeDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI splits a base64 data URI into its MIME type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}
