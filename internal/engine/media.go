package engine

import (
	"context"
	"encoding/base64"
	"strings"

	media "google.golang.org/genai"
)

// FallbackImageURL stands in for a scene illustration that failed to generate.
const FallbackImageURL = "https://picsum.photos/1280/720?grayscale"

// GenerateImage returns a data URL for the generated illustration, or
// FallbackImageURL if generation fails.
func (e *Engine) GenerateImage(ctx context.Context, prompt string) string {
	resp, err := e.media.Models.GenerateImages(ctx, e.opts.ImageModel, prompt, &media.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
		AspectRatio:    "16:9",
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("image generation failed")
		return FallbackImageURL
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		e.log.Warn().Msg("image generation returned no image")
		return FallbackImageURL
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resp.GeneratedImages[0].Image.ImageBytes)
}

// GenerateSpeech narrates text and returns base64 raw PCM. It reports false
// for blank text or when synthesis fails.
func (e *Engine) GenerateSpeech(ctx context.Context, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	resp, err := e.media.Models.GenerateContent(ctx, e.opts.SpeechModel, media.Text(text), &media.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &media.SpeechConfig{
			VoiceConfig: &media.VoiceConfig{
				PrebuiltVoiceConfig: &media.PrebuiltVoiceConfig{VoiceName: e.opts.Voice},
			},
		},
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("speech generation failed")
		return "", false
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return base64.StdEncoding.EncodeToString(part.InlineData.Data), true
			}
		}
	}
	e.log.Warn().Msg("speech generation returned no audio")
	return "", false
}
