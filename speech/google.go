package speech

import (
	"context"
	"fmt"
	"os"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// Google synthesizes speech with Google Cloud Text-to-Speech.
// Credentials come from the usual GOOGLE_APPLICATION_CREDENTIALS
// environment. Audio comes back as MP3 and is converted to WAV by the
// Synthesizer.
type Google struct {
	LanguageCode string  // BCP-47 code, defaults to "en-US"
	VoiceName    string  // optional specific voice
	SpeakingRate float64 // 0 means service default
}

func (g Google) FileExtension() string { return ".mp3" }

func (g Google) GenerateSpeech(text, path string) (string, error) {
	ctx := context.Background()
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating texttospeech client: %w", err)
	}
	defer client.Close()

	lang := g.LanguageCode
	if lang == "" {
		lang = "en-US"
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         g.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  g.SpeakingRate,
		},
	}

	resp, err := client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return "", fmt.Errorf("synthesizing speech: %w", err)
	}
	if err := os.WriteFile(path, resp.AudioContent, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (g Google) Name() string { return "google" }

func (g Google) Kwargs() map[string]any {
	lang := g.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return map[string]any{
		"language_code": lang,
		"voice_name":    g.VoiceName,
		"speaking_rate": g.SpeakingRate,
	}
}
