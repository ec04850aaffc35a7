package speech

import (
	"unicode/utf8"

	"github.com/scenekit/narration/audio"
)

// Mock writes silent WAV files sized from the text instead of calling
// a synthesis engine. Tests and offline renders use it to exercise
// the full caching and alignment pipeline with real decodable audio.
type Mock struct {
	SecondsPerChar float64 // defaults to 0.05
	FixedDuration  float64 // overrides SecondsPerChar when positive
	SampleRate     int     // defaults to 22050
}

func (m Mock) FileExtension() string { return ".wav" }

func (m Mock) GenerateSpeech(text, path string) (string, error) {
	seconds := m.FixedDuration
	if seconds <= 0 {
		perChar := m.SecondsPerChar
		if perChar <= 0 {
			perChar = 0.05
		}
		seconds = perChar * float64(utf8.RuneCountInString(text))
	}
	if seconds <= 0 {
		seconds = 0.1
	}
	if err := audio.WriteSilentWAV(path, seconds, m.SampleRate); err != nil {
		return "", err
	}
	return path, nil
}

func (m Mock) Name() string { return "mock" }

func (m Mock) Kwargs() map[string]any {
	return map[string]any{
		"seconds_per_char": m.SecondsPerChar,
		"fixed_duration":   m.FixedDuration,
		"sample_rate":      m.SampleRate,
	}
}
