// Package speech turns narration text into audio files. A Service
// wraps one synthesis backend; Synthesizer adds whitespace cleanup,
// WAV conversion and content-addressed caching so a narration is only
// synthesized once per distinct text and backend configuration.
package speech

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/scenekit/narration/audio"
	"github.com/scenekit/narration/internal/cache"
)

// SpeechServiceError reports a failing synthesis backend or broken
// service configuration.
type SpeechServiceError struct {
	Msg   string
	Cause error
}

func (e *SpeechServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *SpeechServiceError) Unwrap() error { return e.Cause }

// Service synthesizes speech for a text.
//
// GenerateSpeech writes audio for text at path (which carries the
// service's native extension) and returns the path actually written.
// FileExtension is that native extension with the leading dot. Name
// and Kwargs identify the backend and its parameters for cache
// keying.
type Service interface {
	FileExtension() string
	GenerateSpeech(text, path string) (string, error)
	Name() string
	Kwargs() map[string]any
}

// PostProcessor is an optional hook a Service can implement to touch
// the final WAV (normalization, trimming) after conversion. It
// returns the path of the processed file.
type PostProcessor interface {
	AudioCallback(path string) (string, error)
}

// Synthesizer orchestrates a Service against the artifact cache.
type Synthesizer struct {
	Service  Service
	Cache    *cache.Cache
	BaseName string
}

// artifactRecordFile remembers the artifact's filename inside an entry
// when a post-process hook moved it away from the default name.
const artifactRecordFile = "artifact.json"

type artifactRecord struct {
	File string `json:"file"`
}

// NewSynthesizer returns a Synthesizer over the given service and
// cache. baseName names the audio file inside each cache entry; empty
// means "speech".
func NewSynthesizer(svc Service, c *cache.Cache, baseName string) *Synthesizer {
	if baseName == "" {
		baseName = "speech"
	}
	return &Synthesizer{Service: svc, Cache: c, BaseName: baseName}
}

// GetSpeech returns the path of a WAV file speaking text. An artifact
// already present for this text and backend configuration is returned
// untouched; otherwise the text is synthesized, converted to WAV and
// run through the backend's post-process hook if it has one. Runs of
// whitespace in the text collapse to single spaces before synthesis.
func (s *Synthesizer) GetSpeech(text string) (string, error) {
	desc := map[string]any{
		"input_text":     text,
		"service_name":   s.Service.Name(),
		"service_kwargs": s.Service.Kwargs(),
	}
	dir, err := s.Cache.EntryDir(desc)
	if err != nil {
		return "", &SpeechServiceError{Msg: "computing speech cache key", Cause: err}
	}

	wavPath := filepath.Join(dir, s.BaseName+".wav")
	if info, err := os.Stat(wavPath); err == nil && !info.IsDir() {
		log.Debug("speech cache hit", "service", s.Service.Name(), "path", wavPath)
		return wavPath, nil
	}

	var rec artifactRecord
	if hit, err := s.Cache.ReadJSON(desc, artifactRecordFile, &rec); err == nil && hit && rec.File != "" {
		renamed := filepath.Join(dir, rec.File)
		if info, err := os.Stat(renamed); err == nil && !info.IsDir() {
			log.Debug("speech cache hit", "service", s.Service.Name(), "path", renamed)
			return renamed, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &SpeechServiceError{Msg: "creating speech cache entry", Cause: err}
	}

	clean := strings.Join(strings.Fields(text), " ")
	nativePath := filepath.Join(dir, s.BaseName+s.Service.FileExtension())

	log.Debug("synthesizing speech", "service", s.Service.Name(), "chars", len(clean))
	generated, err := s.Service.GenerateSpeech(clean, nativePath)
	if err != nil {
		return "", &SpeechServiceError{Msg: "speech service " + s.Service.Name() + " failed", Cause: err}
	}

	final, err := audio.ConvertToWAV(generated, true)
	if err != nil {
		return "", &SpeechServiceError{Msg: "converting speech to wav", Cause: err}
	}

	if pp, ok := s.Service.(PostProcessor); ok {
		final, err = pp.AudioCallback(final)
		if err != nil {
			return "", &SpeechServiceError{Msg: "post-processing speech", Cause: err}
		}
		// A hook that renames the artifact would turn every later call
		// into a miss; remember the final name in the entry.
		if final != wavPath {
			if err := s.Cache.WriteJSON(desc, artifactRecordFile, artifactRecord{File: filepath.Base(final)}); err != nil {
				log.Warn("recording speech artifact name failed", "path", final, "err", err)
			}
		}
	}
	return final, nil
}
