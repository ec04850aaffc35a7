package align

import (
	"math"
	"unicode/utf8"

	"github.com/scenekit/narration/audio"
)

// Interpolation estimates timestamps by linear interpolation over the
// speech duration: an offset at fraction f of the text maps to
// fraction f of the audio. Crude but dependency-free, and good enough
// for evenly paced narration. Timestamps are rounded to milliseconds.
type Interpolation struct{}

func (Interpolation) AlignChars(text string, offsets []int, audioPath string) ([]float64, error) {
	duration, err := audio.Duration(audioPath)
	if err != nil {
		return nil, err
	}

	n := utf8.RuneCountInString(text)
	timestamps := make([]float64, len(offsets))
	if n == 0 {
		return timestamps, nil
	}
	for i, offset := range offsets {
		timestamps[i] = math.Round(duration*float64(offset)/float64(n)*1000) / 1000
	}
	return timestamps, nil
}

func (Interpolation) Name() string { return "interpolation" }

func (Interpolation) Kwargs() map[string]any { return map[string]any{} }
