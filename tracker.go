package narration

import (
	"fmt"

	"github.com/scenekit/narration/align"
	"github.com/scenekit/narration/audio"
)

// OriginBookmark is the implicit bookmark at the start of every
// narration. A fresh tracker sits on it.
const OriginBookmark = "_origin_"

// Tracker follows one narration through a scene: when it started, how
// long it runs, and which bookmark the scene has reached. Alignment
// is lazy; a narration without bookmark waits never runs its aligner.
type Tracker struct {
	RawText   string
	AudioPath string
	StartTime float64
	Duration  float64
	EndTime   float64

	// CurrentBookmark is the last bookmark waited for, starting at
	// OriginBookmark. It is the only field that moves after
	// construction (besides the memoized timestamps).
	CurrentBookmark string

	aligner    *align.Aligner
	clock      func() float64
	timestamps map[string]float64
}

// NewTracker probes the audio duration and returns a tracker starting
// at startTime. clock reports the scene time for RemainingDuration.
func NewTracker(clock func() float64, startTime float64, aligner *align.Aligner, rawText, audioPath string) (*Tracker, error) {
	duration, err := audio.Duration(audioPath)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		RawText:         rawText,
		AudioPath:       audioPath,
		StartTime:       startTime,
		Duration:        duration,
		EndTime:         startTime + duration,
		CurrentBookmark: OriginBookmark,
		aligner:         aligner,
		clock:           clock,
	}, nil
}

// RemainingDuration returns the seconds of narration still to play,
// clamped at zero once the narration has ended.
func (t *Tracker) RemainingDuration() float64 {
	remaining := t.EndTime - t.clock()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BookmarkTimestamps returns the bookmark timestamp map for this
// narration, running the aligner on first use and memoizing the
// result. OriginBookmark always maps to 0.
func (t *Tracker) BookmarkTimestamps() (map[string]float64, error) {
	if t.timestamps != nil {
		return t.timestamps, nil
	}
	aligned, err := t.aligner.AlignBookmarks(t.RawText, t.AudioPath)
	if err != nil {
		return nil, err
	}
	timestamps := make(map[string]float64, len(aligned)+1)
	timestamps[OriginBookmark] = 0
	for mark, ts := range aligned {
		timestamps[mark] = ts
	}
	t.timestamps = timestamps
	return timestamps, nil
}

// DurationUntilBookmark returns the seconds between the current
// bookmark and the target one. The result is negative when the target
// precedes the current bookmark, which usually means the waits are
// out of order; callers decide what to make of it.
func (t *Tracker) DurationUntilBookmark(target string) (float64, error) {
	timestamps, err := t.BookmarkTimestamps()
	if err != nil {
		return 0, err
	}
	targetTS, ok := timestamps[target]
	if !ok {
		return 0, &align.AlignmentError{
			Msg: fmt.Sprintf("The bookmark `%s` does not exist.", target),
		}
	}
	// CurrentBookmark is caller-writable, so a stale or mistyped value
	// gets the same error as an unknown target.
	currentTS, ok := timestamps[t.CurrentBookmark]
	if !ok {
		return 0, &align.AlignmentError{
			Msg: fmt.Sprintf("The bookmark `%s` does not exist.", t.CurrentBookmark),
		}
	}
	return targetTS - currentTS, nil
}
