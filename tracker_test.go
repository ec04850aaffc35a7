package narration

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scenekit/narration/align"
	"github.com/scenekit/narration/audio"
)

// presetService returns fixed timestamps, one per offset in order.
type presetService struct {
	ts    []float64
	calls int
}

func (p *presetService) AlignChars(text string, offsets []int, audioPath string) ([]float64, error) {
	p.calls++
	return p.ts[:len(offsets)], nil
}

func (p *presetService) Name() string           { return "preset" }
func (p *presetService) Kwargs() map[string]any { return map[string]any{} }

// bookmarkText builds a narration carrying the given marks in order.
func bookmarkText(marks ...string) string {
	var b strings.Builder
	for i, mark := range marks {
		fmt.Fprintf(&b, "<bookmark mark='%s'/>segment %d. ", mark, i)
	}
	return b.String()
}

func silentWAV(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.wav")
	if err := audio.WriteSilentWAV(path, seconds, 22050); err != nil {
		t.Fatalf("WriteSilentWAV() error: %v", err)
	}
	return path
}

func TestTrackerRemainingDuration(t *testing.T) {
	tests := []struct {
		name     string
		totalDur float64
		currTime float64
		want     float64
	}{
		{"mid narration", 5, 1, 4},
		{"fractional", 5, 1.5, 3.5},
		{"exactly at end", 5, 5, 0},
		{"past the end", 1, 1.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := 0.0
			aligner := align.New(&presetService{}, nil, "")
			tracker, err := NewTracker(func() float64 { return now }, 0, aligner, "", silentWAV(t, tt.totalDur))
			if err != nil {
				t.Fatalf("NewTracker() error: %v", err)
			}
			now = tt.currTime
			if got := tracker.RemainingDuration(); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("RemainingDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerInitialState(t *testing.T) {
	aligner := align.New(&presetService{}, nil, "")
	tracker, err := NewTracker(func() float64 { return 0 }, 2.5, aligner, "raw", silentWAV(t, 1))
	if err != nil {
		t.Fatalf("NewTracker() error: %v", err)
	}
	if tracker.CurrentBookmark != OriginBookmark {
		t.Errorf("CurrentBookmark = %q, want %q", tracker.CurrentBookmark, OriginBookmark)
	}
	if tracker.StartTime != 2.5 {
		t.Errorf("StartTime = %v, want 2.5", tracker.StartTime)
	}
	if math.Abs(tracker.EndTime-3.5) > 0.01 {
		t.Errorf("EndTime = %v, want 3.5", tracker.EndTime)
	}
	if tracker.timestamps != nil {
		t.Error("alignment ran at construction; it should be lazy")
	}
}

func TestTrackerDurationUntilBookmark(t *testing.T) {
	tests := []struct {
		name    string
		marks   []string
		ts      []float64
		current string
		target  string
		want    float64
	}{
		{"origin to origin", nil, nil, OriginBookmark, OriginBookmark, 0},
		{"origin to first", []string{"a", "b"}, []float64{0, 1}, OriginBookmark, "a", 0},
		{"bookmark to itself", []string{"a", "b"}, []float64{0, 1}, "a", "a", 0},
		{"origin forward", []string{"a", "b"}, []float64{0, 1}, OriginBookmark, "b", 1},
		{"bookmark forward", []string{"a", "b"}, []float64{0, 1}, "a", "b", 1},
		{"skip ahead", []string{"a", "b", "c", "d"}, []float64{0, 1, 5, 3}, "a", "c", 5},
		{"unordered timestamps", []string{"a", "b", "c", "d"}, []float64{0, 1, 5, 3}, "d", "c", 2},
		{"backwards is negative", []string{"a", "b"}, []float64{0, 1}, "b", "a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligner := align.New(&presetService{ts: tt.ts}, nil, "")
			tracker, err := NewTracker(func() float64 { return 0 }, 0, aligner,
				bookmarkText(tt.marks...), silentWAV(t, 1))
			if err != nil {
				t.Fatalf("NewTracker() error: %v", err)
			}
			tracker.CurrentBookmark = tt.current
			got, err := tracker.DurationUntilBookmark(tt.target)
			if err != nil {
				t.Fatalf("DurationUntilBookmark() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DurationUntilBookmark(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestTrackerUnknownBookmark(t *testing.T) {
	tests := []struct {
		name     string
		marks    []string
		ts       []float64
		current  string
		target   string
		wantMark string
	}{
		{"typo of origin", []string{"a", "b"}, []float64{0, 1}, "", "origin_", "origin_"},
		{"never defined", []string{"a", "b"}, []float64{0, 1}, "", "c", "c"},
		{"stale current bookmark", []string{"a", "b"}, []float64{0, 1}, "gone", "a", "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligner := align.New(&presetService{ts: tt.ts}, nil, "")
			tracker, err := NewTracker(func() float64 { return 0 }, 0, aligner,
				bookmarkText(tt.marks...), silentWAV(t, 1))
			if err != nil {
				t.Fatalf("NewTracker() error: %v", err)
			}
			if tt.current != "" {
				tracker.CurrentBookmark = tt.current
			}
			_, err = tracker.DurationUntilBookmark(tt.target)
			var alignErr *align.AlignmentError
			if !errors.As(err, &alignErr) {
				t.Fatalf("error = %v, want *AlignmentError", err)
			}
			want := fmt.Sprintf("bookmark `%s` does not exist", tt.wantMark)
			if !strings.Contains(alignErr.Msg, want) {
				t.Errorf("message %q does not contain %q", alignErr.Msg, want)
			}
		})
	}
}

func TestTrackerAlignmentMemoized(t *testing.T) {
	svc := &presetService{ts: []float64{0, 1}}
	aligner := align.New(svc, nil, "")
	tracker, err := NewTracker(func() float64 { return 0 }, 0, aligner,
		bookmarkText("a", "b"), silentWAV(t, 1))
	if err != nil {
		t.Fatalf("NewTracker() error: %v", err)
	}

	for _, target := range []string{"a", "b", "a"} {
		if _, err := tracker.DurationUntilBookmark(target); err != nil {
			t.Fatalf("DurationUntilBookmark(%q) error: %v", target, err)
		}
	}
	if svc.calls != 1 {
		t.Errorf("aligner ran %d times, want 1", svc.calls)
	}
}
