// Package narration adds synchronized voice-over to animation scenes.
// A Narrator binds a host scene to speech and alignment services:
// narration text carries bookmark tags, the speech is synthesized and
// cached, and the scene can wait until the voice reaches a bookmark.
package narration

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/scenekit/narration/align"
	"github.com/scenekit/narration/config"
	"github.com/scenekit/narration/internal/cache"
	"github.com/scenekit/narration/speech"
	"github.com/scenekit/narration/tags"
)

// Scene is the surface a Narrator needs from its host. Time reports
// seconds since the scene started; Wait advances it. AddSound starts
// an audio file at the current time and AddSubcaption schedules a
// subtitle offset seconds from now.
type Scene interface {
	Time() float64
	Wait(seconds float64)
	AddSound(path string)
	AddSubcaption(text string, duration, offset float64)
}

// NarrationOptions tunes one AddNarration call. The zero value picks
// the default services and no subcaption.
type NarrationOptions struct {
	// SpeechService and AlignmentService select registered services
	// by id; empty means the default (first registered).
	SpeechService    string
	AlignmentService string

	CreateSubcaption bool
	// Subcaption replaces the narration text in the subcaption;
	// empty means the tag-free narration text.
	Subcaption string
	// SubcaptionAligner selects the service timing subcaption
	// chunks; empty means the default.
	SubcaptionAligner string
	// MaxSubcaptionLen caps a subcaption chunk, 0 means 70.
	MaxSubcaptionLen int
	// SubcaptionBuff is the gap between chunks in seconds; a nil
	// pointer means 0.3.
	SubcaptionBuff *float64
	// SplitAfter lists characters to preferentially split after; nil
	// means ".!?,;:".
	SplitAfter *string
}

func (o *NarrationOptions) maxLen() int {
	if o == nil || o.MaxSubcaptionLen <= 0 {
		return 70
	}
	return o.MaxSubcaptionLen
}

func (o *NarrationOptions) buff() float64 {
	if o == nil || o.SubcaptionBuff == nil {
		return 0.3
	}
	return *o.SubcaptionBuff
}

func (o *NarrationOptions) splitAfter() string {
	if o == nil || o.SplitAfter == nil {
		return ".!?,;:"
	}
	return *o.SplitAfter
}

// Narrator drives narrations for one scene. Services are looked up by
// id in registration order; the first registered is the default. The
// alignment registry starts seeded with Interpolation under "default"
// until the first explicit registration replaces the seed.
type Narrator struct {
	// Tracker follows the most recent narration; AddNarration
	// replaces it.
	Tracker *Tracker

	scene Scene
	cfg   *config.Config
	cache *cache.Cache

	speechIDs []string
	speeches  map[string]speech.Service

	alignIDs    []string
	aligns      map[string]align.Service
	alignSeeded bool
}

// NewNarrator binds a scene to the configuration.
func NewNarrator(scene Scene, cfg *config.Config) *Narrator {
	n := &Narrator{
		scene:    scene,
		cfg:      cfg,
		cache:    cfg.ArtifactCache(),
		speeches: make(map[string]speech.Service),
		aligns:   make(map[string]align.Service),
	}
	n.alignIDs = []string{"default"}
	n.aligns["default"] = align.Interpolation{}
	n.alignSeeded = true
	return n
}

// RegisterSpeechService adds a speech backend under id. The first
// registration becomes the default.
func (n *Narrator) RegisterSpeechService(id string, svc speech.Service) {
	if _, exists := n.speeches[id]; !exists {
		n.speechIDs = append(n.speechIDs, id)
	}
	n.speeches[id] = svc
	log.Debug("speech service registered", "id", id, "service", svc.Name())
}

// RegisterAlignmentService adds an alignment backend under id. The
// first explicit registration discards the Interpolation seed and
// becomes the default.
func (n *Narrator) RegisterAlignmentService(id string, svc align.Service) {
	if n.alignSeeded {
		n.alignIDs = n.alignIDs[:0]
		n.aligns = make(map[string]align.Service)
		n.alignSeeded = false
	}
	if _, exists := n.aligns[id]; !exists {
		n.alignIDs = append(n.alignIDs, id)
	}
	n.aligns[id] = svc
	log.Debug("alignment service registered", "id", id, "service", svc.Name())
}

// AddNarration synthesizes text and starts it at the current scene
// time, returning the tracker for it. Configured tags are stripped
// before synthesis; anything else (SSML and the like) passes through
// to the backend.
func (n *Narrator) AddNarration(text string, opts *NarrationOptions) (*Tracker, error) {
	var speechID, alignID string
	if opts != nil {
		speechID, alignID = opts.SpeechService, opts.AlignmentService
	}
	speechSvc, err := n.speechService(speechID)
	if err != nil {
		return nil, err
	}
	alignSvc, err := n.alignmentService(alignID)
	if err != nil {
		return nil, err
	}

	parser := tags.Parser{Record: tags.None(), Remove: tags.Names(n.cfg.Tags.Bookmark)}
	parsed, err := parser.Parse(text)
	if err != nil {
		return nil, &speech.SpeechServiceError{Msg: "parsing narration text failed", Cause: err}
	}

	// Collapse whitespace before caching, so texts differing only in
	// formatting share one artifact.
	clean := strings.Join(strings.Fields(parsed.Text), " ")

	synth := speech.NewSynthesizer(speechSvc, n.cache, n.cfg.Cache.AudioFileBaseName)
	audioPath, err := synth.GetSpeech(clean)
	if err != nil {
		return nil, err
	}

	aligner := align.New(alignSvc, n.cache, n.cfg.Tags.Bookmark)
	tracker, err := NewTracker(n.scene.Time, n.scene.Time(), aligner, text, audioPath)
	if err != nil {
		return nil, err
	}
	n.Tracker = tracker
	n.scene.AddSound(audioPath)
	log.Info("narration added", "duration", tracker.Duration, "audio", audioPath)

	if opts != nil && opts.CreateSubcaption {
		// Subcaptions show the text with every tag removed, SSML
		// included.
		full := tags.Parser{Remove: tags.All()}
		stripped, err := full.Parse(text)
		if err != nil {
			return nil, &align.AlignmentError{Msg: "parsing subcaption text failed", Cause: err}
		}
		sub := opts.Subcaption
		if sub == "" {
			sub = stripped.Text
		}
		if err := n.addSubcaptionText(sub, tracker.Duration, opts); err != nil {
			return nil, err
		}
	}
	return tracker, nil
}

// Narration runs fn with a fresh narration's tracker, then waits for
// the narration to finish.
func (n *Narrator) Narration(text string, opts *NarrationOptions, fn func(*Tracker) error) error {
	tracker, err := n.AddNarration(text, opts)
	if err != nil {
		return err
	}
	if fn != nil {
		if err := fn(tracker); err != nil {
			return err
		}
	}
	n.WaitForNarrationToFinish()
	return nil
}

// WaitUntilBookmark advances the scene to the named bookmark of the
// current narration. extraOffset shifts the aligned timestamp, useful
// when the alignment service is not accurate enough.
func (n *Narrator) WaitUntilBookmark(mark string, extraOffset float64) error {
	duration, err := n.Tracker.DurationUntilBookmark(mark)
	if err != nil {
		return err
	}
	n.SafeWait(duration + extraOffset)
	n.Tracker.CurrentBookmark = mark
	return nil
}

// WaitForNarrationToFinish waits out the rest of the current
// narration.
func (n *Narrator) WaitForNarrationToFinish() {
	n.SafeWait(n.Tracker.RemainingDuration())
}

// SafeWait waits for at least one frame, so zero and negative
// durations still advance the scene.
func (n *Narrator) SafeWait(duration float64) {
	rate := n.cfg.FrameRate
	if rate <= 0 {
		rate = 60
	}
	frame := 1.0 / rate
	if duration < frame {
		duration = frame
	}
	n.scene.Wait(duration)
}

func (n *Narrator) speechService(id string) (speech.Service, error) {
	if len(n.speechIDs) == 0 {
		return nil, &speech.SpeechServiceError{
			Msg: "Before adding a narration, you must first register a speech service using `RegisterSpeechService`.",
		}
	}
	if id == "" {
		id = n.speechIDs[0]
	}
	svc, ok := n.speeches[id]
	if !ok {
		return nil, &speech.SpeechServiceError{
			Msg: fmt.Sprintf("`%s` is not a known speech service.", id),
		}
	}
	return svc, nil
}

func (n *Narrator) alignmentService(id string) (align.Service, error) {
	if id == "" {
		id = n.alignIDs[0]
	}
	svc, ok := n.aligns[id]
	if !ok {
		return nil, &align.AlignmentError{
			Msg: fmt.Sprintf("`%s` is not a known alignment service.", id),
		}
	}
	return svc, nil
}
