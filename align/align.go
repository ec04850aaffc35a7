// Package align maps character offsets in a narrated text to
// timestamps in its synthesized speech. The Service interface hides
// how the timestamps are produced; Aligner adds bookmark extraction
// and result caching on top of any Service.
package align

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/scenekit/narration/internal/cache"
	"github.com/scenekit/narration/tags"
)

// AlignmentError reports invalid bookmark markup or a failing
// alignment backend.
type AlignmentError struct {
	Msg   string
	Cause error
}

func (e *AlignmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *AlignmentError) Unwrap() error { return e.Cause }

// Service computes speech timestamps for character offsets.
//
// AlignChars receives the tag-free text, the rune offsets to align
// (ascending) and the path of the speech audio, and returns one
// timestamp in seconds per offset, same order and length. Name and
// Kwargs identify the service and its construction parameters for
// cache keying; two services with equal Name and Kwargs must align
// identically.
type Service interface {
	AlignChars(text string, offsets []int, audioPath string) ([]float64, error)
	Name() string
	Kwargs() map[string]any
}

// resultFile is the artifact name for cached alignment results.
const resultFile = "alignment.json"

// Aligner runs a Service against bookmark-annotated texts. Results
// are cached per request under the Service's identity; a nil Cache
// disables caching.
type Aligner struct {
	Service     Service
	Cache       *cache.Cache
	BookmarkTag string
}

// New returns an Aligner for the given service. bookmarkTag names the
// tag treated as a bookmark; empty means "bookmark".
func New(svc Service, c *cache.Cache, bookmarkTag string) *Aligner {
	if bookmarkTag == "" {
		bookmarkTag = "bookmark"
	}
	return &Aligner{Service: svc, Cache: c, BookmarkTag: bookmarkTag}
}

// AlignBookmarks extracts the bookmark tags from rawText and returns
// a map from each bookmark's mark attribute to its timestamp in the
// speech audio.
//
// Every bookmark must be self-closing, must define a mark attribute,
// and marks must be pairwise unique; violations return an
// AlignmentError before the backend runs. The whole request is one
// cache entry: a hit skips the backend entirely.
func (a *Aligner) AlignBookmarks(rawText, audioPath string) (map[string]float64, error) {
	parser := tags.Parser{Record: tags.Names(a.BookmarkTag), Remove: tags.All()}
	res, err := parser.Parse(rawText)
	if err != nil {
		return nil, &AlignmentError{Msg: "parsing narration text failed", Cause: err}
	}

	for _, tag := range res.Tags {
		if tag.Kind != tags.StartEnd {
			return nil, &AlignmentError{
				Msg: "Bookmarks should be self-closing tags (e.g. `<bookmark mark='A' />`)",
			}
		}
	}

	marks := make([]string, len(res.Tags))
	for i, tag := range res.Tags {
		mark, ok := tag.Get("mark")
		if !ok {
			return nil, &AlignmentError{Msg: "Bookmarks must define a mark attribute."}
		}
		marks[i] = mark
	}

	seen := make(map[string]bool, len(marks))
	for _, mark := range marks {
		if seen[mark] {
			return nil, &AlignmentError{Msg: "Each bookmark should have a unique name."}
		}
		seen[mark] = true
	}

	desc := a.descriptor(rawText, nil)
	if a.Cache != nil {
		var cached map[string]float64
		if ok, err := a.Cache.ReadJSON(desc, resultFile, &cached); err == nil && ok {
			log.Debug("alignment cache hit", "service", a.Service.Name(), "bookmarks", len(cached))
			return cached, nil
		}
	}

	offsets := make([]int, len(res.Tags))
	for i, tag := range res.Tags {
		offsets[i] = tag.Offset
	}

	timestamps, err := a.Service.AlignChars(res.Text, offsets, audioPath)
	if err != nil {
		return nil, &AlignmentError{Msg: "alignment service " + a.Service.Name() + " failed", Cause: err}
	}
	if len(timestamps) != len(offsets) {
		return nil, &AlignmentError{
			Msg: fmt.Sprintf("alignment service %s returned %d timestamps for %d offsets",
				a.Service.Name(), len(timestamps), len(offsets)),
		}
	}

	result := make(map[string]float64, len(marks))
	for i, mark := range marks {
		result[mark] = timestamps[i]
	}

	a.store(desc, result)
	return result, nil
}

// AlignOffsets aligns raw character offsets in an already tag-free
// text, with the same caching behavior as AlignBookmarks. Subcaption
// pacing uses this to time chunk boundaries.
func (a *Aligner) AlignOffsets(text string, offsets []int, audioPath string) ([]float64, error) {
	desc := a.descriptor(text, offsets)
	if a.Cache != nil {
		var cached []float64
		if ok, err := a.Cache.ReadJSON(desc, resultFile, &cached); err == nil && ok && len(cached) == len(offsets) {
			log.Debug("offset alignment cache hit", "service", a.Service.Name(), "offsets", len(offsets))
			return cached, nil
		}
	}

	timestamps, err := a.Service.AlignChars(text, offsets, audioPath)
	if err != nil {
		return nil, &AlignmentError{Msg: "alignment service " + a.Service.Name() + " failed", Cause: err}
	}
	if len(timestamps) != len(offsets) {
		return nil, &AlignmentError{
			Msg: fmt.Sprintf("alignment service %s returned %d timestamps for %d offsets",
				a.Service.Name(), len(timestamps), len(offsets)),
		}
	}

	a.store(desc, timestamps)
	return timestamps, nil
}

func (a *Aligner) descriptor(rawText string, offsets []int) map[string]any {
	desc := map[string]any{
		"raw_text":       rawText,
		"service_name":   a.Service.Name(),
		"service_kwargs": a.Service.Kwargs(),
	}
	if offsets != nil {
		desc["char_offsets"] = offsets
	}
	return desc
}

func (a *Aligner) store(desc map[string]any, v any) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.WriteJSON(desc, resultFile, v); err != nil {
		log.Warn("could not persist alignment result", "service", a.Service.Name(), "err", err)
	}
}
