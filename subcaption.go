package narration

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/scenekit/narration/align"
)

// addSubcaptionText schedules subcaptions for one narration. Short
// texts become a single subcaption spanning the whole narration.
// Longer texts are split after preferred punctuation, regrouped under
// the length cap, wrapped, and each chunk is timed against the speech
// through the subcaption aligner.
func (n *Narrator) addSubcaptionText(text string, duration float64, opts *NarrationOptions) error {
	maxLen := opts.maxLen()
	if runewidth.StringWidth(text) <= maxLen {
		n.scene.AddSubcaption(text, duration, 0)
		return nil
	}

	var regrouped []string
	if chars := opts.splitAfter(); chars != "" {
		regrouped = regroupSplits(splitAfterCharacters(text, chars), maxLen)
	} else {
		regrouped = []string{text}
	}

	var chunks []string
	for _, group := range regrouped {
		wrapped := wordwrap.String(group, maxLen)
		for _, line := range strings.Split(wrapped, "\n") {
			if line != "" {
				chunks = append(chunks, line)
			}
		}
	}

	// Offsets of the chunk starts in the joined text, one separator
	// rune between chunks.
	offsets := make([]int, len(chunks))
	pos := 0
	for i, chunk := range chunks {
		offsets[i] = pos
		pos += utf8.RuneCountInString(chunk) + 1
	}

	alignSvc, err := n.alignmentService(opts.SubcaptionAligner)
	if err != nil {
		return err
	}
	aligner := align.New(alignSvc, n.cache, n.cfg.Tags.Bookmark)

	log.Info("aligning subcaption", "chunks", len(chunks), "service", alignSvc.Name())
	timestamps, err := aligner.AlignOffsets(text, offsets, n.Tracker.AudioPath)
	if err != nil {
		return err
	}

	buff := opts.buff()
	for i, chunk := range chunks {
		end := duration
		if i+1 < len(timestamps) {
			end = timestamps[i+1]
		}
		n.scene.AddSubcaption(chunk, end-timestamps[i]-buff, timestamps[i])
	}
	return nil
}

// splitAfterCharacters splits a text after runs of the given
// characters: each split happens at whitespace immediately following
// one or more of them, and the characters stay with their segment.
// "Hello, world!!!" with chars ",!" becomes ["Hello,", "world!!!"].
func splitAfterCharacters(text, chars string) []string {
	if chars == "" {
		return []string{text}
	}
	isSplitChar := func(r rune) bool { return strings.ContainsRune(chars, r) }

	var splits []string
	runes := []rune(text)
	start := 0
	i := 0
	for i < len(runes) {
		if !isSplitChar(runes[i]) {
			i++
			continue
		}
		for i < len(runes) && isSplitChar(runes[i]) {
			i++
		}
		if i < len(runes) && unicode.IsSpace(runes[i]) {
			splits = append(splits, string(runes[start:i]))
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			start = i
		}
	}
	if start < len(runes) {
		splits = append(splits, string(runes[start:]))
	}
	if len(splits) == 0 {
		splits = []string{text}
	}
	return splits
}

// regroupSplits joins consecutive splits back together as long as the
// group stays under maxLen. Splits that alone exceed maxLen pass
// through on their own for the wrapper to deal with.
func regroupSplits(splits []string, maxLen int) []string {
	var regrouped []string
	group := ""

	for _, split := range splits {
		if split == "" {
			continue
		}
		n := utf8.RuneCountInString(split)
		if n > maxLen {
			if group != "" {
				regrouped = append(regrouped, group)
				group = ""
			}
			regrouped = append(regrouped, split)
			continue
		}
		if utf8.RuneCountInString(group)+n <= maxLen-1 {
			if group == "" {
				group = split
			} else {
				group += " " + split
			}
		} else {
			regrouped = append(regrouped, group)
			group = split
		}
	}
	if group != "" {
		regrouped = append(regrouped, group)
	}
	return regrouped
}
