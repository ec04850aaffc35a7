package tags

import (
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Result holds the outcome of a parse: the emitted text and the
// recorded tags in document order.
type Result struct {
	Text string
	Tags []Tag
}

// Bookmarks returns the recorded tags whose name matches the given
// tag name. The slice shares backing with Tags.
func (r *Result) Bookmarks(name string) []Tag {
	var out []Tag
	for _, t := range r.Tags {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// Parser scans a text for markup tags. Record selects which tag names
// are captured into Result.Tags; Remove selects which are stripped
// from the emitted text. The two selections are independent: a tag
// can be recorded and kept, recorded and removed, or silently
// dropped. Zero-value selections apply to every tag name.
type Parser struct {
	Record Selection
	Remove Selection
}

// Parse scans text and returns the emitted text plus the recorded
// tags. Offsets count runes of emitted text preceding the tag, so a
// recorded tag that is also removed points at the position its
// content would have occupied, and a kept tag advances the counter by
// its own canonical length.
//
// The underlying tokenizer treats the input as a markup fragment; it
// does not fail on unbalanced or malformed tags, so Parse only
// returns an error on an unexpected tokenizer failure.
func (p *Parser) Parse(text string) (*Result, error) {
	z := html.NewTokenizer(strings.NewReader(text))
	res := &Result{}
	var out strings.Builder
	pos := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			break
		}
		raw := string(z.Raw())
		switch tt {
		case html.TextToken:
			s := html.UnescapeString(raw)
			out.WriteString(s)
			pos += utf8.RuneCountInString(s)
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tag := Tag{Name: tok.Data, Offset: pos}
			switch tt {
			case html.StartTagToken:
				tag.Kind = Start
			case html.EndTagToken:
				tag.Kind = End
			case html.SelfClosingTagToken:
				tag.Kind = StartEnd
			}
			if tag.Kind != End {
				for _, a := range tok.Attr {
					tag.Attrs = append(tag.Attrs, Attr{
						Key:      a.Key,
						Val:      a.Val,
						HasValue: a.Val != "" || attrHasValue(raw, a.Key),
					})
				}
			}
			if p.Record.Contains(tag.Name) {
				res.Tags = append(res.Tags, tag)
			}
			if !p.Remove.Contains(tag.Name) {
				lit := tag.String()
				out.WriteString(lit)
				pos += utf8.RuneCountInString(lit)
			}
		case html.CommentToken, html.DoctypeToken:
			// Not narration markup; dropped.
		}
	}

	res.Text = out.String()
	return res, nil
}

// attrHasValue distinguishes `<t k>` from `<t k="">` when the
// tokenizer reports an empty value for both. It scans the raw tag
// text for the key followed by `=`.
func attrHasValue(raw, key string) bool {
	for i := 0; i+len(key) <= len(raw); i++ {
		if raw[i:i+len(key)] != key {
			continue
		}
		if i > 0 {
			r, _ := utf8.DecodeLastRuneInString(raw[:i])
			if !unicode.IsSpace(r) {
				continue
			}
		}
		j := i + len(key)
		for j < len(raw) && unicode.IsSpace(rune(raw[j])) {
			j++
		}
		if j < len(raw) && raw[j] == '=' {
			return true
		}
	}
	return false
}
