// Package tags parses inline narration markup. It turns an annotated
// text into a tag-free text plus an ordered list of tag records whose
// offsets point into the tag-free text, so that a character position
// in the spoken text can later be aligned to an audio timestamp.
package tags

import (
	"fmt"
	"strings"
)

// Kind identifies the form of a parsed tag.
type Kind int

const (
	// Start is an opening tag: <name ...>.
	Start Kind = iota
	// End is a closing tag: </name>.
	End
	// StartEnd is a self-closing tag: <name .../>.
	StartEnd
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case End:
		return "end"
	case StartEnd:
		return "startend"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Attr is a single tag attribute. Attributes keep their source order.
// HasValue is false for valueless attributes such as <tag flag>.
type Attr struct {
	Key      string
	Val      string
	HasValue bool
}

// Tag records one tag discovered while parsing.
//
// Offset is the index (in runes) into the tag-free text immediately
// following where the tag was removed. A tag at the very beginning of
// the text has offset 0; a tag at the very end has offset equal to the
// rune length of the tag-free text. Consecutive tags share the same
// offset. End tags always carry an empty attribute list.
type Tag struct {
	Kind   Kind
	Name   string
	Attrs  []Attr
	Offset int
}

// Get returns the value of the named attribute. ok is false when the
// attribute is absent or valueless.
func (t Tag) Get(key string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Key == key {
			return a.Val, a.HasValue
		}
	}
	return "", false
}

// String re-serializes the tag in canonical form: `<name k="v">`,
// `</name>` or `<name k="v"/>`. Valueless attributes render as bare
// keys. This is the literal text emitted for tags that are recorded
// but not removed.
func (t Tag) String() string {
	var b strings.Builder
	b.WriteByte('<')
	if t.Kind == End {
		b.WriteByte('/')
	}
	b.WriteString(t.Name)
	for _, a := range t.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		if a.HasValue {
			b.WriteString(`="`)
			b.WriteString(a.Val)
			b.WriteByte('"')
		}
	}
	if t.Kind == StartEnd {
		b.WriteByte('/')
	}
	b.WriteByte('>')
	return b.String()
}

// Equal reports whether two tags match in kind, name, attributes
// (including order) and offset.
func (t Tag) Equal(other Tag) bool {
	if t.Kind != other.Kind || t.Name != other.Name || t.Offset != other.Offset {
		return false
	}
	if len(t.Attrs) != len(other.Attrs) {
		return false
	}
	for i := range t.Attrs {
		if t.Attrs[i] != other.Attrs[i] {
			return false
		}
	}
	return true
}

// Selection decides which tag names an operation applies to. The zero
// value selects every name; None selects nothing; Names selects
// exactly the given names.
type Selection struct {
	none  bool
	names map[string]bool
}

// All returns a selection matching every tag name.
func All() Selection { return Selection{} }

// None returns a selection matching no tag name.
func None() Selection { return Selection{none: true} }

// Names returns a selection matching exactly the given names. With no
// arguments it is equivalent to All.
func Names(names ...string) Selection {
	if len(names) == 0 {
		return All()
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return Selection{names: m}
}

// Contains reports whether the selection applies to name.
func (s Selection) Contains(name string) bool {
	if s.none {
		return false
	}
	if len(s.names) == 0 {
		return true
	}
	return s.names[name]
}
