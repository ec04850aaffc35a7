package tags

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func tagsEqual(a, b []Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		parser   Parser
		input    string
		wantText string
		wantTags []Tag
	}{
		{
			name:     "plain text passes through",
			parser:   Parser{},
			input:    "Hello there.",
			wantText: "Hello there.",
		},
		{
			name:     "bookmarks removed with offsets",
			parser:   Parser{Record: Names("bookmark"), Remove: All()},
			input:    `<bookmark mark='A'/>Test <bookmark mark='B'/>string.<bookmark mark='C'/>`,
			wantText: "Test string.",
			wantTags: []Tag{
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "A", HasValue: true}}, Offset: 0},
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "B", HasValue: true}}, Offset: 5},
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "C", HasValue: true}}, Offset: 12},
			},
		},
		{
			name:     "consecutive tags share an offset",
			parser:   Parser{Record: All(), Remove: All()},
			input:    `ab<bookmark mark='X'/><bookmark mark='Y'/>cd`,
			wantText: "abcd",
			wantTags: []Tag{
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "X", HasValue: true}}, Offset: 2},
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "Y", HasValue: true}}, Offset: 2},
			},
		},
		{
			name:     "start and end pair",
			parser:   Parser{Record: All(), Remove: All()},
			input:    `say <prosody rate="slow">this</prosody> slowly`,
			wantText: "say this slowly",
			wantTags: []Tag{
				{Kind: Start, Name: "prosody", Attrs: []Attr{{Key: "rate", Val: "slow", HasValue: true}}, Offset: 4},
				{Kind: End, Name: "prosody", Offset: 8},
			},
		},
		{
			name:     "selective removal keeps other tags in text",
			parser:   Parser{Record: Names("bookmark"), Remove: Names("bookmark")},
			input:    `<bookmark mark='A'/>keep <break time="1s"/>pauses`,
			wantText: `keep <break time="1s"/>pauses`,
			wantTags: []Tag{
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "A", HasValue: true}}, Offset: 0},
			},
		},
		{
			name:     "kept tag advances the offset counter",
			parser:   Parser{Record: All(), Remove: Names("bookmark")},
			input:    `<break time="1s"/>ab<bookmark mark='A'/>`,
			wantText: `<break time="1s"/>ab`,
			wantTags: []Tag{
				{Kind: StartEnd, Name: "break", Attrs: []Attr{{Key: "time", Val: "1s", HasValue: true}}, Offset: 0},
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "A", HasValue: true}}, Offset: 20},
			},
		},
		{
			name:     "record nothing remove everything",
			parser:   Parser{Record: None(), Remove: All()},
			input:    `a<bookmark mark='A'/>b`,
			wantText: "ab",
		},
		{
			name:     "offsets count runes not bytes",
			parser:   Parser{Record: All(), Remove: All()},
			input:    "héllo<bookmark mark='A'/>",
			wantText: "héllo",
			wantTags: []Tag{
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "A", HasValue: true}}, Offset: 5},
			},
		},
		{
			name:     "valueless attribute",
			parser:   Parser{Record: All(), Remove: All()},
			input:    `<emphasis strong/>loud`,
			wantText: "loud",
			wantTags: []Tag{
				{Kind: StartEnd, Name: "emphasis", Attrs: []Attr{{Key: "strong", HasValue: false}}, Offset: 0},
			},
		},
		{
			name:     "explicit empty value is not valueless",
			parser:   Parser{Record: All(), Remove: All()},
			input:    `<bookmark mark=""/>x`,
			wantText: "x",
			wantTags: []Tag{
				{Kind: StartEnd, Name: "bookmark", Attrs: []Attr{{Key: "mark", Val: "", HasValue: true}}, Offset: 0},
			},
		},
		{
			name:     "end tags drop attributes",
			parser:   Parser{Record: All(), Remove: All()},
			input:    `<prosody rate="fast">hi</prosody>`,
			wantText: "hi",
			wantTags: []Tag{
				{Kind: Start, Name: "prosody", Attrs: []Attr{{Key: "rate", Val: "fast", HasValue: true}}, Offset: 0},
				{Kind: End, Name: "prosody", Offset: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if res.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", res.Text, tt.wantText)
			}
			if !tagsEqual(res.Tags, tt.wantTags) {
				t.Errorf("Tags = %+v, want %+v", res.Tags, tt.wantTags)
			}
		})
	}
}

// spliceTags inserts each recorded tag's literal back into text at its
// rune offset, keeping document order for tags sharing an offset.
func spliceTags(text string, recorded []Tag) string {
	var b strings.Builder
	next := 0
	for i, r := range []rune(text) {
		for next < len(recorded) && recorded[next].Offset == i {
			b.WriteString(recorded[next].String())
			next++
		}
		b.WriteRune(r)
	}
	for next < len(recorded) {
		b.WriteString(recorded[next].String())
		next++
	}
	return b.String()
}

func TestParseReconstruction(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bookmarks around text", `<bookmark mark='A'/>Test <bookmark mark='B'/>string.<bookmark mark='C'/>`},
		{"start and end pair", `say <prosody rate="slow">this</prosody> slowly`},
		{"consecutive tags", `ab<bookmark mark='X'/><bookmark mark='Y'/>cd`},
		{"multibyte text", "héllo<bookmark mark='A'/> wörld"},
		{"trailing text", `<bookmark mark='A'/>only text after`},
	}

	p := Parser{Record: All(), Remove: All()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			rebuilt := spliceTags(res.Text, res.Tags)
			again, err := p.Parse(rebuilt)
			if err != nil {
				t.Fatalf("Parse() of rebuilt text error: %v", err)
			}
			if again.Text != res.Text {
				t.Errorf("rebuilt text parses to %q, want %q", again.Text, res.Text)
			}
			if !tagsEqual(again.Tags, res.Tags) {
				t.Errorf("rebuilt tags = %+v, want %+v", again.Tags, res.Tags)
			}
		})
	}
}

func TestParseOffsetsMonotonic(t *testing.T) {
	input := `<bookmark mark='A'/>keep <break time="1s"/>it ` +
		`<prosody rate="slow">slow</prosody><bookmark mark='B'/> énd<bookmark mark='C'/>`
	p := Parser{Record: All(), Remove: Names("bookmark")}
	res, err := p.Parse(input)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(res.Tags) < 5 {
		t.Fatalf("recorded %d tags, want at least 5", len(res.Tags))
	}

	limit := utf8.RuneCountInString(res.Text)
	prev := 0
	for i, tag := range res.Tags {
		if tag.Offset < 0 || tag.Offset > limit {
			t.Errorf("tag %d offset = %d, want within [0, %d]", i, tag.Offset, limit)
		}
		if tag.Offset < prev {
			t.Errorf("tag %d offset = %d, decreased from %d", i, tag.Offset, prev)
		}
		prev = tag.Offset
	}
}

func TestResultBookmarks(t *testing.T) {
	p := Parser{Record: All(), Remove: All()}
	res, err := p.Parse(`<bookmark mark='A'/>one <break time="1s"/>two<bookmark mark='B'/>`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	marks := res.Bookmarks("bookmark")
	if len(marks) != 2 {
		t.Fatalf("got %d bookmarks, want 2", len(marks))
	}
	for i, want := range []string{"A", "B"} {
		if v, _ := marks[i].Get("mark"); v != want {
			t.Errorf("bookmark %d mark = %q, want %q", i, v, want)
		}
	}
}
