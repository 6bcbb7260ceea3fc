package forward

import (
	"reflect"
	"strings"
	"testing"

	e "baleforward/pkg/entities"
)

func TestDecode_PlainText(t *testing.T) {
	spans, dropped := Decode("hello world", nil)

	want := []e.StyledSpan{{Text: "hello world"}}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("got %+v, want %+v", spans, want)
	}
	if len(dropped) != 0 {
		t.Errorf("dropped %d entities, want 0", len(dropped))
	}
}

func TestDecode_TextLink(t *testing.T) {
	text := "read the docs here"
	ents := []e.TextEntity{
		{Offset: 9, Length: 4, Kind: e.EntityKindTextLink, URL: "https://example.com/docs"},
	}

	spans, _ := Decode(text, ents)

	want := []e.StyledSpan{
		{Text: "read the "},
		{Text: "docs", LinkURL: "https://example.com/docs"},
		{Text: " here"},
	}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("got %+v, want %+v", spans, want)
	}
}

func TestDecode_URLEntityLinksToItsOwnText(t *testing.T) {
	text := "see https://example.com now"
	ents := []e.TextEntity{
		{Offset: 4, Length: 19, Kind: e.EntityKindURL},
	}

	spans, _ := Decode(text, ents)

	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[1].Text != "https://example.com" || spans[1].LinkURL != "https://example.com" {
		t.Errorf("url entity span = %+v, want text and url both https://example.com", spans[1])
	}
}

func TestDecode_MentionStaysPlain(t *testing.T) {
	text := "ping @someone please"
	ents := []e.TextEntity{
		{Offset: 5, Length: 8, Kind: e.EntityKindMention},
	}

	spans, dropped := Decode(text, ents)

	for _, span := range spans {
		if span.IsLink() {
			t.Errorf("mention produced a link span: %+v", span)
		}
	}
	if len(dropped) != 0 {
		t.Errorf("mention counted as dropped: %+v", dropped)
	}
	if joined := joinSpans(spans); joined != text {
		t.Errorf("joined spans = %q, want %q", joined, text)
	}
}

func TestDecode_AstralOffsets(t *testing.T) {
	// The emoji occupies two UTF-16 code units, so the entity at offset 1
	// with length 2 must select exactly the emoji.
	text := "A😀B"
	ents := []e.TextEntity{
		{Offset: 1, Length: 2, Kind: e.EntityKindTextLink, URL: "https://example.com"},
	}

	spans, _ := Decode(text, ents)

	want := []e.StyledSpan{
		{Text: "A"},
		{Text: "😀", LinkURL: "https://example.com"},
		{Text: "B"},
	}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("got %+v, want %+v", spans, want)
	}
}

func TestDecode_MixedAstralAndASCII(t *testing.T) {
	// utf16 layout: 🎉🎉=0..3, "x"=4, 🎉=5..6, "yz"=7..8
	text := "🎉🎉x🎉yz"
	ents := []e.TextEntity{
		{Offset: 4, Length: 1, Kind: e.EntityKindTextLink, URL: "https://x.example"},
		{Offset: 7, Length: 2, Kind: e.EntityKindTextLink, URL: "https://yz.example"},
	}

	spans, dropped := Decode(text, ents)

	if len(dropped) != 0 {
		t.Fatalf("dropped %+v, want none", dropped)
	}
	var links []string
	for _, span := range spans {
		if span.IsLink() {
			links = append(links, span.Text)
		}
	}
	if !reflect.DeepEqual(links, []string{"x", "yz"}) {
		t.Errorf("link texts = %v, want [x yz]", links)
	}
	if joined := joinSpans(spans); joined != text {
		t.Errorf("joined spans = %q, want %q", joined, text)
	}
}

func TestDecode_OutOfBoundsEntityDropped(t *testing.T) {
	text := "12345678" // utf16 length 8
	ents := []e.TextEntity{
		{Offset: 5, Length: 10, Kind: e.EntityKindTextLink, URL: "https://example.com"},
	}

	spans, dropped := Decode(text, ents)

	if len(dropped) != 1 {
		t.Fatalf("dropped %d entities, want 1", len(dropped))
	}
	want := []e.StyledSpan{{Text: text}}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("got %+v, want %+v", spans, want)
	}
}

func TestDecode_OverlappingLinkEntityDropped(t *testing.T) {
	text := "abcdefgh"
	ents := []e.TextEntity{
		{Offset: 0, Length: 4, Kind: e.EntityKindTextLink, URL: "https://a.example"},
		{Offset: 2, Length: 4, Kind: e.EntityKindTextLink, URL: "https://b.example"},
	}

	spans, dropped := Decode(text, ents)

	if len(dropped) != 1 {
		t.Fatalf("dropped %d entities, want 1", len(dropped))
	}
	if joined := joinSpans(spans); joined != text {
		t.Errorf("joined spans = %q, want %q", joined, text)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		text string
		ents []e.TextEntity
	}{
		{"plain", "no entities at all", nil},
		{"link at start", "go home", []e.TextEntity{{Offset: 0, Length: 2, Kind: e.EntityKindTextLink, URL: "https://go.dev"}}},
		{"link at end", "see docs", []e.TextEntity{{Offset: 4, Length: 4, Kind: e.EntityKindTextLink, URL: "https://example.com"}}},
		{"adjacent links", "ab", []e.TextEntity{
			{Offset: 0, Length: 1, Kind: e.EntityKindTextLink, URL: "https://a.example"},
			{Offset: 1, Length: 1, Kind: e.EntityKindTextLink, URL: "https://b.example"},
		}},
		{"persian with marks", "سلام دنیا از اینجا", []e.TextEntity{{Offset: 5, Length: 4, Kind: e.EntityKindTextLink, URL: "https://example.ir"}}},
		{"emoji heavy", "🎉 party 🎉 time 🎉", []e.TextEntity{{Offset: 3, Length: 5, Kind: e.EntityKindTextLink, URL: "https://example.com"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spans, _ := Decode(tc.text, tc.ents)
			if joined := joinSpans(spans); joined != tc.text {
				t.Errorf("joined spans = %q, want %q", joined, tc.text)
			}
		})
	}
}

func TestDecode_EmptyText(t *testing.T) {
	spans, dropped := Decode("", []e.TextEntity{{Offset: 0, Length: 1, Kind: e.EntityKindURL}})
	if spans != nil || dropped != nil {
		t.Errorf("got spans=%+v dropped=%+v, want nil/nil", spans, dropped)
	}
}

func joinSpans(spans []e.StyledSpan) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
