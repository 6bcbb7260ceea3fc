package forward

import (
	"strings"

	e "baleforward/pkg/entities"
)

// Sanitizer strips code points the destination platform mis-renders from
// decoded spans before composition.
type Sanitizer struct {
	unsafe map[rune]struct{}
}

// Zero-width and directional formatting marks known to break Bale rendering,
// covering the set the Telegram side commonly injects into Persian text.
var defaultUnsafe = []rune{
	'​', // zero width space
	'‌', // zero width non-joiner
	'‍', // zero width joiner
	'‎', // left-to-right mark
	'‏', // right-to-left mark
	'‪', // left-to-right embedding
	'‫', // right-to-left embedding
	'‬', // pop directional formatting
	'‭', // left-to-right override
	'‮', // right-to-left override
	'⁠', // word joiner
	'⁦', // left-to-right isolate
	'⁧', // right-to-left isolate
	'⁨', // first strong isolate
	'⁩', // pop directional isolate
	'\uFEFF', // byte order mark
}

// NewSanitizer builds a sanitizer for the default unsafe set plus any extra
// code points from configuration.
func NewSanitizer(extra ...rune) *Sanitizer {
	unsafe := make(map[rune]struct{}, len(defaultUnsafe)+len(extra))
	for _, r := range defaultUnsafe {
		unsafe[r] = struct{}{}
	}
	for _, r := range extra {
		unsafe[r] = struct{}{}
	}
	return &Sanitizer{unsafe: unsafe}
}

// Sanitize removes unsafe code points from every span. Span boundaries and
// link attachments survive: if stripping empties a link span's text, the span
// is replaced by a plain span carrying its URL so the link target is not
// silently lost. The returned count is the number of code points removed.
func (s *Sanitizer) Sanitize(spans []e.StyledSpan) ([]e.StyledSpan, int) {
	if len(spans) == 0 {
		return nil, 0
	}

	out := make([]e.StyledSpan, 0, len(spans))
	removed := 0
	for _, span := range spans {
		clean, n := s.strip(span.Text)
		removed += n

		switch {
		case clean == "" && span.IsLink():
			out = append(out, e.StyledSpan{Text: span.LinkURL})
		case clean == "":
			// Plain span fully consumed; nothing to keep.
		default:
			out = append(out, e.StyledSpan{Text: clean, LinkURL: span.LinkURL})
		}
	}
	return out, removed
}

func (s *Sanitizer) strip(text string) (string, int) {
	removed := 0
	var b strings.Builder
	for _, r := range text {
		if _, ok := s.unsafe[r]; ok {
			removed++
			continue
		}
		b.WriteRune(r)
	}
	if removed == 0 {
		return text, 0
	}
	return b.String(), removed
}
