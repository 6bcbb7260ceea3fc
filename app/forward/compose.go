package forward

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	e "baleforward/pkg/entities"
)

// Bale accepts the legacy Markdown dialect, so these are the only characters
// that need escaping in plain runs and link labels.
const reserved = "_*`["

var (
	spaceRunRe  = regexp.MustCompile(` {3,}`)
	pipeLeadRe  = regexp.MustCompile(` +\|`)
	pipeTrailRe = regexp.MustCompile(`\| +`)
)

// Escape backslash-escapes Markdown-reserved characters. It is idempotent: a
// character that already sits behind a backslash is left alone, so composing
// an escaped string a second time changes nothing.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '\\' && i+size < len(text) {
			next, nextSize := utf8.DecodeRuneInString(text[i+size:])
			if strings.ContainsRune(reserved, next) {
				b.WriteRune(r)
				b.WriteRune(next)
				i += size + nextSize
				continue
			}
		}
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

// Compose renders sanitized spans into one Bale Markdown string. Plain runs
// are escaped; link spans become [label](url) padded with a single space on
// each side unless the neighbouring character is already whitespace or the
// string boundary, which keeps Bale's word-boundary parsing away from emoji
// and Persian joiners.
func Compose(spans []e.StyledSpan) string {
	var b strings.Builder
	pendingPad := false

	for _, span := range spans {
		if !span.IsLink() {
			text := Escape(span.Text)
			if pendingPad && !startsWithSpace(text) {
				b.WriteByte(' ')
			}
			pendingPad = false
			b.WriteString(text)
			continue
		}

		if b.Len() > 0 && !endsWithSpace(b.String()) {
			b.WriteByte(' ')
		}
		b.WriteString("[")
		b.WriteString(Escape(span.Text))
		b.WriteString("](")
		b.WriteString(span.LinkURL)
		b.WriteString(")")
		pendingPad = true
	}

	return tidy(b.String())
}

// ComposePlain renders the same spans with markup stripped: no escaping, link
// labels kept as-is with the target in parentheses when it differs from the
// label. This is the payload for the plain-text delivery fallback.
func ComposePlain(spans []e.StyledSpan) string {
	var b strings.Builder
	for _, span := range spans {
		b.WriteString(span.Text)
		if span.IsLink() && span.LinkURL != span.Text {
			b.WriteString(" (")
			b.WriteString(span.LinkURL)
			b.WriteString(")")
		}
	}
	return tidy(b.String())
}

// tidy collapses runs of three or more spaces and normalizes spacing around
// pipe separators, which channel posts use heavily as column dividers.
func tidy(text string) string {
	text = spaceRunRe.ReplaceAllString(text, "  ")
	text = pipeLeadRe.ReplaceAllString(text, " |")
	text = pipeTrailRe.ReplaceAllString(text, "| ")
	return text
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}
