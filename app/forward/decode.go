package forward

import (
	"sort"
	"unicode/utf8"

	e "baleforward/pkg/entities"
)

// Decode partitions text into styled spans using the entity list. Entity
// offsets are UTF-16 code units (Telegram counts one unit for scalar values
// up to 0xFFFF and two for anything needing a surrogate pair), so positions
// are converted by walking the string rune by rune.
//
// URL entities link to their own covered text, text_link entities to their
// explicit URL. Mentions and every other kind stay plain. Entities that fall
// outside the text or overlap an earlier link entity are dropped and
// returned so the caller can log them; they never fail the decode.
func Decode(text string, ents []e.TextEntity) ([]e.StyledSpan, []e.TextEntity) {
	if text == "" {
		return nil, nil
	}

	linkEnts := make([]e.TextEntity, 0, len(ents))
	for _, ent := range ents {
		if ent.Kind == e.EntityKindURL || ent.Kind == e.EntityKindTextLink {
			linkEnts = append(linkEnts, ent)
		}
	}
	sort.SliceStable(linkEnts, func(i, j int) bool {
		return linkEnts[i].Offset < linkEnts[j].Offset
	})

	total := utf16Len(text)

	var spans []e.StyledSpan
	var dropped []e.TextEntity

	w := walker{text: text}
	for _, ent := range linkEnts {
		switch {
		case ent.Offset < 0 || ent.Length <= 0 || ent.Offset+ent.Length > total:
			dropped = append(dropped, ent)
			continue
		case ent.Offset < w.unit:
			// Overlaps the previous link entity: caller-data error.
			dropped = append(dropped, ent)
			continue
		}

		start := w.advanceTo(ent.Offset)
		end := w.advanceTo(ent.Offset + ent.Length)

		if plain := text[w.plainFrom:start]; plain != "" {
			spans = append(spans, e.StyledSpan{Text: plain})
		}

		label := text[start:end]
		url := ent.URL
		if ent.Kind == e.EntityKindURL {
			url = label
		}
		spans = append(spans, e.StyledSpan{Text: label, LinkURL: url})
		w.plainFrom = end
	}

	if tail := text[w.plainFrom:]; tail != "" {
		spans = append(spans, e.StyledSpan{Text: tail})
	}

	return spans, dropped
}

// walker tracks the correspondence between UTF-16 code-unit positions and
// byte positions while moving forward through a string.
type walker struct {
	text      string
	unit      int // current UTF-16 position
	byteIdx   int // current byte position
	plainFrom int // byte start of the pending plain run
}

// advanceTo moves the cursor to the given UTF-16 position and returns the
// corresponding byte index. A target landing inside a surrogate pair snaps
// past the rune; astral characters are never split.
func (w *walker) advanceTo(target int) int {
	for w.unit < target && w.byteIdx < len(w.text) {
		r, size := utf8.DecodeRuneInString(w.text[w.byteIdx:])
		w.unit += utf16RuneLen(r)
		w.byteIdx += size
	}
	return w.byteIdx
}

func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16RuneLen(r)
	}
	return n
}

// utf16RuneLen mirrors utf16.RuneLen, which is unavailable before Go 1.23:
// one code unit for scalar values outside the surrogate range below 0x10000,
// two for astral characters, -1 otherwise.
func utf16RuneLen(r rune) int {
	switch {
	case 0 <= r && r < 0xD800, 0xE000 <= r && r < 0x10000:
		return 1
	case 0x10000 <= r && r <= 0x10FFFF:
		return 2
	default:
		return -1
	}
}
