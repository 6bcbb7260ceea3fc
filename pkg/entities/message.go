package entities

// EntityKind classifies a source-platform text annotation.
type EntityKind string

const (
	// EntityKindURL marks a bare URL; the link target is the covered text itself.
	EntityKindURL EntityKind = "url"

	// EntityKindTextLink marks styled link text with an explicit target URL.
	EntityKindTextLink EntityKind = "text_link"

	// EntityKindMention marks a @username reference, forwarded as plain text.
	EntityKindMention EntityKind = "mention"

	// EntityKindOther covers annotations the forwarder does not style.
	EntityKindOther EntityKind = "other"
)

// TextEntity is a source-platform annotation over a sub-range of message
// text. Offset and Length are in UTF-16 code units, as the Telegram bot API
// defines them.
type TextEntity struct {
	Offset int
	Length int
	Kind   EntityKind
	URL    string // set for text_link entities only
}

// PhotoRef points at binary photo content on the source platform. Content is
// fetched lazily by file ID when a delivery plan is executed.
type PhotoRef struct {
	FileID       string
	Caption      string
	MediaGroupID string
}

// Button is a single inline keyboard button.
type Button struct {
	Label string
	URL   string
}

// ButtonGrid is an inline keyboard: rows of buttons in display order.
type ButtonGrid [][]Button

// RawMessage is one inbound update, already assembled (a media group arrives
// as a single RawMessage carrying every photo of the group). Immutable once
// handed to the pipeline.
type RawMessage struct {
	ID           string
	Text         string // message text, or the caption for photo messages
	Entities     []TextEntity
	Photos       []PhotoRef
	MediaGroupID string
	Keyboard     ButtonGrid
}

// StyledSpan is a contiguous run of message text plus its optional link
// target, free of UTF-16 offset encoding. A decoded message is an ordered
// sequence of spans covering the whole text with no gaps.
type StyledSpan struct {
	Text    string
	LinkURL string // empty for plain runs
}

// IsLink reports whether the span carries a link target.
func (s StyledSpan) IsLink() bool {
	return s.LinkURL != ""
}

// DeliveryResult is the outcome of one destination-platform network call.
type DeliveryResult struct {
	Succeeded  bool
	StatusCode int    // 0 when the call never reached the platform
	ErrorBody  string // platform error description, if any
}

func (m *RawMessage) HasText() bool {
	return m.Text != ""
}

func (m *RawMessage) HasPhotos() bool {
	return len(m.Photos) > 0
}
