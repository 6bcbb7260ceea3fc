package forward

import e "baleforward/pkg/entities"

// PlanKind says how a message's photos reach the destination.
type PlanKind int

const (
	// PlanNone means text-only delivery, no media send.
	PlanNone PlanKind = iota

	// PlanSingle is one sendPhoto call.
	PlanSingle

	// PlanAlbum is one grouped sendMediaGroup call.
	PlanAlbum
)

// PlanItem is one photo in a plan. Bytes are fetched by FileID only when the
// plan is executed.
type PlanItem struct {
	FileID  string
	Caption string
}

// Plan is the media half of a delivery: which send operation to use and the
// photos it carries, captions already placed.
type Plan struct {
	Kind  PlanKind
	Items []PlanItem
}

// PlanMedia decides between no media send, a single-photo send and a grouped
// album. Photos sharing a media group ID always go as an album, even a group
// of one. Bale attaches an album caption to its first photo only, so the
// composed caption lands there and the rest stay bare; a lone ungrouped photo
// keeps its own caption on the send call.
func PlanMedia(photos []e.PhotoRef, caption string) Plan {
	if len(photos) == 0 {
		return Plan{Kind: PlanNone}
	}

	if len(photos) == 1 && photos[0].MediaGroupID == "" {
		c := caption
		if c == "" {
			c = photos[0].Caption
		}
		return Plan{
			Kind:  PlanSingle,
			Items: []PlanItem{{FileID: photos[0].FileID, Caption: c}},
		}
	}

	items := make([]PlanItem, len(photos))
	for i, p := range photos {
		items[i] = PlanItem{FileID: p.FileID}
	}
	items[0].Caption = caption

	return Plan{Kind: PlanAlbum, Items: items}
}
