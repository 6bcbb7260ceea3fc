package forward

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"baleforward/app/delivery"
	e "baleforward/pkg/entities"
	"baleforward/pkg/logger"
)

// Source is the slice of the source platform the pipeline needs: binary
// content for a photo reference. Polling lives in the source client.
type Source interface {
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
}

// MediaItem is one photo of a grouped send, content already fetched.
type MediaItem struct {
	Data    []byte
	Caption string
}

// Destination is the destination-platform client as the pipeline sees it.
// Every call is exactly one network operation; retry lives in the delivery
// engine, not here. markdown selects the Markdown parse mode for text and
// captions.
type Destination interface {
	SendText(ctx context.Context, text string, markdown bool, kb e.ButtonGrid) e.DeliveryResult
	SendPhoto(ctx context.Context, photo []byte, caption string, markdown bool, kb e.ButtonGrid) e.DeliveryResult
	SendMediaGroup(ctx context.Context, items []MediaItem, markdown bool) e.DeliveryResult
	SendKeyboard(ctx context.Context, kb e.ButtonGrid, text string, markdown bool) e.DeliveryResult
}

// Forwarder runs the translation pipeline for one inbound message: decode
// entities, sanitize, compose both markup and plain renditions, translate the
// keyboard, plan media and hand each send to the delivery engine. It keeps no
// state between messages, so re-running the same RawMessage is safe.
type Forwarder struct {
	Log       logger.Logger
	Source    Source
	Dest      Destination
	Engine    *delivery.Engine
	Sanitizer *Sanitizer
}

// HandleMessage forwards one message. A failed forward is reported (log plus
// Sentry) and returned, but the caller's polling loop is expected to carry on
// with the next update.
func (f *Forwarder) HandleMessage(ctx context.Context, msg e.RawMessage) error {
	log := f.Log.With("msg_id", msg.ID, "forward_id", uuid.NewString())

	spans, dropped := Decode(msg.Text, msg.Entities)
	for _, ent := range dropped {
		log.Warn("dropping malformed entity",
			"kind", string(ent.Kind),
			"offset", ent.Offset,
			"length", ent.Length,
		)
	}

	spans, stripped := f.Sanitizer.Sanitize(spans)
	if stripped > 0 {
		log.Debug("stripped unsafe code points", "count", stripped)
	}

	markup := Compose(spans)
	plain := ComposePlain(spans)
	formatted := markup != plain

	kb := TranslateKeyboard(msg.Keyboard)
	plan := PlanMedia(msg.Photos, markup)

	err := f.execute(ctx, log, plan, markup, plain, formatted, kb)
	if err != nil {
		log.Error("forward failed", "error", err)
		sentry.CaptureException(fmt.Errorf("forwarding message %s: %w", msg.ID, err))
		return fmt.Errorf("forwarding message %s: %w", msg.ID, err)
	}

	log.Info("message forwarded",
		"photos", len(plan.Items),
		"keyboard_rows", len(kb),
		"formatted", formatted,
	)
	return nil
}

func (f *Forwarder) execute(ctx context.Context, log logger.Logger, plan Plan, markup, plain string, formatted bool, kb e.ButtonGrid) error {
	switch plan.Kind {
	case PlanNone:
		if markup == "" {
			if kb != nil {
				log.Warn("dropping keyboard: no text to host it")
			}
			return nil
		}
		return f.sendText(ctx, markup, plain, formatted, kb)

	case PlanSingle:
		return f.sendSingle(ctx, log, plan.Items[0], markup, plain, formatted, kb)

	default:
		return f.sendAlbum(ctx, log, plan, markup, plain, formatted, kb)
	}
}

func (f *Forwarder) sendText(ctx context.Context, markup, plain string, formatted bool, kb e.ButtonGrid) error {
	return f.Engine.Deliver(ctx, formatted, func(ctx context.Context, usePlain bool) e.DeliveryResult {
		text, md := markup, formatted
		if usePlain {
			text, md = plain, false
		}
		if kb != nil {
			return f.Dest.SendKeyboard(ctx, kb, text, md)
		}
		return f.Dest.SendText(ctx, text, md, nil)
	})
}

func (f *Forwarder) sendSingle(ctx context.Context, log logger.Logger, item PlanItem, markup, plain string, formatted bool, kb e.ButtonGrid) error {
	data, err := f.Engine.Fetch(ctx, item.FileID, f.Source.FetchFile)
	if err != nil {
		log.Warn("photo fetch exhausted, degrading to text", "file_id", item.FileID, "error", err)
		if markup == "" && kb == nil {
			return fmt.Errorf("photo undeliverable and no caption to fall back to: %w", err)
		}
		if markup == "" {
			markup, plain = item.Caption, item.Caption
		}
		return f.sendText(ctx, markup, plain, formatted, kb)
	}

	return f.Engine.Deliver(ctx, formatted, func(ctx context.Context, usePlain bool) e.DeliveryResult {
		caption, md := markup, formatted
		if usePlain {
			caption, md = plain, false
		}
		if caption == "" {
			caption, md = item.Caption, false
		}
		return f.Dest.SendPhoto(ctx, data, caption, md, kb)
	})
}

// sendAlbum executes a grouped plan. Photos whose fetch exhausts retries are
// dropped and the rest still go out; an album shrunk to one photo becomes a
// plain photo send, shrunk to none it degrades to the caption text. Neither
// platform accepts reply markup on a grouped send, so when a keyboard is
// present the caption is diverted to a follow-up keyboard message and the
// album goes out uncaptioned.
func (f *Forwarder) sendAlbum(ctx context.Context, log logger.Logger, plan Plan, markup, plain string, formatted bool, kb e.ButtonGrid) error {
	var items []MediaItem
	for _, planned := range plan.Items {
		data, err := f.Engine.Fetch(ctx, planned.FileID, f.Source.FetchFile)
		if err != nil {
			log.Warn("dropping photo from group", "file_id", planned.FileID, "error", err)
			continue
		}
		items = append(items, MediaItem{Data: data})
	}

	switch len(items) {
	case 0:
		log.Warn("no photos in group survived fetching")
		if markup == "" && kb == nil {
			return fmt.Errorf("media group undeliverable: every photo fetch failed")
		}
		return f.sendText(ctx, markup, plain, formatted, kb)

	case 1:
		// Group shrunk to one photo: a plain photo send, which can carry
		// both the caption and the keyboard.
		return f.Engine.Deliver(ctx, formatted, func(ctx context.Context, usePlain bool) e.DeliveryResult {
			caption, md := markup, formatted
			if usePlain {
				caption, md = plain, false
			}
			return f.Dest.SendPhoto(ctx, items[0].Data, caption, md, kb)
		})

	default:
		divert := kb != nil && markup != ""
		if !divert {
			items[0].Caption = markup
		}

		err := f.Engine.Deliver(ctx, formatted && !divert, func(ctx context.Context, usePlain bool) e.DeliveryResult {
			send := items
			if usePlain {
				send = make([]MediaItem, len(items))
				copy(send, items)
				send[0].Caption = plain
			}
			return f.Dest.SendMediaGroup(ctx, send, formatted && !divert && !usePlain)
		})
		if err != nil {
			return err
		}

		if divert {
			return f.Engine.Deliver(ctx, formatted, func(ctx context.Context, usePlain bool) e.DeliveryResult {
				text, md := markup, formatted
				if usePlain {
					text, md = plain, false
				}
				return f.Dest.SendKeyboard(ctx, kb, text, md)
			})
		}
		if kb != nil {
			log.Warn("dropping keyboard: grouped send cannot carry reply markup and there is no caption to host it")
		}
		return nil
	}
}
