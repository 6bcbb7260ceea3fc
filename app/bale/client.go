package bale

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"baleforward/app/forward"
	e "baleforward/pkg/entities"
	"baleforward/pkg/logger"
)

// Bale exposes the Telegram bot API surface on its own endpoint, so the same
// client library drives both platforms.
const apiEndpoint = "https://tapi.bale.ai/bot%s/%s"

// Client pushes messages into one Bale chat. Every Send method performs
// exactly one network call and reports the outcome as a DeliveryResult;
// retrying is the delivery engine's job.
type Client struct {
	Log      logger.Logger
	APIToken string
	ChatID   string // numeric chat ID or @channelusername

	bot      *tgbotapi.BotAPI
	chatID   int64
	username string
}

var _ forward.Destination = (*Client)(nil)

// Connect authenticates against the Bale API and validates the destination
// chat reference.
func (c *Client) Connect() (err error) {
	switch {
	case strings.HasPrefix(c.ChatID, "@"):
		c.username = c.ChatID
	default:
		c.chatID, err = strconv.ParseInt(c.ChatID, 10, 64)
		if err != nil {
			return fmt.Errorf("destination chat id %q is neither numeric nor @username", c.ChatID)
		}
	}

	c.bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(c.APIToken, apiEndpoint)
	if err != nil {
		return fmt.Errorf("creating bale bot api: %w", err)
	}

	c.Log.Info("bale bot api created", "username", c.bot.Self.UserName, "chat", c.ChatID)
	return nil
}

func (c *Client) SendText(_ context.Context, text string, markdown bool, kb e.ButtonGrid) e.DeliveryResult {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ChannelUsername = c.username
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if kb != nil {
		msg.ReplyMarkup = toInlineMarkup(kb)
	}

	_, err := c.bot.Send(msg)
	return toResult(err)
}

func (c *Client) SendKeyboard(ctx context.Context, kb e.ButtonGrid, text string, markdown bool) e.DeliveryResult {
	return c.SendText(ctx, text, markdown, kb)
}

func (c *Client) SendPhoto(_ context.Context, photo []byte, caption string, markdown bool, kb e.ButtonGrid) e.DeliveryResult {
	cfg := tgbotapi.NewPhoto(c.chatID, tgbotapi.FileBytes{Name: "photo.jpg", Bytes: photo})
	cfg.ChannelUsername = c.username
	cfg.Caption = caption
	if markdown && caption != "" {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if kb != nil {
		cfg.ReplyMarkup = toInlineMarkup(kb)
	}

	_, err := c.bot.Send(cfg)
	return toResult(err)
}

func (c *Client) SendMediaGroup(_ context.Context, items []forward.MediaItem, markdown bool) e.DeliveryResult {
	media := make([]interface{}, 0, len(items))
	for i, item := range items {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{
			Name:  fmt.Sprintf("photo_%d.jpg", i+1),
			Bytes: item.Data,
		})
		if item.Caption != "" {
			photo.Caption = item.Caption
			if markdown {
				photo.ParseMode = tgbotapi.ModeMarkdown
			}
		}
		media = append(media, photo)
	}

	cfg := tgbotapi.NewMediaGroup(c.chatID, media)
	cfg.ChannelUsername = c.username

	_, err := c.bot.SendMediaGroup(cfg)
	return toResult(err)
}

// toResult maps a bot API error onto the pipeline's delivery result. A
// *tgbotapi.Error carries the platform's HTTP-like error code and
// description; anything else never reached the platform and counts as a
// transport failure (status 0).
func toResult(err error) e.DeliveryResult {
	if err == nil {
		return e.DeliveryResult{Succeeded: true}
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return e.DeliveryResult{
			StatusCode: apiErr.Code,
			ErrorBody:  apiErr.Message,
		}
	}

	return e.DeliveryResult{ErrorBody: err.Error()}
}

func toInlineMarkup(kb e.ButtonGrid) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		outRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			outRow = append(outRow, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
		}
		rows = append(rows, outRow)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
