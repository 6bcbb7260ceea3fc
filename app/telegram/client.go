package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	e "baleforward/pkg/entities"
	"baleforward/pkg/logger"
	"baleforward/pkg/mutex"
)

// MessageHandler receives assembled messages from the polling loop. A media
// group arrives as one RawMessage once its collection window closes.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg e.RawMessage) error
}

// Client polls the Telegram bot API for new posts in a single source channel
// and hands them to the Handler. It also serves photo downloads for the
// pipeline.
type Client struct {
	Log           logger.Logger
	APIToken      string
	SourceChannel string // @username or numeric chat ID
	WorkersNum    int
	GroupWindow   time.Duration // how long to wait for a media group to complete
	Handler       MessageHandler

	bot          *tgbotapi.BotAPI
	httpClient   *http.Client
	sourceChatID int64
	wg           sync.WaitGroup

	groupMu mutex.KeyedMutex
	groups  sync.Map // media group ID -> []*tgbotapi.Message
}

const defaultGroupWindow = 5 * time.Second

// Start authenticates, resolves the source channel and launches the polling
// workers. It returns once polling is running; Wait blocks until the workers
// drain after ctx is cancelled.
func (c *Client) Start(ctx context.Context) (err error) {
	if c.WorkersNum == 0 {
		return fmt.Errorf("workers number must be greater than 0")
	}
	if c.GroupWindow == 0 {
		c.GroupWindow = defaultGroupWindow
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	log := c.Log

	c.bot, err = tgbotapi.NewBotAPI(c.APIToken)
	if err != nil {
		return fmt.Errorf("creating bot api: %w", err)
	}

	log.Info("telegram bot api created", "username", c.bot.Self.UserName)

	c.sourceChatID, err = c.resolveChannel()
	if err != nil {
		return fmt.Errorf("resolving source channel: %w", err)
	}

	log.Info("source channel resolved", "channel", c.SourceChannel, "chat_id", c.sourceChatID)

	updatesConf := tgbotapi.NewUpdate(0)
	updatesConf.Timeout = 60

	updatesChan := c.bot.GetUpdatesChan(updatesConf)

	for i := 0; i < c.WorkersNum; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleUpdatesFromChan(ctx, updatesChan)
		}()
	}

	return nil
}

func (c *Client) Wait() {
	c.wg.Wait()
}

// FetchFile downloads a file's bytes from the Telegram file servers.
func (c *Client) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("getting file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code downloading file: %d", res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file body: %w", err)
	}

	return data, nil
}

// resolveChannel turns the configured @username into a numeric chat ID. The
// bot must be an admin of the channel to see its posts.
func (c *Client) resolveChannel() (int64, error) {
	if id, err := strconv.ParseInt(c.SourceChannel, 10, 64); err == nil {
		return id, nil
	}

	chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: c.SourceChannel},
	})
	if err != nil {
		return 0, fmt.Errorf("getting chat %q: %w", c.SourceChannel, err)
	}

	return chat.ID, nil
}

func (c *Client) handleUpdatesFromChan(ctx context.Context, updatesChan tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updatesChan:
			if !ok {
				return
			}
			err := c.handleUpdate(ctx, update)
			if err != nil {
				c.Log.Error("handling update", "tg_update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	log := c.Log.With("tg_update_id", update.UpdateID)

	defer func() {
		if err := recover(); err != nil {
			log.Error("panic", "error", err)
		}
	}()

	// Channel posts and regular messages carry the same payload.
	message := update.Message
	if message == nil {
		message = update.ChannelPost
	}
	if message == nil {
		log.Debug("update carries no message")
		return nil
	}

	if message.Chat == nil || message.Chat.ID != c.sourceChatID {
		log.Debug("ignoring message from other chat")
		return nil
	}

	if message.Text == "" && message.Caption == "" && len(message.Photo) == 0 {
		log.Debug("ignoring unsupported message type", "tg_message_id", message.MessageID)
		return nil
	}

	log.Info("new channel post",
		"tg_message_id", message.MessageID,
		"media_group_id", message.MediaGroupID,
		"photos", len(message.Photo),
	)

	if message.MediaGroupID != "" {
		c.collectGroupMessage(ctx, message)
		return nil
	}

	return c.Handler.HandleMessage(ctx, convertMessage(message))
}

// collectGroupMessage buffers one photo of a media group. The first message
// of a group arms a timer; when the window closes the buffered photos are
// assembled into a single RawMessage so the whole group is planned and sent
// as one unit, never split across workers.
func (c *Client) collectGroupMessage(ctx context.Context, message *tgbotapi.Message) {
	groupID := message.MediaGroupID

	c.groupMu.Lock(groupID)
	buffered, loaded := c.groups.Load(groupID)
	var msgs []*tgbotapi.Message
	if loaded {
		msgs = buffered.([]*tgbotapi.Message)
	}
	msgs = append(msgs, message)
	c.groups.Store(groupID, msgs)
	c.groupMu.Unlock(groupID)

	if loaded {
		return
	}

	time.AfterFunc(c.GroupWindow, func() {
		c.flushGroup(ctx, groupID)
	})
}

func (c *Client) flushGroup(ctx context.Context, groupID string) {
	c.groupMu.Lock(groupID)
	buffered, ok := c.groups.LoadAndDelete(groupID)
	c.groupMu.Unlock(groupID)
	c.groupMu.Forget(groupID)

	if !ok {
		return
	}
	msgs := buffered.([]*tgbotapi.Message)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].MessageID < msgs[j].MessageID })

	c.Log.Info("media group complete", "media_group_id", groupID, "photos", len(msgs))

	err := c.Handler.HandleMessage(ctx, convertGroup(msgs))
	if err != nil {
		c.Log.Error("handling media group", "media_group_id", groupID, "error", err)
	}
}

// convertMessage maps one Telegram message (or channel post) onto the
// pipeline's message model. A photo message contributes its caption as the
// message text; photo messages carry several renditions of the same image
// and the largest one wins.
func convertMessage(message *tgbotapi.Message) e.RawMessage {
	msg := e.RawMessage{
		ID:           strconv.Itoa(message.MessageID),
		Text:         message.Text,
		MediaGroupID: message.MediaGroupID,
		Entities:     convertEntities(message.Entities),
		Keyboard:     convertKeyboard(message.ReplyMarkup),
	}

	if len(message.Photo) > 0 {
		msg.Text = message.Caption
		msg.Entities = convertEntities(message.CaptionEntities)
		msg.Photos = []e.PhotoRef{{
			FileID:       largestPhoto(message.Photo).FileID,
			Caption:      message.Caption,
			MediaGroupID: message.MediaGroupID,
		}}
	}

	return msg
}

// convertGroup folds buffered group messages into one RawMessage. The caption
// and keyboard, by Telegram convention, ride the first message that has them.
func convertGroup(msgs []*tgbotapi.Message) e.RawMessage {
	out := e.RawMessage{
		ID:           strconv.Itoa(msgs[0].MessageID),
		MediaGroupID: msgs[0].MediaGroupID,
	}

	for _, message := range msgs {
		if out.Text == "" && message.Caption != "" {
			out.Text = message.Caption
			out.Entities = convertEntities(message.CaptionEntities)
		}
		if out.Keyboard == nil {
			out.Keyboard = convertKeyboard(message.ReplyMarkup)
		}
		if len(message.Photo) > 0 {
			out.Photos = append(out.Photos, e.PhotoRef{
				FileID:       largestPhoto(message.Photo).FileID,
				Caption:      message.Caption,
				MediaGroupID: message.MediaGroupID,
			})
		}
	}

	return out
}

func convertEntities(ents []tgbotapi.MessageEntity) []e.TextEntity {
	if len(ents) == 0 {
		return nil
	}

	out := make([]e.TextEntity, 0, len(ents))
	for _, ent := range ents {
		kind := e.EntityKindOther
		switch ent.Type {
		case "url":
			kind = e.EntityKindURL
		case "text_link":
			kind = e.EntityKindTextLink
		case "mention":
			kind = e.EntityKindMention
		}
		out = append(out, e.TextEntity{
			Offset: ent.Offset,
			Length: ent.Length,
			Kind:   kind,
			URL:    ent.URL,
		})
	}
	return out
}

func convertKeyboard(markup *tgbotapi.InlineKeyboardMarkup) e.ButtonGrid {
	if markup == nil || len(markup.InlineKeyboard) == 0 {
		return nil
	}

	grid := make(e.ButtonGrid, 0, len(markup.InlineKeyboard))
	for _, row := range markup.InlineKeyboard {
		outRow := make([]e.Button, 0, len(row))
		for _, btn := range row {
			var url string
			if btn.URL != nil {
				url = *btn.URL
			}
			outRow = append(outRow, e.Button{Label: btn.Text, URL: url})
		}
		grid = append(grid, outRow)
	}
	return grid
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	largest := sizes[0]
	for _, size := range sizes[1:] {
		if size.FileSize > largest.FileSize {
			largest = size
		}
	}
	return largest
}
