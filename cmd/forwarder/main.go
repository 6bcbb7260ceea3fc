package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"

	"baleforward/app/bale"
	"baleforward/app/delivery"
	"baleforward/app/forward"
	"baleforward/app/telegram"
	"baleforward/pkg/logger"
)

var opts struct {
	TelegramToken string        `long:"telegram-bot-token" env:"TELEGRAM_BOT_TOKEN" required:"true" description:"telegram bot api token"`
	BaleToken     string        `long:"bale-bot-token" env:"BALE_BOT_TOKEN" required:"true" description:"bale bot api token"`
	BaleChatID    string        `long:"bale-chat-id" env:"BALE_CHAT_ID" required:"true" description:"destination bale chat id or @username"`
	SourceChannel string        `long:"source-channel" env:"SOURCE_CHANNEL" required:"true" description:"source telegram channel id or @username"`
	WorkersNum    int           `long:"workers-num" env:"WORKERS_NUM" default:"5" description:"number of update workers"`
	MaxAttempts   int           `long:"max-attempts" env:"MAX_ATTEMPTS" default:"3" description:"delivery attempts before giving up"`
	BaseDelay     time.Duration `long:"base-delay" env:"BASE_DELAY" default:"1s" description:"first retry delay"`
	Multiplier    float64       `long:"backoff-multiplier" env:"BACKOFF_MULTIPLIER" default:"2" description:"delay growth factor between retries"`
	GroupWindow   time.Duration `long:"group-window" env:"GROUP_WINDOW" default:"5s" description:"media group collection window"`
	SentryDSN     string        `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn for failed-forward reports"`
	Debug         bool          `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

var Revision = "dev"

func main() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(opts.Debug)
	log.Info("starting forwarder", "revision", Revision)

	if opts.SentryDSN != "" {
		err = sentry.Init(sentry.ClientOptions{Dsn: opts.SentryDSN, Release: Revision})
		if err != nil {
			log.Error("initializing sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dest := &bale.Client{
		Log:      log,
		APIToken: opts.BaleToken,
		ChatID:   opts.BaleChatID,
	}
	if err := dest.Connect(); err != nil {
		log.Error("connecting to bale", "error", err)
		os.Exit(1)
	}

	src := &telegram.Client{
		Log:           log,
		APIToken:      opts.TelegramToken,
		SourceChannel: opts.SourceChannel,
		WorkersNum:    opts.WorkersNum,
		GroupWindow:   opts.GroupWindow,
	}

	src.Handler = &forward.Forwarder{
		Log:    log,
		Source: src,
		Dest:   dest,
		Engine: &delivery.Engine{
			Log: log,
			Cfg: delivery.Config{
				MaxAttempts: opts.MaxAttempts,
				BaseDelay:   opts.BaseDelay,
				Multiplier:  opts.Multiplier,
			},
		},
		Sanitizer: forward.NewSanitizer(),
	}

	if err := src.Start(ctx); err != nil {
		log.Error("starting telegram polling", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("stopping forwarder")

	src.Wait()

	os.Exit(0)
}
