package delivery

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	e "baleforward/pkg/entities"
	"baleforward/pkg/logger"
)

// FailureKind classifies one failed destination call.
type FailureKind int

const (
	// FailureTransient covers network errors, timeouts, 5xx and rate
	// limiting. Retried with backoff.
	FailureTransient FailureKind = iota

	// FailureMarkdown means the platform rejected the composed markup.
	// Retried, then answered with one plain-text fallback attempt.
	FailureMarkdown

	// FailurePermanent is a 4xx the platform will keep returning (bad
	// request, auth). Surfaced immediately, never retried.
	FailurePermanent
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureMarkdown:
		return "markdown"
	case FailurePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Action is the next step the state machine picks after an attempt.
type Action int

const (
	ActionDone Action = iota
	ActionRetry
	ActionFallback
	ActionGiveUp
)

// Config is the retry policy. It comes from process configuration, not from
// code: operators tune attempts and delays per deployment.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Classify maps a delivery result to a failure kind. Bale reports markup it
// cannot parse through the error description, same phrasing as Telegram's
// "can't parse entities", so the body is matched rather than the status code.
func Classify(res e.DeliveryResult) FailureKind {
	body := strings.ToLower(res.ErrorBody)
	if strings.Contains(body, "parse") || strings.Contains(body, "markdown") {
		return FailureMarkdown
	}

	switch {
	case res.StatusCode == 0:
		return FailureTransient // never reached the platform
	case res.StatusCode == http.StatusTooManyRequests:
		return FailureTransient
	case res.StatusCode >= 500:
		return FailureTransient
	default:
		return FailurePermanent
	}
}

// NextAction is the delivery state machine as a pure function: given how many
// attempts have been made, what the last attempt's failure was and whether
// the payload carries markup, it picks the next step. attempt is 1-based.
func NextAction(attempt int, kind FailureKind, formatted bool, cfg Config) Action {
	if kind == FailurePermanent {
		return ActionGiveUp
	}
	if attempt < cfg.MaxAttempts {
		return ActionRetry
	}
	if formatted {
		return ActionFallback
	}
	return ActionGiveUp
}

// Backoff returns how long to wait before the given 1-based attempt number
// retries.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt <= 1 || c.Multiplier <= 1 {
		return c.BaseDelay
	}
	return time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
}

// SendFunc performs exactly one destination call. plain asks for the
// unformatted rendition of the same content.
type SendFunc func(ctx context.Context, plain bool) e.DeliveryResult

// Engine owns retry, backoff and the markdown fallback for destination
// sends. It holds no state across deliveries.
type Engine struct {
	Log logger.Logger
	Cfg Config
}

// Error is a delivery that exhausted its options.
type Error struct {
	Kind       FailureKind
	Attempts   int
	StatusCode int
	Body       string
	FellBack   bool
}

func (err *Error) Error() string {
	if err.FellBack {
		return fmt.Sprintf("delivery failed after %d attempts and plain-text fallback (%s, status %d): %s",
			err.Attempts, err.Kind, err.StatusCode, err.Body)
	}
	return fmt.Sprintf("delivery failed after %d attempts (%s, status %d): %s",
		err.Attempts, err.Kind, err.StatusCode, err.Body)
}

// Deliver runs send until it succeeds or the policy is exhausted. formatted
// payloads that still fail after MaxAttempts get exactly one plain-text
// fallback attempt; fallback failure is terminal. Each loop iteration makes
// exactly one network call. Cancellation is honored at retry boundaries so
// an in-flight call is never cut mid-send.
func (en *Engine) Deliver(ctx context.Context, formatted bool, send SendFunc) error {
	var last e.DeliveryResult
	var kind FailureKind

	for attempt := 1; ; attempt++ {
		last = send(ctx, false)
		if last.Succeeded {
			return nil
		}

		kind = Classify(last)
		action := NextAction(attempt, kind, formatted, en.Cfg)

		switch action {
		case ActionRetry:
			en.Log.Warn("delivery attempt failed, retrying",
				"attempt", attempt,
				"kind", kind.String(),
				"status", last.StatusCode,
				"error", last.ErrorBody,
				"backoff", en.Cfg.Backoff(attempt),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(en.Cfg.Backoff(attempt)):
			}

		case ActionFallback:
			en.Log.Warn("formatted delivery exhausted, sending plain text",
				"attempts", attempt,
				"kind", kind.String(),
				"error", last.ErrorBody,
			)
			fb := send(ctx, true)
			if fb.Succeeded {
				return nil
			}
			return &Error{
				Kind:       Classify(fb),
				Attempts:   attempt,
				StatusCode: fb.StatusCode,
				Body:       fb.ErrorBody,
				FellBack:   true,
			}

		default: // ActionGiveUp
			return &Error{
				Kind:       kind,
				Attempts:   attempt,
				StatusCode: last.StatusCode,
				Body:       last.ErrorBody,
			}
		}
	}
}

// Fetch applies the same retry policy to source-side file downloads. An
// exhausted fetch returns the last error; the caller decides whether the
// photo can be dropped from its group.
func (en *Engine) Fetch(ctx context.Context, fileID string, fetch func(ctx context.Context, fileID string) ([]byte, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= en.Cfg.MaxAttempts; attempt++ {
		data, err := fetch(ctx, fileID)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == en.Cfg.MaxAttempts {
			break
		}

		en.Log.Warn("file fetch failed, retrying",
			"file_id", fileID,
			"attempt", attempt,
			"error", err,
			"backoff", en.Cfg.Backoff(attempt),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(en.Cfg.Backoff(attempt)):
		}
	}

	return nil, fmt.Errorf("fetching file %s after %d attempts: %w", fileID, en.Cfg.MaxAttempts, lastErr)
}
