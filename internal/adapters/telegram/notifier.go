package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"exconnect/internal/metrics"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

// MessageSender is the part of Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Outage describes an exchange that keeps failing.
type Outage struct {
	Exchange  string
	Operation string
	Failures  int
	Since     time.Time
	LastError error
}

// Notifier sends exchange outage and recovery alerts to a fixed set of chats.
type Notifier struct {
	bot     MessageSender
	chatIDs []int64
	now     func() time.Time
	log     *logger.Logger
}

// NewNotifier returns a notifier broadcasting to chatIDs.
func NewNotifier(bot MessageSender, chatIDs []int64) *Notifier {
	return &Notifier{
		bot:     bot,
		chatIDs: chatIDs,
		now:     time.Now,
		log:     logger.Get().Component("telegram_notifier"),
	}
}

// ExchangeDown reports an outage.
func (n *Notifier) ExchangeDown(ctx context.Context, o Outage) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🔴 *%s is failing*\n", Escape(o.Exchange))
	fmt.Fprintf(&b, "Operation: `%s`\n", Escape(o.Operation))
	fmt.Fprintf(&b, "Consecutive failures: %d\n", o.Failures)
	if !o.Since.IsZero() {
		fmt.Fprintf(&b, "Since: %s\n", Escape(humanize.RelTime(o.Since, n.now(), "ago", "from now")))
	}
	if o.LastError != nil {
		fmt.Fprintf(&b, "Last error: `%s`", Escape(truncate(o.LastError.Error(), 300)))
	}
	return n.broadcast(ctx, o.Exchange, b.String())
}

// ExchangeRecovered reports the end of an outage.
func (n *Notifier) ExchangeRecovered(ctx context.Context, exchange string, downSince time.Time) error {
	text := fmt.Sprintf("🟢 *%s recovered*", Escape(exchange))
	if !downSince.IsZero() {
		text += fmt.Sprintf("\nDown for %s", Escape(strings.TrimSpace(humanize.RelTime(downSince, n.now(), "", ""))))
	}
	return n.broadcast(ctx, exchange, text)
}

func (n *Notifier) broadcast(ctx context.Context, exchange, text string) error {
	var errs errors.MultiError
	for _, id := range n.chatIDs {
		errs.Add(n.bot.SendMessage(ctx, id, text))
	}
	err := errs.ToError()
	metrics.RecordAlert(exchange, err)
	if err != nil {
		n.log.Warnw("Alert delivery failed", "exchange", exchange, "error", err)
	}
	return err
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// Escape escapes MarkdownV2 special characters.
func Escape(text string) string {
	return markdownEscaper.Replace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
