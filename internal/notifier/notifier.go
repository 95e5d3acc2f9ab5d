// Package notifier reports finished review runs to an operator Telegram chat.
package notifier

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Paribesh01/pullpal/internal/pipeline"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

// Notifier sends run reports to one Telegram chat.
type Notifier struct {
	bot           *tgbotapi.BotAPI
	chatID        int64
	notifySuccess bool
}

// Options configures a Notifier.
type Options struct {
	Token         string
	ChatID        int64
	NotifySuccess bool // also report successful runs, not only failures

	// Endpoint and Client override the Bot API location, for tests.
	Endpoint string
	Client   *http.Client
}

// NewTelegram authorizes the bot and returns a Notifier.
func NewTelegram(opts Options) (*Notifier, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info().Str("username", bot.Self.UserName).Msg("Telegram bot authorized")

	return &Notifier{
		bot:           bot,
		chatID:        opts.ChatID,
		notifySuccess: opts.NotifySuccess,
	}, nil
}

// RunFinished reports a failed run, and a successful one when enabled.
func (n *Notifier) RunFinished(_ context.Context, run *pipeline.Run) error {
	if run.State != pipeline.StateFailed && !(n.notifySuccess && run.State == pipeline.StateDone) {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatRunMessage(run))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// FormatRunMessage renders a run as a Telegram HTML message.
func FormatRunMessage(run *pipeline.Run) string {
	var b strings.Builder

	icon := "✅"
	if run.State == pipeline.StateFailed {
		icon = "❌"
	}

	target := run.PullRequest().String()
	if run.Event == nil && run.Repo != nil {
		target = run.Repo.FullName()
	}
	fmt.Fprintf(&b, "%s <b>Review %s</b> %s\n", icon, html.EscapeString(string(run.State)), html.EscapeString(target))

	if run.Event != nil && run.Event.HTMLURL != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">Open pull request</a>\n", html.EscapeString(run.Event.HTMLURL))
	}

	fmt.Fprintf(&b, "\nComments: %d generated, %d posted", len(run.Feedback.Comments), run.Publish.Posted)
	if run.Publish.Batched {
		b.WriteString(" (batched)")
	}
	b.WriteString("\n")
	if run.Feedback.Unparsable {
		b.WriteString("Model output could not be parsed\n")
	}
	if run.Err != nil {
		fmt.Fprintf(&b, "Error: <code>%s</code>\n", html.EscapeString(run.Err.Error()))
	}
	fmt.Fprintf(&b, "Run: <code>%s</code> in %s", html.EscapeString(run.ID), run.Duration().Round(time.Millisecond))

	return b.String()
}
