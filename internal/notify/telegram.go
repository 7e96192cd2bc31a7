package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/baxromumarov/job-collector/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxListed = 10

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts cycle summaries to a chat. Cycles that added nothing and did not
// fail are not reported.
type Telegram struct {
	bot    sender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) NotifyCycle(ctx context.Context, res model.CycleResult) error {
	if !res.Failed() && res.New == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatCycle(res))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatCycle renders a cycle summary as Telegram HTML.
func FormatCycle(res model.CycleResult) string {
	var b strings.Builder
	if res.Failed() {
		fmt.Fprintf(&b, "⚠️ <b>Collection failed</b>\n%s", html.EscapeString(res.Err.Error()))
		return b.String()
	}

	fmt.Fprintf(&b, "<b>%d new job(s)</b> (fetched %d, duplicates %d", res.New, res.Fetched, res.Duplicate)
	if res.EnrichmentMisses > 0 {
		fmt.Fprintf(&b, ", unreadable details %d", res.EnrichmentMisses)
	}
	b.WriteString(")\n")

	for i, r := range res.Added {
		if i == maxListed {
			fmt.Fprintf(&b, "\n…and %d more", len(res.Added)-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n• <a href=\"%s\">%s</a> at %s (%s, %s)",
			html.EscapeString(r.Key),
			html.EscapeString(r.Title),
			html.EscapeString(r.Company),
			html.EscapeString(r.Degree),
			html.EscapeString(r.Experience),
		)
	}
	return b.String()
}
