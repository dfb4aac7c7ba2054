// Package telegram pushes outbound notifications to a Telegram chat.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxTelegramMessage = 4096

// Notifier sends messages to Telegram on behalf of the notification
// registry. It is outbound only; no updates are polled.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New creates a Telegram notifier bound to a default chat.
func New(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// Send delivers one message, splitting it to fit Telegram's message
// size limit.
func (n *Notifier) Send(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		if err := n.sendPart(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

// sendPart tries markdown first. Telegram rejects messages whose
// markdown does not parse, so a failed send is retried as plain text
// before giving up.
func (n *Notifier) sendPart(chatID int64, part string) error {
	msg := tgbotapi.NewMessage(chatID, part)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err == nil {
		return nil
	}
	msg.ParseMode = ""
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Handler adapts the notifier to the notification registry. Targets
// look like "telegram:<chat_id>"; a bare "telegram:" falls back to the
// configured chat.
func (n *Notifier) Handler() func(target, message string) error {
	return func(target, message string) error {
		chatID, err := parseChatID(target, n.chatID)
		if err != nil {
			return err
		}
		return n.Send(chatID, message)
	}
}

func parseChatID(target string, fallback int64) (int64, error) {
	raw := strings.TrimPrefix(target, "telegram:")
	if raw == target {
		return 0, fmt.Errorf("not a telegram target: %s", target)
	}
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad telegram target %q: %w", target, err)
	}
	return parsed, nil
}

// splitMessage chunks text under the API cap, breaking at a newline
// where one exists so summary paragraphs stay intact, and never
// mid-rune.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > maxTelegramMessage {
		cut := strings.LastIndexByte(text[:maxTelegramMessage], '\n')
		if cut > 0 {
			parts = append(parts, text[:cut])
			text = text[cut+1:]
			continue
		}
		cut = maxTelegramMessage
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxTelegramMessage
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		parts = append(parts, text)
	}
	return parts
}
