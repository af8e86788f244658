package nowplaying

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the now playing feature
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the now playing feature
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes /nowplaying
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	snap := h.service.Current()
	if snap == nil {
		_, err := bot.Send(tgbotapi.NewMessage(chatID, "⏹ Nothing is playing"))
		return err
	}
	pos := snap.Position(h.service.now()).Truncate(time.Second)
	state := "▶️"
	if !snap.State.Playing {
		state = "⏸"
	}
	text := fmt.Sprintf("%s %s (%s)", state, snap.State.Song.String(), pos)
	if snap.Lyrics != nil && snap.Lyrics.IsSynced {
		if line, ok := snap.Lyrics.Parsed().LineAt(snap.Position(h.service.now())); ok && line.Text != "" {
			text += "\n\n🎤 " + line.Text
		}
	} else if snap.Lyrics == nil {
		text += "\n\nNo lyrics found"
	}
	_, err := bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"nowplaying": "Show the playing song and the current lyric line",
	}
}

// HandleCallback handles callback queries for this feature (now playing has no callbacks)
func (h *TelegramHandler) HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool {
	return false
}
