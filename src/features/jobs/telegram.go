package jobs

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the jobs feature
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the jobs feature
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes jobs-related Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	switch command {
	case "jobs":
		return h.handleJobs(bot, chatID)
	case "runjob":
		return h.handleRunJob(bot, chatID, strings.TrimSpace(args))
	default:
		_, err := bot.Send(tgbotapi.NewMessage(chatID, "❌ Unknown jobs command. Use /jobs"))
		return err
	}
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"jobs":   "Show recent jobs",
		"runjob": "Start a job: /runjob <type>",
	}
}

// HandleCallback handles callback queries for this feature (jobs has no callbacks)
func (h *TelegramHandler) HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool {
	return false
}

func (h *TelegramHandler) handleJobs(bot *tgbotapi.BotAPI, chatID int64) error {
	jobs := h.service.GetJobs()
	if len(jobs) == 0 {
		msg := tgbotapi.NewMessage(chatID, "📋 *No jobs*")
		msg.ParseMode = tgbotapi.ModeMarkdown
		_, err := bot.Send(msg)
		return err
	}

	var b strings.Builder
	b.WriteString("📋 Jobs\n\n")
	for _, job := range jobs {
		fmt.Fprintf(&b, "%s %s: %s (%d%%)\n", statusEmoji(job.Status), job.Name, job.Message, job.Progress)
	}
	_, err := bot.Send(tgbotapi.NewMessage(chatID, b.String()))
	return err
}

func (h *TelegramHandler) handleRunJob(bot *tgbotapi.BotAPI, chatID int64, jobType string) error {
	if jobType == "" {
		_, err := bot.Send(tgbotapi.NewMessage(chatID, "Usage: /runjob <type>\nTypes: "+strings.Join(h.service.Types(), ", ")))
		return err
	}
	id, err := h.service.StartJob(jobType, "")
	if errors.Is(err, ErrUnknownJobType) {
		_, err = bot.Send(tgbotapi.NewMessage(chatID, "❌ Unknown job type. Types: "+strings.Join(h.service.Types(), ", ")))
		return err
	}
	if err != nil {
		return err
	}
	_, err = bot.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔄 Started %s job %s", jobType, id)))
	return err
}

func statusEmoji(status JobStatus) string {
	switch status {
	case JobStatusPending:
		return "⏳"
	case JobStatusRunning:
		return "🔄"
	case JobStatusCompleted:
		return "✅"
	case JobStatusFailed:
		return "❌"
	case JobStatusCancelled:
		return "🚫"
	default:
		return "❓"
	}
}
