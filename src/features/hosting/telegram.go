package hosting

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/contre95/soullyrics/src/features/config"
	"github.com/contre95/soullyrics/src/features/jobs"
	"github.com/contre95/soullyrics/src/features/lyrics"
	"github.com/contre95/soullyrics/src/features/nowplaying"
)

// TelegramCommandHandler interface that each feature implements
type TelegramCommandHandler interface {
	HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error
	GetCommands() map[string]string                                             // Returns command -> description mapping
	HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool // Handle feature-specific callbacks
}

// TelegramBot handles Telegram bot operations
type TelegramBot struct {
	bot      *tgbotapi.BotAPI
	config   *config.Manager
	handlers map[string]TelegramCommandHandler
	commands map[string]string // command -> feature
	updates  tgbotapi.UpdatesChannel
	stopChan chan struct{}

	mu            sync.Mutex
	pendingInputs map[string]string // chatID_messageID -> callbackData
}

// NewTelegramBot creates a new Telegram bot instance. nowPlayingService may be nil.
func NewTelegramBot(cfg *config.Manager, lyricsService *lyrics.Service, jobService *jobs.Service, nowPlayingService *nowplaying.Service) (*TelegramBot, error) {
	telegramConfig := cfg.Get().Telegram

	if !telegramConfig.Enabled {
		return nil, fmt.Errorf("telegram bot is disabled in configuration")
	}

	if telegramConfig.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(telegramConfig.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot initialized", "username", bot.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	telegramBot := &TelegramBot{
		bot:           bot,
		config:        cfg,
		handlers:      make(map[string]TelegramCommandHandler),
		commands:      make(map[string]string),
		updates:       bot.GetUpdatesChan(updateConfig),
		stopChan:      make(chan struct{}),
		pendingInputs: make(map[string]string),
	}

	// Register feature handlers
	telegramBot.RegisterHandler("lyrics", lyrics.NewTelegramHandler(lyricsService))
	telegramBot.RegisterHandler("config", config.NewTelegramHandler(cfg))
	telegramBot.RegisterHandler("jobs", jobs.NewTelegramHandler(jobService))
	if nowPlayingService != nil {
		telegramBot.RegisterHandler("nowplaying", nowplaying.NewTelegramHandler(nowPlayingService))
	}

	telegramBot.publishCommands()
	return telegramBot, nil
}

// RegisterHandler registers a feature's command handler
func (t *TelegramBot) RegisterHandler(feature string, handler TelegramCommandHandler) {
	t.handlers[feature] = handler
	for command := range handler.GetCommands() {
		t.commands[command] = feature
	}
	slog.Debug("Registered Telegram handler", "feature", feature)
}

// publishCommands sets the bot's command list so clients can autocomplete.
func (t *TelegramBot) publishCommands() {
	var commands []tgbotapi.BotCommand
	for _, handler := range t.handlers {
		for command, description := range handler.GetCommands() {
			commands = append(commands, tgbotapi.BotCommand{Command: command, Description: description})
		}
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Command < commands[j].Command })
	if _, err := t.bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		slog.Warn("Failed to publish bot commands", "error", err)
	}
}

// Start begins listening for Telegram updates
func (t *TelegramBot) Start() {
	slog.Info("Starting Telegram bot listener")

	for {
		select {
		case update := <-t.updates:
			if update.Message != nil {
				go t.handleMessage(update)
			}
			if update.CallbackQuery != nil {
				go t.handleCallbackQuery(update)
			}
		case <-t.stopChan:
			slog.Info("Stopping Telegram bot listener")
			t.bot.StopReceivingUpdates()
			return
		}
	}
}

// Stop gracefully stops the bot
func (t *TelegramBot) Stop() {
	close(t.stopChan)
}

// authorized checks the sender against the allow list.
func (t *TelegramBot) authorized(user *tgbotapi.User, chatID int64) bool {
	allowedUsers := t.config.Get().Telegram.AllowedUsers
	if len(allowedUsers) == 0 {
		slog.Warn("No allowed users configured", "chat_id", chatID)
		t.sendMessage(chatID, "❌ Access denied: No users configured. Please add users to the config.")
		return false
	}
	if user == nil {
		return false
	}

	username := user.UserName
	if username == "" {
		// Fallback to first name + last name
		username = user.FirstName
		if user.LastName != "" {
			username += " " + user.LastName
		}
	}
	if !slices.Contains(allowedUsers, username) {
		slog.Warn("Unauthorized user", "username", username, "chat_id", chatID)
		t.sendMessage(chatID, "Unknown user, please add your user to the config")
		return false
	}
	return true
}

// handleMessage processes incoming messages
func (t *TelegramBot) handleMessage(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID

	if !t.authorized(message.From, chatID) {
		return
	}

	if message.IsCommand() {
		t.handleCommand(update)
		return
	}

	// Check if this is a reply to one of our prompts
	if message.ReplyToMessage != nil {
		if t.handleReplyInput(message) {
			return
		}
	}

	t.sendMessage(chatID, "🤖 Send /menu or /help to see available options")
}

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID
	command := message.Command()
	args := message.CommandArguments()

	slog.Debug("Processing command", "command", command, "args", args, "chat_id", chatID)

	switch command {
	case "help", "start", "menu":
		t.handleHelp(chatID)
	default:
		if err := t.routeCommand(command, args, chatID); err != nil {
			slog.Error("Failed to handle command", "command", command, "error", err)
			t.sendMessage(chatID, "❌ Failed to process command")
		}
	}
}

// routeCommand routes commands to the feature that declared them
func (t *TelegramBot) routeCommand(command, args string, chatID int64) error {
	feature, exists := t.commands[command]
	if !exists {
		t.sendMessage(chatID, "❌ Unknown command. Send /help to see available commands.")
		return nil
	}

	handler, exists := t.handlers[feature]
	if !exists {
		t.sendMessage(chatID, fmt.Sprintf("❌ %s feature not available", escapeMarkdown(feature)))
		return nil
	}

	return handler.HandleCommand(t.bot, chatID, command, args)
}

// escapeMarkdown escapes the characters legacy Markdown treats as markup
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer("`", "\\`", "*", "\\*", "_", "\\_", "[", "\\[")
	return replacer.Replace(text)
}

// sendMessage sends a message to the specified chat
func (t *TelegramBot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

// handleCallbackQuery handles callback queries from inline keyboards
func (t *TelegramBot) handleCallbackQuery(update tgbotapi.Update) {
	callback := update.CallbackQuery
	if callback.Message == nil || !t.authorized(callback.From, callback.Message.Chat.ID) {
		return
	}

	if strings.HasPrefix(callback.Data, "menu_") {
		t.handleMenuCallback(callback)
		return
	}

	for _, handler := range t.handlers {
		if handler.HandleCallback(t.bot, callback) {
			break
		}
	}

	// Answer callback to remove loading state
	t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))
}

// helpText lists every registered command.
func (t *TelegramBot) helpText() string {
	var lines []string
	for _, handler := range t.handlers {
		for command, description := range handler.GetCommands() {
			lines = append(lines, fmt.Sprintf("/%s - %s", escapeMarkdown(command), escapeMarkdown(description)))
		}
	}
	sort.Strings(lines)
	return "*🎤 Soullyrics Main Menu*\n\n" + strings.Join(lines, "\n") + "\n\nChoose an action below or use commands directly:"
}

// handleHelp shows main menu with inline keyboard
func (t *TelegramBot) handleHelp(chatID int64) {
	buttons := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🔍 Find lyrics", "menu_lyrics"),
			tgbotapi.NewInlineKeyboardButtonData("📚 Cache", "menu_cached"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🔌 Providers", "menu_providers"),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Config", "menu_config"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh cache", "menu_refresh"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Jobs", "menu_jobs"),
		},
	}
	if _, ok := t.handlers["nowplaying"]; ok {
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("▶️ Now playing", "menu_nowplaying"),
		})
	}

	msg := tgbotapi.NewMessage(chatID, t.helpText())
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send menu", "error", err, "chat_id", chatID)
	}
}

// handleMenuCallback handles main menu callback queries
func (t *TelegramBot) handleMenuCallback(callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	data := callback.Data

	// Answer callback to remove loading state
	t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))

	switch data {
	case "menu_lyrics":
		t.promptForInput(chatID, "🔍 *Find lyrics*\n\nPlease reply with `Artist - Title`:", "menu_lyrics")
	case "menu_cached":
		t.routeMenuCommand("cached", "", chatID)
	case "menu_providers":
		t.routeMenuCommand("providers", "", chatID)
	case "menu_config":
		t.routeMenuCommand("config", "", chatID)
	case "menu_refresh":
		t.routeMenuCommand("runjob", lyrics.RefreshJobType, chatID)
	case "menu_jobs":
		t.routeMenuCommand("jobs", "", chatID)
	case "menu_nowplaying":
		t.routeMenuCommand("nowplaying", "", chatID)
	}
}

// promptForInput sends a message that forces user to reply with input
func (t *TelegramBot) promptForInput(chatID int64, promptText, callbackData string) {
	msg := tgbotapi.NewMessage(chatID, promptText)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}

	sentMsg, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send prompt", "error", err)
		return
	}
	t.storePendingInput(chatID, sentMsg.MessageID, callbackData)
}

// storePendingInput stores information about pending user input
func (t *TelegramBot) storePendingInput(chatID int64, messageID int, callbackData string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingInputs[fmt.Sprintf("%d_%d", chatID, messageID)] = callbackData
}

// takePendingInput returns and forgets the prompt a message replied to.
func (t *TelegramBot) takePendingInput(chatID int64, messageID int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := fmt.Sprintf("%d_%d", chatID, messageID)
	callbackData, exists := t.pendingInputs[key]
	if exists {
		delete(t.pendingInputs, key)
	}
	return callbackData, exists
}

// handleReplyInput handles replies to our input prompts
func (t *TelegramBot) handleReplyInput(message *tgbotapi.Message) bool {
	chatID := message.Chat.ID
	callbackData, exists := t.takePendingInput(chatID, message.ReplyToMessage.MessageID)
	if !exists {
		return false
	}

	switch callbackData {
	case "menu_lyrics":
		t.routeMenuCommand("lyrics", message.Text, chatID)
	default:
		return false
	}
	return true
}

// routeMenuCommand routes menu selections to appropriate feature handlers
func (t *TelegramBot) routeMenuCommand(command, args string, chatID int64) {
	if err := t.routeCommand(command, args, chatID); err != nil {
		slog.Error("Failed to handle menu command", "command", command, "error", err)
		t.sendMessage(chatID, "❌ Failed to process menu selection")
	}
}
