// Package telegram is the messaging front-end: it receives questions,
// keeps a typing indicator alive while the answer is generated in the
// background, and exposes the coach's admin commands.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/engine/rag"
)

// UnavailableReply is sent when the assistant is switched off. The
// placeholder is the coach's handle.
const UnavailableReply = "AI bot is not working now. Please contact with coach(%s)."

// DefaultTypingInterval is how often the typing indicator is refreshed
// while an answer is being generated.
const DefaultTypingInterval = 2 * time.Second

// sender is the slice of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Answerer runs one chat exchange and returns the reply.
type Answerer interface {
	Ask(ctx context.Context, chatID int64, user domain.ChatUser, question string) (string, error)
}

// Mode is the assistant-enabled gate, read before every question.
type Mode interface {
	Enabled() bool
	Toggle(ctx context.Context) (bool, error)
}

// Flagger marks the latest answered exchange for review.
type Flagger interface {
	FlagLast(ctx context.Context, chatID int64) (domain.FlaggedAnswer, error)
}

// TurnReader serves the /transcript replay.
type TurnReader interface {
	Recent(ctx context.Context, chatID int64, limit int) ([]domain.ChatTurn, error)
}

// Config wires the bot's collaborators.
type Config struct {
	CoachHandle    string // e.g. "@coach_firat"
	TypingInterval time.Duration
	Answerer       Answerer
	Mode           Mode
	Flagger        Flagger
	Turns          TurnReader
	Logger         *slog.Logger
}

// Bot handles Telegram updates.
type Bot struct {
	api            *tgbotapi.BotAPI
	send           sender
	coachHandle    string
	typingInterval time.Duration
	answerer       Answerer
	mode           Mode
	flagger        Flagger
	turns          TurnReader
	logger         *slog.Logger
}

// New connects to the Telegram API with the given token.
func New(token string, cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	b := newWithSender(api, cfg)
	b.api = api
	return b, nil
}

// newWithSender builds a bot around any sender. Used by tests.
func newWithSender(send sender, cfg Config) *Bot {
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = DefaultTypingInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bot{
		send:           send,
		coachHandle:    cfg.CoachHandle,
		typingInterval: cfg.TypingInterval,
		answerer:       cfg.Answerer,
		mode:           cfg.Mode,
		flagger:        cfg.Flagger,
		turns:          cfg.Turns,
		logger:         cfg.Logger,
	}
}

// Run polls for updates until ctx is canceled. Each message is handled on
// its own goroutine so a slow answer never blocks other chats.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.dispatch(ctx, update.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "":
		b.handleQuestion(ctx, msg)
	case "start":
		b.reply(msg.Chat.ID, "Hello! I am the coach AI bot. Send /help for commands.")
	case "help":
		b.handleHelp(msg)
	case "flag":
		b.handleFlag(ctx, msg)
	case "transcript":
		b.handleTranscript(ctx, msg)
	case "takeover":
		b.handleTakeover(ctx, msg)
	}
}

// handleQuestion runs the exchange in the background while the foreground
// loop refreshes the typing indicator, stopping as soon as the answer
// resolves.
func (b *Bot) handleQuestion(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	if !b.mode.Enabled() {
		b.reply(msg.Chat.ID, fmt.Sprintf(UnavailableReply, b.coachHandle))
		return
	}

	user := domain.ChatUser{}
	if msg.From != nil {
		user = domain.ChatUser{
			ID:       msg.From.ID,
			Username: msg.From.UserName,
			FullName: msg.From.FirstName,
		}
	}

	var (
		answer string
		err    error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		answer, err = b.answerer.Ask(ctx, msg.Chat.ID, user, msg.Text)
	}()

	b.sendTyping(msg.Chat.ID)
	ticker := time.NewTicker(b.typingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if err != nil {
				b.logger.Error("chat exchange failed", "chat_id", msg.Chat.ID, "error", err)
				b.reply(msg.Chat.ID, rag.DeclinePhrase)
				return
			}
			if answer != "" {
				b.reply(msg.Chat.ID, answer)
			}
			return
		case <-ticker.C:
			b.sendTyping(msg.Chat.ID)
		}
	}
}

func (b *Bot) handleFlag(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isCoach(msg) {
		return
	}
	if _, err := b.flagger.FlagLast(ctx, msg.Chat.ID); err != nil {
		b.logger.Error("flagging failed", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg.Chat.ID, "Nothing to flag yet.")
		return
	}
	b.reply(msg.Chat.ID, "Successfully flagged!")
}

func (b *Bot) handleTranscript(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isCoach(msg) {
		return
	}
	turns, err := b.turns.Recent(ctx, msg.Chat.ID, 50)
	if err != nil {
		b.logger.Error("transcript load failed", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg.Chat.ID, "Now you can't see history")
		return
	}
	for _, turn := range turns {
		prefix := "👤" + turn.Username + ": "
		if turn.Role == domain.RoleBot {
			prefix = "🤖 Bot: "
		}
		b.reply(msg.Chat.ID, prefix+turn.Text)
	}
}

func (b *Bot) handleTakeover(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isCoach(msg) {
		b.reply(msg.Chat.ID, "Hello! I am the coach AI bot.")
		return
	}
	enabled, err := b.mode.Toggle(ctx)
	if err != nil {
		b.logger.Error("takeover toggle failed", "error", err)
		return
	}
	if enabled {
		b.reply(msg.Chat.ID, "Bot is working now.")
	} else {
		b.reply(msg.Chat.ID, "Bot is not working. You have to handle user messages.")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	help := "Available commands:\n/start - start bot\n/help - this help"
	if b.isCoach(msg) {
		help += "\n/transcript - pulls latest conversation logs" +
			"\n/flag - marks the latest response for later review" +
			"\n/takeover - stops AI replies and hands the conversation to a human"
	}
	b.reply(msg.Chat.ID, help)
}

// isCoach reports whether the sender is the configured coach account.
func (b *Bot) isCoach(msg *tgbotapi.Message) bool {
	if msg.From == nil || b.coachHandle == "" {
		return false
	}
	return msg.From.UserName == strings.TrimPrefix(b.coachHandle, "@")
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.send.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendTyping(chatID int64) {
	if _, err := b.send.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Error("typing action failed", "chat_id", chatID, "error", err)
	}
}
