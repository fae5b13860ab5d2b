// Package notification provides implementations for various notification services
package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// EngineStatus answers status queries and stop requests from a notification
// channel without coupling the channel to the engine implementation.
type EngineStatus interface {
	Status() string
	Stop()
}

// Telegram implements the core.NotifierWithStart interface
type Telegram struct {
	settings core.TelegramSettings
	engine   EngineStatus
	client   *tb.Bot
	log      core.Logger
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(settings core.TelegramSettings, engine EngineStatus, log core.Logger) (core.NotifierWithStart, error) {
	poller := &tb.LongPoller{Timeout: pollingTimeout}
	authMiddleware := newAuthMiddleware(poller, settings, log)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    authMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if err := client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/status", Description: "Check the trailing stop loss status"},
		{Text: "/stop", Description: "Stop the trailing stop loss engine"},
	}); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		settings: settings,
		engine:   engine,
		client:   client,
		log:      log,
	}

	client.Handle("/help", bot.HelpHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/stop", bot.StopHandle)

	return bot, nil
}

// newAuthMiddleware creates a middleware that only accepts the configured chat
func newAuthMiddleware(poller *tb.LongPoller, settings core.TelegramSettings, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if u.Message.Sender.ID == settings.ChatID {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// Start begins the Telegram bot long-polling loop
func (t *Telegram) Start() {
	go t.client.Start()
	t.Notify("Trailing stop loss bot initialized.")
}

// Notify sends a message to the configured chat
func (t *Telegram) Notify(text string) {
	_, err := t.client.Send(&tb.User{ID: t.settings.ChatID}, text)
	if err != nil {
		t.log.WithError(err).Error("notification/telegram: failed to send notification")
	}
}

// OnError notifies the configured chat about an error
func (t *Telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")

	var orderError *exchange.OrderError
	if errors.As(err, &orderError) {
		sb.WriteString("-----\n")
		fmt.Fprintf(&sb, "Pair: %s\n", orderError.Pair)
		fmt.Fprintf(&sb, "Quantity: %.4f\n", orderError.Quantity)
		sb.WriteString("-----\n")
		sb.WriteString(orderError.Err.Error())
		t.Notify(sb.String())
		return
	}

	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}

// HelpHandle displays available commands
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("notification/telegram: failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.Notify(strings.Join(lines, "\n"))
}

// StatusHandle displays the current engine status
func (t *Telegram) StatusHandle(*tb.Message) {
	if t.engine == nil {
		t.Notify("No engine attached.")
		return
	}
	t.Notify(fmt.Sprintf("Status: `%s`", t.engine.Status()))
}

// StopHandle stops the engine
func (t *Telegram) StopHandle(*tb.Message) {
	if t.engine == nil {
		t.Notify("No engine attached.")
		return
	}
	t.engine.Stop()
	t.Notify("Trailing stop loss engine stopped.")
}
