package trailstop

import (
	"github.com/raykavin/trailstop/notification"
)

// initializeNotifications builds the notification fan-out from the settings.
// The bot itself serves as the status provider for interactive channels, so
// the engine can be attached after the channels exist.
func initializeNotifications(bot *Bot) error {
	if bot.settings.Telegram.Enabled {
		telegram, err := notification.NewTelegram(bot.settings.Telegram, bot, bot.log)
		if err != nil {
			return err
		}
		bot.notifiers = append(bot.notifiers, telegram)
	}

	if bot.settings.Email.Enabled {
		bot.notifiers = append(bot.notifiers, notification.NewMail(bot.settings.Email))
	}

	return nil
}
