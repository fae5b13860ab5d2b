package notification

import "github.com/raykavin/trailstop/core"

// Multi fans every notification out to a set of channels. A fill or a fatal
// error reaches Telegram and email alike.
type Multi []core.Notifier

// Notify sends the message to every channel
func (m Multi) Notify(text string) {
	for _, notifier := range m {
		notifier.Notify(text)
	}
}

// OnError sends the error to every channel
func (m Multi) OnError(err error) {
	for _, notifier := range m {
		notifier.OnError(err)
	}
}

// Start starts the channels that need an explicit start
func (m Multi) Start() {
	for _, notifier := range m {
		if withStart, ok := notifier.(core.NotifierWithStart); ok {
			withStart.Start()
		}
	}
}
