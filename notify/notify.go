// Package notify shows desktop notifications.
package notify

import (
	"unicode/utf8"

	"github.com/gen2brain/beeep"

	"localnotes/log"
)

// MaxMessage is the longest message shown before truncation.
const MaxMessage = 200

// Notifier posts notifications through send, which defaults to beeep.
type Notifier struct {
	Icon string
	send func(title, message, icon string) error
}

func New() *Notifier {
	return &Notifier{send: beeep.Notify}
}

func (n *Notifier) Notify(title, message string) error {
	msg := Truncate(message)
	if err := n.send(title, msg, n.Icon); err != nil {
		log.Warnf("notification %q: %v", title, err)
		return err
	}
	return nil
}

// Truncate shortens message to MaxMessage runes, appending "..." when cut.
func Truncate(message string) string {
	if utf8.RuneCountInString(message) <= MaxMessage {
		return message
	}
	runes := []rune(message)
	return string(runes[:MaxMessage]) + "..."
}
