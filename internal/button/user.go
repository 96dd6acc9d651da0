package button

import (
	"log"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

// NewUserButton creates the debouncer for the menu button. Confirmed gestures go to the display.
func NewUserButton(window int, logger *log.Logger) *Debouncer {
	return newDebouncer("User", fsm.TimerUserDebounce, window, logger, func(pressed bool) []fsm.Effect {
		if pressed {
			return []fsm.Effect{fsm.PostTo(fsm.ServiceDisplay, fsm.E(fsm.KindPressed, 0))}
		}
		return []fsm.Effect{fsm.PostTo(fsm.ServiceDisplay, fsm.E(fsm.KindReleased, 0))}
	})
}
