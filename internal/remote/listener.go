package remote

import (
	"fmt"
	"log"
	"strings"

	redis_ipc "github.com/rescoot/redis-ipc"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

const (
	// CommandList is the Redis list commands are pushed to.
	CommandList = "scooter:smartpot"

	settingsHash        = "settings"
	unitSettingKey      = "smartpot.unit"
	thresholdSettingKey = "smartpot.threshold"
)

// PostFunc hands an event to the event loop. It must not block.
type PostFunc func(to fsm.ServiceID, ev fsm.Event)

// Listener turns Redis commands and setting changes into events
type Listener struct {
	redis  *redis_ipc.Client
	post   PostFunc
	logger *log.Logger
}

// NewListener creates a listener posting through post
func NewListener(client *redis_ipc.Client, post PostFunc, logger *log.Logger) *Listener {
	return &Listener{
		redis:  client,
		post:   post,
		logger: logger,
	}
}

// Start registers the command handler and the settings subscription, then applies the stored
// settings.
func (l *Listener) Start() error {
	l.redis.HandleRequests(CommandList, l.onCommand)

	settings := l.redis.Subscribe(settingsHash)
	if err := settings.Handle(unitSettingKey, l.onUnitSetting); err != nil {
		return fmt.Errorf("failed to subscribe to unit setting: %w", err)
	}
	if err := settings.Handle(thresholdSettingKey, l.onThresholdSetting); err != nil {
		return fmt.Errorf("failed to subscribe to threshold setting: %w", err)
	}

	l.loadSetting(unitSettingKey, unitSetting)
	l.loadSetting(thresholdSettingKey, thresholdSetting)

	l.logger.Printf("Listening for commands on %s", CommandList)
	return nil
}

func (l *Listener) onCommand(data []byte) error {
	command := string(data)
	l.logger.Printf("Received command: %s", command)

	effects, err := Translate(command)
	if err != nil {
		return err
	}
	l.dispatch(effects)
	return nil
}

func (l *Listener) onUnitSetting(data []byte) error {
	return l.applySetting(unitSettingKey, unitSetting)
}

func (l *Listener) onThresholdSetting(data []byte) error {
	return l.applySetting(thresholdSettingKey, thresholdSetting)
}

// loadSetting applies a stored setting at startup. A missing setting keeps the default.
func (l *Listener) loadSetting(field string, parse func(string) ([]fsm.Effect, error)) {
	if err := l.applySetting(field, parse); err != nil {
		l.logger.Printf("No usable %s setting, keeping default: %v", field, err)
	}
}

func (l *Listener) applySetting(field string, parse func(string) ([]fsm.Effect, error)) error {
	value, err := l.redis.HGet(settingsHash, field)
	if err != nil {
		return fmt.Errorf("failed to get %s setting: %w", field, err)
	}

	effects, err := parse(strings.TrimSpace(strings.ToLower(value)))
	if err != nil {
		return err
	}

	l.logger.Printf("Applying %s setting: %s", field, value)
	l.dispatch(effects)
	return nil
}

func (l *Listener) dispatch(effects []fsm.Effect) {
	for _, e := range effects {
		if e.Op == fsm.OpPost {
			l.post(e.To, e.Event)
		}
	}
}
