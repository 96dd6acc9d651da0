// Package remote accepts pot commands and settings from Redis.
package remote

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/librescoot/smartpot-service/internal/console"
	"github.com/librescoot/smartpot-service/internal/fsm"
)

// Translate maps a command string to the events it posts.
//
// Accepted commands:
//
//	f, c, w, t          same as the console keys
//	unit:f, unit:c      select the temperature unit
//	water               run the pump for the default duration
//	water:<ticks>       run the pump for the given number of ticks
//	threshold:toggle    flip the watering threshold
//	threshold:high|low  select the watering threshold
func Translate(command string) ([]fsm.Effect, error) {
	command = strings.TrimSpace(strings.ToLower(command))
	if len(command) == 1 {
		if effects := console.Command(rune(command[0])); effects != nil {
			return effects, nil
		}
		return nil, fmt.Errorf("unknown command %q", command)
	}

	name, arg, _ := strings.Cut(command, ":")
	switch name {
	case "unit":
		return unitSetting(arg)
	case "water":
		if arg == "" {
			return []fsm.Effect{fsm.PostTo(fsm.ServicePump, fsm.E(fsm.KindWaterPress, 0))}, nil
		}
		ticks, err := strconv.Atoi(arg)
		if err != nil || ticks <= 0 {
			return nil, fmt.Errorf("invalid water duration %q", arg)
		}
		return []fsm.Effect{fsm.PostTo(fsm.ServicePump, fsm.E(fsm.KindAddWater, ticks))}, nil
	case "threshold":
		if arg == "toggle" {
			return []fsm.Effect{fsm.PostTo(fsm.ServiceMoisture, fsm.E(fsm.KindToggleThreshold, 0))}, nil
		}
		return thresholdSetting(arg)
	}
	return nil, fmt.Errorf("unknown command %q", command)
}

// unitSetting selects a unit and tells the bridge peer about it.
func unitSetting(value string) ([]fsm.Effect, error) {
	switch value {
	case "f", "fahrenheit":
		return console.Command('f'), nil
	case "c", "celsius":
		return console.Command('c'), nil
	}
	return nil, fmt.Errorf("invalid unit %q", value)
}

// thresholdSetting selects a threshold and tells the bridge peer about it.
func thresholdSetting(value string) ([]fsm.Effect, error) {
	var high bool
	switch value {
	case "high":
		high = true
	case "low":
	default:
		return nil, fmt.Errorf("invalid threshold %q", value)
	}

	update := fsm.E(fsm.KindThresholdUpdate, fsm.Flag(high))
	return []fsm.Effect{
		fsm.PostTo(fsm.ServiceMoisture, fsm.E(fsm.KindSetThreshold, fsm.Flag(high))),
		fsm.PostTo(fsm.ServiceBridge, update),
		fsm.PostTo(fsm.ServiceBridge, update),
	}, nil
}
