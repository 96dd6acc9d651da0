package wire

// Inbound command bits
const (
	CmdUnitFahrenheit   byte = 1 << 0
	CmdUnitPresent      byte = 1 << 1
	CmdWater            byte = 1 << 2
	CmdThresholdHigh    byte = 1 << 3
	CmdThresholdPresent byte = 1 << 4
)

// Command is a decoded inbound command byte. Several requests may be set at once.
type Command struct {
	Water bool

	SetUnit    bool
	Fahrenheit bool

	SetThreshold bool
	High         bool
}

// DecodeCommand splits a command byte into its requests. Target bits are only meaningful when
// the corresponding present bit is set.
func DecodeCommand(b byte) Command {
	c := Command{
		Water:        b&CmdWater != 0,
		SetUnit:      b&CmdUnitPresent != 0,
		SetThreshold: b&CmdThresholdPresent != 0,
	}
	if c.SetUnit {
		c.Fahrenheit = b&CmdUnitFahrenheit != 0
	}
	if c.SetThreshold {
		c.High = b&CmdThresholdHigh != 0
	}
	return c
}

// Byte encodes the command the way the companion module does.
func (c Command) Byte() byte {
	var b byte
	if c.Water {
		b |= CmdWater
	}
	if c.SetUnit {
		b |= CmdUnitPresent
		if c.Fahrenheit {
			b |= CmdUnitFahrenheit
		}
	}
	if c.SetThreshold {
		b |= CmdThresholdPresent
		if c.High {
			b |= CmdThresholdHigh
		}
	}
	return b
}

// Empty reports whether the command requests nothing.
func (c Command) Empty() bool {
	return !c.Water && !c.SetUnit && !c.SetThreshold
}
