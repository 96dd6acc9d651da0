package temperature

import (
	"math"

	"github.com/librescoot/smartpot-service/internal/analog"
)

// Thermistor divider constants.
const (
	vref        = 3.3
	r1          = 10000.0 // fixed resistor
	r25         = 10000.0 // thermistor at 25 °C
	beta        = 3892.0
	kelvin25    = 298.1
	kelvinZero  = 273.1
	calibration = 4.0
)

// Convert turns a raw conversion into a whole-degree temperature in the given unit.
// Readings at either rail have no physical meaning and produce an out-of-range value.
func Convert(raw uint16, unit Unit) int {
	vout := float64(raw) / analog.MaxRaw * vref
	rtherm := r1 / (vref - vout) * vout

	t := beta/(beta/kelvin25-math.Log(r25/rtherm)) - kelvinZero
	t -= calibration

	if unit == Fahrenheit {
		t = t*9/5 + 32
	}
	return int(math.Round(t))
}
