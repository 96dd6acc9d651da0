package display

// The display takes one 16-bit word per refresh: the high byte drives the ones digit and the low
// byte drives the tens digit, one bit per segment (a..g from bit 0).
var onesDigit = [10]uint16{0x3F00, 0x0600, 0x5B00, 0x4F00, 0x6600, 0x6D00, 0x7D00, 0x0700, 0x7F00, 0x6700}

var tensDigit = [10]uint16{0x3F, 0x06, 0x5B, 0x4F, 0x66, 0x6D, 0x7D, 0x07, 0x7F, 0x67}

// Carousel labels, shown on the ones digit.
const (
	GlyphF uint16 = 0x7100
	GlyphC uint16 = 0x3900
	GlyphP uint16 = 0x7300
)

// Blank turns every segment off.
const Blank uint16 = 0

// Digits returns the pattern for a two-digit value. Values outside 0..99 are clamped.
func Digits(v int) uint16 {
	if v < 0 {
		v = 0
	}
	if v > 99 {
		v = 99
	}
	return tensDigit[v/10%10] | onesDigit[v%10]
}
