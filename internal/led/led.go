// Package led drives the night-light LED. Levels are on a perceptual 0..100
// scale and are mapped to PWM duty through the CIE 1931 lightness curve.
package led

import (
	"math"

	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/mathx"
)

// cie holds the duty fraction for each level.
var cie = func() [int(logic.MaxLevel) + 1]float64 {
	var t [int(logic.MaxLevel) + 1]float64
	for i := range t {
		l := float64(i) // lightness L* on 0..100
		if l <= 8 {
			t[i] = l / 903.3
		} else {
			t[i] = math.Pow((l+16)/116, 3)
		}
	}
	return t
}()

// Duty returns the PWM duty fraction in [0, 1] for level. Levels above the
// maximum are clamped.
func Duty(level uint8) float64 {
	return cie[mathx.Clamp(level, logic.MinLevel, logic.MaxLevel)]
}
