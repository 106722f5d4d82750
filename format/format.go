// Package format implements the display formatters of spec.md §4.7
// (C7 Formatters): small, pure string-rendering helpers for the CLI
// and any future HTTP surface to share, grounded on the teacher's
// json.go string-building helpers.
package format

import "fmt"

// Duration renders seconds as "hh:mm:ss" once an hour is reached, or
// "m:ss" below that, per §4.7.
func Duration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds + 0.5)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Distance renders meters as "N.N km" at or above 1000 m, otherwise
// "N m", per §4.7.
func Distance(meters float64) string {
	if meters < 0 {
		meters = 0
	}
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// Speed renders meters/second as km/h with one decimal place.
func Speed(metersPerSecond float64) string {
	return fmt.Sprintf("%.1f km/h", metersPerSecond*3.6)
}

// Power renders watts with no decimal places.
func Power(watts float64) string {
	return fmt.Sprintf("%.0f W", watts)
}
