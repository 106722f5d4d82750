package format

import "testing"

func TestDuration(t *testing.T) {
	cases := map[float64]string{
		0:    "0:00",
		59:   "0:59",
		60:   "1:00",
		3599: "59:59",
		3600: "1:00:00",
		7325: "2:02:05",
	}
	for secs, want := range cases {
		if got := Duration(secs); got != want {
			t.Errorf("Duration(%v) = %q, want %q", secs, got, want)
		}
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(999); got != "999 m" {
		t.Errorf("Distance(999) = %q", got)
	}
	if got := Distance(1500); got != "1.5 km" {
		t.Errorf("Distance(1500) = %q", got)
	}
}

func TestSpeed(t *testing.T) {
	if got := Speed(10); got != "36.0 km/h" {
		t.Errorf("Speed(10) = %q", got)
	}
}

func TestPower(t *testing.T) {
	if got := Power(250.4); got != "250 W" {
		t.Errorf("Power(250.4) = %q", got)
	}
}
