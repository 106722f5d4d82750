package session

import "github.com/sirupsen/logrus"

// NewLogger configures a logrus.Logger at the requested level,
// following the verbosity convention of natesales-gpsd-exporter's
// -v/-vv flags: unrecognised levels fall back to Info rather than
// failing startup.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
