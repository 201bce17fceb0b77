package ingest

import (
	"regexp"
	"time"
)

// stampPattern matches DDMMYYYY and HHMMSS, optionally joined by one underscore.
// The run may not continue into further digits on either side.
var stampPattern = regexp.MustCompile(`(?:^|[^0-9])([0-9]{8})_?([0-9]{6})(?:[^0-9]|$)`)

const (
	stampDigitsLayout = "02012006150405"
	stampTextLayout   = "02-01-2006 15:04:05"
)

// Stamp is the sampling instant encoded in a snapshot file name
type Stamp struct {
	Time  time.Time
	Text  string // DD-MM-YYYY HH:MM:SS
	Label string // T + HHMM
}

// ParseFilename extracts the sampling timestamp from names like
// NIFTY_01012024_091500.csv or chain01012024091500.csv.
// ok is false when no valid date-time run is present.
func ParseFilename(name string) (Stamp, bool) {
	for _, m := range stampPattern.FindAllStringSubmatch(name, -1) {
		date, clock := m[1], m[2]
		ts, err := time.ParseInLocation(stampDigitsLayout, date+clock, time.UTC)
		if err != nil {
			continue
		}
		return Stamp{
			Time:  ts,
			Text:  ts.Format(stampTextLayout),
			Label: "T" + clock[:4],
		}, true
	}
	return Stamp{}, false
}

// ParseStampText parses the DD-MM-YYYY HH:MM:SS form produced by ParseFilename
func ParseStampText(text string) (time.Time, error) {
	return time.ParseInLocation(stampTextLayout, text, time.UTC)
}
