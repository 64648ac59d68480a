package mbox

import (
	"strconv"
	"strings"
	"time"
)

var envelopeMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var envelopeWeekdays = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true, "fri": true, "sat": true, "sun": true,
}

// Offsets in hours for the zone names mailers commonly write into
// envelope lines. Other alphabetic zones are read as UTC.
var envelopeZones = map[string]int{
	"UT": 0, "UTC": 0, "GMT": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
	"AKST": -9, "AKDT": -8,
	"HST": -10,
	"CET": 1, "CEST": 2,
	"BST": 1,
	"JST": 9,
}

// parseCtime parses the ctime-like date that follows the sender on an
// envelope line:
//
//	[Www] Mmm d hh:mm[:ss] [zone] yyyy [zone] [anything else]
//
// Trailing tokens after the year and zone, such as "remote from host", are
// ignored.
func parseCtime(f []string) (time.Time, bool) {
	if len(f) > 0 && envelopeWeekdays[strings.ToLower(f[0])] {
		f = f[1:]
	}
	if len(f) < 4 {
		return time.Time{}, false
	}

	month, ok := envelopeMonths[strings.ToLower(f[0])]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(f[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	hour, minute, sec, ok := parseClock(f[2])
	if !ok {
		return time.Time{}, false
	}

	rest := f[3:]
	loc := time.UTC
	if len(rest) > 1 {
		if z, ok := parseZone(rest[0]); ok {
			loc, rest = z, rest[1:]
		}
	}
	year, ok := parseYear(rest[0])
	if !ok {
		return time.Time{}, false
	}
	if len(rest) > 1 && loc == time.UTC {
		if z, ok := parseZone(rest[1]); ok {
			loc = z
		}
	}

	t := time.Date(year, month, day, hour, minute, sec, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseClock(s string) (hour, minute, sec int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, false
	}
	limits := []int{23, 59, 60}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) > 2 || n < 0 || n > limits[i] {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], true
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1000 {
		return 0, false
	}
	return n, true
}

// parseZone reads a numeric offset (+hhmm, -hh:mm) or a zone name of up
// to five upper-case letters, optionally in parentheses.
func parseZone(s string) (*time.Location, bool) {
	s = strings.Trim(s, "()")
	if s == "" {
		return nil, false
	}
	if s[0] == '+' || s[0] == '-' {
		digits := strings.Replace(s[1:], ":", "", 1)
		if len(digits) != 4 || (len(s) == 6 && s[3] != ':') {
			return nil, false
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return nil, false
		}
		off := (n/100)*3600 + (n%100)*60
		if s[0] == '-' {
			off = -off
		}
		return time.FixedZone(s, off), true
	}
	if len(s) > 5 || strings.ToUpper(s) != s {
		return nil, false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return nil, false
		}
	}
	if h, ok := envelopeZones[s]; ok {
		return time.FixedZone(s, h*3600), true
	}
	return time.UTC, true
}
