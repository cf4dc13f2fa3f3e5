package utils

import "time"

// IST is the Asia/Kolkata civil timezone (UTC+5:30). India observes no
// daylight saving, so a fixed offset is exact and keeps the day math
// independent of the host tzdata.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Now returns the current time in UTC timezone
func Now() time.Time {
	return time.Now().UTC()
}

// CalendarDaysBetween counts IST midnight crossings between from and to.
// A lead created at 23:50 IST and evaluated at 00:10 IST the next calendar
// day has crossed one boundary even though only 20 minutes elapsed; this is
// the authoritative notion of "elapsed days" for all decay thresholds.
// The result is negative when to precedes from.
func CalendarDaysBetween(from, to time.Time) int {
	f := from.In(IST)
	t := to.In(IST)
	fromMidnight := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, IST)
	toMidnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
	return int(toMidnight.Sub(fromMidnight) / (24 * time.Hour))
}

// UnixToTime converts a unix timestamp to a UTC time.Time
func UnixToTime(timestamp int64) time.Time {
	if timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(timestamp, 0).UTC()
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
