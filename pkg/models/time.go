package models

import "time"

// timeLayouts are accepted timestamp formats, tried in order. Hook clients
// send RFC3339; older session files carry naive local timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// NowISO returns the current time formatted for session and step timestamps.
func NowISO() string {
	return time.Now().Format(time.RFC3339Nano)
}

// ParseTime parses a stored timestamp, accepting both RFC3339 and naive
// formats. Naive timestamps are interpreted in local time.
func ParseTime(s string) (time.Time, error) {
	var err error
	for i, layout := range timeLayouts {
		var t time.Time
		if i < 2 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
