package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// zoneless layouts are ISO-8601 forms without an offset, read as UTC
var zoneless = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}

// FormatTime renders t as UTC RFC3339 with nanoseconds, the form stored
// alongside vehicle positions
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a stored timestamp. Fractional seconds are optional.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ParseTimestamp decodes a wire timestamp. It accepts RFC3339 strings,
// zone-less ISO-8601 strings as UTC and unix milliseconds. Missing, null
// or unparseable values report false.
func ParseTimestamp(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
		for _, layout := range zoneless {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			return time.Time{}, false
		}
		ms = int64(f)
	}
	return time.UnixMilli(ms).UTC(), true
}

func timestampPtr(raw json.RawMessage) *time.Time {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return nil
	}
	return &t
}
