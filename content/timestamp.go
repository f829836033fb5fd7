package content

import (
	"encoding/json"
	"strings"
	"time"
)

// ISOLayout is the canonical date representation: UTC with millisecond
// precision.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

var now = time.Now

// Timestamper is implemented by provider timestamp values that know how to
// convert themselves to a time.
type Timestamper interface {
	ToTime() time.Time
}

// Timestamp is the seconds/nanoseconds object shape some document stores
// use for dates.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

func (t Timestamp) ToTime() time.Time {
	return time.Unix(t.Seconds, t.Nanoseconds).UTC()
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTime converts any date-like value into a time. Numbers are read as
// Unix milliseconds.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case Timestamper:
		return t.ToTime(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case []string:
		if len(t) == 0 {
			return time.Time{}, false
		}
		return ParseTime(t[0])
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms), true
		}
		if f, err := t.Float64(); err == nil {
			return time.UnixMilli(int64(f)), true
		}
	case float64:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case int:
		return time.UnixMilli(int64(t)), true
	case map[string]any:
		secs, ok := number(t["seconds"])
		if !ok {
			secs, ok = number(t["_seconds"])
		}
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := number(t["nanoseconds"])
		if nanos == 0 {
			nanos, _ = number(t["_nanoseconds"])
		}
		return Timestamp{Seconds: secs, Nanoseconds: nanos}.ToTime(), true
	}
	return time.Time{}, false
}

// ISODate formats a date-like value as ISO-8601, falling back to the
// current time when the value is absent or unparseable.
func ISODate(v any) string {
	t, ok := ParseTime(v)
	if !ok {
		t = now()
	}
	return FormatISO(t)
}

// FormatISO renders t in the canonical layout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// DateMillis returns the Unix millisecond value of an ISO date, or 0 when
// the date is missing or invalid.
func DateMillis(iso string) int64 {
	t, ok := ParseTime(iso)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}

func number(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
